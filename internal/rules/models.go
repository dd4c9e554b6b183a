package rules

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"notifilter/internal/events"
)

const DefaultTeam = "default"

type FilterRule struct {
	ID        string              `json:"id" yaml:"id"`
	Name      string              `json:"name" yaml:"name"`
	Condition Condition           `json:"condition" yaml:"condition"`
	Action    events.FilterAction `json:"action" yaml:"action"`
	Priority  int                 `json:"priority" yaml:"priority"`
	TeamID    string              `json:"team_id,omitempty" yaml:"team_id,omitempty"`
	ChannelID string              `json:"channel_id,omitempty" yaml:"channel_id,omitempty"`
	Active    bool                `json:"active" yaml:"active"`
	CreatedAt time.Time           `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time           `json:"updated_at" yaml:"updated_at,omitempty"`
}

// Bucket is the registry bucket the rule belongs to.
func (r FilterRule) Bucket() string {
	return ResolveTeam(r.TeamID)
}

func ResolveTeam(teamID string) string {
	if teamID == "" {
		return DefaultTeam
	}
	return teamID
}

func (r FilterRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !r.Action.Valid() {
		return fmt.Errorf("invalid action: %q. Allowed: allow, block, downgrade, batch", r.Action)
	}
	return nil
}

// Condition holds the supported matchers of a rule. Unset fields do not
// constrain the match; Extra keeps unrecognised keys so rules written for
// newer engines still load.
type Condition struct {
	Source        StringList             `json:"source,omitempty" yaml:"source,omitempty"`
	EventType     StringList             `json:"eventType,omitempty" yaml:"eventType,omitempty"`
	ChannelID     StringList             `json:"channelId,omitempty" yaml:"channelId,omitempty"`
	PRStatus      string                 `json:"prStatus,omitempty" yaml:"prStatus,omitempty"`
	ChangedFields StringList             `json:"changedFields,omitempty" yaml:"changedFields,omitempty"`
	OnlyChanged   StringList             `json:"onlyChangedFields,omitempty" yaml:"onlyChangedFields,omitempty"`
	Severity      StringList             `json:"severity,omitempty" yaml:"severity,omitempty"`
	Expression    string                 `json:"expression,omitempty" yaml:"expression,omitempty"`
	Extra         map[string]interface{} `json:"-" yaml:"-"`
}

var knownConditionKeys = map[string]bool{
	"source":            true,
	"eventType":         true,
	"channelId":         true,
	"prStatus":          true,
	"changedFields":     true,
	"onlyChangedFields": true,
	"severity":          true,
	"expression":        true,
}

// ConditionFromMap decodes a loosely typed condition map, such as one read from
// a JSON column. Scalars are normalised to singleton lists.
func ConditionFromMap(raw map[string]interface{}) (Condition, error) {
	var c Condition
	for key, value := range raw {
		var err error
		switch key {
		case "source":
			c.Source, err = toStringList(value)
		case "eventType":
			c.EventType, err = toStringList(value)
		case "channelId":
			c.ChannelID, err = toStringList(value)
		case "changedFields":
			c.ChangedFields, err = toStringList(value)
		case "onlyChangedFields":
			c.OnlyChanged, err = toStringList(value)
		case "severity":
			c.Severity, err = toStringList(value)
		case "prStatus":
			s, ok := value.(string)
			if !ok {
				err = fmt.Errorf("expected string, got %T", value)
			}
			c.PRStatus = s
		case "expression":
			s, ok := value.(string)
			if !ok {
				err = fmt.Errorf("expected string, got %T", value)
			}
			c.Expression = s
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]interface{})
			}
			c.Extra[key] = value
		}
		if err != nil {
			return Condition{}, fmt.Errorf("condition %q: %w", key, err)
		}
	}
	return c, nil
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := ConditionFromMap(raw)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	decoded, err := ConditionFromMap(raw)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// ToMap is the inverse of ConditionFromMap.
func (c Condition) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(c.Extra)+8)
	for k, v := range c.Extra {
		out[k] = v
	}
	if len(c.Source) > 0 {
		out["source"] = []string(c.Source)
	}
	if len(c.EventType) > 0 {
		out["eventType"] = []string(c.EventType)
	}
	if len(c.ChannelID) > 0 {
		out["channelId"] = []string(c.ChannelID)
	}
	if len(c.ChangedFields) > 0 {
		out["changedFields"] = []string(c.ChangedFields)
	}
	if len(c.OnlyChanged) > 0 {
		out["onlyChangedFields"] = []string(c.OnlyChanged)
	}
	if len(c.Severity) > 0 {
		out["severity"] = []string(c.Severity)
	}
	if c.PRStatus != "" {
		out["prStatus"] = c.PRStatus
	}
	if c.Expression != "" {
		out["expression"] = c.Expression
	}
	return out
}

func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToMap())
}

// StringList accepts either a single string or a list of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	list, err := toStringList(raw)
	if err != nil {
		return err
	}
	*l = list
	return nil
}

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	list, err := toStringList(raw)
	if err != nil {
		return err
	}
	*l = list
	return nil
}

func toStringList(value interface{}) (StringList, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return StringList{v}, nil
	case []string:
		return StringList(v), nil
	case []interface{}:
		out := make(StringList, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: expected string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or list of strings, got %T", value)
	}
}
