package events

import "strings"

// Payloads come from third-party webhooks, so every read tolerates missing
// keys and unexpected types by returning the zero value.

func Lookup(obj map[string]interface{}, path ...string) (interface{}, bool) {
	if obj == nil || len(path) == 0 {
		return nil, false
	}
	var cur interface{} = obj
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func String(obj map[string]interface{}, path ...string) string {
	v, ok := Lookup(obj, path...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Bool reports the value and whether a boolean was actually present.
func Bool(obj map[string]interface{}, path ...string) (bool, bool) {
	v, ok := Lookup(obj, path...)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func Map(obj map[string]interface{}, path ...string) map[string]interface{} {
	v, ok := Lookup(obj, path...)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]interface{})
	return m
}

func Slice(obj map[string]interface{}, path ...string) []interface{} {
	v, ok := Lookup(obj, path...)
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []interface{}:
		return s
	case []map[string]interface{}:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out
	}
	return nil
}

// PluckStrings reads field from every map element of the list at path.
func PluckStrings(obj map[string]interface{}, field string, path ...string) []string {
	items := Slice(obj, path...)
	out := make([]string, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if s, ok := m[field].(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PullRequest is a read-only view over a GitHub pull_request payload.
type PullRequest struct {
	raw map[string]interface{}
}

func (e NotificationEvent) PullRequest() PullRequest {
	return PullRequest{raw: Map(e.Payload, "pull_request")}
}

func (p PullRequest) Draft() bool {
	b, _ := Bool(p.raw, "draft")
	return b
}

// Mergeable reports the mergeable flag and whether GitHub has computed it yet.
func (p PullRequest) Mergeable() (bool, bool) {
	return Bool(p.raw, "mergeable")
}

func (p PullRequest) Title() string {
	return String(p.raw, "title")
}

func (p PullRequest) AuthorLogin() string {
	return String(p.raw, "user", "login")
}

func (p PullRequest) RequestedReviewers() []string {
	return PluckStrings(p.raw, "login", "requested_reviewers")
}

func (p PullRequest) Assignees() []string {
	return PluckStrings(p.raw, "login", "assignees")
}

// Issue is a read-only view over a JIRA issue payload. Both the webhook
// shape ({"issue": {"fields": ...}}) and a bare issue ({"fields": ...}) are accepted.
type Issue struct {
	fields    map[string]interface{}
	changelog map[string]interface{}
}

func (e NotificationEvent) Issue() Issue {
	fields := Map(e.Payload, "issue", "fields")
	if fields == nil {
		fields = Map(e.Payload, "fields")
	}
	return Issue{fields: fields, changelog: Map(e.Payload, "changelog")}
}

func (i Issue) Priority() string {
	return String(i.fields, "priority", "name")
}

func (i Issue) AssigneeName() string  { return String(i.fields, "assignee", "name") }
func (i Issue) AssigneeEmail() string { return String(i.fields, "assignee", "emailAddress") }
func (i Issue) ReporterName() string  { return String(i.fields, "reporter", "name") }
func (i Issue) ReporterEmail() string { return String(i.fields, "reporter", "emailAddress") }

type ChangelogItem struct {
	Field      string
	FromString string
	ToString   string
}

func (i Issue) ChangelogItems() []ChangelogItem {
	raw := Slice(i.changelog, "items")
	items := make([]ChangelogItem, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		items = append(items, ChangelogItem{
			Field:      String(m, "field"),
			FromString: String(m, "fromString"),
			ToString:   String(m, "toString"),
		})
	}
	return items
}

// ChangedFields returns the distinct field names touched by the changelog, in order.
func (i Issue) ChangedFields() []string {
	seen := make(map[string]struct{})
	var fields []string
	for _, item := range i.ChangelogItems() {
		if item.Field == "" {
			continue
		}
		if _, ok := seen[item.Field]; ok {
			continue
		}
		seen[item.Field] = struct{}{}
		fields = append(fields, item.Field)
	}
	return fields
}

// StatusTransition returns the first status change in the changelog.
func (i Issue) StatusTransition() (from, to string, ok bool) {
	for _, item := range i.ChangelogItems() {
		if strings.EqualFold(item.Field, "status") {
			return item.FromString, item.ToString, true
		}
	}
	return "", "", false
}

func (e NotificationEvent) Severity() string {
	return strings.ToLower(String(e.Payload, "severity"))
}
