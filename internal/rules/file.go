package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"notifilter/internal/constants"
	"notifilter/internal/events"
	"notifilter/internal/logger"
)

// ruleFile is the on-disk layout:
//
//	rules:
//	  - id: mute_bots
//	    name: Mute renovate updates
//	    action: block
//	    priority: 900
//	    team_id: platform
//	    condition:
//	      source: github
//	      eventType: [pr_updated, pr_synchronize]
type ruleFile struct {
	Rules []yaml.Node `yaml:"rules"`
}

// fileRule defaults Active to true when the key is omitted.
type fileRule struct {
	ID        string              `yaml:"id"`
	Name      string              `yaml:"name"`
	Condition Condition           `yaml:"condition"`
	Action    events.FilterAction `yaml:"action"`
	Priority  int                 `yaml:"priority"`
	TeamID    string              `yaml:"team_id"`
	ChannelID string              `yaml:"channel_id"`
	Active    *bool               `yaml:"active"`
}

type FileRepository struct {
	path string
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Path() string {
	return r.path
}

func (r *FileRepository) LoadRules(_ context.Context) ([]FilterRule, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %s: %w", r.path, err)
	}
	return ParseRules(data)
}

// ParseRules decodes a rule file. Malformed YAML fails the whole file; a
// single rule that does not decode or validate is left out and reported
// through an *InvalidRulesError next to the rules that did load.
func ParseRules(data []byte) ([]FilterRule, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	rules := make([]FilterRule, 0, len(file.Rules))
	var invalid []InvalidRule
	for i := range file.Rules {
		node := &file.Rules[i]

		var fr fileRule
		if err := node.Decode(&fr); err != nil {
			invalid = append(invalid, InvalidRule{Index: i, ID: nodeRuleID(node), Err: err})
			continue
		}
		rule := FilterRule{
			ID:        fr.ID,
			Name:      fr.Name,
			Condition: fr.Condition,
			Action:    fr.Action,
			Priority:  fr.Priority,
			TeamID:    fr.TeamID,
			ChannelID: fr.ChannelID,
			Active:    fr.Active == nil || *fr.Active,
		}
		if err := rule.Validate(); err != nil {
			invalid = append(invalid, InvalidRule{Index: i, ID: rule.ID, Err: err})
			continue
		}
		rules = append(rules, rule)
	}
	return rules, invalidRules("rule file", invalid)
}

func nodeRuleID(node *yaml.Node) string {
	var partial struct {
		ID string `yaml:"id"`
	}
	if err := node.Decode(&partial); err != nil {
		return ""
	}
	return partial.ID
}

// Watcher invokes onChange whenever the rule file is written, renamed into
// place or recreated. Editors that replace files atomically are handled by
// watching the parent directory.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(ctx context.Context) error
	logger   logger.Logger
}

func NewWatcher(path string, onChange func(ctx context.Context) error, log logger.Logger) *Watcher {
	return &Watcher{
		path:     path,
		debounce: constants.RuleFileDebounce,
		onChange: onChange,
		logger:   log,
	}
}

func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	target := filepath.Clean(w.path)
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			if err := w.onChange(ctx); err != nil {
				w.logger.ErrorwCtx(ctx, "Failed to reload rule file",
					"path", w.path,
					"error", err,
				)
				continue
			}
			w.logger.InfowCtx(ctx, "Rule file reloaded", "path", w.path)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnwCtx(ctx, "Rule file watcher error", "error", err)
		}
	}
}
