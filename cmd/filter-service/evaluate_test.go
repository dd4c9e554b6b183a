package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifilter/internal/config"
	"notifilter/internal/engine"
	"notifilter/internal/events"
	"notifilter/internal/logger"
)

const jiraCommentEvent = `{
  "id": "evt-42",
  "source": "jira",
  "event_type": "issue_updated",
  "payload": {"issue": {"key": "OPS-1", "fields": {"status": {"name": "Open"}}}},
  "metadata": {"team_id": "platform"}
}`

const muteRules = `
rules:
  - id: mute_jira
    name: Mute JIRA for platform
    action: block
    priority: 500
    team_id: platform
    condition:
      source: jira
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func defaultEngineConfig() config.EngineConfig {
	return config.EngineConfig{Rules: config.RulesConfig{SeedDefaults: true}}
}

func TestRunEvaluate_RuleFile(t *testing.T) {
	opts := evaluateOptions{
		eventFile: writeFile(t, "event.json", jiraCommentEvent),
		rulesFile: writeFile(t, "rules.yaml", muteRules),
	}

	var out bytes.Buffer
	require.NoError(t, runEvaluate(context.Background(), defaultEngineConfig(), opts, &out))

	var decision events.FilterDecision
	require.NoError(t, json.Unmarshal(out.Bytes(), &decision))
	assert.False(t, decision.ShouldProcess)
	assert.Equal(t, events.ActionBlock, decision.Action)
	assert.Equal(t, []string{"mute_jira"}, decision.AppliedRules)
}

func TestRunEvaluate_RuleFileWithInvalidRule(t *testing.T) {
	opts := evaluateOptions{
		eventFile: writeFile(t, "event.json", jiraCommentEvent),
		rulesFile: writeFile(t, "rules.yaml", muteRules+"  - name: bad\n    action: shout\n"),
	}

	var out bytes.Buffer
	require.NoError(t, runEvaluate(context.Background(), defaultEngineConfig(), opts, &out))

	var decision events.FilterDecision
	require.NoError(t, json.Unmarshal(out.Bytes(), &decision))
	assert.Equal(t, []string{"mute_jira"}, decision.AppliedRules)
}

func TestRunEvaluate_ContextFlagsOverrideMetadata(t *testing.T) {
	opts := evaluateOptions{
		eventFile: writeFile(t, "event.json", `{"id":"evt-1","source":"manual","event_type":"note","payload":{"text":"hi"}}`),
		teamID:    "mobile",
		userID:    "u7",
	}

	var out bytes.Buffer
	require.NoError(t, runEvaluate(context.Background(), defaultEngineConfig(), opts, &out))

	var decision events.FilterDecision
	require.NoError(t, json.Unmarshal(out.Bytes(), &decision))
	assert.Equal(t, []string{engine.TagGenericRelevance}, decision.AppliedRules)
}

func TestRunEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts func(t *testing.T) evaluateOptions
	}{
		{
			name: "missing event file",
			opts: func(t *testing.T) evaluateOptions {
				return evaluateOptions{eventFile: filepath.Join(t.TempDir(), "missing.json")}
			},
		},
		{
			name: "malformed event",
			opts: func(t *testing.T) evaluateOptions {
				return evaluateOptions{eventFile: writeFile(t, "event.json", "{")}
			},
		},
		{
			name: "malformed rule file",
			opts: func(t *testing.T) evaluateOptions {
				return evaluateOptions{
					eventFile: writeFile(t, "event.json", jiraCommentEvent),
					rulesFile: writeFile(t, "rules.yaml", "rules: [::"),
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runEvaluate(context.Background(), defaultEngineConfig(), tt.opts(t), &out)
			assert.Error(t, err)
			assert.Empty(t, out.String())
		})
	}
}

func TestEngineOptions_SeedDefaults(t *testing.T) {
	cfg := config.EngineConfig{}
	eng, err := engine.New(engineOptions(cfg, logger.NopLogger())...)
	require.NoError(t, err)
	assert.Equal(t, 0, eng.GetStats().TotalRules)

	cfg.Rules.SeedDefaults = true
	eng, err = engine.New(engineOptions(cfg, logger.NopLogger())...)
	require.NoError(t, err)
	assert.Positive(t, eng.GetStats().TotalRules)
}
