package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifilter/internal/events"
	"notifilter/pkg/cel"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)
	return NewMatcher(evaluator)
}

func githubEvent(eventType string, draft bool) events.NotificationEvent {
	return events.NotificationEvent{
		ID:        "gh-1",
		Source:    events.SourceGitHub,
		EventType: eventType,
		Payload: map[string]interface{}{
			"pull_request": map[string]interface{}{
				"draft": draft,
				"user":  map[string]interface{}{"login": "alice"},
			},
		},
	}
}

func jiraEvent(fields ...string) events.NotificationEvent {
	items := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		items = append(items, map[string]interface{}{"field": f})
	}
	return events.NotificationEvent{
		ID:        "jira-1",
		Source:    events.SourceJira,
		EventType: "issue_updated",
		Payload: map[string]interface{}{
			"changelog": map[string]interface{}{"items": items},
		},
	}
}

func TestMatcher_Match(t *testing.T) {
	blocker := events.NotificationEvent{
		Source:    events.SourceManual,
		EventType: "blocker",
		Payload:   map[string]interface{}{"severity": "High"},
	}

	tests := []struct {
		name  string
		cond  Condition
		event events.NotificationEvent
		fc    events.FilterContext
		want  bool
	}{
		{"empty condition matches everything", Condition{}, githubEvent("pr_opened", false), events.FilterContext{}, true},
		{"source match", Condition{Source: StringList{"github"}}, githubEvent("pr_opened", false), events.FilterContext{}, true},
		{"source mismatch", Condition{Source: StringList{"jira"}}, githubEvent("pr_opened", false), events.FilterContext{}, false},
		{"event type in list", Condition{EventType: StringList{"pr_updated", "pr_opened"}}, githubEvent("pr_opened", false), events.FilterContext{}, true},
		{"event type not in list", Condition{EventType: StringList{"pr_merged"}}, githubEvent("pr_opened", false), events.FilterContext{}, false},
		{"channel match", Condition{ChannelID: StringList{"eng"}}, githubEvent("pr_opened", false), events.FilterContext{ChannelID: "eng"}, true},
		{"channel mismatch", Condition{ChannelID: StringList{"eng"}}, githubEvent("pr_opened", false), events.FilterContext{ChannelID: "ops"}, false},
		{"channel ignored without context channel", Condition{ChannelID: StringList{"eng"}}, githubEvent("pr_opened", false), events.FilterContext{}, true},
		{"draft pr", Condition{PRStatus: "draft"}, githubEvent("pr_updated", true), events.FilterContext{}, true},
		{"ready pr", Condition{PRStatus: "draft"}, githubEvent("pr_updated", false), events.FilterContext{}, false},
		{"draft condition on jira", Condition{PRStatus: "draft"}, jiraEvent("description"), events.FilterContext{}, false},
		{"changed field intersects", Condition{ChangedFields: StringList{"labels", "description"}}, jiraEvent("description", "status"), events.FilterContext{}, true},
		{"changed field disjoint", Condition{ChangedFields: StringList{"labels"}}, jiraEvent("status"), events.FilterContext{}, false},
		{"changed fields on github", Condition{ChangedFields: StringList{"labels"}}, githubEvent("pr_updated", false), events.FilterContext{}, false},
		{"severity is case-insensitive on the event side", Condition{Severity: StringList{"high", "critical"}}, blocker, events.FilterContext{}, true},
		{"severity mismatch", Condition{Severity: StringList{"critical"}}, blocker, events.FilterContext{}, false},
		{"expression true", Condition{Expression: "payload.pull_request.user.login == 'alice'"}, githubEvent("pr_opened", false), events.FilterContext{}, true},
		{"expression on context", Condition{Expression: "teamId == 'platform'"}, githubEvent("pr_opened", false), events.FilterContext{TeamID: "platform"}, true},
		{"all keys must hold", Condition{Source: StringList{"github"}, EventType: StringList{"pr_merged"}}, githubEvent("pr_opened", false), events.FilterContext{}, false},
	}

	m := newTestMatcher(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Match(context.Background(), tt.cond, tt.event, tt.fc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcher_ExpressionError(t *testing.T) {
	m := newTestMatcher(t)

	_, err := m.Match(context.Background(), Condition{Expression: "payload.pull_request.missing.key == 'x'"}, githubEvent("pr_opened", false), events.FilterContext{})
	assert.Error(t, err)

	_, err = NewMatcher(nil).Match(context.Background(), Condition{Expression: "true"}, githubEvent("pr_opened", false), events.FilterContext{})
	assert.Error(t, err)
}

func TestMatcher_OnlyChangedFields(t *testing.T) {
	descriptive := Condition{OnlyChanged: StringList{"description", "labels", "components", "fixVersions"}}

	tests := []struct {
		name  string
		event events.NotificationEvent
		want  bool
	}{
		{"single descriptive field", jiraEvent("description"), true},
		{"several descriptive fields", jiraEvent("labels", "fixVersions"), true},
		{"status and description", jiraEvent("status", "description"), false},
		{"priority only", jiraEvent("priority"), false},
		{"no changelog", jiraEvent(), false},
		{"github event", githubEvent("pr_updated", false), false},
	}

	m := newTestMatcher(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Match(context.Background(), descriptive, tt.event, events.FilterContext{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
