package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"notifilter/internal/events"
)

func githubEvent(eventType string, pr map[string]interface{}) events.NotificationEvent {
	return events.NotificationEvent{
		ID:        "gh-1",
		Source:    events.SourceGitHub,
		EventType: eventType,
		Payload:   map[string]interface{}{"pull_request": pr},
	}
}

func jiraEvent(eventType string, fields map[string]interface{}) events.NotificationEvent {
	return events.NotificationEvent{
		ID:        "jira-1",
		Source:    events.SourceJira,
		EventType: eventType,
		Payload:   map[string]interface{}{"issue": map[string]interface{}{"fields": fields}},
	}
}

func TestScoreRelevance(t *testing.T) {
	pr := map[string]interface{}{
		"user":                map[string]interface{}{"login": "alice"},
		"requested_reviewers": []interface{}{map[string]interface{}{"login": "bob"}},
		"assignees":           []interface{}{map[string]interface{}{"login": "carol"}},
	}
	issue := map[string]interface{}{
		"assignee": map[string]interface{}{"name": "dave", "emailAddress": "dave@example.com"},
		"reporter": map[string]interface{}{"name": "erin", "emailAddress": "erin@example.com"},
	}

	tests := []struct {
		name   string
		event  events.NotificationEvent
		userID string
		want   events.RelevanceScore
	}{
		{"no user is neutral", githubEvent("pr_opened", pr), "", events.RelevanceMedium},
		{"github author", githubEvent("pr_opened", pr), "alice", events.RelevanceDirect},
		{"github requested reviewer", githubEvent("pr_opened", pr), "bob", events.RelevanceDirect},
		{"github assignee", githubEvent("pr_opened", pr), "carol", events.RelevanceDirect},
		{"github bystander", githubEvent("pr_opened", pr), "mallory", events.RelevanceLow},
		{"github empty payload", githubEvent("pr_opened", nil), "alice", events.RelevanceLow},
		{"jira assignee name", jiraEvent("issue_updated", issue), "dave", events.RelevanceDirect},
		{"jira reporter email", jiraEvent("issue_updated", issue), "erin@example.com", events.RelevanceDirect},
		{"jira bystander", jiraEvent("issue_updated", issue), "mallory", events.RelevanceLow},
		{
			"manual source",
			events.NotificationEvent{Source: events.SourceManual, EventType: "note"},
			"alice",
			events.RelevanceMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreRelevance(tt.event, tt.userID))
		})
	}
}

func TestIsCriticalBlocker(t *testing.T) {
	tests := []struct {
		name  string
		event events.NotificationEvent
		want  bool
	}{
		{
			"critical blocker",
			events.NotificationEvent{EventType: "blocker", Payload: map[string]interface{}{"severity": "critical"}},
			true,
		},
		{
			"high blocker mixed case",
			events.NotificationEvent{EventType: "blocker", Payload: map[string]interface{}{"severity": "HIGH"}},
			true,
		},
		{
			"low blocker",
			events.NotificationEvent{EventType: "blocker", Payload: map[string]interface{}{"severity": "low"}},
			false,
		},
		{"blocker without severity", events.NotificationEvent{EventType: "blocker"}, false},
		{"security alert", events.NotificationEvent{EventType: "security_alert"}, true},
		{"incident opened", events.NotificationEvent{EventType: "incident_opened"}, true},
		{"service down", events.NotificationEvent{EventType: "service_down"}, true},
		{"pr opened", events.NotificationEvent{EventType: "pr_opened"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCriticalBlocker(tt.event))
		})
	}
}

func TestEvaluateUrgency(t *testing.T) {
	tests := []struct {
		name  string
		event events.NotificationEvent
		want  events.UrgencyLevel
	}{
		{"outage", events.NotificationEvent{Source: events.SourceManual, EventType: "outage"}, events.UrgencyCritical},
		{"github hotfix title", githubEvent("pr_opened", map[string]interface{}{"title": "Hotfix: login loop"}), events.UrgencyCritical},
		{"github not mergeable", githubEvent("pr_updated", map[string]interface{}{"mergeable": false}), events.UrgencyHigh},
		{"github ready for review", githubEvent("pr_ready_for_review", map[string]interface{}{}), events.UrgencyHigh},
		{"github mergeable unknown", githubEvent("pr_updated", map[string]interface{}{"title": "Tidy"}), events.UrgencyMedium},
		{"jira critical", jiraEvent("issue_created", map[string]interface{}{"priority": map[string]interface{}{"name": "Critical"}}), events.UrgencyCritical},
		{"jira blocker", jiraEvent("issue_created", map[string]interface{}{"priority": map[string]interface{}{"name": "Blocker"}}), events.UrgencyCritical},
		{"jira high", jiraEvent("issue_created", map[string]interface{}{"priority": map[string]interface{}{"name": "High"}}), events.UrgencyHigh},
		{"jira medium", jiraEvent("issue_created", map[string]interface{}{"priority": map[string]interface{}{"name": "Medium"}}), events.UrgencyMedium},
		{"jira no priority", jiraEvent("issue_created", nil), events.UrgencyLow},
		{"manual default", events.NotificationEvent{Source: events.SourceManual, EventType: "note"}, events.UrgencyMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateUrgency(tt.event))
		})
	}
}
