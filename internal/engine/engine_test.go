package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifilter/internal/events"
	"notifilter/internal/noise"
	"notifilter/internal/rules"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu        sync.Mutex
	decisions []events.FilterDecision
}

func (s *recordingSink) LogDecision(_ context.Context, _ events.NotificationEvent, _ events.FilterContext, d events.FilterDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.decisions)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	base := []Option{WithClock(clock.Now), WithSinks(&recordingSink{})}
	e, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return e, clock
}

func teamContext() events.FilterContext {
	return events.FilterContext{TeamID: "platform"}
}

func manualEvent(eventType string) events.NotificationEvent {
	return events.NotificationEvent{
		ID:        "evt-" + eventType,
		Source:    events.SourceManual,
		EventType: eventType,
		Payload:   map[string]interface{}{},
	}
}

func prEvent(eventType string, pr map[string]interface{}) events.NotificationEvent {
	return events.NotificationEvent{
		ID:        "gh-" + eventType,
		Source:    events.SourceGitHub,
		EventType: eventType,
		Payload:   map[string]interface{}{"pull_request": pr},
	}
}

func jiraIssueEvent(eventType string, fields map[string]interface{}, changelog ...map[string]interface{}) events.NotificationEvent {
	items := make([]interface{}, len(changelog))
	for i, item := range changelog {
		items[i] = item
	}
	return events.NotificationEvent{
		ID:        "jira-" + eventType,
		Source:    events.SourceJira,
		EventType: eventType,
		Payload: map[string]interface{}{
			"issue":     map[string]interface{}{"fields": fields},
			"changelog": map[string]interface{}{"items": items},
		},
	}
}

func change(field, from, to string) map[string]interface{} {
	return map[string]interface{}{"field": field, "fromString": from, "toString": to}
}

func TestEvaluate_BlockerOverride(t *testing.T) {
	for _, severity := range []string{"critical", "high", "CRITICAL"} {
		t.Run(severity, func(t *testing.T) {
			e, _ := newTestEngine(t)
			_, err := e.AddRule(rules.FilterRule{
				ID:        "mute_everything",
				Name:      "Mute all blockers",
				Condition: rules.Condition{EventType: rules.StringList{"blocker"}},
				Action:    events.ActionBlock,
				Priority:  5000,
				TeamID:    "platform",
				Active:    true,
			})
			require.NoError(t, err)

			event := manualEvent("blocker")
			event.Payload["severity"] = severity

			d := e.Evaluate(context.Background(), event, teamContext())

			assert.True(t, d.ShouldProcess)
			assert.Equal(t, events.ActionAllow, d.Action)
			assert.Equal(t, 1.0, d.Confidence)
			assert.Equal(t, []string{TagCriticalOverride}, d.AppliedRules)
			require.NotNil(t, d.UrgencyOverride)
			assert.Equal(t, events.UrgencyCritical, *d.UrgencyOverride)
		})
	}
}

func TestEvaluate_CriticalEventTypes(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, eventType := range []string{"security_alert", "incident_opened", "outage_reported", "service_down"} {
		d := e.Evaluate(context.Background(), manualEvent(eventType), teamContext())
		assert.Equal(t, []string{TagCriticalOverride}, d.AppliedRules, eventType)
	}
}

func TestEvaluate_LowSeverityBlockerIsNotOverridden(t *testing.T) {
	e, _ := newTestEngine(t)
	event := manualEvent("blocker")
	event.Payload["severity"] = "low"

	d := e.Evaluate(context.Background(), event, teamContext())

	assert.NotContains(t, d.AppliedRules, TagCriticalOverride)
	assert.Nil(t, d.UrgencyOverride)
}

func TestEvaluate_PriorityOrdering(t *testing.T) {
	tests := []struct {
		name       string
		allowPrio  int
		blockPrio  int
		wantAction events.FilterAction
		wantRule   string
	}{
		{"allow outranks block", 20, 10, events.ActionAllow, "allow_deploys"},
		{"block outranks allow", 10, 20, events.ActionBlock, "block_deploys"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			cond := rules.Condition{Source: rules.StringList{"manual"}, EventType: rules.StringList{"deploy"}}

			_, err := e.AddRule(rules.FilterRule{ID: "block_deploys", Name: "Block deploys", Condition: cond, Action: events.ActionBlock, Priority: tt.blockPrio, TeamID: "platform", Active: true})
			require.NoError(t, err)
			_, err = e.AddRule(rules.FilterRule{ID: "allow_deploys", Name: "Allow deploys", Condition: cond, Action: events.ActionAllow, Priority: tt.allowPrio, Active: true})
			require.NoError(t, err)

			d := e.Evaluate(context.Background(), manualEvent("deploy"), teamContext())

			assert.Equal(t, tt.wantAction, d.Action)
			assert.Equal(t, tt.wantAction != events.ActionBlock, d.ShouldProcess)
			assert.Equal(t, []string{tt.wantRule}, d.AppliedRules)
		})
	}
}

func TestEvaluate_EqualPriorityUsesRegistrationOrder(t *testing.T) {
	e, _ := newTestEngine(t)
	cond := rules.Condition{EventType: rules.StringList{"deploy"}}

	_, err := e.AddRule(rules.FilterRule{ID: "first", Name: "First", Condition: cond, Action: events.ActionBatch, Priority: 50, Active: true})
	require.NoError(t, err)
	_, err = e.AddRule(rules.FilterRule{ID: "second", Name: "Second", Condition: cond, Action: events.ActionBlock, Priority: 50, TeamID: "platform", Active: true})
	require.NoError(t, err)

	d := e.Evaluate(context.Background(), manualEvent("deploy"), teamContext())

	assert.Equal(t, []string{"first"}, d.AppliedRules)
	assert.Equal(t, events.ActionBatch, d.Action)
}

func TestEvaluate_InactiveRulesAreSkipped(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.AddRule(rules.FilterRule{
		ID:        "disabled",
		Name:      "Disabled",
		Condition: rules.Condition{EventType: rules.StringList{"deploy"}},
		Action:    events.ActionBlock,
		Priority:  100,
		Active:    false,
	})
	require.NoError(t, err)

	d := e.Evaluate(context.Background(), manualEvent("deploy"), teamContext())

	assert.True(t, d.ShouldProcess)
	assert.NotContains(t, d.AppliedRules, "disabled")
}

func TestEvaluate_ChannelScopedRule(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.AddRule(rules.FilterRule{
		ID:        "mute_in_random",
		Name:      "Mute deploys in #random",
		Condition: rules.Condition{EventType: rules.StringList{"deploy"}},
		Action:    events.ActionBlock,
		Priority:  100,
		TeamID:    "platform",
		ChannelID: "random",
		Active:    true,
	})
	require.NoError(t, err)

	inRandom := e.Evaluate(context.Background(), manualEvent("deploy"), events.FilterContext{TeamID: "platform", ChannelID: "random"})
	inOps := e.Evaluate(context.Background(), manualEvent("deploy"), events.FilterContext{TeamID: "platform", ChannelID: "ops"})

	assert.Equal(t, events.ActionBlock, inRandom.Action)
	assert.Equal(t, events.ActionAllow, inOps.Action)
}

func TestEvaluate_ConditionErrorIsNonMatch(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.AddRule(rules.FilterRule{
		ID:        "broken",
		Name:      "Broken expression",
		Condition: rules.Condition{Expression: "payload.missing.field == 'x'"},
		Action:    events.ActionBlock,
		Priority:  900,
		Active:    true,
	})
	require.NoError(t, err)
	_, err = e.AddRule(rules.FilterRule{
		ID:        "batch_deploys",
		Name:      "Batch deploys",
		Condition: rules.Condition{EventType: rules.StringList{"deploy"}},
		Action:    events.ActionBatch,
		Priority:  10,
		Active:    true,
	})
	require.NoError(t, err)

	d := e.Evaluate(context.Background(), manualEvent("deploy"), teamContext())

	assert.Equal(t, events.ActionBatch, d.Action)
	assert.Equal(t, []string{"batch_deploys"}, d.AppliedRules)
}

func TestEvaluate_RuleCRUDRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	rule, err := e.AddRule(rules.FilterRule{
		Name:      "Block deploys",
		Condition: rules.Condition{EventType: rules.StringList{"deploy"}},
		Action:    events.ActionBlock,
		Priority:  100,
		TeamID:    "platform",
		Active:    true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, rule.ID)

	before := e.Evaluate(context.Background(), manualEvent("deploy"), teamContext())
	assert.Contains(t, before.AppliedRules, rule.ID)

	assert.True(t, e.RemoveRule(rule.ID, rule.TeamID))
	assert.False(t, e.RemoveRule(rule.ID, rule.TeamID))

	after := e.Evaluate(context.Background(), manualEvent("deploy"), teamContext())
	assert.NotContains(t, after.AppliedRules, rule.ID)
	assert.True(t, after.ShouldProcess)
}

func TestEvaluate_NoiseThreshold(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		d := e.Evaluate(ctx, manualEvent("heartbeat"), teamContext())
		require.Equal(t, events.ActionAllow, d.Action, "event %d", i)
		clock.Advance(time.Minute)
	}

	eleventh := e.Evaluate(ctx, manualEvent("heartbeat"), teamContext())
	assert.Equal(t, events.ActionBlock, eleventh.Action)
	assert.False(t, eleventh.ShouldProcess)
	assert.Equal(t, []string{noise.TagFrequency}, eleventh.AppliedRules)

	clock.Advance(2 * time.Hour)
	later := e.Evaluate(ctx, manualEvent("heartbeat"), teamContext())
	assert.Equal(t, events.ActionAllow, later.Action)
}

func TestEvaluate_NoiseIsTrackedPerKey(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		e.Evaluate(ctx, manualEvent("heartbeat"), teamContext())
	}

	d := e.Evaluate(ctx, manualEvent("deploy"), teamContext())
	assert.Equal(t, events.ActionAllow, d.Action)
}

func TestEvaluate_HardRuleBeatsNoiseBlock(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.AddRule(rules.FilterRule{
		ID:        "always_deploys",
		Name:      "Always deliver deploys",
		Condition: rules.Condition{EventType: rules.StringList{"deploy"}},
		Action:    events.ActionAllow,
		Priority:  100,
		Active:    true,
	})
	require.NoError(t, err)

	var last events.FilterDecision
	for i := 0; i < 12; i++ {
		last = e.Evaluate(context.Background(), manualEvent("deploy"), teamContext())
	}

	assert.Equal(t, events.ActionAllow, last.Action)
	assert.Equal(t, []string{"always_deploys"}, last.AppliedRules)
}

func TestEvaluate_BotActivityDowngrades(t *testing.T) {
	e, _ := newTestEngine(t)
	event := prEvent("pr_opened", map[string]interface{}{
		"user": map[string]interface{}{"login": "dependabot[bot]"},
	})

	d := e.Evaluate(context.Background(), event, teamContext())

	assert.True(t, d.ShouldProcess)
	assert.Equal(t, events.ActionDowngrade, d.Action)
	assert.Equal(t, []string{noise.TagBotActivity, TagGitHubSignificant}, d.AppliedRules)
	assert.Equal(t, true, d.Metadata["bot_activity"])
}

func TestEvaluate_BotActivityKeepsLaterBlock(t *testing.T) {
	e, _ := newTestEngine(t)
	event := jiraIssueEvent("issue_updated",
		map[string]interface{}{"reporter": map[string]interface{}{"name": "automation-bot"}},
		change("comment", "", "LGTM"),
	)

	d := e.Evaluate(context.Background(), event, teamContext())

	assert.Equal(t, events.ActionBlock, d.Action)
	assert.False(t, d.ShouldProcess)
	assert.Equal(t, []string{TagJiraMinorUpdate}, d.AppliedRules)
}

func TestEvaluate_FailOpenOnEmptyPayload(t *testing.T) {
	e, _ := newTestEngine(t)
	sources := []events.Source{events.SourceGitHub, events.SourceJira, events.SourceManual, ""}
	eventTypes := []string{"pr_updated", "issue_updated", "blocker", "unknown"}

	for _, source := range sources {
		for _, eventType := range eventTypes {
			t.Run(fmt.Sprintf("%s/%s", source, eventType), func(t *testing.T) {
				event := events.NotificationEvent{ID: "empty", Source: source, EventType: eventType}

				var d events.FilterDecision
				assert.NotPanics(t, func() {
					d = e.Evaluate(context.Background(), event, teamContext())
				})
				assert.True(t, d.ShouldProcess)
				assert.NotEmpty(t, d.AppliedRules)
			})
		}
	}
}

func TestEvaluate_MissingTeamFallsBack(t *testing.T) {
	e, _ := newTestEngine(t)

	d := e.Evaluate(context.Background(), manualEvent("deploy"), events.FilterContext{})

	assert.True(t, d.ShouldProcess)
	assert.Equal(t, events.ActionAllow, d.Action)
	assert.Equal(t, 0.0, d.Confidence)
	assert.Equal(t, []string{TagErrorFallback}, d.AppliedRules)
	assert.Contains(t, d.Reason, "team id")
}

func TestEvaluate_PanicFallsBack(t *testing.T) {
	e, _ := newTestEngine(t)
	e.noise = nil

	var d events.FilterDecision
	require.NotPanics(t, func() {
		d = e.Evaluate(context.Background(), manualEvent("deploy"), teamContext())
	})

	assert.True(t, d.ShouldProcess)
	assert.Equal(t, []string{TagErrorFallback}, d.AppliedRules)
	assert.Contains(t, d.Reason, "evaluation error")

	// critical events short-circuit before the broken detector
	critical := e.Evaluate(context.Background(), manualEvent("security_alert"), teamContext())
	assert.Equal(t, []string{TagCriticalOverride}, critical.AppliedRules)
}

func TestEvaluate_DecisionInvariants(t *testing.T) {
	e, _ := newTestEngine(t)
	inputs := []events.NotificationEvent{
		manualEvent("deploy"),
		prEvent("pr_updated", map[string]interface{}{"draft": true}),
		prEvent("pr_synchronize", map[string]interface{}{}),
		jiraIssueEvent("issue_updated", nil, change("labels", "", "ui")),
		jiraIssueEvent("issue_updated", nil, change("comment", "", "ok")),
		{ID: "unknown", Source: "pagerduty", EventType: "page"},
	}

	for _, event := range inputs {
		d := e.Evaluate(context.Background(), event, teamContext())
		assert.Equal(t, d.Action != events.ActionBlock, d.ShouldProcess, event.ID)
		assert.NotEmpty(t, d.AppliedRules, event.ID)
	}
}

func TestEvaluate_GenericAndDefaultFallbacks(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	noUser := e.Evaluate(ctx, manualEvent("note"), teamContext())
	assert.Equal(t, []string{TagNoUserContext}, noUser.AppliedRules)
	assert.Equal(t, 0.5, noUser.Confidence)

	withUser := e.Evaluate(ctx, manualEvent("note"), events.FilterContext{TeamID: "platform", UserID: "alice"})
	assert.Equal(t, []string{TagGenericRelevance}, withUser.AppliedRules)
	assert.Equal(t, 0.6, withUser.Confidence)

	unknown := e.Evaluate(ctx, events.NotificationEvent{ID: "x", Source: "pagerduty", EventType: "page"}, teamContext())
	assert.Equal(t, []string{TagDefaultAllow}, unknown.AppliedRules)
	assert.Equal(t, 0.5, unknown.Confidence)
}

func TestEvaluate_ScenarioA_CriticalBlocker(t *testing.T) {
	e, _ := newTestEngine(t)
	event := events.NotificationEvent{
		ID:        "a",
		Source:    events.SourceManual,
		EventType: "blocker",
		Payload:   map[string]interface{}{"severity": "critical"},
	}

	d := e.Evaluate(context.Background(), event, teamContext())

	assert.True(t, d.ShouldProcess)
	assert.Equal(t, events.ActionAllow, d.Action)
	require.NotNil(t, d.UrgencyOverride)
	assert.Equal(t, events.UrgencyCritical, *d.UrgencyOverride)
}

func TestEvaluate_ScenarioB_DraftUpdate(t *testing.T) {
	event := prEvent("pr_updated", map[string]interface{}{"draft": true})

	t.Run("seed rule", func(t *testing.T) {
		e, _ := newTestEngine(t)
		d := e.Evaluate(context.Background(), event, teamContext())
		assert.False(t, d.ShouldProcess)
		assert.Equal(t, events.ActionBlock, d.Action)
		assert.Equal(t, []string{"filter_draft_prs"}, d.AppliedRules)
	})

	t.Run("source filter", func(t *testing.T) {
		e, _ := newTestEngine(t, WithoutSeedRules())
		d := e.Evaluate(context.Background(), event, teamContext())
		assert.False(t, d.ShouldProcess)
		assert.Equal(t, events.ActionBlock, d.Action)
		assert.Equal(t, []string{TagGitHubDraft}, d.AppliedRules)
		assert.Equal(t, "draft minor update", d.Reason)
	})
}

func TestEvaluate_ScenarioC_JiraCriticalPriorityCappedAtHigh(t *testing.T) {
	e, _ := newTestEngine(t)
	event := jiraIssueEvent("issue_created", map[string]interface{}{
		"priority": map[string]interface{}{"name": "Critical"},
	})

	d := e.Evaluate(context.Background(), event, teamContext())

	assert.True(t, d.ShouldProcess)
	require.NotNil(t, d.UrgencyOverride)
	assert.Equal(t, events.UrgencyHigh, *d.UrgencyOverride)
	assert.Equal(t, []string{TagJiraHighPriority}, d.AppliedRules)
	assert.Equal(t, string(events.UrgencyCritical), d.Metadata["urgency"])
}

func TestEvaluate_ScenarioD_DirectRelevance(t *testing.T) {
	e, _ := newTestEngine(t)
	event := prEvent("pr_opened", map[string]interface{}{
		"user": map[string]interface{}{"login": "alice"},
	})

	d := e.Evaluate(context.Background(), event, events.FilterContext{TeamID: "platform", UserID: "alice"})

	assert.Equal(t, events.ActionAllow, d.Action)
	assert.Equal(t, string(events.RelevanceDirect), d.Metadata["relevance"])
}

func TestEvaluate_ScenarioE_SynchronizeBurst(t *testing.T) {
	e, clock := newTestEngine(t)
	event := prEvent("pr_synchronize", map[string]interface{}{"draft": false})

	for i := 1; i <= 15; i++ {
		d := e.Evaluate(context.Background(), event, teamContext())
		if i <= 10 {
			assert.True(t, d.ShouldProcess, "event %d", i)
			assert.Equal(t, events.ActionBatch, d.Action, "event %d", i)
		} else {
			assert.False(t, d.ShouldProcess, "event %d", i)
			assert.Equal(t, events.ActionBlock, d.Action, "event %d", i)
			assert.Contains(t, d.AppliedRules, noise.TagFrequency, "event %d", i)
		}
		clock.Advance(3 * time.Minute)
	}
}

func TestEvaluate_LogsEveryDecision(t *testing.T) {
	sink := &recordingSink{}
	e, _ := newTestEngine(t, WithSinks(sink))

	e.Evaluate(context.Background(), manualEvent("deploy"), teamContext())
	e.Evaluate(context.Background(), manualEvent("deploy"), events.FilterContext{})

	assert.Equal(t, 2, sink.count())
}

type panickingSink struct{}

func (panickingSink) LogDecision(context.Context, events.NotificationEvent, events.FilterContext, events.FilterDecision) {
	panic("sink exploded")
}

func TestEvaluate_SinkPanicDoesNotEscape(t *testing.T) {
	sink := &recordingSink{}
	e, _ := newTestEngine(t, WithSinks(panickingSink{}, sink))

	assert.NotPanics(t, func() {
		e.Evaluate(context.Background(), manualEvent("deploy"), teamContext())
	})
	assert.Equal(t, 1, sink.count())
}

func TestEvaluate_ConcurrentUse(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("rule-%d-%d", i, j)
				_, _ = e.AddRule(rules.FilterRule{
					ID:        id,
					Name:      id,
					Condition: rules.Condition{EventType: rules.StringList{"deploy"}},
					Action:    events.ActionBatch,
					Priority:  j,
					TeamID:    "platform",
					Active:    true,
				})
				d := e.Evaluate(ctx, manualEvent(fmt.Sprintf("deploy-%d", i)), teamContext())
				assert.NotEmpty(t, d.AppliedRules)
				e.RemoveRule(id, "platform")
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, len(rules.DefaultRules()), e.GetStats().TotalRules)
}
