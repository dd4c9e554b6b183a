package engine

import (
	"strings"

	"github.com/hashicorp/go-set/v2"
	"github.com/samber/lo"

	"notifilter/internal/events"
	"notifilter/internal/rules"
	"notifilter/internal/scoring"
)

const (
	TagJiraHighPriority = "jira_high_priority"
	TagJiraTransition   = "jira_status_transition"
	TagJiraDirect       = "jira_direct_relevance"
	TagJiraMinorUpdate  = "jira_minor_update"
	TagJiraDefault      = "jira_default"
)

var highJiraPriorities = []string{"High", "Critical", "Blocker"}

type transition struct {
	from, to string
}

var importantTransitions = set.From([]transition{
	{"to do", "in progress"},
	{"in progress", "code review"},
	{"in progress", "blocked"},
	{"in progress", "done"},
	{"code review", "testing"},
	{"code review", "in progress"},
	{"testing", "done"},
	{"testing", "failed"},
	{"blocked", "in progress"},
	{"done", "reopened"},
	{"closed", "reopened"},
})

// IsImportantTransition reports whether moving an issue between the two
// statuses is worth a notification. Status names are compared case-insensitively.
func IsImportantTransition(from, to string) bool {
	return importantTransitions.Contains(transition{
		from: strings.ToLower(strings.TrimSpace(from)),
		to:   strings.ToLower(strings.TrimSpace(to)),
	})
}

// IsMinorJiraUpdate reports whether the changelog only touches descriptive
// fields. An empty changelog is not minor.
func IsMinorJiraUpdate(event events.NotificationEvent) bool {
	changed := event.Issue().ChangedFields()
	return len(changed) > 0 && lo.Every(rules.MinorJiraFields, changed)
}

func jiraDecision(event events.NotificationEvent, fc events.FilterContext) events.FilterDecision {
	issue := event.Issue()
	relevance := scoring.ScoreRelevance(event, fc.UserID)
	urgency := scoring.EvaluateUrgency(event)
	minor := IsMinorJiraUpdate(event)

	var d events.FilterDecision
	switch {
	case lo.Contains(highJiraPriorities, issue.Priority()):
		// capped at HIGH even for Critical and Blocker priorities
		d = events.NewDecision(events.ActionAllow, "high priority issue", 0.9, TagJiraHighPriority).
			WithUrgency(events.UrgencyHigh)
	case event.EventType == "issue_updated" && hasImportantTransition(issue):
		from, to, _ := issue.StatusTransition()
		d = events.NewDecision(events.ActionAllow, "status changed from "+from+" to "+to, 0.8, TagJiraTransition)
	case relevance == events.RelevanceDirect:
		d = events.NewDecision(events.ActionAllow, "user directly involved", 0.8, TagJiraDirect)
	case minor:
		d = events.NewDecision(events.ActionBlock, "minor field update", 0.7, TagJiraMinorUpdate)
	default:
		d = events.NewDecision(events.ActionAllow, "jira default", 0.5, TagJiraDefault)
	}

	return d.WithMetadata("relevance", string(relevance)).
		WithMetadata("urgency", string(urgency)).
		WithMetadata("minor_update", minor)
}

func hasImportantTransition(issue events.Issue) bool {
	from, to, ok := issue.StatusTransition()
	return ok && IsImportantTransition(from, to)
}
