package scoring

import (
	"strings"

	"github.com/samber/lo"

	"notifilter/internal/events"
)

var (
	criticalEventMarkers = []string{"security", "incident", "outage", "down"}
	criticalTitleMarkers = []string{"security", "hotfix", "critical", "urgent"}
	blockerSeverities    = []string{"critical", "high"}
)

// IsCriticalBlocker reports whether the event must always be delivered:
// a high or critical blocker, or a security, incident or outage event.
func IsCriticalBlocker(event events.NotificationEvent) bool {
	if event.EventType == "blocker" && lo.Contains(blockerSeverities, event.Severity()) {
		return true
	}
	return containsAny(event.EventType, criticalEventMarkers)
}

func EvaluateUrgency(event events.NotificationEvent) events.UrgencyLevel {
	if IsCriticalBlocker(event) {
		return events.UrgencyCritical
	}

	switch event.Source {
	case events.SourceGitHub:
		return githubUrgency(event)
	case events.SourceJira:
		return jiraUrgency(event.Issue())
	default:
		return events.UrgencyMedium
	}
}

func githubUrgency(event events.NotificationEvent) events.UrgencyLevel {
	pr := event.PullRequest()
	if containsAny(pr.Title(), criticalTitleMarkers) {
		return events.UrgencyCritical
	}
	if mergeable, ok := pr.Mergeable(); (ok && !mergeable) || event.EventType == "pr_ready_for_review" {
		return events.UrgencyHigh
	}
	return events.UrgencyMedium
}

func jiraUrgency(issue events.Issue) events.UrgencyLevel {
	switch issue.Priority() {
	case "Critical", "Blocker":
		return events.UrgencyCritical
	case "High":
		return events.UrgencyHigh
	case "Medium":
		return events.UrgencyMedium
	default:
		return events.UrgencyLow
	}
}

func containsAny(s string, markers []string) bool {
	lower := strings.ToLower(s)
	return lo.SomeBy(markers, func(m string) bool { return strings.Contains(lower, m) })
}
