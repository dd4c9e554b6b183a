package scoring

import (
	"strings"

	"github.com/samber/lo"

	"notifilter/internal/events"
)

// ScoreRelevance classifies how directly userID is involved in the event.
// Without a user there is nothing to compare against, so the score is neutral.
func ScoreRelevance(event events.NotificationEvent, userID string) events.RelevanceScore {
	if userID == "" {
		return events.RelevanceMedium
	}

	switch event.Source {
	case events.SourceGitHub:
		return scoreGitHub(event.PullRequest(), userID)
	case events.SourceJira:
		return scoreJira(event.Issue(), userID)
	default:
		return events.RelevanceMedium
	}
}

func scoreGitHub(pr events.PullRequest, userID string) events.RelevanceScore {
	if pr.AuthorLogin() == userID ||
		lo.Contains(pr.RequestedReviewers(), userID) ||
		lo.Contains(pr.Assignees(), userID) {
		return events.RelevanceDirect
	}
	// team membership is not consulted; everyone else scores low
	return events.RelevanceLow
}

func scoreJira(issue events.Issue, userID string) events.RelevanceScore {
	candidates := []string{
		issue.AssigneeName(),
		issue.AssigneeEmail(),
		issue.ReporterName(),
		issue.ReporterEmail(),
	}
	if lo.SomeBy(candidates, func(c string) bool { return c != "" && strings.EqualFold(c, userID) }) {
		return events.RelevanceDirect
	}
	return events.RelevanceLow
}
