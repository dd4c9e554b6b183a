package engine

import (
	"github.com/samber/lo"

	"notifilter/internal/events"
	"notifilter/internal/scoring"
)

const (
	TagGitHubSignificant   = "github_significant_event"
	TagGitHubDraft         = "github_draft_filter"
	TagGitHubMergeConflict = "github_merge_conflict"
	TagGitHubDirect        = "github_direct_relevance"
	TagGitHubIrrelevant    = "github_not_relevant"
	TagGitHubDefault       = "github_default"
)

var (
	significantPREvents = []string{
		"pr_opened",
		"pr_merged",
		"pr_closed",
		"pr_ready_for_review",
		"pr_conflicts_detected",
		"pr_approved",
		"pr_changes_requested",
	}
	minorPREvents = []string{"pr_updated", "pr_synchronize"}
)

func githubDecision(event events.NotificationEvent, fc events.FilterContext) events.FilterDecision {
	pr := event.PullRequest()
	relevance := scoring.ScoreRelevance(event, fc.UserID)
	urgency := scoring.EvaluateUrgency(event)

	var d events.FilterDecision
	switch {
	case lo.Contains(significantPREvents, event.EventType):
		d = events.NewDecision(events.ActionAllow, "significant pull request event", 0.9, TagGitHubSignificant).
			WithUrgency(urgency)
	case pr.Draft() && lo.Contains(minorPREvents, event.EventType):
		d = events.NewDecision(events.ActionBlock, "draft minor update", 0.8, TagGitHubDraft)
	case hasMergeConflicts(pr):
		d = events.NewDecision(events.ActionAllow, "merge conflicts", 0.8, TagGitHubMergeConflict).
			WithUrgency(events.UrgencyHigh)
	case relevance == events.RelevanceDirect:
		d = events.NewDecision(events.ActionAllow, "user directly involved", 0.8, TagGitHubDirect)
	case relevance == events.RelevanceNone:
		d = events.NewDecision(events.ActionBlock, "not relevant to user", 0.7, TagGitHubIrrelevant)
	default:
		d = events.NewDecision(events.ActionAllow, "github default", 0.6, TagGitHubDefault)
	}

	return d.WithMetadata("relevance", string(relevance)).
		WithMetadata("urgency", string(urgency))
}

// hasMergeConflicts is true only once GitHub has computed mergeable=false.
func hasMergeConflicts(pr events.PullRequest) bool {
	mergeable, known := pr.Mergeable()
	return known && !mergeable
}
