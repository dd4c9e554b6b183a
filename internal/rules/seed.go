package rules

import "notifilter/internal/events"

// MinorJiraFields are the JIRA fields whose edits rarely need a ping.
var MinorJiraFields = []string{"description", "labels", "components", "fixVersions", "comment"}

// DefaultRules is the policy set every engine starts with.
func DefaultRules() []FilterRule {
	return []FilterRule{
		{
			ID:   "allow_blockers",
			Name: "Always allow high and critical blockers",
			Condition: Condition{
				EventType: StringList{"blocker"},
				Severity:  StringList{"high", "critical"},
			},
			Action:   events.ActionAllow,
			Priority: 1000,
			Active:   true,
		},
		{
			ID:   "filter_draft_prs",
			Name: "Block minor updates on draft pull requests",
			Condition: Condition{
				Source:    StringList{string(events.SourceGitHub)},
				EventType: StringList{"pr_updated", "pr_synchronize"},
				PRStatus:  "draft",
			},
			Action:   events.ActionBlock,
			Priority: 800,
			Active:   true,
		},
		{
			ID:   "filter_minor_jira_updates",
			Name: "Downgrade JIRA updates that only touch descriptive fields",
			Condition: Condition{
				Source:      StringList{string(events.SourceJira)},
				EventType:   StringList{"issue_updated"},
				OnlyChanged: StringList{"description", "labels", "components", "fixVersions"},
			},
			Action:   events.ActionDowngrade,
			Priority: 700,
			Active:   true,
		},
		{
			ID:   "batch_pr_updates",
			Name: "Batch pull request synchronize events",
			Condition: Condition{
				Source:    StringList{string(events.SourceGitHub)},
				EventType: StringList{"pr_synchronize"},
			},
			Action:   events.ActionBatch,
			Priority: 600,
			Active:   true,
		},
	}
}
