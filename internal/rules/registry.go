package rules

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type entry struct {
	rule FilterRule
	seq  uint64
}

// Registry holds priority-ordered rules per team plus the shared default bucket.
// Readers always observe a complete bucket: mutations replace the bucket slice
// under the write lock instead of editing it in place.
type Registry struct {
	mu      sync.RWMutex
	buckets map[string][]entry
	seq     uint64
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		buckets: make(map[string][]entry),
		now:     time.Now,
	}
}

// NewSeededRegistry returns a registry preloaded with DefaultRules.
func NewSeededRegistry() *Registry {
	r := NewRegistry()
	for _, rule := range DefaultRules() {
		r.AddRule(rule)
	}
	return r
}

// AddRule registers the rule in its team bucket and returns the stored copy.
// A rule whose id already exists in that bucket is replaced and moves to the
// end of the registration order.
func (r *Registry) AddRule(rule FilterRule) FilterRule {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := r.now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := rule.Bucket()
	existing := r.buckets[bucket]
	next := make([]entry, 0, len(existing)+1)
	for _, e := range existing {
		if e.rule.ID != rule.ID {
			next = append(next, e)
		}
	}
	r.seq++
	next = append(next, entry{rule: rule, seq: r.seq})
	r.buckets[bucket] = next

	return rule
}

// RemoveRule deletes the rule with the given id from the team bucket
// (the default bucket when teamID is empty).
func (r *Registry) RemoveRule(id, teamID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := ResolveTeam(teamID)
	existing := r.buckets[bucket]
	next := lo.Filter(existing, func(e entry, _ int) bool {
		return e.rule.ID != id
	})
	if len(next) == len(existing) {
		return false
	}

	if len(next) == 0 {
		delete(r.buckets, bucket)
	} else {
		r.buckets[bucket] = next
	}
	return true
}

// ReplaceRules swaps the whole rule set atomically.
func (r *Registry) ReplaceRules(rules []FilterRule) {
	buckets := make(map[string][]entry)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rule := range rules {
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		if rule.CreatedAt.IsZero() {
			rule.CreatedAt = now
		}
		if rule.UpdatedAt.IsZero() {
			rule.UpdatedAt = now
		}
		r.seq++
		bucket := rule.Bucket()
		buckets[bucket] = append(buckets[bucket], entry{rule: rule, seq: r.seq})
	}
	r.buckets = buckets
}

// ResolveBucket returns the team's rules together with the default rules,
// highest priority first, ties in registration order. Team rules carry no
// implicit precedence over defaults.
func (r *Registry) ResolveBucket(teamID string) []FilterRule {
	entries := r.resolve(teamID)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].rule.Priority != entries[j].rule.Priority {
			return entries[i].rule.Priority > entries[j].rule.Priority
		}
		return entries[i].seq < entries[j].seq
	})
	return lo.Map(entries, func(e entry, _ int) FilterRule { return e.rule })
}

// GetRules narrows ResolveBucket to the rules that apply in channelID.
// Unscoped rules apply everywhere; an empty channelID keeps every rule.
func (r *Registry) GetRules(teamID, channelID string) []FilterRule {
	rules := r.ResolveBucket(teamID)
	if channelID == "" {
		return rules
	}
	return lo.Filter(rules, func(rule FilterRule, _ int) bool {
		return rule.ChannelID == "" || rule.ChannelID == channelID
	})
}

func (r *Registry) resolve(teamID string) []entry {
	team := ResolveTeam(teamID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entry, 0, len(r.buckets[team])+len(r.buckets[DefaultTeam]))
	out = append(out, r.buckets[team]...)
	if team != DefaultTeam {
		out = append(out, r.buckets[DefaultTeam]...)
	}
	return out
}

// All returns every registered rule grouped by bucket.
func (r *Registry) All() map[string][]FilterRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]FilterRule, len(r.buckets))
	for bucket, entries := range r.buckets {
		out[bucket] = lo.Map(entries, func(e entry, _ int) FilterRule { return e.rule })
	}
	return out
}

func (r *Registry) Counts() (total int, byTeam map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byTeam = make(map[string]int, len(r.buckets))
	for bucket, entries := range r.buckets {
		byTeam[bucket] = len(entries)
		total += len(entries)
	}
	return total, byTeam
}
