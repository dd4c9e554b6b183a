package noise

import (
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"notifilter/internal/events"
)

const (
	DefaultWindow    = time.Hour
	DefaultThreshold = 10

	TagFrequency   = "noise_frequency_filter"
	TagBotActivity = "bot_activity_filter"
	TagNoNoise     = "noise_check_passed"
)

var DefaultBotMarkers = []string{"bot", "automated", "dependabot", "renovate", "github-actions"}

// Signal is the detector's verdict for one observation.
type Signal struct {
	Action     events.FilterAction
	Reason     string
	Confidence float64
	Tag        string
	Count      int
}

func (s Signal) Blocks() bool    { return s.Action == events.ActionBlock }
func (s Signal) Downgrade() bool { return s.Action == events.ActionDowngrade }

func (s Signal) Decision() events.FilterDecision {
	return events.NewDecision(s.Action, s.Reason, s.Confidence, s.Tag).
		WithMetadata("noise_count", s.Count)
}

type Option func(*Detector)

func WithWindow(window time.Duration) Option {
	return func(d *Detector) {
		if window > 0 {
			d.window = window
		}
	}
}

func WithThreshold(threshold int) Option {
	return func(d *Detector) {
		if threshold > 0 {
			d.threshold = threshold
		}
	}
}

func WithBotMarkers(markers []string) Option {
	return func(d *Detector) {
		if len(markers) > 0 {
			d.botMarkers = lo.Map(markers, func(m string, _ int) string { return strings.ToLower(m) })
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// Detector tracks per event-key observation times over a sliding window.
// Every observation prunes all keys, so no key outlives the window.
type Detector struct {
	mu         sync.Mutex
	seen       map[string][]time.Time
	window     time.Duration
	threshold  int
	botMarkers []string
	now        func() time.Time
}

func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		seen:       make(map[string][]time.Time),
		window:     DefaultWindow,
		threshold:  DefaultThreshold,
		botMarkers: DefaultBotMarkers,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe records the event and reports whether it is noise. Frequency is
// checked first and blocks; bot-originated traffic is only downgraded.
func (d *Detector) Observe(event events.NotificationEvent) Signal {
	count := d.record(event.EventKey())

	if count > d.threshold {
		return Signal{
			Action:     events.ActionBlock,
			Reason:     "high frequency noise pattern",
			Confidence: 0.8,
			Tag:        TagFrequency,
			Count:      count,
		}
	}

	if actor, ok := d.botActor(event); ok {
		return Signal{
			Action:     events.ActionDowngrade,
			Reason:     "bot activity detected: " + actor,
			Confidence: 0.7,
			Tag:        TagBotActivity,
			Count:      count,
		}
	}

	return Signal{
		Action:     events.ActionAllow,
		Reason:     "no noise detected",
		Confidence: 0.6,
		Tag:        TagNoNoise,
		Count:      count,
	}
}

func (d *Detector) record(key string) int {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.sweep(now.Add(-d.window))
	d.seen[key] = append(d.seen[key], now)
	return len(d.seen[key])
}

// sweep prunes every key and drops keys left without observations. Callers
// hold d.mu.
func (d *Detector) sweep(cutoff time.Time) {
	for key, times := range d.seen {
		kept := prune(times, cutoff)
		if len(kept) == 0 {
			delete(d.seen, key)
			continue
		}
		d.seen[key] = kept
	}
}

// prune drops timestamps at or before cutoff. Timestamps are appended in
// observation order, so everything before the first kept entry is expired.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	out := make([]time.Time, len(times)-i, len(times)-i+1)
	copy(out, times[i:])
	return out
}

func (d *Detector) botActor(event events.NotificationEvent) (string, bool) {
	var actor string
	switch event.Source {
	case events.SourceGitHub:
		actor = event.PullRequest().AuthorLogin()
	case events.SourceJira:
		actor = event.Issue().ReporterName()
	}
	if actor == "" {
		return "", false
	}

	lower := strings.ToLower(actor)
	for _, marker := range d.botMarkers {
		if strings.Contains(lower, marker) {
			return actor, true
		}
	}
	return "", false
}

type Stats struct {
	TrackedKeys      int `json:"tracked_keys"`
	PatternsDetected int `json:"patterns_detected"`
	RecentActivity   int `json:"recent_activity"`
	Threshold        int `json:"threshold"`
	WindowSeconds    int `json:"window_seconds"`
}

// Stats prunes every key and reports the current window contents.
func (d *Detector) Stats() Stats {
	cutoff := d.now().Add(-d.window)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.sweep(cutoff)
	stats := Stats{
		TrackedKeys:   len(d.seen),
		Threshold:     d.threshold,
		WindowSeconds: int(d.window.Seconds()),
	}
	for _, times := range d.seen {
		stats.RecentActivity += len(times)
		if len(times) > d.threshold {
			stats.PatternsDetected++
		}
	}
	return stats
}
