package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/kahosan/mosdash/internal/model"
)

const epsWindow = 5 * time.Second

// Stats holds a point-in-time snapshot of the live log stream.
type Stats struct {
	Uptime      string           `json:"uptime"`
	TotalEvents int64            `json:"total_events"`
	EPS         float64          `json:"eps"`
	LevelCounts map[string]int64 `json:"level_counts"`
	DroppedLogs int64            `json:"dropped_logs"`
	Streams     int              `json:"streams"`
	LastEntry   string           `json:"last_entry,omitempty"`
}

// Aggregator consumes a hub subscription and computes time-windowed metrics.
type Aggregator struct {
	mu          sync.RWMutex
	startTime   time.Time
	totalEvents int64
	levelCounts map[string]int64
	window      []time.Time // arrival times inside epsWindow
	lastEntry   string
	dropped     func() int64
	streams     func() int
	entries     <-chan model.LogEntry
	now         func() time.Time
}

// New creates an Aggregator reading from entries. droppedFn and streamsFn
// provide live values from the hub.
func New(entries <-chan model.LogEntry, droppedFn func() int64, streamsFn func() int) *Aggregator {
	return &Aggregator{
		startTime:   time.Now(),
		levelCounts: make(map[string]int64),
		dropped:     droppedFn,
		streams:     streamsFn,
		entries:     entries,
		now:         time.Now,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	counts := make(map[string]int64, len(a.levelCounts))
	for k, v := range a.levelCounts {
		counts[k] = v
	}

	cutoff := a.now().Add(-epsWindow)
	var recent int
	for _, t := range a.window {
		if t.After(cutoff) {
			recent++
		}
	}

	return Stats{
		Uptime:      time.Since(a.startTime).Truncate(time.Second).String(),
		TotalEvents: a.totalEvents,
		EPS:         float64(recent) / epsWindow.Seconds(),
		LevelCounts: counts,
		DroppedLogs: a.dropped(),
		Streams:     a.streams(),
		LastEntry:   a.lastEntry,
	}
}

// Start consumes entries until ctx is cancelled or the channel closes.
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-a.entries:
			if !ok {
				return
			}
			a.record(entry)
		case <-ticker.C:
			a.prune()
		}
	}
}

func (a *Aggregator) record(entry model.LogEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalEvents++
	a.levelCounts[entry.Level]++
	a.window = append(a.window, a.now())
	if entry.Timestamp != "" {
		a.lastEntry = entry.Timestamp
	}
}

// prune drops arrival times older than epsWindow.
func (a *Aggregator) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-epsWindow)
	i := 0
	for _, t := range a.window {
		if t.After(cutoff) {
			a.window[i] = t
			i++
		}
	}
	a.window = a.window[:i]
}
