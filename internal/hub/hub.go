package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/kahosan/mosdash/internal/model"
	"github.com/kahosan/mosdash/internal/parser"
)

const subscriberBuffer = 1024

// LineParser is the parsing capability the hub needs; it never fails.
type LineParser interface {
	ParseLenient(raw string) model.LogEntry
}

var _ LineParser = (*parser.MosdnsParser)(nil)

// Hub receives raw lines, parses them, and broadcasts LogEntry values to all subscribers.
type Hub struct {
	parser      LineParser
	input       <-chan model.RawLine
	mu          sync.RWMutex
	subscribers map[chan model.LogEntry]struct{}
	closed      bool
	dropped     atomic.Int64
	logger      zerolog.Logger
}

// New creates a Hub that reads from the input channel and parses with the given parser.
func New(input <-chan model.RawLine, p LineParser, logger zerolog.Logger) *Hub {
	return &Hub{
		parser:      p,
		input:       input,
		subscribers: make(map[chan model.LogEntry]struct{}),
		logger:      logger.With().Str("component", "hub").Logger(),
	}
}

// Subscribe returns a buffered channel that receives every parsed entry and a
// function that detaches it. The channel is closed on detach or when the hub stops.
func (h *Hub) Subscribe() (<-chan model.LogEntry, func()) {
	ch := make(chan model.LogEntry, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.subscribers[ch] = struct{}{}
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subscribers[ch]; ok {
				delete(h.subscribers, ch)
				close(ch)
			}
		})
	}
}

// Subscribers returns the number of attached subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns the total number of entries dropped due to slow consumers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Start begins reading from the input channel, parsing, and broadcasting.
// Blocks until the context is cancelled or the input channel is closed.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-h.input:
			if !ok {
				return
			}
			h.broadcast(h.parser.ParseLenient(raw.Text))
		}
	}
}

// broadcast sends an entry to all subscribers.
// If a subscriber's channel is full, the entry is dropped for that subscriber.
func (h *Hub) broadcast(entry model.LogEntry) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- entry:
		default:
			n := h.dropped.Add(1)
			h.logger.Warn().Int64("dropped_total", n).Msg("dropped entry for slow consumer")
		}
	}
}

// closeAll closes all subscriber channels.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
	h.closed = true
}
