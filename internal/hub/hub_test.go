package hub

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kahosan/mosdash/internal/model"
	"github.com/kahosan/mosdash/internal/parser"
)

func TestHubBroadcast(t *testing.T) {
	input := make(chan model.RawLine, 10)
	h := New(input, parser.NewMosdnsParser(), zerolog.Nop())

	sub1, _ := h.Subscribe()
	sub2, _ := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Start(ctx)

	input <- model.RawLine{Text: `2025-06-03T02:00:08.738+0800 ERROR upstream failed {"qname":"a."}`, Source: "mosdns.log"}

	for i, sub := range []<-chan model.LogEntry{sub1, sub2} {
		select {
		case e := <-sub:
			assert.Equal(t, "ERROR", e.Level, "sub%d", i+1)
			assert.Equal(t, "upstream failed", e.Message)
			assert.Equal(t, "a.", e.Fields["qname"])
		case <-time.After(time.Second):
			t.Fatalf("sub%d: timed out", i+1)
		}
	}
}

func TestHubUnsubscribe(t *testing.T) {
	input := make(chan model.RawLine, 10)
	h := New(input, parser.NewMosdnsParser(), zerolog.Nop())

	sub, cancelSub := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())

	cancelSub()
	cancelSub()
	assert.Equal(t, 0, h.Subscribers())

	_, ok := <-sub
	assert.False(t, ok)
}

func TestHubClosesSubscribersOnStop(t *testing.T) {
	input := make(chan model.RawLine)
	h := New(input, parser.NewMosdnsParser(), zerolog.Nop())
	sub, cancelSub := h.Subscribe()

	close(input)
	h.Start(context.Background())

	_, ok := <-sub
	assert.False(t, ok)
	cancelSub() // safe after stop

	late, _ := h.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestHubSlowConsumer(t *testing.T) {
	input := make(chan model.RawLine, 10)
	h := New(input, parser.NewMosdnsParser(), zerolog.Nop())

	// Subscribe but never read.
	_, _ = h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Start(ctx)

	for i := 0; i < subscriberBuffer+100; i++ {
		input <- model.RawLine{Text: "line", Source: "mosdns.log"}
	}

	require.Eventually(t, func() bool { return h.Dropped() > 0 }, 2*time.Second, 20*time.Millisecond)
}
