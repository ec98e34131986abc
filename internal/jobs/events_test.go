package jobs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQueueDrainIsFIFOAndNonBlocking verifies ordering and the empty indication.
func TestQueueDrainIsFIFOAndNonBlocking(t *testing.T) {
	q := NewQueue("run-1")

	events, ok := q.Drain()
	assert.False(t, ok)
	assert.Nil(t, events)

	_, err := q.Push(ChunkTarget(0, 45))
	require.NoError(t, err)
	_, err = q.Push(ChunkDone(0))
	require.NoError(t, err)

	events, ok = q.Drain()
	require.True(t, ok)
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeChunkTarget, events[0].Type)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, "run-1", events[0].RunID)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, EventTypeChunkDone, events[1].Type)
	assert.Equal(t, int64(2), events[1].Seq)

	_, ok = q.Drain()
	assert.False(t, ok)
}

// TestQueueRejectsPushAfterTerminal verifies nothing follows done-all or error.
func TestQueueRejectsPushAfterTerminal(t *testing.T) {
	for _, terminal := range []Event{DoneAll(), Failed("boom")} {
		q := NewQueue("r")
		_, err := q.Push(terminal)
		require.NoError(t, err)
		assert.True(t, q.Closed())

		_, err = q.Push(ChunkDone(0))
		assert.ErrorIs(t, err, ErrQueueClosed)
		_, err = q.Push(DoneAll())
		assert.ErrorIs(t, err, ErrQueueClosed)

		events, ok := q.Drain()
		require.True(t, ok)
		require.Len(t, events, 1)
		assert.Equal(t, terminal.Type, events[0].Type)
	}
}

// TestQueueConcurrentProducerConsumer keeps order across interleaved drains.
func TestQueueConcurrentProducerConsumer(t *testing.T) {
	q := NewQueue("r")
	const n = 2000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_, _ = q.Push(ChunkDone(0))
		}
		_, _ = q.Push(DoneAll())
	}()

	var got []Event
	for {
		events, _ := q.Drain()
		got = append(got, events...)
		if len(got) > 0 && got[len(got)-1].Type == EventTypeDoneAll {
			break
		}
	}
	wg.Wait()

	require.Len(t, got, n+1)
	for i, e := range got {
		assert.Equal(t, int64(i+1), e.Seq)
	}
}

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Record(
		Event{RunID: "a", Seq: 1, Type: EventTypeChunkDone},
		Event{RunID: "a", Seq: 2, Type: EventTypeChunkDone},
		Event{RunID: "a", Seq: 3, Type: EventTypeDoneAll},
	)

	events := bus.Since("a", 1)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].Seq)
	assert.Equal(t, int64(3), events[1].Seq)
	assert.Empty(t, bus.Since("b", 0))
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Record(Event{Seq: 1, Message: "1"}, Event{Seq: 2, Message: "2"})
	bus.Record(Event{Seq: 3, Message: "3"})

	events := bus.Since("", 0)
	require.Len(t, events, 2)
	assert.Equal(t, "2", events[0].Message)
	assert.Equal(t, "3", events[1].Message)
}
