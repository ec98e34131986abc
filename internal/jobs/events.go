package jobs

import (
	"errors"
	"sync"
	"time"
)

// EventType classifies messages emitted during a transcription run.
type EventType string

const (
	EventTypeChunkTarget EventType = "chunk-target"
	EventTypeChunkDone   EventType = "chunk-done"
	EventTypeFileDone    EventType = "file-done"
	EventTypeDoneAll     EventType = "done-all"
	EventTypeError       EventType = "error"
)

// Terminal reports whether the event ends a run's event stream.
func (t EventType) Terminal() bool {
	return t == EventTypeDoneAll || t == EventTypeError
}

// ErrQueueClosed is returned when pushing after a terminal event.
var ErrQueueClosed = errors.New("event queue closed")

// Event is a sequenced progress message consumed by presenters.
type Event struct {
	Seq        int64     `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"runId"`
	Type       EventType `json:"type"`
	FileIndex  int       `json:"fileIndex"`
	Percent    float64   `json:"percent,omitempty"`
	InputName  string    `json:"inputName,omitempty"`
	OutputName string    `json:"outputName,omitempty"`
	OutputPath string    `json:"outputPath,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// ChunkTarget builds a chunk-target event for file index.
func ChunkTarget(file int, percent float64) Event {
	return Event{Type: EventTypeChunkTarget, FileIndex: file, Percent: percent}
}

// ChunkDone builds a chunk-done event for file index.
func ChunkDone(file int) Event {
	return Event{Type: EventTypeChunkDone, FileIndex: file}
}

// FileDone builds a file-done event carrying input and output names.
func FileDone(file int, inputName, outputPath, outputName string) Event {
	return Event{
		Type:       EventTypeFileDone,
		FileIndex:  file,
		InputName:  inputName,
		OutputName: outputName,
		OutputPath: outputPath,
	}
}

// DoneAll builds the successful terminal event.
func DoneAll() Event {
	return Event{Type: EventTypeDoneAll}
}

// Failed builds the error terminal event.
func Failed(message string) Event {
	return Event{Type: EventTypeError, Message: message}
}

// Queue is the FIFO between the run worker and the presenter. Push never
// blocks on the consumer and Drain never blocks on the producer. After a
// terminal event every further push is rejected.
type Queue struct {
	mu      sync.Mutex
	runID   string
	nextSeq int64
	pending []Event
	closed  bool
}

// NewQueue creates an empty queue whose events are stamped with runID.
func NewQueue(runID string) *Queue {
	return &Queue{runID: runID}
}

// Push appends one event, assigning sequence, timestamp, and run ID.
func (q *Queue) Push(event Event) (Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return Event{}, ErrQueueClosed
	}

	q.nextSeq++
	event.Seq = q.nextSeq
	event.RunID = q.runID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	q.pending = append(q.pending, event)
	if event.Type.Terminal() {
		q.closed = true
	}
	return event, nil
}

// Drain removes and returns everything queued so far, in push order. The
// boolean is false when nothing was pending.
func (q *Queue) Drain() ([]Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, false
	}
	out := q.pending
	q.pending = nil
	return out, true
}

// Closed reports whether a terminal event has been pushed.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// EventBus stores recent events and provides incremental reads for frontends
// that poll by sequence.
type EventBus struct {
	mu        sync.RWMutex
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Record appends already-sequenced events, trimming the oldest beyond capacity.
func (b *EventBus) Record(events ...Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, events...)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}
}

// Since returns events of runID with sequence strictly greater than seq.
// An empty runID matches every run.
func (b *EventBus) Since(runID string, seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if runID != "" && event.RunID != runID {
			continue
		}
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
