package events

import (
	"context"
	"sync"
	"time"
)

type Type string

const (
	ClassStarted   Type = "class.started"
	ClassCompleted Type = "class.completed"
)

// Event is emitted after a lifecycle transition has been committed.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	ClassID   string    `json:"class_id"`
	TutorID   string    `json:"tutor_id"`
	StudentID string    `json:"student_id"`
	Channel   string    `json:"channel,omitempty"` // verification channel, class.started only
	At        time.Time `json:"at"`

	// Downstream features gated on the class having started.
	HomeworkUnlocked bool `json:"homework_unlocked,omitempty"`
	UploadsEnabled   bool `json:"uploads_enabled,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	events []Event
	err    error
	mu     sync.Mutex
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*Recorder)(nil)
)

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent publishes return err without recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of what has been recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
