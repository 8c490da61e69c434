// Package transport defines the narrow interface to the remote speech model:
// a persistent bidirectional session that accepts outbound audio frames and
// delivers inbound events on a single ordered channel.
package transport

import "context"

// Config fixes the session parameters for its whole lifetime. Config is not
// renegotiable mid-session.
type Config struct {
	Model             string
	Voice             string
	SystemInstruction string
}

// EventKind discriminates inbound session events.
type EventKind int

const (
	// EventAudio carries one base64-encoded PCM16LE payload at the playback
	// rate.
	EventAudio EventKind = iota
	// EventInterrupted signals the remote model was interrupted, e.g. by
	// user speech. Playback must flush immediately.
	EventInterrupted
	// EventError carries a diagnostic message. The session stays open unless
	// a Closed event follows.
	EventError
	// EventClosed is terminal. No further events are delivered.
	EventClosed
)

// Event is one inbound message from the remote model. Events arrive in
// server order on the session's single event channel.
type Event struct {
	Kind EventKind

	// Data is the base64 PCM payload for EventAudio.
	Data string
	// Message is the diagnostic text for EventError.
	Message string
}

// Session is one live connection to the remote speech model.
//
// Send transmits one outbound frame; it is fire-and-forget from the caller's
// perspective but frames are never reordered in transit. Close is idempotent
// and safe on an already-closed session. Events returns the single inbound
// channel; it is closed after EventClosed is delivered.
type Session interface {
	Send(data string) error
	Events() <-chan Event
	Close() error
}

// Dialer establishes sessions. A failed connect is not retried here; the
// lifecycle controller tears the whole voice session down instead.
type Dialer interface {
	Connect(ctx context.Context, cfg Config) (Session, error)
}

// Future resolves to a Session once the asynchronous connect completes.
// Frames captured before resolution are queued behind it and sent in order
// (see the capture stage).
type Future struct {
	done chan struct{}
	sess Session
	err  error
}

// NewFuture returns an unresolved Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve fulfills the future. Calling Resolve more than once panics, same
// as closing a closed channel: a session promise settles exactly once.
func (f *Future) Resolve(sess Session, err error) {
	f.sess = sess
	f.err = err
	close(f.done)
}

// Await blocks until the future settles or ctx is cancelled.
func (f *Future) Await(ctx context.Context) (Session, error) {
	select {
	case <-f.done:
		return f.sess, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the future has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the settled value. Only valid after Done is closed.
func (f *Future) Result() (Session, error) {
	return f.sess, f.err
}
