// Package playback schedules inbound audio frames on a shared output
// timeline so consecutive frames play back-to-back with no gap or overlap,
// and supports immediate flush-and-stop on interruption.
package playback

import (
	"fmt"
	"sync"

	"github.com/careerdev-ai/careerdev/pkg/voice/pcm"
)

// Voice is one scheduled-but-not-yet-finished buffer on the output device.
// Stop is best-effort: stopping a voice that already finished naturally is
// not an error.
type Voice interface {
	Stop()
}

// Sink is the output device abstraction. Now reports the current output
// clock in seconds. Schedule queues a frame to begin at startAt on that
// clock and invokes onEnded once the frame finishes playing naturally.
// Flush drops any device-buffered audio immediately. Close releases the
// device.
type Sink interface {
	Now() float64
	Schedule(frame pcm.Frame, startAt float64, onEnded func()) (Voice, error)
	Flush()
	Close() error
}

// Scheduler owns the playback cursor and the active source set for one
// voice session. All mutation happens under one mutex, which is the single
// serialization point for playback ordering: the cursor is read and written
// atomically per frame, so two concurrently delivered frames can never
// interleave their scheduling decisions.
type Scheduler struct {
	sink Sink

	// speaking is invoked with true when the active set becomes non-empty
	// and false when it empties. Emptiness of the set is the sole trigger
	// for clearing the speaking indicator.
	speaking func(bool)

	mu     sync.Mutex
	cursor float64
	active map[int64]Voice
	nextID int64
	closed bool
}

// NewScheduler returns a Scheduler writing to sink. speaking may be nil.
func NewScheduler(sink Sink, speaking func(bool)) *Scheduler {
	return &Scheduler{
		sink:     sink,
		speaking: speaking,
		active:   make(map[int64]Voice),
	}
}

// Enqueue schedules one inbound frame. The frame begins at
// max(cursor, now): in-order frames play back-to-back, and a late frame
// starts immediately rather than in the past.
func (s *Scheduler) Enqueue(frame pcm.Frame) error {
	if len(frame.Samples) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("playback: scheduler is closed")
	}

	start := s.cursor
	if now := s.sink.Now(); now > start {
		start = now
	}

	s.nextID++
	id := s.nextID
	voice, err := s.sink.Schedule(frame, start, func() { s.finished(id) })
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("playback: schedule frame: %w", err)
	}

	s.cursor = start + frame.Seconds()
	s.active[id] = voice
	wasFirst := len(s.active) == 1
	s.mu.Unlock()

	if wasFirst && s.speaking != nil {
		s.speaking(true)
	}
	return nil
}

// Flush handles an interruption: every in-flight voice is force-stopped,
// the active set is cleared, and the cursor is reset to the current output
// clock so the next frame schedules fresh against it.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	stopped := s.drainLocked()
	s.mu.Unlock()

	for _, v := range stopped {
		v.Stop()
	}
	if len(stopped) > 0 && s.speaking != nil {
		s.speaking(false)
	}
}

// Close performs the same forced-stop-and-clear as Flush, then releases the
// output device. Safe to call more than once.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stopped := s.drainLocked()
	s.mu.Unlock()

	for _, v := range stopped {
		v.Stop()
	}
	if len(stopped) > 0 && s.speaking != nil {
		s.speaking(false)
	}
	s.sink.Flush()
	return s.sink.Close()
}

// ActiveCount reports the size of the active source set.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Cursor reports the next scheduled start time on the output clock.
func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Scheduler) drainLocked() []Voice {
	stopped := make([]Voice, 0, len(s.active))
	for _, v := range s.active {
		stopped = append(stopped, v)
	}
	clear(s.active)
	s.cursor = s.sink.Now()
	return stopped
}

// finished removes a naturally completed voice from the active set. A voice
// already removed by Flush or Close is ignored.
func (s *Scheduler) finished(id int64) {
	s.mu.Lock()
	if _, ok := s.active[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, id)
	emptied := len(s.active) == 0
	s.mu.Unlock()

	if emptied && s.speaking != nil {
		s.speaking(false)
	}
}
