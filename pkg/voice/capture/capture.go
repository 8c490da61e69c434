// Package capture turns a live input stream into ordered outbound wire
// frames. Frames produced before the transport session resolves are queued
// and sent in capture order once it does; a send failure after session
// establishment is logged and does not stop capture.
package capture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/careerdev-ai/careerdev/pkg/voice/pcm"
	"github.com/careerdev-ai/careerdev/pkg/voice/transport"
)

// Stage encodes captured windows and forwards them through the transport
// session. Push never blocks the caller: frames land in an unbounded
// in-order queue drained by a single sender goroutine, which awaits the
// session future exactly once and reuses the resolved handle for every
// subsequent send.
type Stage struct {
	logger *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []string
	stopped bool

	quit chan struct{}
	done chan struct{}
}

// New starts the sender goroutine against the given session future.
func New(ctx context.Context, future *transport.Future, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	st := &Stage{
		logger: logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	st.cond = sync.NewCond(&st.mu)
	go st.run(ctx, future)
	return st
}

// Push encodes one captured window of normalized samples and enqueues the
// wire frame. Safe to call from the capture callback; returns immediately.
func (s *Stage) Push(samples []float32) {
	frame := pcm.Encode(samples)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, frame)
	s.mu.Unlock()
	s.cond.Signal()
}

// Stop ends the stage. Queued frames that were not yet sent are dropped.
func (s *Stage) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.quit)
	s.cond.Broadcast()
	<-s.done
}

func (s *Stage) run(ctx context.Context, future *transport.Future) {
	defer close(s.done)

	// Await the session promise once. Connect failure ends the stage; the
	// lifecycle controller owns the resulting teardown.
	select {
	case <-future.Done():
	case <-s.quit:
		s.discard()
		return
	case <-ctx.Done():
		s.discard()
		return
	}
	sess, err := future.Result()
	if err != nil {
		s.logger.Debug("capture: session never opened", "err", err)
		s.discard()
		return
	}

	for {
		frame, ok := s.next()
		if !ok {
			return
		}
		if err := sess.Send(frame); err != nil {
			// Post-establishment send failures do not stop capture.
			s.logger.Warn("capture: send frame", "err", err)
		}
	}
}

// next blocks until a frame is available or the stage stops, preserving
// queue order.
func (s *Stage) next() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.stopped {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return "", false
	}
	frame := s.queue[0]
	s.queue = s.queue[1:]
	return frame, true
}

func (s *Stage) discard() {
	s.mu.Lock()
	s.queue = nil
	s.stopped = true
	s.mu.Unlock()
}
