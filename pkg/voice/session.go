// Package voice owns the lifecycle of one voice advisor session: it wires
// microphone capture to the transport, transport events to the playback
// scheduler, and runs the level monitor, with a single teardown path for
// user stops, remote closes, and transport failures alike.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/careerdev-ai/careerdev/pkg/keyselect"
	"github.com/careerdev-ai/careerdev/pkg/voice/capture"
	"github.com/careerdev-ai/careerdev/pkg/voice/level"
	"github.com/careerdev-ai/careerdev/pkg/voice/pcm"
	"github.com/careerdev-ai/careerdev/pkg/voice/playback"
	"github.com/careerdev-ai/careerdev/pkg/voice/transport"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// InputSource is the live audio input device. Start begins delivering
// fixed-size windows of normalized samples to onWindow until Stop.
type InputSource interface {
	Start(onWindow func([]float32)) error
	Stop() error
}

// Options configures a Session. Dialer, Config, Input, and Sink are
// required; the callbacks and Selector are optional.
type Options struct {
	Dialer transport.Dialer
	Config transport.Config
	Input  InputSource
	Sink   playback.Sink

	// Selector is the key-reselection side channel, invoked at most once
	// per session when the transport reports an authentication failure.
	Selector keyselect.Selector

	// OnSpeaking tracks the speaking sub-state: true while any scheduled
	// playback buffer is in flight, false once the active set empties.
	OnSpeaking func(bool)
	// OnLevels receives input/output activity levels on the monitor cadence.
	OnLevels func(input, output float64)

	Logger *slog.Logger
}

// Session is one voice interaction from start to stop. At most one may be
// active per Session value; Start from any state but idle is an error.
type Session struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	future  *transport.Future
	sess    transport.Session
	stage   *capture.Stage
	sched   *playback.Scheduler
	monitor *level.Monitor

	keyOnce sync.Once
}

// NewSession validates opts and returns an idle session.
func NewSession(opts Options) (*Session, error) {
	if opts.Dialer == nil {
		return nil, fmt.Errorf("voice: Dialer is required")
	}
	if opts.Input == nil {
		return nil, fmt.Errorf("voice: Input is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("voice: Sink is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{opts: opts, logger: logger}, nil
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start acquires the audio devices, wires the pipeline, and opens the
// transport session asynchronously. Only valid from idle. Any failure
// during start unwinds all partially acquired resources and returns the
// session to idle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("voice: start from %s", s.state)
	}
	s.state = StateStarting

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	inTap := &level.Tap{}
	outTap := &level.Tap{}
	s.monitor = level.NewMonitor(inTap, outTap, s.opts.OnLevels)
	s.monitor.Start(ctx)

	s.sched = playback.NewScheduler(tapSink{Sink: s.opts.Sink, tap: outTap}, s.opts.OnSpeaking)

	s.future = transport.NewFuture()
	s.stage = capture.New(ctx, s.future, s.logger)

	stage := s.stage
	err := s.opts.Input.Start(func(window []float32) {
		inTap.Push(window)
		stage.Push(window)
	})
	if err != nil {
		s.unwindLocked()
		return fmt.Errorf("voice: open input device: %w", err)
	}

	go s.connect(ctx, s.future)

	s.state = StateActive
	return nil
}

// connect opens the transport session and, on success, starts the inbound
// event loop. Establishment failure tears the whole session down; there is
// no automatic reconnect.
func (s *Session) connect(ctx context.Context, future *transport.Future) {
	sess, err := s.opts.Dialer.Connect(ctx, s.opts.Config)
	future.Resolve(sess, err)
	if err != nil {
		s.logger.Error("voice: session connect rejected", "err", err)
		_ = s.Stop()
		return
	}

	s.mu.Lock()
	if s.state != StateActive {
		// Stopped while connecting; the new handle must not outlive it.
		s.mu.Unlock()
		_ = sess.Close()
		return
	}
	s.sess = sess
	s.mu.Unlock()

	go s.eventLoop(sess)
}

// eventLoop consumes the single inbound channel in arrival order. Frame
// decode failures are absorbed here; session-fatal events route through the
// standard stop path.
func (s *Session) eventLoop(sess transport.Session) {
	sched := s.sched
	for ev := range sess.Events() {
		switch ev.Kind {
		case transport.EventAudio:
			frame, err := pcm.Decode(ev.Data, pcm.PlaybackRate, 1)
			if err != nil {
				s.logger.Warn("voice: drop undecodable frame", "err", err)
				continue
			}
			if err := sched.Enqueue(frame); err != nil {
				s.logger.Warn("voice: enqueue frame", "err", err)
			}
		case transport.EventInterrupted:
			sched.Flush()
		case transport.EventError:
			s.logger.Error("voice: transport error", "message", ev.Message)
			if keyselect.IsAuthMessage(ev.Message) {
				s.reselectKey()
			}
			// Terminate via the stop path while this loop keeps draining.
			go func() { _ = s.Stop() }()
		case transport.EventClosed:
			// The channel closes right after; teardown happens below.
		}
	}
	_ = s.Stop()
}

func (s *Session) reselectKey() {
	s.keyOnce.Do(func() {
		if s.opts.Selector == nil {
			return
		}
		if _, err := s.opts.Selector.SelectKey(); err != nil {
			s.logger.Warn("voice: key reselection", "err", err)
		}
	})
}

// Stop tears the session down: transport closed, playback force-stopped and
// cleared, devices released, monitor cancelled. Valid from any state; from
// idle it is a no-op. Every release is attempted even if an earlier one
// fails.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return nil
	}
	s.state = StateStopping

	var errs []error

	if s.cancel != nil {
		s.cancel()
	}
	if s.sess != nil {
		if err := s.sess.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
		s.sess = nil
	}
	if s.stage != nil {
		s.stage.Stop()
		s.stage = nil
	}
	if s.sched != nil {
		s.sched.Flush()
		if err := s.sched.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close playback: %w", err))
		}
		s.sched = nil
	}
	if err := s.opts.Input.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("close input device: %w", err))
	}
	if s.monitor != nil {
		s.monitor.Stop()
		s.monitor = nil
	}

	s.state = StateIdle
	return errors.Join(errs...)
}

// unwindLocked releases resources acquired by a partially completed Start.
func (s *Session) unwindLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.stage != nil {
		s.stage.Stop()
		s.stage = nil
	}
	if s.sched != nil {
		_ = s.sched.Close()
		s.sched = nil
	}
	if s.monitor != nil {
		s.monitor.Stop()
		s.monitor = nil
	}
	s.state = StateIdle
}

// tapSink feeds scheduled frames to the output level tap on their way to
// the device. The tap never touches the frames it observes.
type tapSink struct {
	playback.Sink
	tap *level.Tap
}

func (t tapSink) Schedule(frame pcm.Frame, startAt float64, onEnded func()) (playback.Voice, error) {
	t.tap.Push(frame.Samples)
	return t.Sink.Schedule(frame, startAt, onEnded)
}
