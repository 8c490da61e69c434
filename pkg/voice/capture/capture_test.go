package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/careerdev-ai/careerdev/pkg/voice/pcm"
	"github.com/careerdev-ai/careerdev/pkg/voice/transport"
)

// recordingSession collects sent frames in order.
type recordingSession struct {
	mu     sync.Mutex
	frames []string
	err    error
	events chan transport.Event
}

func newRecordingSession() *recordingSession {
	return &recordingSession{events: make(chan transport.Event)}
}

func (r *recordingSession) Send(data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, data)
	return nil
}

func (r *recordingSession) Events() <-chan transport.Event { return r.events }
func (r *recordingSession) Close() error                   { return nil }

func (r *recordingSession) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not reached before deadline")
}

func window(fill float32) []float32 {
	w := make([]float32, 8)
	for i := range w {
		w[i] = fill
	}
	return w
}

func TestFramesQueuedBeforeSessionOpensAreSentInOrder(t *testing.T) {
	future := transport.NewFuture()
	stage := New(context.Background(), future, nil)
	defer stage.Stop()

	windows := [][]float32{window(0.1), window(0.2), window(0.3)}
	var want []string
	for _, w := range windows {
		stage.Push(w)
		want = append(want, pcm.Encode(w))
	}

	sess := newRecordingSession()
	future.Resolve(sess, nil)

	waitFor(t, func() bool { return len(sess.sent()) == len(want) })
	got := sess.sent()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d out of order", i)
		}
	}
}

func TestSendFailureDoesNotStopCapture(t *testing.T) {
	future := transport.NewFuture()
	stage := New(context.Background(), future, nil)
	defer stage.Stop()

	sess := newRecordingSession()
	future.Resolve(sess, nil)

	sess.mu.Lock()
	sess.err = errors.New("write: broken pipe")
	sess.mu.Unlock()
	stage.Push(window(0.1))

	// Once the failure clears, later frames still flow.
	time.Sleep(10 * time.Millisecond)
	sess.mu.Lock()
	sess.err = nil
	sess.mu.Unlock()
	stage.Push(window(0.2))

	recovered := pcm.Encode(window(0.2))
	waitFor(t, func() bool {
		got := sess.sent()
		return len(got) > 0 && got[len(got)-1] == recovered
	})
}

func TestStopBeforeSessionResolves(t *testing.T) {
	future := transport.NewFuture()
	stage := New(context.Background(), future, nil)

	stage.Push(window(0.5))
	done := make(chan struct{})
	go func() {
		stage.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop blocked on an unresolved session future")
	}

	// Pushes after stop are dropped silently.
	stage.Push(window(0.6))
	stage.Stop()
}

func TestConnectFailureEndsStage(t *testing.T) {
	future := transport.NewFuture()
	stage := New(context.Background(), future, nil)

	stage.Push(window(0.1))
	future.Resolve(nil, errors.New("dial refused"))

	done := make(chan struct{})
	go func() {
		stage.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stage did not wind down after connect failure")
	}
}

func TestContextCancelUnblocksStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	future := transport.NewFuture()
	stage := New(ctx, future, nil)

	cancel()
	done := make(chan struct{})
	go func() {
		stage.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stage did not observe context cancellation")
	}
}
