// Package level computes bounded-range activity levels for the input and
// output audio paths. It is a read-only tap for visualization: it never sits
// in the audio data path and cannot affect timing or correctness.
package level

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	// fftSize is the analysis window; half of it is the number of frequency
	// bins contributing to the level.
	fftSize       = 256
	binsPerWindow = fftSize / 2

	// tickInterval approximates a display refresh cadence. Levels are
	// recomputed per tick, independent of audio frame boundaries.
	tickInterval = time.Second / 60
)

// Tap accumulates the most recent samples of one audio path. Writers push
// from the data path; the monitor reads a snapshot per tick. A Tap holds at
// most one analysis window.
type Tap struct {
	mu      sync.Mutex
	samples [fftSize]float32
	filled  int
	pos     int
}

// Push appends samples to the tap, overwriting the oldest. It is cheap
// enough to call from capture and playback callbacks.
func (t *Tap) Push(samples []float32) {
	t.mu.Lock()
	for _, v := range samples {
		t.samples[t.pos] = v
		t.pos = (t.pos + 1) % fftSize
		if t.filled < fftSize {
			t.filled++
		}
	}
	t.mu.Unlock()
}

// snapshot copies the current window in chronological order. ok is false
// until the tap has received any data.
func (t *Tap) snapshot(dst []float32) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.filled == 0 {
		return 0, false
	}
	n := t.filled
	start := (t.pos - n + fftSize) % fftSize
	for i := 0; i < n; i++ {
		dst[i] = t.samples[(start+i)%fftSize]
	}
	return n, true
}

// Level computes the current activity level of the tap: the mean of the
// frequency-bin magnitudes of the latest window, normalized to [0, 1].
// ok is false if the tap has not been fed yet.
func (t *Tap) Level() (float64, bool) {
	var window [fftSize]float32
	n, ok := t.snapshot(window[:])
	if !ok {
		return 0, false
	}
	return binMean(window[:n]), true
}

// binMean evaluates the magnitude spectrum of the window with a direct DFT
// over binsPerWindow bins and averages the normalized magnitudes. The
// window is short enough that the quadratic transform stays well under a
// display tick.
func binMean(window []float32) float64 {
	n := len(window)
	if n == 0 {
		return 0
	}
	var sum float64
	for k := 1; k <= binsPerWindow; k++ {
		var re, im float64
		w := 2 * math.Pi * float64(k) / float64(fftSize)
		for i, v := range window {
			re += float64(v) * math.Cos(w*float64(i))
			im -= float64(v) * math.Sin(w*float64(i))
		}
		mag := 2 * math.Sqrt(re*re+im*im) / float64(n)
		if mag > 1 {
			mag = 1
		}
		sum += mag
	}
	return clamp01(sum / binsPerWindow)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Monitor samples the input and output taps on a fixed cadence and reports
// levels through a callback.
type Monitor struct {
	input  *Tap
	output *Tap
	update func(input, output float64)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor wires taps to an update callback. Call Start to begin the loop.
func NewMonitor(input, output *Tap, update func(input, output float64)) *Monitor {
	return &Monitor{input: input, output: output, update: update}
}

// Start begins the sampling loop. It runs until Stop is called or ctx is
// cancelled. If a tap has no data yet, its previous level is re-reported
// unchanged for that tick.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()

		var lastIn, lastOut float64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				updated := false
				if v, ok := m.input.Level(); ok {
					lastIn = v
					updated = true
				}
				if v, ok := m.output.Level(); ok {
					lastOut = v
					updated = true
				}
				if updated && m.update != nil {
					m.update(lastIn, lastOut)
				}
			}
		}
	}()
}

// Stop cancels the sampling loop and waits for it to exit. Safe to call
// when the monitor never started, and safe to call twice.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}
