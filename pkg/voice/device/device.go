// Package device binds the voice pipeline to real audio hardware: a malgo
// microphone source producing fixed-size capture windows and an oto speaker
// sink implementing the playback scheduler's output timeline.
package device

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"

	"github.com/careerdev-ai/careerdev/pkg/voice/pcm"
	"github.com/careerdev-ai/careerdev/pkg/voice/playback"
)

const capturePeriodMS = 20

// MicSource captures 16kHz mono float samples from the default input device
// and delivers them in fixed windows of pcm.CaptureWindow samples.
type MicSource struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu      sync.Mutex
	window  []float32
	stopped bool
}

// NewMicSource initializes the audio backend. The input device itself is
// opened on Start so that permission acquisition happens inside the session
// start path.
func NewMicSource() (*MicSource, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("device: init audio context: %w", err)
	}
	return &MicSource{ctx: ctx}, nil
}

// Start opens the input device and begins delivering capture windows.
func (m *MicSource) Start(onWindow func([]float32)) error {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = pcm.CaptureRate
	cfg.PeriodSizeInMilliseconds = capturePeriodMS

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.push(input, onWindow)
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("device: open microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("device: start microphone: %w", err)
	}

	m.mu.Lock()
	m.device = device
	m.stopped = false
	m.window = m.window[:0]
	m.mu.Unlock()
	return nil
}

// push accumulates device samples and emits one callback per full window.
func (m *MicSource) push(input []byte, onWindow func([]float32)) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	for i := 0; i+4 <= len(input); i += 4 {
		m.window = append(m.window, math.Float32frombits(binary.LittleEndian.Uint32(input[i:])))
	}
	var full [][]float32
	for len(m.window) >= pcm.CaptureWindow {
		w := make([]float32, pcm.CaptureWindow)
		copy(w, m.window[:pcm.CaptureWindow])
		m.window = m.window[pcm.CaptureWindow:]
		full = append(full, w)
	}
	m.mu.Unlock()

	for _, w := range full {
		onWindow(w)
	}
}

// Stop closes the input device. Safe to call when never started.
func (m *MicSource) Stop() error {
	m.mu.Lock()
	device := m.device
	m.device = nil
	m.stopped = true
	m.mu.Unlock()

	if device != nil {
		_ = device.Stop()
		device.Uninit()
	}
	return nil
}

// Close releases the audio backend after the source is stopped.
func (m *MicSource) Close() {
	_ = m.Stop()
	_ = m.ctx.Uninit()
	m.ctx.Free()
}

// SpeakerSink plays scheduled frames through the default output device. Its
// clock is seconds since the sink was created; scheduled frames are handed
// to the device when their start time arrives, which keeps back-to-back
// frames gapless because the scheduler never overlaps start times.
type SpeakerSink struct {
	otoCtx *oto.Context
	epoch  time.Time

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	player  *oto.Player
	playing bool
	closed  bool
}

var _ playback.Sink = (*SpeakerSink)(nil)

// NewSpeakerSink opens the output device at the playback rate.
func NewSpeakerSink() (*SpeakerSink, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   pcm.PlaybackRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("device: open speaker: %w", err)
	}
	<-ready

	s := &SpeakerSink{otoCtx: ctx, epoch: time.Now()}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Now implements playback.Sink.
func (s *SpeakerSink) Now() float64 {
	return time.Since(s.epoch).Seconds()
}

// Schedule implements playback.Sink. The frame's samples are converted to
// device format up front; a timer hands them to the player at startAt and a
// second timer fires onEnded when the frame has played out.
func (s *SpeakerSink) Schedule(frame pcm.Frame, startAt float64, onEnded func()) (playback.Voice, error) {
	data := make([]byte, len(frame.Samples)*2)
	for i, v := range frame.Samples {
		scaled := v * 32768
		if scaled > 32767 {
			scaled = 32767
		}
		if scaled < -32768 {
			scaled = -32768
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(scaled)))
	}

	v := &speakerVoice{sink: s, data: data, duration: frame.Duration(), onEnded: onEnded}
	delay := time.Duration((startAt - s.Now()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}
	v.mu.Lock()
	v.startTimer = time.AfterFunc(delay, v.begin)
	v.mu.Unlock()
	return v, nil
}

// Flush implements playback.Sink: pending device audio is dropped
// immediately.
func (s *SpeakerSink) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	player := s.player
	s.player = nil
	s.playing = false
	s.mu.Unlock()

	if player != nil {
		player.Pause()
		_ = player.Reset()
		_ = player.Close()
	}
}

// Close implements playback.Sink. The oto context has no release call; the
// sink just stops accepting audio.
func (s *SpeakerSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	player := s.player
	s.player = nil
	s.playing = false
	s.mu.Unlock()

	s.cond.Broadcast()
	if player != nil {
		_ = player.Close()
	}
	return nil
}

// write appends device-format audio and lazily starts the pull player.
func (s *SpeakerSink) write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.buf = append(s.buf, data...)
	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
}

// Read implements io.Reader for the oto player pull loop.
func (s *SpeakerSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed && len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// speakerVoice is one scheduled frame. Stop is best-effort: after natural
// completion it is a no-op, mid-flight it drops the device buffer.
type speakerVoice struct {
	sink     *SpeakerSink
	data     []byte
	duration time.Duration
	onEnded  func()

	mu         sync.Mutex
	startTimer *time.Timer
	endTimer   *time.Timer
	started    bool
	ended      bool
}

func (v *speakerVoice) begin() {
	v.mu.Lock()
	if v.ended {
		v.mu.Unlock()
		return
	}
	v.started = true
	v.endTimer = time.AfterFunc(v.duration, v.finish)
	v.mu.Unlock()

	v.sink.write(v.data)
}

func (v *speakerVoice) finish() {
	v.mu.Lock()
	if v.ended {
		v.mu.Unlock()
		return
	}
	v.ended = true
	v.mu.Unlock()

	if v.onEnded != nil {
		v.onEnded()
	}
}

// Stop implements playback.Voice.
func (v *speakerVoice) Stop() {
	v.mu.Lock()
	if v.ended {
		v.mu.Unlock()
		return
	}
	v.ended = true
	if v.startTimer != nil {
		v.startTimer.Stop()
	}
	if v.endTimer != nil {
		v.endTimer.Stop()
	}
	started := v.started
	v.mu.Unlock()

	if started {
		v.sink.Flush()
	}
}
