// Package gemini implements the voice transport against the Gemini Live
// bidirectional streaming API over a single WebSocket connection.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/careerdev-ai/careerdev/pkg/voice/pcm"
	"github.com/careerdev-ai/careerdev/pkg/voice/transport"
)

const (
	defaultHost = "generativelanguage.googleapis.com"
	connectPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	defaultConnectTimeout = 15 * time.Second
	writeTimeout          = 5 * time.Second

	// DefaultModel is the native-audio live model the advisor speaks with.
	DefaultModel = "gemini-2.5-flash-native-audio-preview-12-2025"
	// DefaultVoice is the fixed voice identity for advisor sessions.
	DefaultVoice = "Zephyr"
)

// Dialer connects live sessions using an API key. The zero value is not
// usable; construct with NewDialer.
type Dialer struct {
	apiKey string
	host   string

	// dial is swapped in tests to point the session at a local server.
	dial func(ctx context.Context, urlStr string) (*websocket.Conn, error)
}

// NewDialer returns a Dialer that authenticates with the given API key.
func NewDialer(apiKey string) *Dialer {
	return &Dialer{
		apiKey: apiKey,
		host:   defaultHost,
		dial: func(ctx context.Context, urlStr string) (*websocket.Conn, error) {
			d := websocket.Dialer{HandshakeTimeout: defaultConnectTimeout}
			conn, _, err := d.DialContext(ctx, urlStr, nil)
			return conn, err
		},
	}
}

// Connect implements transport.Dialer. It performs the WebSocket handshake,
// sends the fixed session setup, and waits for the server's setup ack before
// returning. A connect failure is terminal for the whole voice session; no
// retry happens here.
func (d *Dialer) Connect(ctx context.Context, cfg transport.Config) (transport.Session, error) {
	u := url.URL{
		Scheme:   "wss",
		Host:     d.host,
		Path:     connectPath,
		RawQuery: url.Values{"key": {d.apiKey}}.Encode(),
	}

	conn, err := d.dial(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("gemini: connect live session: %w", err)
	}

	s := &liveSession{
		conn:   conn,
		events: make(chan transport.Event, 32),
		done:   make(chan struct{}),
	}

	if err := s.writeJSON(setupMessage(cfg)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("gemini: send setup: %w", err)
	}
	if err := s.awaitSetupAck(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go s.readLoop()
	return s, nil
}

// liveSession is one open BidiGenerateContent stream. All writes go through
// writeMu; a single readLoop goroutine feeds the events channel in server
// order.
type liveSession struct {
	conn *websocket.Conn

	events chan transport.Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

var _ transport.Session = (*liveSession)(nil)

// Send transmits one outbound audio frame tagged with the capture MIME type.
func (s *liveSession) Send(data string) error {
	if s.closed.Load() {
		return fmt.Errorf("gemini: session is closed")
	}
	msg := clientMessage{
		RealtimeInput: &realtimeInput{
			MediaChunks: []mediaChunk{{MIMEType: pcm.CaptureMIMEType, Data: data}},
		},
	}
	return s.writeJSON(msg)
}

// Events returns the single inbound event channel. It is closed once the
// session terminates.
func (s *liveSession) Events() <-chan transport.Event {
	return s.events
}

// Close is idempotent. It sends a best-effort close frame, closes the
// connection, and waits for the read loop to drain.
func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *liveSession) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *liveSession) awaitSetupAck(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	} else {
		_ = s.conn.SetReadDeadline(time.Now().Add(defaultConnectTimeout))
	}
	defer func() { _ = s.conn.SetReadDeadline(time.Time{}) }()

	var msg serverMessage
	if err := s.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("gemini: await setup ack: %w", err)
	}
	if msg.SetupComplete == nil {
		return fmt.Errorf("gemini: unexpected first message, want setupComplete")
	}
	return nil
}

// readLoop is the only reader. It translates server messages into transport
// events, preserving arrival order, and always terminates the channel with a
// Closed event.
func (s *liveSession) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.events <- transport.Event{Kind: transport.EventError, Message: closeMessage(err)}
			}
			s.events <- transport.Event{Kind: transport.EventClosed}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// A malformed frame is local to this message; skip it.
			continue
		}

		if sc := msg.ServerContent; sc != nil {
			if sc.ModelTurn != nil {
				for _, part := range sc.ModelTurn.Parts {
					if part.InlineData != nil && part.InlineData.Data != "" {
						s.events <- transport.Event{Kind: transport.EventAudio, Data: part.InlineData.Data}
					}
				}
			}
			if sc.Interrupted {
				s.events <- transport.Event{Kind: transport.EventInterrupted}
			}
		}
		if msg.Error != nil {
			s.events <- transport.Event{Kind: transport.EventError, Message: msg.Error.Message}
		}
		if msg.GoAway != nil {
			s.events <- transport.Event{Kind: transport.EventClosed}
			return
		}
	}
}

// closeMessage extracts the server-supplied reason from a websocket close
// error, falling back to the raw error text.
func closeMessage(err error) string {
	if ce, ok := err.(*websocket.CloseError); ok && ce.Text != "" {
		return ce.Text
	}
	return err.Error()
}

func setupMessage(cfg transport.Config) clientMessage {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	voice := cfg.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	setup := &sessionSetup{
		Model: "models/" + model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voice},
				},
			},
		},
	}
	if cfg.SystemInstruction != "" {
		setup.SystemInstruction = &contentPayload{Parts: []contentPart{{Text: cfg.SystemInstruction}}}
	}
	return clientMessage{Setup: setup}
}
