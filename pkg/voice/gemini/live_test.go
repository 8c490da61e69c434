package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/careerdev-ai/careerdev/pkg/voice/pcm"
	"github.com/careerdev-ai/careerdev/pkg/voice/transport"
)

var upgrader = websocket.Upgrader{}

// liveServer is a scripted BidiGenerateContent endpoint. It acks the setup
// message and then runs script against the established connection.
func liveServer(t *testing.T, script func(t *testing.T, conn *websocket.Conn, setup clientMessage)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var setup clientMessage
		if err := conn.ReadJSON(&setup); err != nil {
			t.Errorf("read setup: %v", err)
			return
		}
		if setup.Setup == nil {
			t.Errorf("first client message is not setup: %+v", setup)
			return
		}
		if err := conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}}); err != nil {
			t.Errorf("write setup ack: %v", err)
			return
		}
		script(t, conn, setup)
	}))
}

func testDialer(srv *httptest.Server) *Dialer {
	d := NewDialer("test-key")
	d.dial = func(ctx context.Context, urlStr string) (*websocket.Conn, error) {
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		return conn, err
	}
	return d
}

func recvEvent(t *testing.T, sess transport.Session) transport.Event {
	t.Helper()
	select {
	case ev, ok := <-sess.Events():
		if !ok {
			t.Fatalf("event channel closed early")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event before deadline")
		return transport.Event{}
	}
}

func TestConnectSendsSetupAndAwaitsAck(t *testing.T) {
	setupCh := make(chan clientMessage, 1)
	srv := liveServer(t, func(t *testing.T, conn *websocket.Conn, setup clientMessage) {
		setupCh <- setup
		conn.ReadMessage() // hold until the client closes
	})
	defer srv.Close()

	sess, err := testDialer(srv).Connect(context.Background(), transport.Config{
		SystemInstruction: "You are a career advisor.",
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer sess.Close()

	setup := <-setupCh
	if got, want := setup.Setup.Model, "models/"+DefaultModel; got != want {
		t.Fatalf("model = %q, want %q", got, want)
	}
	sc := setup.Setup.GenerationConfig.SpeechConfig
	if sc == nil || sc.VoiceConfig.PrebuiltVoiceConfig.VoiceName != DefaultVoice {
		t.Fatalf("voice config = %+v, want %q", sc, DefaultVoice)
	}
	if got := setup.Setup.GenerationConfig.ResponseModalities; len(got) != 1 || got[0] != "AUDIO" {
		t.Fatalf("modalities = %v, want [AUDIO]", got)
	}
	if setup.Setup.SystemInstruction == nil || setup.Setup.SystemInstruction.Parts[0].Text == "" {
		t.Fatalf("system instruction not forwarded")
	}
}

func TestSendWrapsFramesAsRealtimeInput(t *testing.T) {
	frames := make(chan clientMessage, 1)
	srv := liveServer(t, func(t *testing.T, conn *websocket.Conn, _ clientMessage) {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		frames <- msg
	})
	defer srv.Close()

	sess, err := testDialer(srv).Connect(context.Background(), transport.Config{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer sess.Close()

	payload := pcm.Encode([]float32{0.1, -0.1, 0.2})
	if err := sess.Send(payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-frames:
		if msg.RealtimeInput == nil || len(msg.RealtimeInput.MediaChunks) != 1 {
			t.Fatalf("frame not wrapped as realtimeInput: %+v", msg)
		}
		chunk := msg.RealtimeInput.MediaChunks[0]
		if chunk.MIMEType != pcm.CaptureMIMEType {
			t.Fatalf("mime = %q, want %q", chunk.MIMEType, pcm.CaptureMIMEType)
		}
		if chunk.Data != payload {
			t.Fatalf("payload altered in transit")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the frame")
	}
}

func TestServerContentBecomesOrderedEvents(t *testing.T) {
	srv := liveServer(t, func(t *testing.T, conn *websocket.Conn, _ clientMessage) {
		audio := func(data string) map[string]any {
			return map[string]any{"serverContent": map[string]any{
				"modelTurn": map[string]any{"parts": []map[string]any{
					{"inlineData": map[string]any{"mimeType": "audio/pcm;rate=24000", "data": data}},
				}},
			}}
		}
		conn.WriteJSON(audio("QUFB"))
		conn.WriteJSON(audio("QkJC"))
		conn.WriteJSON(map[string]any{"serverContent": map[string]any{"interrupted": true}})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})
	defer srv.Close()

	sess, err := testDialer(srv).Connect(context.Background(), transport.Config{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer sess.Close()

	if ev := recvEvent(t, sess); ev.Kind != transport.EventAudio || ev.Data != "QUFB" {
		t.Fatalf("event 1 = %+v", ev)
	}
	if ev := recvEvent(t, sess); ev.Kind != transport.EventAudio || ev.Data != "QkJC" {
		t.Fatalf("event 2 = %+v", ev)
	}
	if ev := recvEvent(t, sess); ev.Kind != transport.EventInterrupted {
		t.Fatalf("event 3 = %+v", ev)
	}
	if ev := recvEvent(t, sess); ev.Kind != transport.EventClosed {
		t.Fatalf("event 4 = %+v", ev)
	}
	if _, ok := <-sess.Events(); ok {
		t.Fatalf("events delivered after Closed")
	}
}

func TestServerErrorEvent(t *testing.T) {
	srv := liveServer(t, func(t *testing.T, conn *websocket.Conn, _ clientMessage) {
		conn.WriteJSON(map[string]any{"error": map[string]any{"code": 403, "message": "API key not valid"}})
		conn.ReadMessage()
	})
	defer srv.Close()

	sess, err := testDialer(srv).Connect(context.Background(), transport.Config{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer sess.Close()

	ev := recvEvent(t, sess)
	if ev.Kind != transport.EventError || !strings.Contains(ev.Message, "API key not valid") {
		t.Fatalf("event = %+v", ev)
	}
}

func TestGoAwayTerminatesSession(t *testing.T) {
	srv := liveServer(t, func(t *testing.T, conn *websocket.Conn, _ clientMessage) {
		conn.WriteJSON(map[string]any{"goAway": map[string]any{}})
		conn.ReadMessage()
	})
	defer srv.Close()

	sess, err := testDialer(srv).Connect(context.Background(), transport.Config{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer sess.Close()

	if ev := recvEvent(t, sess); ev.Kind != transport.EventClosed {
		t.Fatalf("event = %+v, want Closed", ev)
	}
}

func TestCloseIsIdempotentAndSendAfterCloseFails(t *testing.T) {
	srv := liveServer(t, func(t *testing.T, conn *websocket.Conn, _ clientMessage) {
		conn.ReadMessage()
	})
	defer srv.Close()

	sess, err := testDialer(srv).Connect(context.Background(), transport.Config{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := sess.Send("QUFB"); err == nil {
		t.Fatalf("Send succeeded on a closed session")
	}
}

func TestConnectRejectsNonAckFirstMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var setup json.RawMessage
		conn.ReadJSON(&setup)
		conn.WriteJSON(map[string]any{"error": map[string]any{"message": "Requested entity was not found"}})
	}))
	defer srv.Close()

	_, err := testDialer(srv).Connect(context.Background(), transport.Config{})
	if err == nil {
		t.Fatalf("Connect accepted a non-ack first message")
	}
}
