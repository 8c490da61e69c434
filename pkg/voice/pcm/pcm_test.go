package pcm

import (
	"encoding/base64"
	"math"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.25, -1, 0.999, -0.999, 1}

	frame, err := Decode(Encode(in), PlaybackRate, 1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frame.Samples) != len(in) {
		t.Fatalf("got %d samples, want %d", len(frame.Samples), len(in))
	}
	// One quantization step of tolerance per sample.
	const step = 1.0 / 32768
	for i, v := range in {
		want := float64(v)
		if want > 32767.0/32768 {
			want = 32767.0 / 32768
		}
		if diff := math.Abs(float64(frame.Samples[i]) - want); diff > step {
			t.Fatalf("sample %d: got %v, want %v ± %v", i, frame.Samples[i], want, step)
		}
	}
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	frame, err := Decode(Encode([]float32{2.0, -2.0}), PlaybackRate, 1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Samples[0] < 0.999 {
		t.Fatalf("positive overdrive = %v, want clamp near 1", frame.Samples[0])
	}
	if frame.Samples[1] != -1 {
		t.Fatalf("negative overdrive = %v, want -1", frame.Samples[1])
	}
}

func TestDecodeRejectsBadBase64(t *testing.T) {
	if _, err := Decode("not-base64!!", PlaybackRate, 1); err == nil {
		t.Fatalf("Decode accepted invalid base64")
	}
}

func TestDecodeBytesIgnoresTrailingOddByte(t *testing.T) {
	frame := DecodeBytes([]byte{0x00, 0x40, 0x7f}, PlaybackRate, 1)
	if len(frame.Samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(frame.Samples))
	}
	if got, want := frame.Samples[0], float32(0x4000)/32768; got != want {
		t.Fatalf("sample = %v, want %v", got, want)
	}
}

func TestFrameDuration(t *testing.T) {
	frame := Frame{Samples: make([]float32, PlaybackRate/2), Rate: PlaybackRate, Channels: 1}
	if got, want := frame.Duration(), 500*time.Millisecond; got != want {
		t.Fatalf("Duration = %v, want %v", got, want)
	}
	if got := frame.Seconds(); got != 0.5 {
		t.Fatalf("Seconds = %v, want 0.5", got)
	}

	var zero Frame
	if zero.Duration() != 0 || zero.Seconds() != 0 {
		t.Fatalf("zero frame has nonzero duration")
	}
}

func TestEncodeIsLittleEndian(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(Encode([]float32{0.5}))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	// 0.5 * 32768 = 16384 = 0x4000, little-endian on the wire.
	if raw[0] != 0x00 || raw[1] != 0x40 {
		t.Fatalf("wire bytes = %x, want 0040", raw)
	}
}
