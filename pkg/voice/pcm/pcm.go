// Package pcm defines the audio frame type shared by the voice pipeline
// stages and the wire codec used to move frames across the transport.
//
// Internally samples are normalized float32 values in [-1, 1]. On the wire a
// frame is signed 16-bit little-endian PCM, base64-encoded.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// CaptureRate is the fixed input sample rate sent to the model.
	CaptureRate = 16000
	// PlaybackRate is the fixed output sample rate delivered by the model.
	PlaybackRate = 24000
	// CaptureWindow is the number of samples per captured frame.
	CaptureWindow = 4096

	// CaptureMIMEType tags outbound frames with their encoding and rate.
	CaptureMIMEType = "audio/pcm;rate=16000"

	bytesPerSample = 2
)

// Frame is a contiguous run of normalized PCM samples at a fixed sample rate
// and channel count.
type Frame struct {
	Samples  []float32
	Rate     int
	Channels int
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.Rate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := len(f.Samples) / f.Channels
	return time.Duration(frames) * time.Second / time.Duration(f.Rate)
}

// Seconds returns the frame duration in seconds as used by the playback
// scheduler's output timeline.
func (f Frame) Seconds() float64 {
	if f.Rate <= 0 || f.Channels <= 0 {
		return 0
	}
	return float64(len(f.Samples)/f.Channels) / float64(f.Rate)
}

// Encode converts normalized samples to PCM16LE and base64-encodes the
// result for transport. Values outside [-1, 1] are clamped before the
// multiply-and-truncate conversion.
func Encode(samples []float32) string {
	buf := make([]byte, len(samples)*bytesPerSample)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sampleToInt16(v)))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// Decode reverses Encode: base64 → bytes → int16 LE → normalized floats,
// producing a Frame at the given rate and channel count.
func Decode(data string, rate, channels int) (Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Frame{}, fmt.Errorf("pcm: decode base64: %w", err)
	}
	return DecodeBytes(raw, rate, channels), nil
}

// DecodeBytes converts raw PCM16LE bytes to a Frame. A trailing odd byte is
// ignored.
func DecodeBytes(raw []byte, rate, channels int) Frame {
	if channels <= 0 {
		channels = 1
	}
	n := len(raw) / bytesPerSample
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return Frame{Samples: samples, Rate: rate, Channels: channels}
}

func sampleToInt16(v float32) int16 {
	scaled := v * 32768
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int16(scaled)
}
