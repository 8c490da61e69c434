// careerdev-voice is a terminal client for the live voice advisor: it streams
// microphone audio to the Gemini Live API and plays the advisor's replies
// through the default output device.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/careerdev-ai/careerdev/pkg/keyselect"
	"github.com/careerdev-ai/careerdev/pkg/voice"
	"github.com/careerdev-ai/careerdev/pkg/voice/device"
	"github.com/careerdev-ai/careerdev/pkg/voice/gemini"
	"github.com/careerdev-ai/careerdev/pkg/voice/transport"
)

const defaultSystemInstruction = "You are a friendly and encouraging career advisor. " +
	"Keep your spoken answers short and conversational."

func main() {
	os.Exit(runMain())
}

func runMain() int {
	_ = godotenv.Load()

	var (
		model       = flag.String("model", gemini.DefaultModel, "Live audio model")
		voiceName   = flag.String("voice", gemini.DefaultVoice, "Prebuilt voice name")
		instruction = flag.String("system-instruction", defaultSystemInstruction, "System instruction for the advisor")
		showLevels  = flag.Bool("levels", true, "Print input/output level meters")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelWarn
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	apiKey, err := keyselect.Resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, "api key:", err)
		return 2
	}

	mic, err := device.NewMicSource()
	if err != nil {
		fmt.Fprintln(os.Stderr, "open microphone backend:", err)
		return 1
	}
	defer mic.Close()

	speaker, err := device.NewSpeakerSink()
	if err != nil {
		fmt.Fprintln(os.Stderr, "open speaker:", err)
		return 1
	}

	opts := voice.Options{
		Dialer: gemini.NewDialer(apiKey),
		Config: transport.Config{
			Model:             *model,
			Voice:             *voiceName,
			SystemInstruction: *instruction,
		},
		Input:    mic,
		Sink:     speaker,
		Selector: keyselect.TerminalSelector{},
		Logger:   logger,
	}
	opts.OnSpeaking = func(speaking bool) {
		if speaking {
			fmt.Fprintln(os.Stderr, "\n[advisor speaking]")
		}
	}
	if *showLevels {
		opts.OnLevels = func(input, output float64) {
			fmt.Fprintf(os.Stderr, "\rmic %-10s out %-10s", meter(input), meter(output))
		}
	}

	session, err := voice.NewSession(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "session:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "start session:", err)
		return 1
	}
	fmt.Fprintln(os.Stderr, "voice advisor connected; speak into the microphone (Ctrl-C to stop)")

	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "\nstopping")
	if err := session.Stop(); err != nil {
		fmt.Fprintln(os.Stderr, "stop session:", err)
		return 1
	}
	return 0
}

// meter renders a level in [0,1] as a fixed-width bar.
func meter(level float64) string {
	const width = 10
	n := int(level * width)
	if n > width {
		n = width
	}
	return strings.Repeat("#", n) + strings.Repeat("-", width-n)
}
