package advisor

import (
	"context"

	"google.golang.org/genai"

	"github.com/careerdev-ai/careerdev/pkg/keyselect"
)

// TextStream is one in-flight generation. Chunks yields text fragments in
// order and closes when the generation ends; after that Err reports the
// terminal error, if any, and Sources the grounding references collected
// along the way. A stream that produced no text at all yields the fallback
// message as its only chunk.
type TextStream struct {
	chunks chan string
	done   chan struct{}

	err     error
	sources []Source
}

// Chunks is the ordered stream of text fragments.
func (ts *TextStream) Chunks() <-chan string { return ts.chunks }

// Err reports the terminal error. Valid once Chunks is closed.
func (ts *TextStream) Err() error {
	<-ts.done
	return ts.err
}

// Sources returns the grounding references attached to the generation.
// Valid once Chunks is closed.
func (ts *TextStream) Sources() []Source {
	<-ts.done
	return ts.sources
}

// NewStaticStream returns an already-resolved stream that yields the given
// chunks and then terminates with sources and err. Useful for fakes and
// canned responses.
func NewStaticStream(chunks []string, sources []Source, err error) *TextStream {
	ts := &TextStream{
		chunks:  make(chan string, len(chunks)),
		done:    make(chan struct{}),
		err:     err,
		sources: sources,
	}
	for _, c := range chunks {
		ts.chunks <- c
	}
	close(ts.chunks)
	close(ts.done)
	return ts
}

// startStream launches the generation and returns immediately; the stream
// goroutine owns the backend iterator for its whole life.
func (a *Advisor) startStream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) *TextStream {
	ts := &TextStream{
		chunks: make(chan string, 8),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(ts.done)
		defer close(ts.chunks)

		sent := false
		seen := map[string]bool{}
		for resp, err := range a.backend.stream(ctx, model, contents, cfg) {
			if err != nil {
				ts.err = keyselect.Classify(err)
				a.logger.Error("advisor: generation stream", "model", model, "err", err)
				return
			}
			ts.sources = appendSources(ts.sources, seen, resp)
			if text := resp.Text(); text != "" {
				sent = true
				select {
				case ts.chunks <- text:
				case <-ctx.Done():
					ts.err = ctx.Err()
					return
				}
			}
		}
		if !sent {
			select {
			case ts.chunks <- FallbackMessage:
			case <-ctx.Done():
				ts.err = ctx.Err()
			}
		}
	}()

	return ts
}

// appendSources harvests grounding references from a response, deduplicated
// by URI across the stream.
func appendSources(dst []Source, seen map[string]bool, resp *genai.GenerateContentResponse) []Source {
	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			if seen[chunk.Web.URI] {
				continue
			}
			seen[chunk.Web.URI] = true
			title := chunk.Web.Title
			if title == "" {
				title = chunk.Web.URI
			}
			dst = append(dst, Source{Title: title, URI: chunk.Web.URI})
		}
	}
	return dst
}
