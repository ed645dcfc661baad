// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/eliasvob/readsync/pkg/provider/asr"
)

// Compile-time assertion that NativeProvider satisfies asr.Provider.
var _ asr.Provider = (*NativeProvider)(nil)

// NativeProvider implements asr.Provider using the whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// construction and shared across all concurrent transcriptions; each call
// gets its own context, which is the unit of thread confinement in
// whisper.cpp.
//
// Audio must be a 16-bit PCM WAV clip at 16 kHz, the only rate whisper.cpp
// accepts. Other containers or rates are rejected with a classified error;
// callers that fetch arbitrary narration audio should route mp3 clips to an
// HTTP provider instead.
type NativeProvider struct {
	model     whisperlib.Model
	modelName string
	language  string
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription (e.g. "en",
// "de"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:     model,
		modelName: modelPath,
		language:  defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements asr.Provider. Token timestamps are enabled so that
// the result carries word-level intervals alongside the segment intervals.
func (p *NativeProvider) Transcribe(ctx context.Context, req asr.Request) (asr.Result, error) {
	if err := ctx.Err(); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	samples, rate, err := decodeWAV(req.Audio)
	if err != nil {
		return asr.Result{}, &asr.Error{Code: asr.CodeInternal, Err: err}
	}
	if rate != nativeSampleRate {
		return asr.Result{}, &asr.Error{
			Code: asr.CodeInternal,
			Err:  fmt.Errorf("whisper: sample rate %d Hz unsupported (native inference requires %d Hz)", rate, nativeSampleRate),
		}
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	// Each inference gets a fresh context; contexts are NOT thread-safe but
	// the model can be shared across goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return asr.Result{}, &asr.Error{Code: asr.CodeInternal, Err: fmt.Errorf("whisper: create context: %w", err)}
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using model default", "language", lang, "error", err)
	}
	wctx.SetTokenTimestamps(true)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return asr.Result{}, &asr.Error{Code: asr.CodeInternal, Err: fmt.Errorf("whisper: process audio: %w", err)}
	}

	res := asr.Result{Model: p.modelName}
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return asr.Result{}, &asr.Error{Code: asr.CodeInternal, Err: fmt.Errorf("whisper: read segment: %w", err)}
		}

		res.Segments = append(res.Segments, asr.Segment{
			Text:  strings.TrimSpace(segment.Text),
			Start: segment.Start.Seconds(),
			End:   segment.End.Seconds(),
		})

		for _, tok := range segment.Tokens {
			text := strings.TrimSpace(tok.Text)
			if text == "" || isSpecialToken(text) {
				continue
			}
			res.Words = append(res.Words, asr.Word{
				Text:  text,
				Start: tok.Start.Seconds(),
				End:   tok.End.Seconds(),
			})
		}
	}

	if res.Duration == 0 {
		res.Duration = float64(len(samples)) / float64(nativeSampleRate)
	}
	return res, nil
}

// isSpecialToken reports whether text is a whisper.cpp marker token such as
// "[_BEG_]" or "[_TT_500]" rather than transcribed speech.
func isSpecialToken(text string) bool {
	return strings.HasPrefix(text, "[_") && strings.HasSuffix(text, "]")
}
