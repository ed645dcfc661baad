// Package openai provides an ASR provider backed by the OpenAI audio
// transcription API, requesting verbose JSON output with both word- and
// segment-level timestamp granularities.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/eliasvob/readsync/pkg/provider/asr"
)

const defaultModel = "whisper-1"

// maxUploadBytes mirrors the API's documented 25 MB upload limit so that
// oversized payloads are rejected locally with a classified error instead of
// a round trip.
const maxUploadBytes = 25 << 20

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the transcription model (e.g. "whisper-1"). Defaults to
// whisper-1.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the default OpenAI API base URL. Useful for proxies
// and for tests against a local HTTP server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout. Defaults to 60 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// Provider implements asr.Provider using the OpenAI transcription API.
type Provider struct {
	client  oai.Client
	model   string
	baseURL string
	timeout time.Duration
}

// New constructs a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	p := &Provider{
		model:   defaultModel,
		timeout: 60 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: p.timeout}),
	}
	if p.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.baseURL))
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// verboseTranscription mirrors the verbose_json response shape. The SDK's
// typed response targets the default json format, so the raw body is decoded
// here instead.
type verboseTranscription struct {
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Words    []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

// Transcribe implements asr.Provider. The audio is uploaded as multipart form
// data; word and segment timestamp granularities are both requested so that
// normalization can pick the finest available.
func (p *Provider) Transcribe(ctx context.Context, req asr.Request) (asr.Result, error) {
	if len(req.Audio) == 0 {
		return asr.Result{}, &asr.Error{Code: asr.CodeInternal, Err: errors.New("openai: empty audio payload")}
	}
	if len(req.Audio) > maxUploadBytes {
		return asr.Result{}, &asr.Error{
			Code: asr.CodePayloadTooLarge,
			Err:  fmt.Errorf("openai: audio is %d bytes, limit %d", len(req.Audio), maxUploadBytes),
		}
	}

	filename := req.Filename
	if filename == "" {
		filename = "narration.wav"
	}

	params := oai.AudioTranscriptionNewParams{
		Model:                  p.model,
		File:                   oai.File(bytes.NewReader(req.Audio), filename, "application/octet-stream"),
		ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word", "segment"},
	}
	if req.Language != "" {
		params.Language = oai.String(req.Language)
	}

	var raw *http.Response
	_, err := p.client.Audio.Transcriptions.New(ctx, params, option.WithResponseInto(&raw))
	if err != nil {
		return asr.Result{}, classify(err)
	}
	defer raw.Body.Close()

	var verbose verboseTranscription
	if err := json.NewDecoder(raw.Body).Decode(&verbose); err != nil {
		return asr.Result{}, &asr.Error{Code: asr.CodeInternal, Err: fmt.Errorf("openai: decode response: %w", err)}
	}

	res := asr.Result{Model: p.model, Duration: verbose.Duration}
	for _, w := range verbose.Words {
		res.Words = append(res.Words, asr.Word{Text: w.Word, Start: w.Start, End: w.End})
	}
	for _, s := range verbose.Segments {
		res.Segments = append(res.Segments, asr.Segment{Text: s.Text, Start: s.Start, End: s.End})
	}
	return res, nil
}

// classify maps SDK errors onto the asr error taxonomy.
func classify(err error) error {
	var apierr *oai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusTooManyRequests:
			return &asr.Error{
				Code:       asr.CodeRateLimited,
				RetryAfter: retryAfter(apierr.Response),
				Err:        err,
			}
		case http.StatusRequestEntityTooLarge:
			return &asr.Error{Code: asr.CodePayloadTooLarge, Err: err}
		}
	}
	return &asr.Error{Code: asr.CodeInternal, Err: err}
}

// retryAfter parses the Retry-After response header, supporting the
// delta-seconds form. Returns 0 when absent or unparseable.
func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
