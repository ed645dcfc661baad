// Package whisper provides ASR providers backed by whisper.cpp: an HTTP
// provider that talks to a running whisper-server binary, and a native
// provider using the CGO bindings directly (see native.go).
//
// The HTTP provider submits the audio clip as a multipart inference request
// and asks for verbose JSON output, which carries segment timestamps and,
// when the server is started with word timestamps enabled, per-word
// timestamps as well.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/eliasvob/readsync/pkg/provider/asr"
)

const (
	defaultLanguage = "en"
	inferencePath   = "/inference"
)

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the server. When empty the
// server uses whichever model it was started with; this is the default.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the language code sent with each request (e.g. "en",
// "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 120 s; batch
// inference on long narrations can be slow on CPU-only hosts.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements asr.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider that connects to the whisper-server at serverURL
// (e.g. "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// inferenceResponse mirrors the verbose JSON body returned by whisper-server.
type inferenceResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

// Transcribe implements asr.Provider.
func (p *Provider) Transcribe(ctx context.Context, req asr.Request) (asr.Result, error) {
	if len(req.Audio) == 0 {
		return asr.Result{}, &asr.Error{Code: asr.CodeInternal, Err: errors.New("whisper: empty audio payload")}
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	filename := req.Filename
	if filename == "" {
		filename = "narration.wav"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: write form file: %w", err)
	}
	_ = mw.WriteField("response_format", "verbose_json")
	_ = mw.WriteField("language", lang)
	if p.model != "" {
		_ = mw.WriteField("model", p.model)
	}
	if err := mw.Close(); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: finalize form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+inferencePath, &body)
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return asr.Result{}, &asr.Error{Code: asr.CodeInternal, Err: fmt.Errorf("whisper: inference request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return asr.Result{}, classifyStatus(resp)
	}

	var decoded inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return asr.Result{}, &asr.Error{Code: asr.CodeInternal, Err: fmt.Errorf("whisper: decode response: %w", err)}
	}

	model := p.model
	if model == "" {
		model = "whisper.cpp"
	}
	res := asr.Result{Model: model, Duration: decoded.Duration}
	for _, seg := range decoded.Segments {
		res.Segments = append(res.Segments, asr.Segment{Text: seg.Text, Start: seg.Start, End: seg.End})
		for _, w := range seg.Words {
			res.Words = append(res.Words, asr.Word{Text: w.Word, Start: w.Start, End: w.End})
		}
	}
	return res, nil
}

// classifyStatus maps a non-200 server response onto the asr error taxonomy,
// draining a bounded amount of the body for the error message.
func classifyStatus(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	cause := fmt.Errorf("whisper: server returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &asr.Error{Code: asr.CodeRateLimited, RetryAfter: retryAfter(resp), Err: cause}
	case http.StatusRequestEntityTooLarge:
		return &asr.Error{Code: asr.CodePayloadTooLarge, Err: cause}
	default:
		return &asr.Error{Code: asr.CodeInternal, Err: cause}
	}
}

// retryAfter parses the delta-seconds form of the Retry-After header.
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
