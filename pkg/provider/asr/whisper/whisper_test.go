package whisper

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eliasvob/readsync/pkg/provider/asr"
)

func TestNew_RequiresServerURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
}

func TestTranscribe_ParsesVerboseResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != inferencePath {
			t.Errorf("path = %q, want %q", r.URL.Path, inferencePath)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"text":     "hello there",
			"duration": 1.2,
			"segments": []map[string]any{
				{
					"text": "hello there", "start": 0.0, "end": 1.2,
					"words": []map[string]any{
						{"word": "hello", "start": 0.0, "end": 0.5},
						{"word": "there", "start": 0.5, "end": 1.2},
					},
				},
			},
		})
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := p.Transcribe(context.Background(), asr.Request{Audio: []byte("fake-audio")})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(res.Words) != 2 {
		t.Errorf("words = %d, want 2", len(res.Words))
	}
	if len(res.Segments) != 1 {
		t.Errorf("segments = %d, want 1", len(res.Segments))
	}
	if res.Duration != 1.2 {
		t.Errorf("duration = %v, want 1.2", res.Duration)
	}
}

func TestTranscribe_ClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	_, err := p.Transcribe(context.Background(), asr.Request{Audio: []byte("x")})
	var ae *asr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *asr.Error", err)
	}
	if ae.Code != asr.CodeRateLimited {
		t.Errorf("code = %q, want rate_limited", ae.Code)
	}
	if ae.RetryAfter.Seconds() != 7 {
		t.Errorf("retry after = %v, want 7s", ae.RetryAfter)
	}
}

func TestTranscribe_ClassifiesPayloadTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	_, err := p.Transcribe(context.Background(), asr.Request{Audio: []byte("x")})
	if asr.CodeOf(err) != asr.CodePayloadTooLarge {
		t.Fatalf("code = %q, want payload_too_large", asr.CodeOf(err))
	}
}

func TestTranscribe_EmptyAudioRejected(t *testing.T) {
	p, _ := New("http://localhost:1")
	if _, err := p.Transcribe(context.Background(), asr.Request{}); err == nil {
		t.Fatal("expected error for empty audio")
	}
}

// buildWAV assembles a minimal 16-bit PCM WAV file for decode tests.
func buildWAV(sampleRate, channels int, pcm []byte) []byte {
	dataLen := len(pcm)
	buf := make([]byte, 0, 44+dataLen)
	u32 := func(v int) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, uint32(v)); return b }
	u16 := func(v int) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, uint16(v)); return b }

	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, u32(36+dataLen)...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, u32(16)...)
	buf = append(buf, u16(1)...) // PCM
	buf = append(buf, u16(channels)...)
	buf = append(buf, u32(sampleRate)...)
	buf = append(buf, u32(sampleRate*channels*2)...)
	buf = append(buf, u16(channels*2)...)
	buf = append(buf, u16(16)...)
	buf = append(buf, []byte("data")...)
	buf = append(buf, u32(dataLen)...)
	buf = append(buf, pcm...)
	return buf
}

func TestDecodeWAV(t *testing.T) {
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint16(pcm[0:2], uint16(int16(16384)))  // 0.5
	binary.LittleEndian.PutUint16(pcm[2:4], uint16(int16(-16384))) // -0.5
	binary.LittleEndian.PutUint16(pcm[4:6], 0)
	binary.LittleEndian.PutUint16(pcm[6:8], uint16(int16(32767)))

	samples, rate, err := decodeWAV(buildWAV(16000, 1, pcm))
	if err != nil {
		t.Fatalf("decodeWAV: %v", err)
	}
	if rate != 16000 {
		t.Errorf("rate = %d, want 16000", rate)
	}
	if len(samples) != 4 {
		t.Fatalf("samples = %d, want 4", len(samples))
	}
	if math.Abs(float64(samples[0])-0.5) > 1e-3 || math.Abs(float64(samples[1])+0.5) > 1e-3 {
		t.Errorf("samples = %v", samples)
	}
}

func TestDecodeWAV_DownmixesStereo(t *testing.T) {
	pcm := make([]byte, 4)
	binary.LittleEndian.PutUint16(pcm[0:2], uint16(int16(16384)))
	binary.LittleEndian.PutUint16(pcm[2:4], 0)

	samples, _, err := decodeWAV(buildWAV(16000, 2, pcm))
	if err != nil {
		t.Fatalf("decodeWAV: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(samples))
	}
	if math.Abs(float64(samples[0])-0.25) > 1e-3 {
		t.Errorf("downmixed sample = %v, want 0.25", samples[0])
	}
}

func TestDecodeWAV_RejectsGarbage(t *testing.T) {
	if _, _, err := decodeWAV([]byte("not a wav file")); !errors.Is(err, errNotWAV) {
		t.Fatalf("err = %v, want errNotWAV", err)
	}
}
