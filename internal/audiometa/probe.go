package audiometa

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// ErrUnknownFormat is returned when the audio bytes are neither WAV nor MP3.
var ErrUnknownFormat = errors.New("audiometa: unrecognised audio format")

// nopCloser adapts a bytes.Reader for decoders that want a ReadCloser.
type nopCloser struct{ io.ReadSeeker }

func (nopCloser) Close() error { return nil }

// Duration decodes just enough of the audio to report its play length in
// seconds. WAV and MP3 are supported, sniffed from the leading bytes.
func Duration(data []byte) (float64, error) {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("RIFF")):
		streamer, format, err := wav.Decode(nopCloser{bytes.NewReader(data)})
		if err != nil {
			return 0, fmt.Errorf("audiometa: decode wav: %w", err)
		}
		defer streamer.Close()
		return format.SampleRate.D(streamer.Len()).Seconds(), nil

	case looksLikeMP3(data):
		streamer, format, err := mp3.Decode(nopCloser{bytes.NewReader(data)})
		if err != nil {
			return 0, fmt.Errorf("audiometa: decode mp3: %w", err)
		}
		defer streamer.Close()
		return format.SampleRate.D(streamer.Len()).Seconds(), nil

	default:
		return 0, ErrUnknownFormat
	}
}

// looksLikeMP3 reports whether data starts with an ID3 tag or an MPEG frame
// sync word.
func looksLikeMP3(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	if bytes.Equal(data[:3], []byte("ID3")) {
		return true
	}
	return data[0] == 0xFF && data[1]&0xE0 == 0xE0
}
