package whisper

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// nativeSampleRate is the only sample rate whisper.cpp accepts.
const nativeSampleRate = 16000

var errNotWAV = errors.New("whisper: audio is not a RIFF/WAVE file")

// pcmToFloat32 converts 16-bit signed little-endian PCM to float32 samples
// normalised to [-1.0, 1.0]. A trailing odd byte is ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// downmixMono averages interleaved multi-channel float32 samples to mono.
func downmixMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// decodeWAV parses a canonical RIFF/WAVE container holding 16-bit PCM and
// returns mono float32 samples plus the sample rate. Only the fmt and data
// chunks are interpreted; other chunks are skipped.
func decodeWAV(data []byte) (samples []float32, sampleRate int, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errNotWAV
	}

	var (
		channels      int
		bitsPerSample int
		pcm           []byte
	)

	off := 12
	for off+8 <= len(data) {
		chunkID := string(data[off : off+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+chunkLen > len(data) {
			chunkLen = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return nil, 0, fmt.Errorf("whisper: truncated fmt chunk (%d bytes)", chunkLen)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("whisper: unsupported WAV format tag %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+chunkLen]
		}

		// Chunks are word-aligned.
		off = body + chunkLen
		if chunkLen%2 == 1 {
			off++
		}
	}

	if sampleRate == 0 || pcm == nil {
		return nil, 0, errors.New("whisper: WAV file missing fmt or data chunk")
	}
	if bitsPerSample != 16 {
		return nil, 0, fmt.Errorf("whisper: unsupported bit depth %d (want 16)", bitsPerSample)
	}
	if channels <= 0 {
		channels = 1
	}

	return downmixMono(pcmToFloat32(pcm), channels), sampleRate, nil
}
