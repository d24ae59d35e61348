// Package audio decodes WAV/PCM preview clips and prepares fixed-length
// sample windows for the embedding model. Compressed codecs are not handled
// here; the inference collaborator accepts raw sample windows only.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Clip is decoded mono audio.
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

var (
	// ErrNotWAV indicates the payload is not a RIFF/WAVE container.
	ErrNotWAV = errors.New("not a wav file")

	// ErrUnsupportedFormat indicates a WAV encoding this decoder does not handle.
	ErrUnsupportedFormat = errors.New("unsupported wav format")
)

const (
	formatPCM       = 1
	formatIEEEFloat = 3
	// WAVE_FORMAT_EXTENSIBLE carries the real format in its sub-chunk,
	// which we do not parse.
	formatExtensible = 0xFFFE
)

// DecodeWAV parses a RIFF/WAVE payload into a mono clip.
//
// Supported encodings: PCM 8/16/24/32-bit and IEEE float 32-bit, any channel
// count. Multi-channel audio is averaged down to mono. Samples are scaled to
// [-1, 1].
func DecodeWAV(data []byte) (*Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		format        uint16
		channels      int
		sampleRate    int
		bitsPerSample int
		haveFmt       bool
	)

	// Walk RIFF chunks. The data chunk may precede or follow optional
	// chunks (LIST, fact), so scan until found.
	off := 12
	for off+8 <= len(data) {
		chunkID := string(data[off : off+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if chunkSize < 0 || body+chunkSize > len(data) {
			return nil, fmt.Errorf("%w: truncated %q chunk", ErrNotWAV, chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrNotWAV)
			}
			samples, err := decodeSamples(data[body:body+chunkSize], format, channels, bitsPerSample)
			if err != nil {
				return nil, err
			}
			return &Clip{Samples: samples, SampleRate: sampleRate}, nil
		}

		// Chunks are word-aligned
		off = body + chunkSize
		if chunkSize%2 == 1 {
			off++
		}
	}

	return nil, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}

func decodeSamples(raw []byte, format uint16, channels, bits int) ([]float32, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}

	switch format {
	case formatPCM:
		switch bits {
		case 8, 16, 24, 32:
		default:
			return nil, fmt.Errorf("%w: pcm %d-bit", ErrUnsupportedFormat, bits)
		}
	case formatIEEEFloat:
		if bits != 32 {
			return nil, fmt.Errorf("%w: float %d-bit", ErrUnsupportedFormat, bits)
		}
	case formatExtensible:
		return nil, fmt.Errorf("%w: extensible wav", ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: format code %d", ErrUnsupportedFormat, format)
	}

	bytesPer := bits / 8
	frameSize := bytesPer * channels
	frames := len(raw) / frameSize
	out := make([]float32, frames)

	for f := 0; f < frames; f++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			p := raw[f*frameSize+ch*bytesPer:]
			sum += decodeSample(p, format, bits)
		}
		out[f] = float32(sum / float64(channels))
	}

	return out, nil
}

func decodeSample(p []byte, format uint16, bits int) float64 {
	if format == formatIEEEFloat {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	}

	switch bits {
	case 8:
		// 8-bit PCM is unsigned
		return (float64(p[0]) - 128) / 128
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(p))) / 32768
	case 24:
		v := int32(p[0]) | int32(p[1])<<8 | int32(p[2])<<16
		if v&0x800000 != 0 {
			v -= 0x1000000
		}
		return float64(v) / 8388608
	case 32:
		return float64(int32(binary.LittleEndian.Uint32(p))) / 2147483648
	}
	return 0
}
