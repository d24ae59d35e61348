package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWAV assembles a minimal RIFF/WAVE payload for tests.
func buildWAV(format uint16, channels, sampleRate, bits int, frames [][]float64) []byte {
	bytesPer := bits / 8
	dataSize := len(frames) * channels * bytesPer

	buf := make([]byte, 0, 44+dataSize)
	w32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}
	w16 := func(v uint16) {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], v)
		buf = append(buf, b[:]...)
	}

	buf = append(buf, "RIFF"...)
	w32(uint32(36 + dataSize))
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	w32(16)
	w16(format)
	w16(uint16(channels))
	w32(uint32(sampleRate))
	w32(uint32(sampleRate * channels * bytesPer))
	w16(uint16(channels * bytesPer))
	w16(uint16(bits))

	buf = append(buf, "data"...)
	w32(uint32(dataSize))
	for _, frame := range frames {
		for _, s := range frame {
			switch {
			case format == formatIEEEFloat:
				w32(math.Float32bits(float32(s)))
			case bits == 16:
				w16(uint16(int16(s * 32767)))
			case bits == 8:
				buf = append(buf, byte(s*127+128))
			}
		}
	}
	return buf
}

func TestDecodeWAV_PCM16Mono(t *testing.T) {
	wav := buildWAV(formatPCM, 1, 44100, 16, [][]float64{{0}, {0.5}, {-0.5}, {1}})

	clip, err := DecodeWAV(wav)
	require.NoError(t, err)

	assert.Equal(t, 44100, clip.SampleRate)
	require.Len(t, clip.Samples, 4)
	assert.InDelta(t, 0, clip.Samples[0], 1e-3)
	assert.InDelta(t, 0.5, clip.Samples[1], 1e-3)
	assert.InDelta(t, -0.5, clip.Samples[2], 1e-3)
	assert.InDelta(t, 1, clip.Samples[3], 1e-3)
}

func TestDecodeWAV_StereoDownmix(t *testing.T) {
	// 左右チャネルの平均がモノラル値になる
	wav := buildWAV(formatPCM, 2, 48000, 16, [][]float64{{0.5, -0.5}, {0.2, 0.4}})

	clip, err := DecodeWAV(wav)
	require.NoError(t, err)

	require.Len(t, clip.Samples, 2)
	assert.InDelta(t, 0, clip.Samples[0], 1e-3)
	assert.InDelta(t, 0.3, clip.Samples[1], 1e-3)
}

func TestDecodeWAV_Float32(t *testing.T) {
	wav := buildWAV(formatIEEEFloat, 1, 48000, 32, [][]float64{{0.25}, {-0.75}})

	clip, err := DecodeWAV(wav)
	require.NoError(t, err)

	require.Len(t, clip.Samples, 2)
	assert.InDelta(t, 0.25, clip.Samples[0], 1e-6)
	assert.InDelta(t, -0.75, clip.Samples[1], 1e-6)
}

func TestDecodeWAV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrNotWAV},
		{name: "not riff", data: []byte("ID3.............."), want: ErrNotWAV},
		{name: "riff but not wave", data: append([]byte("RIFF\x00\x00\x00\x00AVI "), make([]byte, 16)...), want: ErrNotWAV},
		{
			name: "unsupported format code",
			data: buildWAV(55, 1, 44100, 16, [][]float64{{0}}),
			want: ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWAV(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClip_Duration(t *testing.T) {
	clip := &Clip{Samples: make([]float32, 88200), SampleRate: 44100}
	assert.InDelta(t, 2.0, clip.Duration(), 1e-9)

	empty := &Clip{}
	assert.Equal(t, 0.0, empty.Duration())
}
