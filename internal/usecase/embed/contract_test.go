package embed

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunescout/internal/domain/entity"
)

// fakeEmbedder returns a fixed raw vector and records what it was given.
type fakeEmbedder struct {
	vector     entity.Embedding
	err        error
	gotSamples []float32
	gotRate    int
}

func (f *fakeEmbedder) Embed(_ context.Context, samples []float32, sampleRate int) (entity.Embedding, error) {
	f.gotSamples = samples
	f.gotRate = sampleRate
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Ready(context.Context) error { return nil }

// buildWAV constructs a PCM16 mono RIFF blob from the given samples.
func buildWAV(t *testing.T, sampleRate int, samples []int16) []byte {
	t.Helper()

	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	buf := make([]byte, 0, 44+len(data))
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+len(data)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, 1) // mono
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate*2))
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint16(buf, 16)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	return buf
}

func testConfig() Config {
	return Config{SampleRate: 8000, Window: time.Second, Dim: 3}
}

func TestContract_FromWAV(t *testing.T) {
	fake := &fakeEmbedder{vector: entity.Embedding{3, 0, 4}}
	contract, err := NewContract(fake, testConfig())
	require.NoError(t, err)

	wav := buildWAV(t, 8000, []int16{0, 8000, -8000, 16000})

	emb, err := contract.FromWAV(context.Background(), wav)
	require.NoError(t, err)

	// モデルには常に固定長の窓が渡される
	assert.Len(t, fake.gotSamples, 8000)
	assert.Equal(t, 8000, fake.gotRate)

	// 返るベクトルはL2正規化済み
	assert.True(t, emb.IsUnit())
	assert.InDelta(t, 0.6, float64(emb[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(emb[2]), 1e-6)
}

func TestContract_FromWAV_Deterministic(t *testing.T) {
	fake := &fakeEmbedder{vector: entity.Embedding{1, 2, 2}}
	contract, err := NewContract(fake, testConfig())
	require.NoError(t, err)

	wav := buildWAV(t, 8000, []int16{100, -200, 300})

	first, err := contract.FromWAV(context.Background(), wav)
	require.NoError(t, err)
	second, err := contract.FromWAV(context.Background(), wav)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestContract_FromWAV_ResamplesInput(t *testing.T) {
	fake := &fakeEmbedder{vector: entity.Embedding{1, 0, 0}}
	contract, err := NewContract(fake, testConfig())
	require.NoError(t, err)

	// 16kHzの入力は8kHzへ変換される
	wav := buildWAV(t, 16000, []int16{1000, 2000, 3000, 4000})

	_, err = contract.FromWAV(context.Background(), wav)
	require.NoError(t, err)
	assert.Len(t, fake.gotSamples, 8000)
}

func TestContract_FromWAV_InvalidAudio(t *testing.T) {
	contract, err := NewContract(&fakeEmbedder{vector: entity.Embedding{1, 0, 0}}, testConfig())
	require.NoError(t, err)

	_, err = contract.FromWAV(context.Background(), []byte("not a wav file"))
	assert.Error(t, err)
}

func TestContract_FromSamples_DimensionMismatch(t *testing.T) {
	fake := &fakeEmbedder{vector: entity.Embedding{1, 0}} // 2 dims, expected 3
	contract, err := NewContract(fake, testConfig())
	require.NoError(t, err)

	_, err = contract.FromSamples(context.Background(), make([]float32, 8000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrDimensionMismatch))
}

func TestContract_FromSamples_RejectsNaN(t *testing.T) {
	fake := &fakeEmbedder{vector: entity.Embedding{float32(math.NaN()), 0, 0}}
	contract, err := NewContract(fake, testConfig())
	require.NoError(t, err)

	_, err = contract.FromSamples(context.Background(), make([]float32, 8000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrInvalidEmbedding))
}

func TestContract_FromSamples_EmbedderError(t *testing.T) {
	fake := &fakeEmbedder{err: errors.New("inference down")}
	contract, err := NewContract(fake, testConfig())
	require.NoError(t, err)

	_, err = contract.FromSamples(context.Background(), make([]float32, 8000))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "defaults", config: DefaultConfig(), wantErr: false},
		{name: "zero sample rate", config: Config{SampleRate: 0, Window: time.Second, Dim: 3}, wantErr: true},
		{name: "zero window", config: Config{SampleRate: 8000, Window: 0, Dim: 3}, wantErr: true},
		{name: "zero dimension", config: Config{SampleRate: 8000, Window: time.Second, Dim: 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
