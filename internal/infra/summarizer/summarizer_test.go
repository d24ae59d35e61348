package summarizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunescout/internal/domain/entity"
)

func TestValidateCharacterLimit(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		wantErr bool
	}{
		{name: "valid default", limit: 400, wantErr: false},
		{name: "minimum boundary", limit: 100, wantErr: false},
		{name: "maximum boundary", limit: 5000, wantErr: false},
		{name: "below minimum", limit: 99, wantErr: true},
		{name: "above maximum", limit: 5001, wantErr: true},
		{name: "zero", limit: 0, wantErr: true},
		{name: "negative", limit: -100, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCharacterLimit(tt.limit)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadClaudeConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := LoadClaudeConfig()

		assert.Equal(t, 400, cfg.CharacterLimit)
		assert.Equal(t, "japanese", cfg.Language)
		assert.NotEmpty(t, cfg.Model)
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("SUMMARIZER_CHAR_LIMIT", "800")

		cfg := LoadClaudeConfig()
		assert.Equal(t, 800, cfg.CharacterLimit)
	})

	t.Run("invalid value falls back to default", func(t *testing.T) {
		t.Setenv("SUMMARIZER_CHAR_LIMIT", "not-a-number")

		cfg := LoadClaudeConfig()
		assert.Equal(t, 400, cfg.CharacterLimit)
	})

	t.Run("out of range falls back to default", func(t *testing.T) {
		t.Setenv("SUMMARIZER_CHAR_LIMIT", "99999")

		cfg := LoadClaudeConfig()
		assert.Equal(t, 400, cfg.CharacterLimit)
	})
}

func TestClaude_BuildPrompt(t *testing.T) {
	c := &Claude{config: ClaudeConfig{CharacterLimit: 400, Language: "japanese"}}

	track := entity.Track{ID: "3135556", Title: "Harder, Better, Faster, Stronger", Artist: "Daft Punk"}
	similar := []entity.SimilarityResult{
		{TrackID: "3135557", Title: "One More Time", Artist: "Daft Punk"},
		{TrackID: "561856", Title: "D.A.N.C.E.", Artist: "Justice"},
	}

	prompt := c.buildPrompt(track, similar)

	assert.Contains(t, prompt, "400文字以内")
	assert.Contains(t, prompt, "Harder, Better, Faster, Stronger / Daft Punk")
	assert.Contains(t, prompt, "- One More Time / Daft Punk")
	assert.Contains(t, prompt, "- D.A.N.C.E. / Justice")
}

func TestClaude_BuildPrompt_NoRecommendations(t *testing.T) {
	c := &Claude{config: ClaudeConfig{CharacterLimit: 400, Language: "japanese"}}

	prompt := c.buildPrompt(entity.Track{Title: "Around the World", Artist: "Daft Punk"}, nil)

	assert.Contains(t, prompt, "Around the World / Daft Punk")
	assert.NotContains(t, prompt, "おすすめ曲")
}

func TestNoOp_Describe(t *testing.T) {
	n := NewNoOp()

	track := entity.Track{Title: "Around the World", Artist: "Daft Punk"}
	similar := []entity.SimilarityResult{
		{Title: "Music Sounds Better with You", Artist: "Stardust"},
	}

	blurb, err := n.Describe(context.Background(), track, similar)
	require.NoError(t, err)
	assert.Contains(t, blurb, "Around the World / Daft Punk")
	assert.Contains(t, blurb, "Music Sounds Better with You / Stardust")
}

func TestPrometheusSummaryMetrics_NotPanics(t *testing.T) {
	recorder := NewPrometheusSummaryMetrics()

	assert.NotPanics(t, func() {
		recorder.RecordLength(350)
		recorder.RecordCompliance(true)
		recorder.RecordLimitExceeded()
		recorder.RecordDuration(0)
	})
}
