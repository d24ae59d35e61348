package respond

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "anthropic key masked",
			err:  errors.New("inference call failed: invalid key sk-ant-api03-abc_def-123"),
			want: "inference call failed: invalid key sk-ant-****",
		},
		{
			name: "openai-style key masked",
			err:  errors.New("provider rejected sk-abcdefghij1234567890"),
			want: "provider rejected sk-****",
		},
		{
			name: "dsn password masked, user kept",
			err:  errors.New("open catalog: postgres://ingest:s3cret@db:5432/tunes timeout"),
			want: "open catalog: postgres://ingest:****@db:5432/tunes timeout",
		},
		{
			name: "plain message untouched",
			err:  errors.New("track 42 not found"),
			want: "track 42 not found",
		},
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeError(tt.err))
		})
	}
}

func TestSanitizeError_MultipleSecretsInOneMessage(t *testing.T) {
	err := fmt.Errorf("retry exhausted: sk-ant-first-000 then postgres://u:pw@h/db")
	got := SanitizeError(err)
	assert.NotContains(t, got, "first-000")
	assert.NotContains(t, got, ":pw@")
}
