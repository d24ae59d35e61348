package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidatePositiveDuration(t *testing.T) {
	assert.NoError(t, ValidatePositiveDuration(time.Second))
	assert.Error(t, ValidatePositiveDuration(0))
	assert.Error(t, ValidatePositiveDuration(-time.Second))
}

func TestValidateNonNegativeDuration(t *testing.T) {
	assert.NoError(t, ValidateNonNegativeDuration(0))
	assert.NoError(t, ValidateNonNegativeDuration(time.Minute))
	assert.Error(t, ValidateNonNegativeDuration(-time.Millisecond))
}

func TestValidateDurationRange(t *testing.T) {
	assert.NoError(t, ValidateDurationRange(15*time.Minute, time.Minute, 24*time.Hour))
	assert.NoError(t, ValidateDurationRange(time.Minute, time.Minute, 24*time.Hour))
	assert.NoError(t, ValidateDurationRange(24*time.Hour, time.Minute, 24*time.Hour))

	assert.Error(t, ValidateDurationRange(time.Second, time.Minute, 24*time.Hour))
	assert.Error(t, ValidateDurationRange(25*time.Hour, time.Minute, 24*time.Hour))
	assert.Error(t, ValidateDurationRange(time.Minute, time.Hour, time.Minute))
}
