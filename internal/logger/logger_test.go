package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"codeberg.org/mutker/sensorctl/internal/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestErrorWithContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(zerolog.New(&buf)).With("sensor")

	err := errors.New().New(errors.ErrEnterCapture)
	log.ErrorWithContext(err, "controller", "enter_capture").Msg("transition failed")

	out := buf.String()
	assert.Contains(t, out, `"error_code":"enter_capture_failed"`)
	assert.Contains(t, out, `"component":"controller"`)
	assert.Contains(t, out, `"operation":"enter_capture"`)
	assert.Contains(t, out, `"message":"transition failed"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level logger.LogLevel
		ok    bool
	}{
		{"debug", logger.DebugLevel, true},
		{"info", logger.InfoLevel, true},
		{"warning", logger.WarnLevel, true},
		{"error", logger.ErrorLevel, true},
		{"loud", logger.WarnLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := logger.ParseLevel(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.level, level)
		})
	}
}
