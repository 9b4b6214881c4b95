package cmd

import (
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"gigaproxy/internal/config"
)

func TestSetupLoggingDisablesColor(t *testing.T) {
	prev := color.NoColor
	defer func() { color.NoColor = prev }()

	color.NoColor = false

	setupLogging(&config.Config{LogLevel: "info", LogFormat: "text", LogUseColor: false}, false)
	assert.True(t, color.NoColor)
}

func TestSetupLoggingKeepsColorAutodetect(t *testing.T) {
	prev := color.NoColor
	defer func() { color.NoColor = prev }()

	// With the toggle on, the library's tty detection is left alone.
	color.NoColor = false

	setupLogging(&config.Config{LogLevel: "info", LogFormat: "text", LogUseColor: true}, false)
	assert.False(t, color.NoColor)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLevel(tt.in), "level %q", tt.in)
	}
}
