package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("debug")

	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		SetLevel(tt.input)
		require.Equal(t, tt.want, zerolog.GlobalLevel(), tt.input)
	}
}

func TestConfigure(t *testing.T) {
	original := Log
	defer func() { Log = original }()

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		Configure(&buf, "json")
		Log.Info().Int64("lease_id", 7).Msg("committed")

		require.Contains(t, buf.String(), `"lease_id":7`)
		require.Contains(t, buf.String(), `"message":"committed"`)
	})

	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		Configure(&buf, "console")
		Log.Info().Int64("lease_id", 7).Msg("committed")

		require.Contains(t, buf.String(), "lease_id=")
		require.Contains(t, buf.String(), "committed")
		require.NotContains(t, buf.String(), `"message"`)
	})
}
