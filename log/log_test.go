package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/deep-rent/locus/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(
		log.WithLevel("debug"),
		log.WithFormat("json"),
		log.WithWriter(&buf),
	)
	logger.Debug("Binding registered", log.KeyService, "Greeting")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Binding registered", rec["msg"])
	assert.Equal(t, "Greeting", rec[log.KeyService])
	assert.Equal(t, "DEBUG", rec["level"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.WithWriter(&buf), log.WithFormat(log.FormatText))
	logger.Debug("Hidden")
	logger.Info("Shown", log.KeyLocation, "/admin")

	out := buf.String()
	assert.NotContains(t, out, "Hidden")
	assert.Contains(t, out, "msg=Shown")
	assert.Contains(t, out, "location=/admin")
}

func TestNew_InvalidOptionsKeepDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(
		log.WithWriter(&buf),
		log.WithWriter(nil),
		log.WithLevel("foo"),
		log.WithLevel(3.5),
		log.WithFormat("bar"),
	)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))

	logger.Info("Plain")
	assert.Contains(t, buf.String(), "msg=Plain")
}

func TestNew_AddSource(t *testing.T) {
	var buf bytes.Buffer
	log.New(log.WithWriter(&buf), log.WithAddSource(true)).Info("Here")
	assert.Contains(t, buf.String(), "source=")
}

func TestDiscard(t *testing.T) {
	logger := log.Discard()
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" Warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"error-8", slog.LevelInfo, false},
		{"invalid", 0, true},
		{"", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := log.ParseLevel(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    log.Format
		wantErr bool
	}{
		{"text", log.FormatText, false},
		{"JSON", log.FormatJSON, false},
		{"", log.FormatText, false},
		{"xml", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := log.ParseFormat(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormat_String(t *testing.T) {
	assert.Equal(t, "text", log.FormatText.String())
	assert.Equal(t, "json", log.FormatJSON.String())
}
