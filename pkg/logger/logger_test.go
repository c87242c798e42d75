package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	decoder := json.NewDecoder(buf)
	for decoder.More() {
		var entry map[string]any
		require.NoError(t, decoder.Decode(&entry))
		out = append(out, entry)
	}
	return out
}

func TestLoggerContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	ctx := logg.WithProductID(context.Background(), "p-1")
	ctx = logg.WithUserID(ctx, "u-1")
	logg.Info(ctx, "hello")

	entries := parseLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "p-1", entries[0]["product_id"])
	assert.Equal(t, "u-1", entries[0]["user_id"])
	assert.Equal(t, "test", entries[0]["service"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Level: zerolog.WarnLevel, Output: &buf})

	logg.Info(context.Background(), "dropped")
	logg.Warn(context.Background(), "kept")

	entries := parseLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["message"])
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
}
