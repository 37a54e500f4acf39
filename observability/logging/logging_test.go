package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func resetDefaults() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	log.SetOutput(os.Stderr)
}

func TestSetupEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("solationd", "test", Options{Output: &buf})
	t.Cleanup(resetDefaults)

	logger.Info("intent submitted", "intentId", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "intent submitted", line["message"])
	require.Equal(t, "solationd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
	require.EqualValues(t, 7, line["intentId"])
}

func TestSetupRespectsLevelAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "solationd.log")
	logger := Setup("solationd", "", Options{Output: &buf, Level: slog.LevelWarn, File: path, MaxSizeMB: 1})
	t.Cleanup(resetDefaults)

	logger.Info("dropped")
	logger.Warn("kept")

	require.NotContains(t, buf.String(), "dropped")
	require.Contains(t, buf.String(), "kept")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "kept")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, "Bearer "+RedactedValue, MaskField("Authorization", "Bearer abc").Value.String())
	require.Equal(t, RedactedValue, MaskField("authorization", "abc").Value.String())
	require.Equal(t, RedactedValue, MaskField("secret", "hunter2").Value.String())
	require.Equal(t, "7", MaskField("intentId", "7").Value.String())
	require.Equal(t, "submit_intent", MaskField("op", "submit_intent").Value.String())
	require.Equal(t, "", MaskField("token", "").Value.String())
	require.Contains(t, RedactionAllowlist(), "kind")
}
