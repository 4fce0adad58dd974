package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	l, err := newLogger("rescue", Config{Level: "debug", Dir: dir}, zapcore.AddSync(&console))
	require.NoError(t, err)
	l.Info("balance changed", zap.String("address", "0xabc"))
	l.Debug("head", zap.Uint64("block", 7))
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(filepath.Join(dir, "rescue.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "balance changed", entry["msg"])
	assert.Equal(t, "0xabc", entry["address"])
	assert.Contains(t, console.String(), "balance changed")
}

func TestSetLogLevel(t *testing.T) {
	t.Cleanup(func() { _ = SetLogLevel("info") })

	require.NoError(t, SetLogLevel("warn"))
	assert.False(t, logLevel.Enabled(zapcore.InfoLevel))
	assert.True(t, logLevel.Enabled(zapcore.WarnLevel))

	require.NoError(t, SetLogLevel(""))
	assert.True(t, logLevel.Enabled(zapcore.InfoLevel))

	assert.Error(t, SetLogLevel("loud"))
}
