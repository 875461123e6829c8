package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNewWithOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifier.log")

	zl := NewWithOutput("info", "json", path, RotationConfig{MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	log := NewZapAdapter(zl)
	log.WithFields(map[string]interface{}{"component": "test"}).
		Info("delivery finished", map[string]interface{}{"successCount": 3, "error": errors.New("boom")})
	require.NoError(t, zl.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "delivery finished")
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"error":"boom"`)
}

func TestMapToZapFields_Empty(t *testing.T) {
	assert.Nil(t, mapToZapFields(nil))
}
