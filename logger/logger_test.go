package logger

import (
	"os"
	"path/filepath"
	"testing"

	"cryptodigest/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// go test -v --run TestNew
func TestNew(t *testing.T) {
	log, err := New(config.LogConfig{Level: "debug", Format: "console", Environment: "dev"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cryptodigest.log")

	log, err := New(config.LogConfig{Level: "info", Format: "json", OutputFile: path})
	require.NoError(t, err)

	log.Info("digest sent")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"digest sent"`)
}
