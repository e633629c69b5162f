package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nehaa3012/LMS/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.LogConfig
		mode  string
		want  zapcore.Level
		isErr bool
	}{
		{name: "debug mode", mode: "debug", want: zapcore.DebugLevel},
		{name: "release mode", mode: "release", want: zapcore.InfoLevel},
		{name: "explicit level wins", cfg: config.LogConfig{Level: "warn"}, mode: "debug", want: zapcore.WarnLevel},
		{name: "unknown level", cfg: config.LogConfig{Level: "loud"}, mode: "debug", want: zapcore.InfoLevel, isErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Level(tt.cfg, tt.mode)
			if tt.isErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoresFileIsOptional(t *testing.T) {
	assert.Len(t, Cores(config.LogConfig{}, zapcore.InfoLevel), 1)
	assert.Len(t, Cores(config.LogConfig{File: filepath.Join(t.TempDir(), "x.log")}, zapcore.InfoLevel), 2)
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.log")
	l, err := New(config.LogConfig{File: path, MaxSizeMB: 1}, "release")
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("points awarded")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"points awarded"`)
	assert.Contains(t, string(data), `"logger":"ledger"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestInitLoggerFallsBackOnBadLevel(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	InitLogger(&config.Config{
		Server: config.ServerConfig{Mode: "release"},
		Log:    config.LogConfig{Level: "loud"},
	})
	require.NotNil(t, Log)
	assert.True(t, Log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, Log.Core().Enabled(zapcore.DebugLevel))
}
