// internal/logger/logger_test.go
package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New(&Config{
		Directory:  dir,
		Filename:   "test.log",
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	})
	require.NoError(t, err)

	log.WithComponent("pool").Info("pool seeded", zap.String("symbol", "CRV"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "pool seeded")
	assert.Contains(t, string(data), `"component":"pool"`)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "logs", cfg.Directory)
	assert.False(t, cfg.Debug)

	log, err := New(nil)
	require.NoError(t, err)
	assert.NotNil(t, log.Logger)
}
