package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nappa85/ingress-intel-go/internal/config"
)

// setupTestLogger initializes the global logger with its console core
// directed into a buffer.
func setupTestLogger(cfg config.LoggerConfig) *bytes.Buffer {
	buf := new(bytes.Buffer)
	initializeLogger(cfg, zapcore.AddSync(buf))
	return buf
}

// resetGlobalLogger restores the singleton between tests.
func resetGlobalLogger() {
	once = sync.Once{}
	globalLogger.Store(nil)
}

func TestInitializeLogger(t *testing.T) {
	t.Run("console logger with colors", func(t *testing.T) {
		resetGlobalLogger()

		buf := setupTestLogger(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "intel-test",
			Colors: config.ColorConfig{
				Info: "green",
			},
		})

		GetLogger().Info("console message")
		Sync()

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "console message")
		assert.Contains(t, output, colorGreen)
		assert.Contains(t, output, colorReset)
	})

	t.Run("json logger", func(t *testing.T) {
		resetGlobalLogger()

		buf := setupTestLogger(config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "intel-json",
		})

		GetLogger().Warn("structured message", zap.String("key", "value"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "intel-json", entry["logger"])
		assert.Equal(t, "structured message", entry["msg"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("writes to log file", func(t *testing.T) {
		resetGlobalLogger()
		logFile := filepath.Join(t.TempDir(), "intel.log")

		InitializeLogger(config.LoggerConfig{
			Level:   "debug",
			Format:  "json",
			LogFile: logFile,
			MaxSize: 1,
		})
		GetLogger().Error("goes to the file")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "goes to the file")
	})

	t.Run("initializes only once", func(t *testing.T) {
		resetGlobalLogger()

		setupTestLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "first"})
		first := GetLogger()

		setupTestLogger(config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "second"})
		assert.Same(t, first, GetLogger())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		resetGlobalLogger()

		buf := setupTestLogger(config.LoggerConfig{Level: "chatty", Format: "console"})
		logger := GetLogger()
		logger.Debug("suppressed")
		logger.Info("visible")
		Sync()

		output := buf.String()
		assert.NotContains(t, output, "suppressed")
		assert.Contains(t, output, "visible")
	})
}

func TestGetLogger_Fallback(t *testing.T) {
	resetGlobalLogger()

	logger := GetLogger()
	require.NotNil(t, logger)
}
