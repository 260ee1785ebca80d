package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/williamzujkowski/dependency-risk-profiler/internal/config"
)

// syncBuffer adapts bytes.Buffer to zapcore.WriteSyncer for injection.
type syncBuffer struct {
	bytes.Buffer
}

func (*syncBuffer) Sync() error { return nil }

func TestInitialize(t *testing.T) {
	t.Run("json format emits structured entries", func(t *testing.T) {
		ResetForTest()
		var buf syncBuffer

		Initialize(config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "test-svc",
		}, &buf)

		GetLogger().Info("hello from the test")

		out := buf.String()
		assert.Contains(t, out, `"msg":"hello from the test"`)
		assert.Contains(t, out, `"logger":"test-svc"`)
		assert.Contains(t, out, `"level":"INFO"`)
	})

	t.Run("level filtering applies", func(t *testing.T) {
		ResetForTest()
		var buf syncBuffer

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, &buf)

		GetLogger().Info("suppressed")
		GetLogger().Warn("visible")

		out := buf.String()
		assert.NotContains(t, out, "suppressed")
		assert.Contains(t, out, "visible")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		ResetForTest()
		var buf syncBuffer

		Initialize(config.LoggerConfig{Level: "shouting", Format: "json"}, &buf)

		GetLogger().Debug("hidden")
		GetLogger().Info("shown")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "shown")
	})

	t.Run("second initialize is a no-op", func(t *testing.T) {
		ResetForTest()
		var first, second syncBuffer

		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, &first)
		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, &second)

		GetLogger().Info("routed once")
		assert.Contains(t, first.String(), "routed once")
		assert.Empty(t, second.String())
	})
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	logger := GetLogger()
	require.NotNil(t, logger, "uninitialized access returns a usable fallback")
}

func TestNewEncoderFormats(t *testing.T) {
	entry := zapcore.Entry{Message: "probe"}

	jsonBuf, err := newEncoder("json").EncodeEntry(entry, nil)
	require.NoError(t, err)
	assert.Contains(t, jsonBuf.String(), `"msg":"probe"`)

	consoleBuf, err := newEncoder("console").EncodeEntry(entry, nil)
	require.NoError(t, err)
	assert.Contains(t, consoleBuf.String(), "probe")
}
