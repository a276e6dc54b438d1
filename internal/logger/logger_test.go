package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("console logger at default level", func(t *testing.T) {
		log, err := New(Options{})
		require.NoError(t, err)
		require.NotNil(t, log)
		assert.True(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
		assert.False(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("json logger honours level", func(t *testing.T) {
		log, err := New(Options{Level: "warn", JSON: true})
		require.NoError(t, err)
		assert.True(t, log.Desugar().Core().Enabled(zapcore.WarnLevel))
		assert.False(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := New(Options{Level: "chatty"})
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)
}

func TestComponentToleratesNil(t *testing.T) {
	log := Component(nil, "dispatcher")
	require.NotNil(t, log)
	log.Infow("discarded")
}
