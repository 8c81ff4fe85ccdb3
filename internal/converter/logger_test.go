package converter

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewConsoleLogger(t *testing.T) {
	logger, err := NewConsoleLogger("warn")
	require.NoError(t, err)
	require.False(t, logger.Sugar().Desugar().Core().Enabled(zapcore.InfoLevel))
	require.True(t, logger.Sugar().Desugar().Core().Enabled(zapcore.WarnLevel))

	_, err = NewConsoleLogger("chatty")
	require.Error(t, err)
}

func TestZapLoggerFormats(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core).Sugar())

	logger.Info("Converted %d document(s)", 2)
	logger.Warn("Document %d: %s", 1, "bad cUnid")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "Converted 2 document(s)", entries[0].Message)
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)

	require.Same(t, logger.Sugar(), loggerAsZap(logger))
	require.Nil(t, loggerAsZap(nil))
}
