package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLogLevels(t *testing.T) {
	for _, level := range []int{TraceLevel, DebugLevel, InfoLevel, WarnLevel, ErrorLevel, FatalLevel} {
		parsed, err := StringToLogLevel(LogLevelToString(level))
		require.Nil(t, err)
		require.Equal(t, level, parsed)
	}
	_, err := StringToLogLevel("loud")
	require.NotNil(t, err)
	require.Equal(t, zapcore.DebugLevel, ZapLevel(TraceLevel))
	require.Equal(t, zapcore.WarnLevel, ZapLevel(WarnLevel))
}

func TestNew(t *testing.T) {
	logger, err := New(Config{Level: WarnLevel, Encoding: "json"})
	require.Nil(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
