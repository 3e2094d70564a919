package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, DebugLevel, ParseLevel("debug"))
	require.Equal(t, WarnLevel, ParseLevel(" WARN "))
	require.Equal(t, InfoLevel, ParseLevel("nonsense"))
	require.Equal(t, "ERROR", LogLevelToString(ParseLevel("error")))
}

func TestToZapLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, ToZapLevel(TraceLevel))
	require.Equal(t, zapcore.ErrorLevel, ToZapLevel(ErrorLevel))
	require.Equal(t, zapcore.DPanicLevel, ToZapLevel(FatalLevel))
}
