package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestInit(t *testing.T) {
	assert.NotNil(t, Log())

	assert.NoError(t, Init("development", "debug"))
	assert.True(t, Log().Core().Enabled(zapcore.DebugLevel))

	assert.NoError(t, Init("production", "warn"))
	assert.False(t, Log().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, S().Desugar().Core().Enabled(zapcore.WarnLevel))

	assert.Error(t, Init("verbose", ""))
	assert.Error(t, Init("production", "loud"))
	Sync()
}
