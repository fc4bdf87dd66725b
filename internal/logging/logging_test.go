package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewHonoursLevel(t *testing.T) {
	log, err := New("dev", "warn")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	_, err = New("prod", "loud")
	assert.Error(t, err)
}

func TestIsProduction(t *testing.T) {
	assert.True(t, IsProduction("production"))
	assert.True(t, IsProduction("PROD"))
	assert.False(t, IsProduction("dev"))
}
