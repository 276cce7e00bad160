package log

import (
	"testing"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/conf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewZapLogger(t *testing.T) {
	logger, err := NewZapLogger(&conf.Log{Level: "info", Format: "json", Env: "production"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("startup check")
}

func TestNewZapLogger_NilConfig(t *testing.T) {
	_, err := NewZapLogger(nil)
	assert.Error(t, err)
}

func TestNewZapLogger_InvalidLevel(t *testing.T) {
	_, err := NewZapLogger(&conf.Log{Level: "verbose", Format: "json"})
	assert.Error(t, err)
}

func TestNewZapLogger_ConsoleFormat(t *testing.T) {
	logger, err := NewZapLogger(&conf.Log{Level: "debug", Format: "console", Env: "development"})
	require.NoError(t, err)
	logger.Debug("console encoder check")
}

func TestGenerateRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		assert.Len(t, id, 10)
		assert.False(t, seen[id], "request IDs should not repeat")
		seen[id] = true
	}
}
