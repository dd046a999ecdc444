package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := New(Config{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New(Config{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	assert.Error(t, err)

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	fallback := zap.New(core)

	FromContext(context.Background(), fallback).Info("fallback")
	assert.Equal(t, 1, logs.FilterMessage("fallback").Len())

	core2, logs2 := observer.New(zap.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core2))
	FromContext(ctx, fallback).Info("carried")
	assert.Equal(t, 1, logs2.FilterMessage("carried").Len())
	assert.Equal(t, 0, logs.FilterMessage("carried").Len())

	assert.NotNil(t, FromContext(context.Background(), nil))
}
