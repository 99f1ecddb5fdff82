package logger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestToZapFields(t *testing.T) {
	fields := toZapFields([]any{"url", "https://shop.test/p/1", "error", errors.New("boom"), "wait", time.Second, zap.Int("n", 3), "dangling"})
	require.Len(t, fields, 5)
	assert.Equal(t, "url", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
	assert.Equal(t, zapcore.ErrorType, fields[1].Type)
	assert.Equal(t, zapcore.DurationType, fields[2].Type)
	assert.Equal(t, "n", fields[3].Key)
	assert.Equal(t, "dangling", fields[4].Key)
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).WithComponent("driver").With("run", 7)

	log.Info("collection done", "url", "https://shop.test/c/a")

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "driver", ctx["component"])
	assert.EqualValues(t, 7, ctx["run"])
	assert.Equal(t, "https://shop.test/c/a", ctx["url"])
}

func TestNewRejectsUnknownEncoding(t *testing.T) {
	_, err := New(Config{Encoding: "xml"})
	require.Error(t, err)

	l, err := New(Config{Level: "debug", Encoding: "json"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
}
