package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func bufferedLogger(t *testing.T) (*zap.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	ws := &zapcore.BufferedWriteSyncer{WS: zapcore.AddSync(&buf), Size: 64 * 1024, FlushInterval: time.Hour}
	t.Cleanup(func() { _ = ws.Stop() })
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), ws, zap.DebugLevel)
	return zap.New(core), &buf
}

func TestExitCode_FlushesFailure(t *testing.T) {
	logger, buf := bufferedLogger(t)

	code := exitCode(logger, errors.New("listen tcp :8080: address already in use"))

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), `"msg":"server failed"`)
	assert.Contains(t, buf.String(), "address already in use")
}

func TestExitCode_CleanShutdown(t *testing.T) {
	logger, buf := bufferedLogger(t)
	logger.Info("server stopped")

	assert.Equal(t, 0, exitCode(logger, nil))
	assert.Contains(t, buf.String(), "server stopped")
	assert.NotContains(t, buf.String(), "server failed")
}
