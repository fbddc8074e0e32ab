package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevLevel, prevFmt := log.StandardLogger().Out, log.GetLevel(), log.StandardLogger().Formatter
	log.SetOutput(&buf)
	log.SetLevel(log.DebugLevel)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetLevel(prevLevel)
		log.SetFormatter(prevFmt)
	})
	return &buf
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc123")
	assert.Equal(t, "abc123", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))
}

func TestLoggerFields(t *testing.T) {
	buf := captureOutput(t)

	ctx := WithRequestID(context.Background(), "rid-1")
	NewLogger(ctx).With("remote_path", "a/b.txt").LogError("sync_file", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "request_id=rid-1")
	assert.Contains(t, out, "operation=sync_file")
	assert.Contains(t, out, "remote_path=a/b.txt")
	assert.Contains(t, out, "error=boom")
}

func TestLoggerUnknownRequestID(t *testing.T) {
	buf := captureOutput(t)

	NewLogger(context.Background()).LogInfof("list", "found %d", 3)
	assert.Contains(t, buf.String(), "request_id=unknown")
	assert.Contains(t, buf.String(), "found 3")
}

func TestConfigureLevel(t *testing.T) {
	prev := log.GetLevel()
	defer log.SetLevel(prev)

	Configure("warn", "development")
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	Configure("nonsense", "development")
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
