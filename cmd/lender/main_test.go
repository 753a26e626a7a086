package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenderapp/lender/internal/config"
	"github.com/lenderapp/lender/internal/db"
	"github.com/lenderapp/lender/internal/notify"
)

func TestLevelRouterSplitsStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, cleanup, err := newLogger(config.LogConfig{Level: "info", Format: "text"}, &stdout, &stderr)
	require.NoError(t, err)
	defer cleanup()

	logger.Debug("hidden")
	logger.Info("hello", "k", "v")
	logger.Warn("careful")
	logger.Error("broken")

	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), "hello")
	assert.Contains(t, stdout.String(), "careful")
	assert.NotContains(t, stdout.String(), "broken")
	assert.Contains(t, stderr.String(), "broken")
}

func TestLoggerJSONAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lender.log")
	var stdout, stderr bytes.Buffer
	logger, cleanup, err := newLogger(config.LogConfig{Level: "debug", Format: "json", File: path}, &stdout, &stderr)
	require.NoError(t, err)

	logger.With("request_id", "abc").Debug("detail")
	logger.Error("broken")
	cleanup()

	assert.Contains(t, stdout.String(), `"request_id":"abc"`)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "detail")
	assert.Contains(t, string(data), "broken")
}

func TestNewSender(t *testing.T) {
	s, err := newSender(config.MailConfig{Driver: "log"})
	require.NoError(t, err)
	assert.IsType(t, notify.LogSender{}, s)

	s, err = newSender(config.MailConfig{Driver: "smtp", Host: "smtp.example.com", Port: 587, From: "a@example.com", TLS: "mandatory"})
	require.NoError(t, err)
	assert.IsType(t, &notify.SMTPSender{}, s)
}

func TestNewHandlerServesHealthAndMetrics(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	cfg, err := config.Load("")
	require.NoError(t, err)

	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	h := newHandler(cfg, db.NewTestDB(t), "main-test-secret-0123456789abcdef", notify.LogSender{})

	for _, path := range []string{"/healthz", "/metrics", "/api/items"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
