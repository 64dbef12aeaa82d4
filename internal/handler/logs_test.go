package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"weapondetection/internal/config"
	"weapondetection/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogsHandlers(t *testing.T) {
	cfg := config.Default()
	cfg.LogDirectory = t.TempDir()
	l, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	defer l.Close()

	l.Warning("camera %s offline", "door")
	l.Sync()

	rec := httptest.NewRecorder()
	ShowLogsHandler(l, logger.WarningFile)(rec, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "camera door offline")
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	ClearLogsHandler(l, logger.WarningFile)(rec, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	info, err := os.Stat(filepath.Join(cfg.LogDirectory, logger.WarningFile))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestShowLogsHandler_Missing(t *testing.T) {
	cfg := config.Default()
	cfg.LogDirectory = t.TempDir()
	l, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	defer l.Close()
	require.NoError(t, os.Remove(filepath.Join(cfg.LogDirectory, logger.ErrorFile)))

	rec := httptest.NewRecorder()
	ShowLogsHandler(l, logger.ErrorFile)(rec, httptest.NewRequest(http.MethodGet, "/logs/error", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginHandler(t *testing.T) {
	h := LoginHandler("secret", logger.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/auth/login?password=wrong", nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/login?password=secret", nil)
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEqual(t, "true", cookies[0].Value)

	rec = httptest.NewRecorder()
	LogoutHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}
