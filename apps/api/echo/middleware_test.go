package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	. "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
)

func withObservedLogs(logs **observer.ObservedLogs) appOption {
	return func(conf *core.Config, deps *ServerDeps) {
		zc, observed := observer.New(zapcore.DebugLevel)
		*logs = observed
		conf.Server.DisableReqLogs = false
		deps.Logger = logsvc.NewRollbarLogger(zap.New(zc), conf)
	}
}

func Test_requestLogger(t *testing.T) {
	var logs *observer.ObservedLogs
	app := setup(t, withObservedLogs(&logs))
	token := app.token(t, app.teacher(t, "dlevi"))

	tests := []struct {
		name      string
		path      string
		token     string
		requestID string
		wantCode  int
		wantLevel zapcore.Level
	}{
		{name: "ok", path: "/v1/teachers/me", token: token, wantCode: http.StatusOK, wantLevel: zapcore.InfoLevel},
		{name: "client error", path: "/v1/teachers/me", wantCode: http.StatusUnauthorized, wantLevel: zapcore.WarnLevel},
		{name: "not found", path: "/v1/nowhere", token: token, requestID: "abc-123", wantCode: http.StatusNotFound, wantLevel: zapcore.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs.TakeAll()

			req, rec := newAuthRequest(http.MethodGet, tt.path+"?x=1", tt.token)
			if tt.requestID != "" {
				req.Header.Set(echo.HeaderXRequestID, tt.requestID)
			}
			app.serve(req, rec)
			require.Equal(t, tt.wantCode, rec.Code)

			rid := rec.Header().Get(echo.HeaderXRequestID)
			if tt.requestID != "" {
				assert.Equal(t, tt.requestID, rid)
			} else {
				assert.Len(t, rid, 36) // uuid
			}

			entries := logs.FilterMessage("GET " + tt.path).AllUntimed()
			require.Len(t, entries, 1)
			entry := entries[0]
			assert.Equal(t, tt.wantLevel, entry.Level)

			fields := entry.ContextMap()
			assert.EqualValues(t, tt.wantCode, fields["status"])
			assert.Equal(t, "x=1", fields["query"])
			assert.Equal(t, rid, fields["request_id"])
		})
	}
}
