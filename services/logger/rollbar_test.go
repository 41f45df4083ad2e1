package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/teacher"
)

func newObservedLogger(t *testing.T) (*RollbarLogger, *observer.ObservedLogs) {
	t.Helper()
	obsCore, logs := observer.New(zapcore.DebugLevel)
	l := NewNopLogger()
	l.zl = zap.New(obsCore)
	return l, logs
}

func TestRollbarLogger_Fields(t *testing.T) {
	l, logs := newObservedLogger(t)
	tchr := teacher.Teacher{ID: 7, Username: "dlevi", Email: "dlevi@school.test"}

	l.Warn("clamped", map[string]interface{}{"date": "2024-03-01"}, tchr, errors.New("boom"), tchr)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "clamped", entry.Message)

	ctx := entry.ContextMap()
	assert.Equal(t, "2024-03-01", ctx["date"])
	assert.EqualValues(t, 7, ctx["teacher_id"])
	assert.Equal(t, "dlevi", ctx["username"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestRollbarLogger_Levels(t *testing.T) {
	l, logs := newObservedLogger(t)

	l.Debug("d")
	l.Info("i")
	l.Error("e")

	levels := make([]zapcore.Level, 0, logs.Len())
	for _, e := range logs.All() {
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.ErrorLevel}, levels)
}

func TestNewZapLogger(t *testing.T) {
	conf := core.NewTestConfig()
	zl, err := NewZapLogger(conf)
	require.NoError(t, err)
	assert.NotNil(t, zl)
}
