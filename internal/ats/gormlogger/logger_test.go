package gormlogger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormLog "gorm.io/gorm/logger"
)

func newTestLogger(buf *bytes.Buffer) *GormLogger {
	return NewGormLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), 10*time.Millisecond, true)
}

func TestTraceError(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, errors.New("boom"))
	assert.Contains(t, buf.String(), "SQL error")
	assert.Contains(t, buf.String(), "boom")
}

func TestTraceNotFoundIsNotError(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, gorm.ErrRecordNotFound)
	assert.NotContains(t, buf.String(), "SQL error")
}

func TestTraceSlow(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)
	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Contains(t, buf.String(), "SLOW SQL")
}

func TestSilentMode(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf).LogMode(gormLog.Silent)
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, errors.New("boom"))
	l.Error(context.Background(), "x %d", 1)
	assert.Empty(t, buf.String())
}

func TestParamsFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)
	_, params := l.ParamsFilter(context.Background(), "SELECT ?", "secret")
	assert.Nil(t, params)

	l.ParameterizedQueries = false
	_, params = l.ParamsFilter(context.Background(), "SELECT ?", "secret")
	assert.Equal(t, []interface{}{"secret"}, params)
}
