package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const sampleSQL = `SELECT * FROM "cash_sessions" WHERE site = 'north'`

func sqlFn() (string, int64) { return sampleSQL, 1 }

var _ gormlogger.Interface = (*GormLogger)(nil)

func TestGormLogger_LogModeClones(t *testing.T) {
	log, _ := newObserved()
	gl := NewGormLogger(log, gormlogger.Warn)

	info := gl.LogMode(gormlogger.Info).(*GormLogger)
	assert.Equal(t, gormlogger.Info, info.level)
	assert.Equal(t, gormlogger.Warn, gl.level)
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()

	t.Run("error", func(t *testing.T) {
		log, logs := newObserved()
		NewGormLogger(log, gormlogger.Warn).Trace(ctx, time.Now(), sqlFn, errors.New("connection reset"))

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
		assert.Equal(t, "gorm", entry.LoggerName)
		assert.Equal(t, sampleSQL, entry.ContextMap()["sql"])
	})

	t.Run("record not found is silent by default", func(t *testing.T) {
		log, logs := newObserved()
		NewGormLogger(log, gormlogger.Warn).Trace(ctx, time.Now(), sqlFn, gorm.ErrRecordNotFound)
		assert.Zero(t, logs.Len())

		NewGormLogger(log, gormlogger.Warn, WithRecordNotFound()).Trace(ctx, time.Now(), sqlFn, gorm.ErrRecordNotFound)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("slow", func(t *testing.T) {
		log, logs := newObserved()
		gl := NewGormLogger(log, gormlogger.Warn, WithSlowThreshold(10*time.Millisecond))
		gl.Trace(ctx, time.Now().Add(-50*time.Millisecond), sqlFn, nil)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
		assert.Contains(t, logs.All()[0].Message, "slow sql")
	})

	t.Run("fast query below info is dropped", func(t *testing.T) {
		log, logs := newObserved()
		called := false
		NewGormLogger(log, gormlogger.Warn).Trace(ctx, time.Now(), func() (string, int64) {
			called = true
			return sampleSQL, 1
		}, nil)
		assert.Zero(t, logs.Len())
		assert.False(t, called)
	})

	t.Run("info logs every statement at debug", func(t *testing.T) {
		log, logs := newObserved()
		NewGormLogger(log, gormlogger.Info).Trace(ctx, time.Now(), sqlFn, nil)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
	})

	t.Run("silent", func(t *testing.T) {
		log, logs := newObserved()
		NewGormLogger(log, gormlogger.Silent).Trace(ctx, time.Now(), sqlFn, errors.New("x"))
		assert.Zero(t, logs.Len())
	})
}

func TestGormLogger_ContextFields(t *testing.T) {
	log, logs := newObserved()
	ctx, _ := WithRequestID(context.Background(), log, "req-7")
	ctx, _ = WithSite(ctx, log, "south")

	NewGormLogger(log, gormlogger.Info).Trace(ctx, time.Now(), sqlFn, nil)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-7", fields[FieldRequestID])
	assert.Equal(t, "south", fields[FieldSite])
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("anything"))
}
