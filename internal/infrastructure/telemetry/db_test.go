package telemetry_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/clinicdesk/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type counterRow struct {
	ID    uint `gorm:"primaryKey"`
	Site  string
	Value int
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "telemetry.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&counterRow{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestRegisterDBTracing_RecordsQuerySpans(t *testing.T) {
	recorder := installRecorder(t)
	db := newTestDB(t)

	require.NoError(t, telemetry.RegisterDBTracing(db, telemetry.DBTracingConfig{
		Enabled:         true,
		SlowQueryThresh: time.Nanosecond,
		DBName:          "cashdesk",
	}, zaptest.NewLogger(t)))

	ctx, parent := telemetry.StartSpan(context.Background(), "test")
	require.NoError(t, db.WithContext(ctx).Create(&counterRow{Site: "downtown", Value: 1}).Error)
	var rows []counterRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
	parent.End()

	var sawSlow bool
	var dbSpans int
	for _, s := range recorder.Ended() {
		if s.Name() == "test" {
			continue
		}
		dbSpans++
		if v, ok := attrValue(s.Attributes(), "db.slow_query"); ok && v.AsBool() {
			sawSlow = true
		}
	}
	assert.GreaterOrEqual(t, dbSpans, 2)
	assert.True(t, sawSlow)
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, telemetry.RegisterDBTracing(db, telemetry.DBTracingConfig{}, zaptest.NewLogger(t)))
	assert.Nil(t, db.Callback().Query().Get("cashdesk_trace:after_query"))
}

func TestRegisterDBMetrics(t *testing.T) {
	mp, reader := newTestMeterProvider(t)
	db := newTestDB(t)

	m, err := telemetry.RegisterDBMetrics(db, mp, time.Nanosecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, m)
	t.Cleanup(func() { _ = m.Stop() })

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&counterRow{Site: "north", Value: 2}).Error)
	var row counterRow
	require.NoError(t, db.WithContext(ctx).First(&row).Error)
	require.NoError(t, db.WithContext(ctx).Exec("UPDATE counter_rows SET value = value + 1").Error)

	rm := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, rm, "db_query_total", telemetry.AttrDBOperation.String("INSERT")))
	assert.Equal(t, int64(1), sumFor(t, rm, "db_query_total", telemetry.AttrDBOperation.String("SELECT")))
	assert.Equal(t, int64(1), sumFor(t, rm, "db_query_total", telemetry.AttrDBOperation.String("UPDATE")))
	assert.Equal(t, int64(3), sumFor(t, rm, "db_slow_query_total"))

	pool, ok := findMetric(rm, "db_pool_connections")
	require.True(t, ok)
	gauge := pool.Data.(metricdata.Gauge[int64])
	assert.Len(t, gauge.DataPoints, 3)
}

func TestRegisterDBMetrics_DisabledProvider(t *testing.T) {
	db := newTestDB(t)
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	m, err := telemetry.RegisterDBMetrics(db, mp, 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, m)
}
