package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures query spans.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include bound variables in db.statement
	SlowQueryThresh time.Duration
	DBName          string
}

type queryStartKey struct{}

// gormHook registers callbacks around one of gorm's built-in operations.
type gormHook struct {
	op     string
	before func(name string, fn func(*gorm.DB)) error
	after  func(name string, fn func(*gorm.DB)) error
}

// hook binds the Before/After builders of a gorm processor. After-callbacks are ordered
// ahead of otelgorm's so the query span is still recording when they run.
func hook[C interface {
	Register(string, func(*gorm.DB)) error
	Before(string) C
}](op string, before, after func(string) C) gormHook {
	anchor := "gorm:" + op
	return gormHook{
		op: op,
		before: func(name string, fn func(*gorm.DB)) error {
			return before(anchor).Register(name, fn)
		},
		after: func(name string, fn func(*gorm.DB)) error {
			return after(anchor).Before("otel:after:"+op).Register(name, fn)
		},
	}
}

func gormHooks(db *gorm.DB) []gormHook {
	cb := db.Callback()
	return []gormHook{
		hook("create", cb.Create().Before, cb.Create().After),
		hook("query", cb.Query().Before, cb.Query().After),
		hook("update", cb.Update().Before, cb.Update().After),
		hook("delete", cb.Delete().Before, cb.Delete().After),
		hook("row", cb.Row().Before, cb.Row().After),
		hook("raw", cb.Raw().Before, cb.Raw().After),
	}
}

// RegisterDBTracing installs otelgorm and a callback that annotates slow and failed queries.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	annotate := slowQueryAnnotator(cfg.SlowQueryThresh)
	for _, h := range gormHooks(db) {
		if err := h.before("cashdesk_trace:before_"+h.op, markQueryStart); err != nil {
			return err
		}
		if err := h.after("cashdesk_trace:after_"+h.op, annotate); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func queryElapsed(ctx context.Context) (time.Duration, bool) {
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

func slowQueryAnnotator(threshold time.Duration) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, db.Error.Error())
			span.RecordError(db.Error)
		}
		if elapsed, ok := queryElapsed(ctx); ok && threshold > 0 && elapsed > threshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("threshold_ms", threshold.Milliseconds()),
			))
		}
	}
}
