package database

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	instrumentationName = "github.com/KOMKZ/go-yogan-bucket/database"
	spanInstanceKey     = "otel:span"
)

// OtelPlugin gorm 插件，每条语句一个 client span
type OtelPlugin struct {
	tracer    trace.Tracer
	traceSQL  bool
	sqlMaxLen int
}

func NewOtelPlugin(tp trace.TracerProvider) *OtelPlugin {
	return &OtelPlugin{
		tracer:    tp.Tracer(instrumentationName),
		sqlMaxLen: 1000,
	}
}

// WithTraceSQL 在 span 上记录 db.statement
func (p *OtelPlugin) WithTraceSQL(enabled bool) *OtelPlugin {
	p.traceSQL = enabled
	return p
}

func (p *OtelPlugin) WithSQLMaxLen(n int) *OtelPlugin {
	if n > 0 {
		p.sqlMaxLen = n
	}
	return p
}

func (p *OtelPlugin) Name() string {
	return "otel"
}

// Initialize 注册 create/query/update/delete/row/raw 回调
func (p *OtelPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("otel:before_create", p.before("create")),
		cb.Create().After("gorm:create").Register("otel:after_create", p.after),
		cb.Query().Before("gorm:query").Register("otel:before_query", p.before("query")),
		cb.Query().After("gorm:query").Register("otel:after_query", p.after),
		cb.Update().Before("gorm:update").Register("otel:before_update", p.before("update")),
		cb.Update().After("gorm:update").Register("otel:after_update", p.after),
		cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("delete")),
		cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after),
		cb.Row().Before("gorm:row").Register("otel:before_row", p.before("row")),
		cb.Row().After("gorm:row").Register("otel:after_row", p.after),
		cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("raw")),
		cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after),
	)
}

func (p *OtelPlugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		name := "gorm." + operation
		if db.Statement.Table != "" {
			name += " " + db.Statement.Table
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, span := p.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
		span.SetAttributes(
			attribute.String("db.system", db.Dialector.Name()),
			attribute.String("db.operation", operation),
		)
		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.table", db.Statement.Table))
		}

		db.Statement.Context = ctx
		db.InstanceSet(spanInstanceKey, span)
	}
}

func (p *OtelPlugin) after(db *gorm.DB) {
	v, ok := db.InstanceGet(spanInstanceKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if p.traceSQL {
		if sql := db.Statement.SQL.String(); sql != "" {
			if len(sql) > p.sqlMaxLen {
				sql = sql[:p.sqlMaxLen] + "..."
			}
			span.SetAttributes(attribute.String("db.statement", strings.TrimSpace(sql)))
		}
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
}
