package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
)

type kv struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func sqliteConfig(t *testing.T) Config {
	return Config{
		Driver:       DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
}

func newTestManager(t *testing.T, configs map[string]Config, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), configs, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_Instances(t *testing.T) {
	m := newTestManager(t, map[string]Config{
		"master":  sqliteConfig(t),
		"replica": sqliteConfig(t),
	})

	assert.Equal(t, []string{"master", "replica"}, m.Names())
	assert.Nil(t, m.DB("missing"))

	db := m.DB("master")
	require.NotNil(t, db)
	require.NoError(t, db.AutoMigrate(&kv{}))
	require.NoError(t, db.Create(&kv{Key: "a", Value: "1"}).Error)

	var got kv
	require.NoError(t, db.First(&got, "key = ?", "a").Error)
	assert.Equal(t, "1", got.Value)

	// 连接之间互不影响
	assert.False(t, m.DB("replica").Migrator().HasTable(&kv{}))
	assert.NoError(t, m.Ping(context.Background()))
}

func TestNewManager_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewManager(ctx, map[string]Config{"bad": {Driver: "oracle", DSN: "x"}})
	assert.ErrorContains(t, err, "invalid database config bad")

	_, err = NewManager(ctx, map[string]Config{"missing_dir": {
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "no", "such", "dir", "x.db"),
	}})
	assert.ErrorContains(t, err, "open database missing_dir failed")
}

func TestManager_Close(t *testing.T) {
	m := newTestManager(t, map[string]Config{"master": sqliteConfig(t)})
	db := m.DB("master")

	require.NoError(t, m.Shutdown())
	assert.Empty(t, m.Names())
	assert.Error(t, db.Exec("SELECT 1").Error)
}

func TestManager_GormLogger(t *testing.T) {
	log, logs := logger.NewObservedLogger("sql")
	cfg := sqliteConfig(t)
	cfg.EnableLog = true
	cfg.EnableAudit = true

	m := newTestManager(t, map[string]Config{"master": cfg}, WithGormLoggerFactory(DefaultLoggerFactory(log)))
	require.NoError(t, m.DB("master").Exec("SELECT 1").Error)

	audited := logs.FilterMessage("SQL 执行").All()
	require.NotEmpty(t, audited)
	assert.Equal(t, zapcore.DebugLevel, audited[len(audited)-1].Level)
	assert.Equal(t, "SELECT 1", audited[len(audited)-1].ContextMap()["sql"])

	quiet := sqliteConfig(t)
	logs.TakeAll()
	m2 := newTestManager(t, map[string]Config{"quiet": quiet}, WithGormLoggerFactory(DefaultLoggerFactory(log)))
	require.NoError(t, m2.DB("quiet").Exec("SELECT 1").Error)
	assert.Zero(t, logs.Len())
}

func TestManager_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	cfg := sqliteConfig(t)
	cfg.TraceSQL = true
	m := newTestManager(t, map[string]Config{"master": cfg}, WithTracerProvider(tp))

	db := m.DB("master")
	require.NoError(t, db.AutoMigrate(&kv{}))
	before := len(recorder.Ended())

	require.NoError(t, db.Create(&kv{Key: "a", Value: "1"}).Error)
	var missing kv
	require.Error(t, db.First(&missing, "key = ?", "nope").Error)

	spans := recorder.Ended()[before:]
	require.Len(t, spans, 2)
	assert.Equal(t, "gorm.create kvs", spans[0].Name())
	assert.Equal(t, "gorm.query kvs", spans[1].Name())

	attrs := map[string]string{}
	for _, a := range spans[0].Attributes() {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	assert.Equal(t, "sqlite", attrs["db.system"])
	assert.Contains(t, attrs["db.statement"], "INSERT INTO")
	assert.Equal(t, "1", attrs["db.rows_affected"])

	// RecordNotFound 不标记为错误
	assert.Empty(t, spans[1].Events())
}
