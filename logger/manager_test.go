package logger

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fileManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultManagerConfig()
	cfg.EnableConsole = false
	cfg.EnableFile = true
	cfg.Encoding = "json"
	cfg.BaseLogDir = dir
	m := NewManager(cfg)
	t.Cleanup(m.CloseAll)
	return m, dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestManager_LevelSeparation(t *testing.T) {
	m, dir := fileManager(t)
	log := m.GetLogger("limiter")

	log.Debug("debug message")
	log.Info("info message", zap.String("resource", "api"))
	log.Warn("warn message")
	log.Error("error message")
	m.CloseAll()

	info := readFile(t, filepath.Join(dir, "limiter", "limiter-info.log"))
	assert.Contains(t, info, "info message")
	assert.Contains(t, info, "warn message")
	assert.Contains(t, info, `"module":"limiter"`)
	assert.Contains(t, info, `"resource":"api"`)
	assert.NotContains(t, info, "debug message")
	assert.NotContains(t, info, "error message")

	errLog := readFile(t, filepath.Join(dir, "limiter", "limiter-error.log"))
	assert.Contains(t, errLog, "error message")
	assert.Contains(t, errLog, `"stack"`)
	assert.NotContains(t, errLog, "info message")
}

func TestManager_CachesPerModule(t *testing.T) {
	m, _ := fileManager(t)
	assert.Same(t, m.GetLogger("a"), m.GetLogger("a"))
	assert.NotSame(t, m.GetLogger("a"), m.GetLogger("b"))
	assert.Equal(t, "b", m.GetLogger("b").Module())
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m, _ := fileManager(t)

	var wg sync.WaitGroup
	loggers := make([]*CtxZapLogger, 50)
	for i := range loggers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loggers[i] = m.GetLogger("shared")
			loggers[i].Info("concurrent")
		}(i)
	}
	wg.Wait()

	for _, l := range loggers {
		assert.Same(t, loggers[0], l)
	}
}

func TestManager_NoOutputIsNop(t *testing.T) {
	cfg := DefaultManagerConfig()
	cfg.EnableConsole = false
	m := NewManager(cfg)
	assert.NotPanics(t, func() { m.GetLogger("quiet").Info("dropped") })
}

func TestManager_ReloadConfig(t *testing.T) {
	m, dir := fileManager(t)
	before := m.GetLogger("bucket")

	cfg := m.Config()
	cfg.Level = "debug"
	require.NoError(t, m.ReloadConfig(cfg))

	after := m.GetLogger("bucket")
	assert.NotSame(t, before, after)
	after.Debug("now visible")
	m.CloseAll()
	assert.Contains(t, readFile(t, filepath.Join(dir, "bucket", "bucket-info.log")), "now visible")

	cfg.Level = "loud"
	assert.Error(t, m.ReloadConfig(cfg))
	assert.Equal(t, "debug", m.Config().Level)
}

func TestGlobalManager(t *testing.T) {
	m, logs := NewObservedManager(zap.InfoLevel)
	prev := SetManager(m)
	t.Cleanup(func() { SetManager(prev) })

	GetLogger("global").Info("from global")
	require.Equal(t, 1, logs.FilterMessage("from global").Len())
	assert.Equal(t, "global", logs.All()[0].ContextMap()["module"])

	old := InitManager(DefaultManagerConfig())
	assert.Same(t, m, old)
	assert.NotSame(t, m.GetLogger("global"), GetLogger("global"))
}
