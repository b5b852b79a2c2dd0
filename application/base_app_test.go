package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/di"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T) di.ConfigOptions {
	t.Helper()
	previous := logger.SetManager(logger.NewManager(logger.DefaultManagerConfig()))
	t.Cleanup(func() { logger.SetManager(previous) })
	return di.ConfigOptions{ConfigFile: "testdata/config.yaml"}
}

func TestAppState_String(t *testing.T) {
	tests := []struct {
		state AppState
		want  string
	}{
		{StateInit, "Init"},
		{StateSetup, "Setup"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateStopped, "Stopped"},
		{AppState(99), "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestBaseApplication_Lifecycle(t *testing.T) {
	app, err := NewBase(testOptions(t))
	require.NoError(t, err)
	app.WithVersion("v1.2.3")
	assert.Equal(t, "v1.2.3", app.GetVersion())
	assert.Equal(t, StateInit, app.GetState())
	assert.Equal(t, []string{"testdata/config.yaml"}, app.ConfigLoader().GetLoadedFiles())

	var setupCalled, shutdownCalled bool
	app.OnSetup(func(b *BaseApplication) error {
		setupCalled = true
		assert.Equal(t, StateSetup, b.GetState())
		return nil
	})
	app.OnShutdown(func(ctx context.Context) error {
		shutdownCalled = true
		return nil
	})

	require.NoError(t, app.Setup())
	assert.True(t, setupCalled)

	lm, err := app.LimiterManager()
	require.NoError(t, err)
	assert.True(t, lm.IsEnabled())

	require.NoError(t, app.Shutdown(time.Second))
	assert.True(t, shutdownCalled)
	assert.Equal(t, StateStopped, app.GetState())
	assert.Error(t, app.Context().Err())
}

func TestBaseApplication_SetupCallbackError(t *testing.T) {
	app, err := NewBase(testOptions(t))
	require.NoError(t, err)
	defer app.Shutdown(time.Second)

	boom := errors.New("boom")
	app.OnSetup(func(*BaseApplication) error { return boom })

	err = app.Setup()
	assert.ErrorIs(t, err, boom)
}

func TestBaseApplication_InvalidLimiterConfig(t *testing.T) {
	opts := testOptions(t)
	opts.Overrides = map[string]interface{}{
		"limiter": map[string]interface{}{"store_type": "kafka"},
	}
	app, err := NewBase(opts)
	require.NoError(t, err)
	defer app.Shutdown(time.Second)

	assert.Error(t, app.Setup())
}

func TestNewBase_MissingConfigFile(t *testing.T) {
	_, err := NewBase(di.ConfigOptions{ConfigFile: "testdata/missing.yaml"})
	assert.Error(t, err)
}

func TestBaseApplication_WaitShutdownOnCancel(t *testing.T) {
	app, err := NewBase(testOptions(t))
	require.NoError(t, err)
	defer app.Shutdown(time.Second)

	done := make(chan struct{})
	go func() {
		app.WaitShutdown()
		close(done)
	}()
	app.Cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitShutdown did not return after Cancel")
	}
}
