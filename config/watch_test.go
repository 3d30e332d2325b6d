package config

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForConfig(t *testing.T, ch <-chan AppConfig) AppConfig {
	t.Helper()
	select {
	case cfg := <-ch:
		return cfg
	case <-time.After(3 * time.Second):
		t.Fatal("handler did not fire")
		return AppConfig{}
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "env: one\n")

	w, err := NewWatcher(path, WatchOptions{Enabled: true, CooldownTime: 50 * time.Millisecond})
	require.NoError(t, err)
	got := make(chan AppConfig, 4)
	w.SetHandler(func(cfg AppConfig) error {
		got <- cfg
		return nil
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// 监听建立需要一点时间
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("env: two\n"), 0o644))

	cfg := waitForConfig(t, got)
	assert.Equal(t, "two", cfg.Env)
	assert.False(t, w.LastReloadTime().IsZero())
}

func TestWatcherCooldownSuppresses(t *testing.T) {
	path := writeConfig(t, "env: one\n")

	w, err := NewWatcher(path, WatchOptions{Enabled: true, CooldownTime: 10 * time.Second})
	require.NoError(t, err)
	var calls atomic.Int32
	got := make(chan AppConfig, 4)
	w.SetHandler(func(cfg AppConfig) error {
		calls.Add(1)
		got <- cfg
		return nil
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("env: two\n"), 0o644))
	waitForConfig(t, got)

	// 冷却期内的第二次写入不触发重载
	require.NoError(t, os.WriteFile(path, []byte("env: three\n"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcherReportsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "env: one\n")

	w, err := NewWatcher(path, WatchOptions{Enabled: true, CooldownTime: 50 * time.Millisecond})
	require.NoError(t, err)
	var handled atomic.Int32
	w.SetHandler(func(AppConfig) error {
		handled.Add(1)
		return nil
	})
	errs := make(chan error, 4)
	w.SetErrorHandler(func(err error) { errs <- err })
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("quotes:\n  twSource: bloomberg\n"), 0o644))

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "twSource")
	case <-time.After(3 * time.Second):
		t.Fatal("error handler did not fire")
	}
	assert.Equal(t, int32(0), handled.Load(), "invalid config must not reach the handler")
	assert.True(t, w.LastReloadTime().IsZero())
}

func TestWatcherStop(t *testing.T) {
	path := writeConfig(t, "env: one\n")

	w, err := NewWatcher(path, WatchOptions{Enabled: true, CooldownTime: 50 * time.Millisecond})
	require.NoError(t, err)
	var calls atomic.Int32
	w.SetHandler(func(AppConfig) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())

	// 停止后的写入不再触发
	require.NoError(t, os.WriteFile(path, []byte("env: two\n"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	// 重复 Stop 要安全
	require.NoError(t, w.Stop())
}

func TestWatcherDisabled(t *testing.T) {
	path := writeConfig(t, "env: one\n")

	w, err := NewWatcher(path, WatchOptions{Enabled: false})
	require.NoError(t, err)
	var calls atomic.Int32
	w.SetHandler(func(AppConfig) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("env: two\n"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
	require.NoError(t, w.Stop())
}
