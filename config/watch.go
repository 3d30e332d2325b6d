package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions 热更新配置
type WatchOptions struct {
	Enabled      bool
	CooldownTime time.Duration // 冷却时间，避免编辑器连续写入触发多次重载
}

func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Enabled:      true,
		CooldownTime: 5 * time.Second,
	}
}

// Watcher reloads the config file on change and hands the parsed
// result to the registered handler.
type Watcher struct {
	opts       WatchOptions
	configPath string
	watcher    *fsnotify.Watcher
	handler    func(AppConfig) error
	onError    func(error)
	lastReload time.Time
	mu         sync.Mutex
	stopChan   chan struct{}
	doneChan   chan struct{}
}

func NewWatcher(configPath string, opts WatchOptions) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		opts:       opts,
		configPath: configPath,
		watcher:    fw,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}, nil
}

// SetHandler 设置重载处理函数；收到的设定已通过 Validate。
func (w *Watcher) SetHandler(h func(AppConfig) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = h
}

// SetErrorHandler routes watch/reload errors, default is to drop them.
func (w *Watcher) SetErrorHandler(h func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = h
}

// Start 启动监听。未启用时为空操作。
func (w *Watcher) Start(ctx context.Context) error {
	if !w.opts.Enabled {
		return nil
	}
	if err := w.watcher.Add(w.configPath); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	go w.loop(ctx)
	return nil
}

// Stop 停止监听并关闭 watcher。
func (w *Watcher) Stop() error {
	if !w.opts.Enabled {
		if w.watcher != nil {
			return w.watcher.Close()
		}
		return nil
	}
	select {
	case <-w.stopChan:
	default:
		close(w.stopChan)
	}
	select {
	case <-w.doneChan:
	case <-time.After(1 * time.Second):
		// watch goroutine 可能没有启动
	}
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// 只处理写入和创建事件
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(fmt.Errorf("watcher: %w", err))
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if time.Since(w.lastReload) < w.opts.CooldownTime {
		return
	}
	cfg, err := LoadWithEnvOverrides(w.configPath)
	if err != nil {
		w.reportErrorLocked(fmt.Errorf("reload config: %w", err))
		return
	}
	if w.handler != nil {
		if err := w.handler(cfg); err != nil {
			w.reportErrorLocked(fmt.Errorf("apply config: %w", err))
			return
		}
	}
	w.lastReload = time.Now()
}

// LastReloadTime 获取最后一次成功重载的时间。
func (w *Watcher) LastReloadTime() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReload
}

func (w *Watcher) reportError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reportErrorLocked(err)
}

func (w *Watcher) reportErrorLocked(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
