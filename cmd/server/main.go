package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradeguard-go/cache"
	"tradeguard-go/config"
	"tradeguard-go/gateway"
	"tradeguard-go/infrastructure/logger"
	"tradeguard-go/internal/engine"
	"tradeguard-go/monitor"
	"tradeguard-go/preset"
	"tradeguard-go/server"

	"github.com/coreos/go-systemd/v22/daemon"
)

func main() {
	cfgPath := flag.String("config", "", "配置文件路径，留空用默认配置")
	addr := flag.String("addr", "", "覆盖监听地址")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.LoadWithEnvOverrides(*cfgPath)
		if err != nil {
			log.Fatalf("加载配置失败: %v", err)
		}
	} else if v := os.Getenv("TG_FINNHUB_KEY"); v != "" {
		cfg.Quotes.FinnhubKey = v
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logg, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Outputs: cfg.Log.Outputs,
		Format:  cfg.Log.Format,
	})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logg.Close()

	fetcher := gateway.NewFetcher(cfg.Quotes.Proxies)
	if cfg.Quotes.DirectTimeoutMs > 0 {
		fetcher.DirectTimeout = time.Duration(cfg.Quotes.DirectTimeoutMs) * time.Millisecond
	}
	if cfg.Quotes.ProxyTimeoutMs > 0 {
		fetcher.ProxyTimeout = time.Duration(cfg.Quotes.ProxyTimeoutMs) * time.Millisecond
	}
	router := &gateway.Router{
		Yahoo:   gateway.NewYahoo(fetcher),
		TWSE:    gateway.NewTWSE(fetcher),
		TPEX:    gateway.NewTPEX(fetcher),
		Finnhub: gateway.NewFinnhub(fetcher, cfg.Quotes.FinnhubKey),
		Taifex:  gateway.NewTaifex(fetcher),
		Limiter: gateway.NewSourceLimiter(cfg.Quotes.RateLimit, cfg.Quotes.RateBurst),
	}
	router.SetSources(cfg.Quotes.TWSource, cfg.Quotes.USSource)

	mon := monitor.New()
	store := cache.New(engine.CacheTTL(cfg), nil, cache.FileBlob{Path: cfg.Cache.Path})
	eng := engine.New(cfg, router, store, preset.NewRegistry(), mon, logg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		log.Fatalf("启动引擎失败: %v", err)
	}
	defer eng.Stop()

	// 开机先补一次保证金表与指数行情，失败不挡启动
	go func() {
		boot, bootCancel := context.WithTimeout(ctx, 60*time.Second)
		defer bootCancel()
		if _, err := eng.RefreshTaifexMargins(boot); err != nil {
			logg.Warn("启动时更新保证金表失败")
		}
		eng.RefreshAll(boot)
	}()

	// 配置热更新
	if *cfgPath != "" {
		watcher, err := config.NewWatcher(*cfgPath, config.DefaultWatchOptions())
		if err != nil {
			log.Fatalf("建立配置监听失败: %v", err)
		}
		watcher.SetHandler(eng.ApplyConfig)
		watcher.SetErrorHandler(func(err error) {
			logg.LogError(err, map[string]interface{}{"op": "config_watch"})
		})
		if err := watcher.Start(ctx); err != nil {
			log.Fatalf("启动配置监听失败: %v", err)
		}
		defer watcher.Stop()
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(eng, mon, logg).Handler(),
	}
	go func() {
		logg.Info("http listen " + cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.LogError(err, map[string]interface{}{"op": "http_listen"})
			cancel()
		}
	}()

	// systemd 整合：ready 通知 + watchdog 喂狗
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	go watchdogLoop(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.LogError(err, map[string]interface{}{"op": "http_shutdown"})
	}
}

func watchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
