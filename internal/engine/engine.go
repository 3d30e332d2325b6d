// Package engine wires the quote router, cache, presets and metrics
// into one component the HTTP server and CLIs drive.
package engine

import (
	"context"
	"sync"
	"time"

	"tradeguard-go/cache"
	"tradeguard-go/config"
	"tradeguard-go/futures"
	"tradeguard-go/gateway"
	"tradeguard-go/infrastructure/logger"
	"tradeguard-go/monitor"
	"tradeguard-go/options"
	"tradeguard-go/preset"
	"tradeguard-go/quote"
)

type Engine struct {
	router  *gateway.Router
	cache   *cache.Cache
	presets *preset.Registry
	mon     *monitor.Monitor
	log     *logger.Logger

	mu     sync.Mutex
	cfg    config.AppConfig
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

func New(cfg config.AppConfig, router *gateway.Router, c *cache.Cache, presets *preset.Registry, mon *monitor.Monitor, log *logger.Logger) *Engine {
	return &Engine{
		router:  router,
		cache:   c,
		presets: presets,
		mon:     mon,
		log:     log,
		cfg:     cfg,
	}
}

// CacheTTL 自动刷新时 TTL 跟随刷新周期，否则用后备值。
func CacheTTL(cfg config.AppConfig) time.Duration {
	if cfg.Quotes.AutoFetch && cfg.Quotes.RefreshIntervalSec > 0 {
		return time.Duration(cfg.Quotes.RefreshIntervalSec) * time.Second
	}
	return time.Duration(cfg.Cache.TTLFallbackMin) * time.Minute
}

func (e *Engine) Config() config.AppConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *Engine) Presets() *preset.Registry { return e.presets }

// Index returns one index quote, serving from cache inside the TTL.
func (e *Engine) Index(ctx context.Context, key string) (quote.Quote, error) {
	if q, ok := e.cache.GetIndex(key); ok {
		e.mon.RecordCache(true)
		return q, nil
	}
	e.mon.RecordCache(false)

	start := time.Now()
	q, served, err := e.router.FetchIndex(ctx, key)
	e.mon.RecordFetch(served, err, time.Since(start))
	if err != nil {
		e.log.LogError(err, map[string]interface{}{"op": "index", "key": key})
		return quote.Quote{}, err
	}
	if served != e.providerName(quote.IndexMarket(key)) {
		e.mon.RecordFallback()
	}
	e.cache.SetIndex(key, q)
	return q, nil
}

// StockQuote returns one stock quote, serving from cache inside the TTL.
func (e *Engine) StockQuote(ctx context.Context, code, market string) (quote.Quote, error) {
	if q, ok := e.cache.GetStock(market, code); ok {
		e.mon.RecordCache(true)
		return q, nil
	}
	e.mon.RecordCache(false)

	start := time.Now()
	q, served, err := e.router.FetchStock(ctx, code, market)
	e.mon.RecordFetch(served, err, time.Since(start))
	if err != nil {
		e.log.LogError(err, map[string]interface{}{"op": "stock", "code": code, "market": market})
		return quote.Quote{}, err
	}
	if served != e.providerName(market) {
		e.mon.RecordFallback()
	}
	e.cache.SetStock(market, code, q)
	return q, nil
}

func (e *Engine) providerName(market string) string {
	return e.router.ProviderFor(market).Name()
}

// RefreshAll fetches every configured index concurrently, caches the
// winners and persists the blob. Individual failures keep the stale
// entry; the error map is returned for the caller to surface.
func (e *Engine) RefreshAll(ctx context.Context) map[string]error {
	keys := e.Config().Quotes.Indices
	results := e.router.FetchAllIndices(ctx, keys)

	errs := make(map[string]error)
	for key, res := range results {
		if res.Err != nil {
			errs[key] = res.Err
			e.log.LogError(res.Err, map[string]interface{}{"op": "refresh", "key": key})
			continue
		}
		if res.Provider != e.providerName(quote.IndexMarket(key)) {
			e.mon.RecordFallback()
		}
		e.cache.SetIndex(key, res.Quote)
	}
	if err := e.cache.Save(); err != nil {
		e.log.LogError(err, map[string]interface{}{"op": "refresh_save"})
	}
	e.mon.RecordRefresh(time.Now())
	return errs
}

// AllIndices returns the cached indices regardless of freshness, so
// a restart shows the last known board immediately.
func (e *Engine) AllIndices() map[string]quote.Quote {
	return e.cache.AllIndices()
}

func (e *Engine) LastRefresh() time.Time {
	return e.cache.LastIndexTime()
}

// RefreshTaifexMargins pulls the exchange margin table and overlays
// it on the built-in contract presets.
func (e *Engine) RefreshTaifexMargins(ctx context.Context) (int, error) {
	rows, err := e.router.Taifex.FetchMargins(ctx)
	if err != nil {
		e.log.LogError(err, map[string]interface{}{"op": "taifex_margins"})
		return 0, err
	}
	applied := 0
	for _, row := range rows {
		code, ok := preset.TaifexContractNames[row.Contract]
		if !ok {
			continue
		}
		e.presets.UpdateMargin("tw", code, row.InitialMargin, row.MaintenanceMargin)
		e.presets.SetDataDate(row.Date)
		applied++
	}
	e.log.LogFetch("taifex", "margins", map[string]interface{}{"applied": applied})
	return applied, nil
}

// FuturesInput applies the configured stock futures margin rates when
// the per-lot margins are missing, deriving them from the spot price.
func (e *Engine) FuturesInput(in futures.Input, spot float64) futures.Input {
	if in.InitialMargin <= 0 && spot > 0 && in.Multiplier > 0 {
		cfg := e.Config()
		in.InitialMargin, in.MaintMargin = futures.MarginFromSpot(
			spot, in.Multiplier, cfg.Risk.StockFuturesIMRate, cfg.Risk.StockFuturesMMRate)
	}
	return in
}

// OptionsInput fills the configured seller margin ratios when the
// request leaves them unset.
func (e *Engine) OptionsInput(in options.Input) options.Input {
	cfg := e.Config()
	if in.RiskRatio <= 0 && cfg.Risk.SellerRiskRatio > 0 {
		in.RiskRatio = cfg.Risk.SellerRiskRatio
	}
	if in.MinRatio <= 0 && cfg.Risk.SellerMinRatio > 0 {
		in.MinRatio = cfg.Risk.SellerMinRatio
	}
	return in
}

// ApplyConfig swaps the live quote settings. The refresh ticker is
// torn down before re-arming so two loops never run at once.
func (e *Engine) ApplyConfig(cfg config.AppConfig) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg
	running := e.ticker != nil
	e.mu.Unlock()

	e.router.SetSources(cfg.Quotes.TWSource, cfg.Quotes.USSource)
	e.router.Finnhub.SetAPIKey(cfg.Quotes.FinnhubKey)

	e.cache.SetTTL(CacheTTL(cfg))

	if running {
		e.stopTicker()
		e.startTicker()
	}
	e.log.Info("config applied")
	return nil
}

// Start restores the cache and arms the auto-refresh loop.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.cache.Load(); err != nil {
		e.log.LogError(err, map[string]interface{}{"op": "cache_load"})
	}
	cfg := e.Config()
	if cfg.Quotes.AutoFetch && cfg.Quotes.RefreshIntervalSec > 0 {
		e.startTicker()
	}
	return nil
}

func (e *Engine) startTicker() {
	cfg := e.Config()
	if !cfg.Quotes.AutoFetch || cfg.Quotes.RefreshIntervalSec <= 0 {
		return
	}
	e.mu.Lock()
	if e.ticker != nil {
		e.mu.Unlock()
		return
	}
	e.ticker = time.NewTicker(time.Duration(cfg.Quotes.RefreshIntervalSec) * time.Second)
	e.stop = make(chan struct{})
	ticker, stop := e.ticker, e.stop
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				e.RefreshAll(ctx)
				cancel()
			}
		}
	}()
}

func (e *Engine) stopTicker() {
	e.mu.Lock()
	ticker, stop := e.ticker, e.stop
	e.ticker, e.stop = nil, nil
	e.mu.Unlock()
	if ticker != nil {
		ticker.Stop()
	}
	if stop != nil {
		close(stop)
	}
	e.wg.Wait()
}

// Stop tears down the refresh loop and flushes the cache.
func (e *Engine) Stop() {
	e.stopTicker()
	if err := e.cache.Save(); err != nil {
		e.log.LogError(err, map[string]interface{}{"op": "stop_save"})
	}
}
