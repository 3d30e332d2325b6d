package gateway

import (
	"context"
	"sync"

	"tradeguard-go/quote"
)

// Router picks the provider for each market and falls back to Yahoo
// when the preferred source cannot serve a symbol or an index.
type Router struct {
	Yahoo   *Yahoo
	TWSE    *TWSE
	TPEX    *TPEX
	Finnhub *Finnhub
	Taifex  *Taifex

	Limiter RateLimiter

	// 热更新会在抓取进行中改行情源，读写都得过锁
	mu       sync.RWMutex
	twSource string
	usSource string
}

// SetSources swaps the preferred providers. Safe to call while
// fetches are in flight.
func (r *Router) SetSources(tw, us string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.twSource, r.usSource = tw, us
}

// Sources returns the current preferred provider names.
func (r *Router) Sources() (tw, us string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.twSource, r.usSource
}

func (r *Router) providers() map[string]Provider {
	return map[string]Provider{
		"yahoo":   r.Yahoo,
		"twse":    r.TWSE,
		"tpex":    r.TPEX,
		"finnhub": r.Finnhub,
		"taifex":  r.Taifex,
	}
}

// ProviderFor 市场 → 行情源；未设定或设定无效时一律回雅虎。
func (r *Router) ProviderFor(market string) Provider {
	tw, us := r.Sources()
	var name string
	switch market {
	case "tw":
		name = tw
	case "us":
		name = us
	}
	if p, ok := r.providers()[name]; ok && p != nil {
		return p
	}
	return r.Yahoo
}

func (r *Router) wait(ctx context.Context, source string) error {
	if r.Limiter == nil {
		return nil
	}
	return r.Limiter.Wait(ctx, source)
}

// FetchIndex resolves an index key through the market's provider and
// retries via Yahoo when the provider fails or lacks the index. The
// returned name is the provider whose answer (or final error) this is.
func (r *Router) FetchIndex(ctx context.Context, key string) (quote.Quote, string, error) {
	market := quote.IndexMarket(key)
	p := r.ProviderFor(market)

	if sym, ok := p.IndexSymbol(key); ok {
		if err := r.wait(ctx, p.Name()); err != nil {
			return quote.Quote{}, p.Name(), err
		}
		q, err := p.FetchQuote(ctx, sym)
		if err == nil {
			return q, p.Name(), nil
		}
		if p.Name() == r.Yahoo.Name() {
			return quote.Quote{}, p.Name(), err
		}
	}
	sym, ok := r.Yahoo.IndexSymbol(key)
	if !ok {
		return quote.Quote{}, r.Yahoo.Name(), quote.ErrUnsupported
	}
	if err := r.wait(ctx, r.Yahoo.Name()); err != nil {
		return quote.Quote{}, r.Yahoo.Name(), err
	}
	q, err := r.Yahoo.FetchQuote(ctx, sym)
	return q, r.Yahoo.Name(), err
}

// FetchStock fetches one stock quote, retrying through Yahoo with
// Yahoo's own symbol format when the preferred source fails.
func (r *Router) FetchStock(ctx context.Context, code, market string) (quote.Quote, string, error) {
	p := r.ProviderFor(market)
	if err := r.wait(ctx, p.Name()); err != nil {
		return quote.Quote{}, p.Name(), err
	}
	q, err := p.FetchQuote(ctx, p.FormatSymbol(code, market))
	if err == nil {
		return q, p.Name(), nil
	}
	if p.Name() == r.Yahoo.Name() {
		return quote.Quote{}, p.Name(), err
	}
	if werr := r.wait(ctx, r.Yahoo.Name()); werr != nil {
		return quote.Quote{}, r.Yahoo.Name(), werr
	}
	q, yerr := r.Yahoo.FetchQuote(ctx, r.Yahoo.FormatSymbol(code, market))
	if yerr != nil {
		// 回传首选源的错误，后援失败不该盖掉原因
		return quote.Quote{}, p.Name(), err
	}
	return q, r.Yahoo.Name(), nil
}

// IndexResult 单一指数的抓取结果；Err 非 nil 表示这一档失败，
// 不影响其余指数。Provider 是实际供货的行情源。
type IndexResult struct {
	Quote    quote.Quote
	Provider string
	Err      error
}

// FetchAllIndices fans out over the requested keys concurrently.
func (r *Router) FetchAllIndices(ctx context.Context, keys []string) map[string]IndexResult {
	results := make(map[string]IndexResult, len(keys))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			q, served, err := r.FetchIndex(ctx, key)
			mu.Lock()
			results[key] = IndexResult{Quote: q, Provider: served, Err: err}
			mu.Unlock()
		}(key)
	}
	wg.Wait()
	return results
}
