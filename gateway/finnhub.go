package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"tradeguard-go/quote"
)

const finnhubBaseURL = "https://finnhub.io"

// Finnhub 没有指数行情，免费层以代表性 ETF 代替。
var finnhubIndexSymbols = map[string]string{
	"sp500":  "SPY",
	"nasdaq": "QQQ",
	"dow":    "DIA",
	"sox":    "SOXX",
}

// Finnhub fetches US quotes. Requests always go direct so the API key
// never transits a relay.
type Finnhub struct {
	BaseURL string
	Fetcher *Fetcher

	// 热更新会换 key，抓取中读到旧 key 没关系，读写撕裂不行
	mu     sync.RWMutex
	apiKey string
}

func NewFinnhub(f *Fetcher, apiKey string) *Finnhub {
	return &Finnhub{BaseURL: finnhubBaseURL, apiKey: apiKey, Fetcher: f}
}

// SetAPIKey swaps the key. Safe against in-flight fetches.
func (fh *Finnhub) SetAPIKey(key string) {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	fh.apiKey = key
}

func (fh *Finnhub) key() string {
	fh.mu.RLock()
	defer fh.mu.RUnlock()
	return fh.apiKey
}

func (fh *Finnhub) Name() string { return "finnhub" }

func (fh *Finnhub) FormatSymbol(code, market string) string { return code }

func (fh *Finnhub) IndexSymbol(key string) (string, bool) {
	s, ok := finnhubIndexSymbols[key]
	return s, ok
}

type finnhubResp struct {
	C  float64 `json:"c"`  // current
	PC float64 `json:"pc"` // previous close
	D  float64 `json:"d"`  // change
	DP float64 `json:"dp"` // change percent
}

func (fh *Finnhub) FetchQuote(ctx context.Context, symbol string) (quote.Quote, error) {
	key := fh.key()
	if key == "" {
		return quote.Quote{}, fmt.Errorf("%w: finnhub api key", quote.ErrMissingKey)
	}
	u := fmt.Sprintf("%s/api/v1/quote?symbol=%s&token=%s",
		fh.BaseURL, url.QueryEscape(symbol), url.QueryEscape(key))
	body, err := fh.Fetcher.GetDirect(ctx, u)
	if err != nil {
		return quote.Quote{}, err
	}

	var resp finnhubResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return quote.Quote{}, fmt.Errorf("%w: finnhub decode: %v", quote.ErrNoData, err)
	}
	// 未知代号时 finnhub 回全零而不是错误
	if resp.C == 0 {
		return quote.Quote{}, fmt.Errorf("%w: finnhub unknown symbol %s", quote.ErrNoData, symbol)
	}

	prev := resp.PC
	if prev <= 0 {
		prev = resp.C - resp.D
	}
	q := quote.New(resp.C, prev)
	q.Currency = "USD"
	q.Name = symbol
	return q, nil
}
