package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"tradeguard-go/quote"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// 雅虎指数代号；台股以外的国际指数只有雅虎有。
var yahooIndexSymbols = map[string]string{
	"taiex":    "^TWII",
	"sp500":    "^GSPC",
	"nasdaq":   "^IXIC",
	"dow":      "^DJI",
	"sox":      "^SOX",
	"nikkei":   "^N225",
	"kospi":    "^KS11",
	"shanghai": "000001.SS",
	"hsi":      "^HSI",
}

var numericCode = regexp.MustCompile(`^\d{4,6}[A-Z]?$`)

// Yahoo fetches quotes from the Yahoo Finance chart API.
type Yahoo struct {
	BaseURL string
	Fetcher *Fetcher
}

func NewYahoo(f *Fetcher) *Yahoo {
	return &Yahoo{BaseURL: yahooBaseURL, Fetcher: f}
}

func (y *Yahoo) Name() string { return "yahoo" }

// FormatSymbol 台股数字代码补 .TW 后缀，其余原样。
func (y *Yahoo) FormatSymbol(code, market string) string {
	if market == "tw" && numericCode.MatchString(code) {
		return code + ".TW"
	}
	return code
}

func (y *Yahoo) IndexSymbol(key string) (string, bool) {
	s, ok := yahooIndexSymbols[key]
	return s, ok
}

type yahooChartResp struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
				Currency           string  `json:"currency"`
				ShortName          string  `json:"shortName"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

func (y *Yahoo) FetchQuote(ctx context.Context, symbol string) (quote.Quote, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=1d&interval=1d", y.BaseURL, symbol)
	body, err := y.Fetcher.Get(ctx, u)
	if err != nil {
		return quote.Quote{}, err
	}

	var resp yahooChartResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return quote.Quote{}, fmt.Errorf("%w: yahoo decode: %v", quote.ErrNoData, err)
	}
	if len(resp.Chart.Result) == 0 {
		return quote.Quote{}, fmt.Errorf("%w: yahoo empty result for %s", quote.ErrNoData, symbol)
	}
	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return quote.Quote{}, fmt.Errorf("%w: yahoo price missing for %s", quote.ErrNoData, symbol)
	}
	prev := meta.ChartPreviousClose
	if prev <= 0 {
		prev = meta.PreviousClose
	}
	if prev <= 0 {
		prev = meta.RegularMarketPrice
	}

	q := quote.New(meta.RegularMarketPrice, prev)
	q.Currency = meta.Currency
	q.Name = meta.ShortName
	return q, nil
}
