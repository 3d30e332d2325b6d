package gateway

import (
	"context"
	"fmt"

	"tradeguard-go/quote"
)

// TPEX fetches over-the-counter quotes via the shared MIS API, always
// with the otc_ exchange prefix.
type TPEX struct {
	BaseURL string
	Fetcher *Fetcher
	Clock   func() int64
}

func NewTPEX(f *Fetcher) *TPEX {
	return &TPEX{BaseURL: misBaseURL, Fetcher: f}
}

func (t *TPEX) Name() string { return "tpex" }

func (t *TPEX) FormatSymbol(code, market string) string {
	if numericCode.MatchString(code) {
		return fmt.Sprintf("otc_%s.tw", code)
	}
	return code
}

// IndexSymbol 柜买没有可用的指数快照。
func (t *TPEX) IndexSymbol(key string) (string, bool) {
	return "", false
}

func (t *TPEX) FetchQuote(ctx context.Context, symbol string) (quote.Quote, error) {
	ts := int64(0)
	if t.Clock != nil {
		ts = t.Clock()
	}
	u := fmt.Sprintf("%s/stock/api/getStockInfo.jsp?ex_ch=%s&_=%d", t.BaseURL, symbol, ts)
	body, err := t.Fetcher.Get(ctx, u)
	if err != nil {
		return quote.Quote{}, err
	}
	return misQuote(body, symbol)
}
