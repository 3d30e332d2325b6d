package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"tradeguard-go/quote"
)

const misBaseURL = "https://mis.twse.com.tw"

// misItem MIS 行情栏位：z 成交价、y 昨收、c 代号、n 名称。
// 盘前或无成交时 z 为 "-"。
type misItem struct {
	Z string `json:"z"`
	Y string `json:"y"`
	C string `json:"c"`
	N string `json:"n"`
}

type misResp struct {
	MsgArray []misItem `json:"msgArray"`
}

func misParse(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// misQuote picks the first item with a live trade, falling back to the
// first row, and builds a quote from last price or previous close.
func misQuote(body []byte, symbol string) (quote.Quote, error) {
	var resp misResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return quote.Quote{}, fmt.Errorf("%w: mis decode: %v", quote.ErrNoData, err)
	}
	if len(resp.MsgArray) == 0 {
		return quote.Quote{}, fmt.Errorf("%w: mis empty for %s", quote.ErrNoData, symbol)
	}
	item := resp.MsgArray[0]
	for _, it := range resp.MsgArray {
		if it.Z != "" && it.Z != "-" {
			item = it
			break
		}
	}
	price := misParse(item.Z)
	prev := misParse(item.Y)
	if price <= 0 {
		price = prev
	}
	if price <= 0 {
		return quote.Quote{}, fmt.Errorf("%w: mis no price for %s", quote.ErrNoData, symbol)
	}
	if prev <= 0 {
		prev = price
	}

	q := quote.New(price, prev)
	q.Currency = "TWD"
	q.Name = item.N
	return q, nil
}

// TWSE fetches quotes from the exchange's MIS snapshot API.
type TWSE struct {
	BaseURL string
	Fetcher *Fetcher
	Clock   func() int64 // unix 毫秒，测试注入
}

func NewTWSE(f *Fetcher) *TWSE {
	return &TWSE{BaseURL: misBaseURL, Fetcher: f}
}

func (t *TWSE) Name() string { return "twse" }

// FormatSymbol 数字代码同时查上市与上柜，MIS 支持一次带多档。
func (t *TWSE) FormatSymbol(code, market string) string {
	if numericCode.MatchString(code) {
		return fmt.Sprintf("tse_%s.tw|otc_%s.tw", code, code)
	}
	return code
}

func (t *TWSE) IndexSymbol(key string) (string, bool) {
	if key == "taiex" {
		return "tse_t00.tw", true
	}
	return "", false
}

func (t *TWSE) FetchQuote(ctx context.Context, symbol string) (quote.Quote, error) {
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
