package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tradeguard-go/quote"
)

const (
	taifexMISBaseURL  = "https://mis.taifex.com.tw"
	taifexOpenBaseURL = "https://openapi.taifex.com.tw"

	SessionDay   = "day"
	SessionNight = "night"
)

var taipei = mustLoadTaipei()

func mustLoadTaipei() *time.Location {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// Taifex fetches futures quotes from the exchange snapshot API and the
// margin table from its open-data API.
type Taifex struct {
	MISBaseURL  string
	OpenBaseURL string
	Fetcher     *Fetcher
	Clock       func() time.Time
}

func NewTaifex(f *Fetcher) *Taifex {
	return &Taifex{
		MISBaseURL:  taifexMISBaseURL,
		OpenBaseURL: taifexOpenBaseURL,
		Fetcher:     f,
		Clock:       time.Now,
	}
}

func (t *Taifex) Name() string { return "taifex" }

func (t *Taifex) now() time.Time {
	if t.Clock != nil {
		return t.Clock().In(taipei)
	}
	return time.Now().In(taipei)
}

// Session 依台北时间判定盘别：日盘 08:45–13:45，其余时间视为夜盘
// （夜盘 15:00 开到次日 05:00，空窗期也查夜盘留下最后成交价）。
func (t *Taifex) Session() string {
	now := t.now()
	mins := now.Hour()*60 + now.Minute()
	if mins >= 8*60+45 && mins <= 13*60+45 {
		return SessionDay
	}
	return SessionNight
}

// FormatSymbol 合约代码加盘别后缀：日盘 -F、夜盘 -M。
func (t *Taifex) FormatSymbol(code, market string) string {
	if strings.Contains(code, "-") {
		return code
	}
	if t.Session() == SessionDay {
		return code + "-F"
	}
	return code + "-M"
}

func (t *Taifex) IndexSymbol(key string) (string, bool) {
	if key == "taiex" {
		return t.FormatSymbol("TXF", "tw"), true
	}
	return "", false
}

type taifexQuoteResp struct {
	RtData struct {
		QuoteList []struct {
			SymbolID   string `json:"SymbolID"`
			CLastPrice string `json:"CLastPrice"`
			CRefPrice  string `json:"CRefPrice"`
			CDate      string `json:"CDate"`
			CTime      string `json:"CTime"`
		} `json:"QuoteList"`
	} `json:"RtData"`
}

func (t *Taifex) FetchQuote(ctx context.Context, symbol string) (quote.Quote, error) {
	u := fmt.Sprintf("%s/futures/api/getQuoteList?SymbolID=%s", t.MISBaseURL, symbol)
	body, err := t.Fetcher.Get(ctx, u)
	if err != nil {
		return quote.Quote{}, err
	}

	var resp taifexQuoteResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return quote.Quote{}, fmt.Errorf("%w: taifex decode: %v", quote.ErrNoData, err)
	}
	for _, item := range resp.RtData.QuoteList {
		if !strings.HasPrefix(item.SymbolID, symbol) {
			continue
		}
		price := misParse(item.CLastPrice)
		prev := misParse(item.CRefPrice)
		if price <= 0 {
			price = prev
		}
		if price <= 0 {
			break
		}
		if prev <= 0 {
			prev = price
		}
		q := quote.New(price, prev)
		q.Currency = "TWD"
		q.Name = item.SymbolID
		q.SourceTime = parseCompactTime(item.CDate, item.CTime)
		if strings.HasSuffix(item.SymbolID, "-M") {
			q.Session = SessionNight
		} else {
			q.Session = SessionDay
		}
		return q, nil
	}
	return quote.Quote{}, fmt.Errorf("%w: taifex no instrument %s", quote.ErrNoData, symbol)
}

// parseCompactTime 解析 "20260829" + "094512" 形式的时间戳。
func parseCompactTime(date, clock string) time.Time {
	if len(date) != 8 || len(clock) != 6 {
		return time.Time{}
	}
	ts, err := time.ParseInLocation("20060102150405", date+clock, taipei)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// MarginRow 交易所公告的单一合约保证金。
type MarginRow struct {
	Contract          string
	InitialMargin     float64
	MaintenanceMargin float64
	Date              string
}

type taifexMarginItem struct {
	Contract          string `json:"Contract"`
	InitialMargin     string `json:"InitialMargin"`
	MaintenanceMargin string `json:"MaintenanceMargin"`
	Date              string `json:"Date"`
}

// FetchMargins downloads the current index futures and options margin
// table from the open-data API. Amounts arrive comma-grouped.
func (t *Taifex) FetchMargins(ctx context.Context) ([]MarginRow, error) {
	u := t.OpenBaseURL + "/v1/IndexFuturesAndOptionsMargining"
	body, err := t.Fetcher.Get(ctx, u)
	if err != nil {
		return nil, err
	}

	var items []taifexMarginItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: taifex margin decode: %v", quote.ErrNoData, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: taifex margin table empty", quote.ErrNoData)
	}

	rows := make([]MarginRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, MarginRow{
			Contract:          it.Contract,
			InitialMargin:     parseGrouped(it.InitialMargin),
			MaintenanceMargin: parseGrouped(it.MaintenanceMargin),
			Date:              it.Date,
		})
	}
	return rows, nil
}

func parseGrouped(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
