package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tradeguard-go/quote"
)

func newTestFetcher(ts *httptest.Server) *Fetcher {
	return &Fetcher{Client: ts.Client()}
}

func TestYahooFetchQuote(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/v8/finance/chart/2330.TW") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `{"chart":{"result":[{"meta":{
			"regularMarketPrice":1005,
			"chartPreviousClose":1000,
			"currency":"TWD",
			"shortName":"TSMC"}}]}}`)
	}))
	defer ts.Close()

	y := &Yahoo{BaseURL: ts.URL, Fetcher: newTestFetcher(ts)}
	q, err := y.FetchQuote(context.Background(), y.FormatSymbol("2330", "tw"))
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if q.Price != 1005 || q.PrevClose != 1000 {
		t.Fatalf("unexpected quote %+v", q)
	}
	if q.Change != 5 || q.ChangePct != 0.5 {
		t.Fatalf("derived fields wrong %+v", q)
	}
	if q.Name != "TSMC" || q.Currency != "TWD" {
		t.Fatalf("meta fields wrong %+v", q)
	}
}

func TestYahooEmptyResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"chart":{"result":[]}}`)
	}))
	defer ts.Close()

	y := &Yahoo{BaseURL: ts.URL, Fetcher: newTestFetcher(ts)}
	_, err := y.FetchQuote(context.Background(), "NOPE")
	if !errors.Is(err, quote.ErrNoData) {
		t.Fatalf("want ErrNoData, got %v", err)
	}
}

func TestTWSEPicksLiveRow(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "ex_ch=") {
			t.Fatalf("missing ex_ch in %s", r.URL.RawQuery)
		}
		io.WriteString(w, `{"msgArray":[
			{"z":"-","y":"99","c":"2330","n":"台積電"},
			{"z":"101","y":"100","c":"2330","n":"台積電"}]}`)
	}))
	defer ts.Close()

	tw := &TWSE{BaseURL: ts.URL, Fetcher: newTestFetcher(ts)}
	q, err := tw.FetchQuote(context.Background(), tw.FormatSymbol("2330", "tw"))
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if q.Price != 101 || q.PrevClose != 100 {
		t.Fatalf("should use the row with a live trade, got %+v", q)
	}
}

func TestTWSEFallsBackToPrevClose(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"msgArray":[{"z":"-","y":"100","c":"2330","n":"台積電"}]}`)
	}))
	defer ts.Close()

	tw := &TWSE{BaseURL: ts.URL, Fetcher: newTestFetcher(ts)}
	q, err := tw.FetchQuote(context.Background(), "tse_2330.tw")
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if q.Price != 100 || q.Change != 0 {
		t.Fatalf("pre-open quote wrong %+v", q)
	}
}

func TestTWSESymbolFormat(t *testing.T) {
	tw := &TWSE{}
	if got := tw.FormatSymbol("2330", "tw"); got != "tse_2330.tw|otc_2330.tw" {
		t.Fatalf("unexpected symbol %s", got)
	}
	tp := &TPEX{}
	if got := tp.FormatSymbol("5483", "tw"); got != "otc_5483.tw" {
		t.Fatalf("unexpected otc symbol %s", got)
	}
}

func TestFinnhubRequiresKey(t *testing.T) {
	fh := &Finnhub{Fetcher: &Fetcher{}}
	_, err := fh.FetchQuote(context.Background(), "AAPL")
	if !errors.Is(err, quote.ErrMissingKey) {
		t.Fatalf("want ErrMissingKey, got %v", err)
	}
}

func TestFinnhubQuote(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "k" {
			t.Fatalf("missing token")
		}
		io.WriteString(w, `{"c":200,"pc":195,"d":5,"dp":2.56}`)
	}))
	defer ts.Close()

	fh := NewFinnhub(newTestFetcher(ts), "k")
	fh.BaseURL = ts.URL
	q, err := fh.FetchQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if q.Price != 200 || q.PrevClose != 195 {
		t.Fatalf("unexpected quote %+v", q)
	}
}

func TestFinnhubSetAPIKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "fresh" {
			t.Fatalf("token = %q, want fresh", r.URL.Query().Get("token"))
		}
		io.WriteString(w, `{"c":200,"pc":195}`)
	}))
	defer ts.Close()

	fh := NewFinnhub(newTestFetcher(ts), "")
	fh.BaseURL = ts.URL
	if _, err := fh.FetchQuote(context.Background(), "AAPL"); !errors.Is(err, quote.ErrMissingKey) {
		t.Fatalf("want ErrMissingKey before key is set, got %v", err)
	}

	fh.SetAPIKey("fresh")
	if _, err := fh.FetchQuote(context.Background(), "AAPL"); err != nil {
		t.Fatalf("fetch after SetAPIKey: %v", err)
	}
}

func TestFinnhubZeroPriceIsNoData(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"c":0,"pc":0}`)
	}))
	defer ts.Close()

	fh := NewFinnhub(newTestFetcher(ts), "k")
	fh.BaseURL = ts.URL
	_, err := fh.FetchQuote(context.Background(), "NOPE")
	if !errors.Is(err, quote.ErrNoData) {
		t.Fatalf("want ErrNoData, got %v", err)
	}
}

func TestFetcherProxyFallback(t *testing.T) {
	upstream := "https://unreachable.invalid/data"
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, _ := url.QueryUnescape(strings.TrimPrefix(r.URL.RawQuery, "u="))
		if target != upstream {
			t.Fatalf("proxy got %q", target)
		}
		io.WriteString(w, "ok")
	}))
	defer proxy.Close()

	f := &Fetcher{
		Client:        proxy.Client(),
		Proxies:       []string{proxy.URL + "/?u="},
		DirectTimeout: 200 * time.Millisecond,
	}
	body, err := f.Get(context.Background(), upstream)
	if err != nil {
		t.Fatalf("get err: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestFetcherAllPathsFail(t *testing.T) {
	f := &Fetcher{
		Client:        &http.Client{Timeout: 200 * time.Millisecond},
		Proxies:       []string{"https://also.invalid/?u="},
		DirectTimeout: 200 * time.Millisecond,
		ProxyTimeout:  200 * time.Millisecond,
	}
	_, err := f.Get(context.Background(), "https://unreachable.invalid/x")
	if !errors.Is(err, quote.ErrConnectivity) {
		t.Fatalf("want ErrConnectivity, got %v", err)
	}
}

func TestTaifexSessionAndSuffix(t *testing.T) {
	at := func(h, m int) func() time.Time {
		return func() time.Time {
			return time.Date(2026, 3, 2, h, m, 0, 0, taipei)
		}
	}
	tf := &Taifex{Clock: at(9, 30)}
	if tf.Session() != SessionDay {
		t.Fatalf("09:30 should be day session")
	}
	if got := tf.FormatSymbol("TXF", "tw"); got != "TXF-F" {
		t.Fatalf("unexpected day symbol %s", got)
	}

	tf.Clock = at(21, 0)
	if tf.Session() != SessionNight {
		t.Fatalf("21:00 should be night session")
	}
	if got := tf.FormatSymbol("TXF", "tw"); got != "TXF-M" {
		t.Fatalf("unexpected night symbol %s", got)
	}

	tf.Clock = at(4, 30)
	if tf.Session() != SessionNight {
		t.Fatalf("04:30 should still be night session")
	}
}

func TestTaifexQuote(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"RtData":{"QuoteList":[
			{"SymbolID":"TXF-F","CLastPrice":"20150","CRefPrice":"20000",
			 "CDate":"20260302","CTime":"094512"}]}}`)
	}))
	defer ts.Close()

	tf := &Taifex{MISBaseURL: ts.URL, Fetcher: newTestFetcher(ts)}
	q, err := tf.FetchQuote(context.Background(), "TXF-F")
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if q.Price != 20150 || q.PrevClose != 20000 {
		t.Fatalf("unexpected quote %+v", q)
	}
	if q.Session != SessionDay {
		t.Fatalf("want day session, got %s", q.Session)
	}
	want := time.Date(2026, 3, 2, 9, 45, 12, 0, taipei)
	if !q.SourceTime.Equal(want) {
		t.Fatalf("source time %v, want %v", q.SourceTime, want)
	}
}

func TestTaifexNoInstrument(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"RtData":{"QuoteList":[]}}`)
	}))
	defer ts.Close()

	tf := &Taifex{MISBaseURL: ts.URL, Fetcher: newTestFetcher(ts)}
	_, err := tf.FetchQuote(context.Background(), "TXF-F")
	if !errors.Is(err, quote.ErrNoData) {
		t.Fatalf("want ErrNoData, got %v", err)
	}
}

func TestTaifexMargins(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/IndexFuturesAndOptionsMargining" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `[
			{"Contract":"臺股期貨","InitialMargin":"184,000","MaintenanceMargin":"141,000","Date":"20260302"},
			{"Contract":"小型臺指","InitialMargin":"46,000","MaintenanceMargin":"35,250","Date":"20260302"}]`)
	}))
	defer ts.Close()

	tf := &Taifex{OpenBaseURL: ts.URL, Fetcher: newTestFetcher(ts)}
	rows, err := tf.FetchMargins(context.Background())
	if err != nil {
		t.Fatalf("fetch err: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 rows, got %d", len(rows))
	}
	if rows[0].InitialMargin != 184000 || rows[0].MaintenanceMargin != 141000 {
		t.Fatalf("comma amounts not parsed: %+v", rows[0])
	}
}
