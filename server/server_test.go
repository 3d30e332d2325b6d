package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeguard-go/cache"
	"tradeguard-go/config"
	"tradeguard-go/gateway"
	"tradeguard-go/infrastructure/logger"
	"tradeguard-go/internal/engine"
	"tradeguard-go/margin"
	"tradeguard-go/monitor"
	"tradeguard-go/preset"
)

func newTestServer(t *testing.T, yahooURL string) *Server {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	require.NoError(t, err)

	f := &gateway.Fetcher{Client: http.DefaultClient}
	router := &gateway.Router{
		Yahoo:   &gateway.Yahoo{BaseURL: yahooURL, Fetcher: f},
		TWSE:    gateway.NewTWSE(f),
		TPEX:    gateway.NewTPEX(f),
		Finnhub: gateway.NewFinnhub(f, ""),
		Taifex:  gateway.NewTaifex(f),
	}
	router.SetSources("yahoo", "yahoo")
	cfg := config.Default()
	cfg.Quotes.TWSource = "yahoo"
	cfg.Quotes.AutoFetch = false

	mon := monitor.New()
	c := cache.New(engine.CacheTTL(cfg), nil, nil)
	e := engine.New(cfg, router, c, preset.NewRegistry(), mon, log)
	return New(e, mon, log)
}

func stubYahoo(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"regularMarketPrice":101,"chartPreviousClose":100,"currency":"TWD","shortName":"stub"}}]}}`)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "http://unused.invalid")
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, "http://unused.invalid")
	rec := doJSON(t, s.Handler(), http.MethodOptions, "/api/quote", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
}

func TestQuoteEndpoint(t *testing.T) {
	s := newTestServer(t, stubYahoo(t).URL)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/quote?code=2330&market=tw", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var q struct {
		Price     float64 `json:"price"`
		PrevClose float64 `json:"prevClose"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, float64(101), q.Price)
	assert.Equal(t, float64(100), q.PrevClose)
}

func TestQuoteRequiresCode(t *testing.T) {
	s := newTestServer(t, "http://unused.invalid")
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/quote", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndicesRefresh(t *testing.T) {
	s := newTestServer(t, stubYahoo(t).URL)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/indices", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/indices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "taiex")
}

func TestCalcMargin(t *testing.T) {
	s := newTestServer(t, "http://unused.invalid")

	in := margin.Input{
		Market:      margin.TW,
		Mode:        margin.Long,
		EntryPrice:  100,
		Qty:         1,
		MarginRate:  0.6,
		CallRatio:   1.3,
		ForcedRatio: 1.2,
		FeeDiscount: 0.6,
		TaxRate:     0.003,
	}
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/calc/margin", in)
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Loan             float64 `json:"loan"`
		MaintenanceRatio float64 `json:"maintenanceRatio"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, float64(60000), res.Loan)
	assert.InDelta(t, 1.6667, res.MaintenanceRatio, 1e-4)
}

func TestCalcMarginInsufficient(t *testing.T) {
	s := newTestServer(t, "http://unused.invalid")
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/calc/margin", margin.Input{Market: margin.TW})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCalcFuturesDerivesStockMargin(t *testing.T) {
	s := newTestServer(t, "http://unused.invalid")

	body := map[string]interface{}{
		"side":       "long",
		"entryPrice": 100,
		"qty":        1,
		"multiplier": 2000,
		"spotPrice":  100,
	}
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/calc/futures", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		TotalIM float64 `json:"totalIM"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, float64(27000), res.TotalIM)
}

func TestCalcOptions(t *testing.T) {
	s := newTestServer(t, "http://unused.invalid")

	body := map[string]interface{}{
		"type":       "call",
		"side":       "seller",
		"underlying": 500,
		"strike":     520,
		"premium":    5,
		"qty":        1,
		"multiplier": 100,
	}
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/calc/options", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		SellerMargin float64 `json:"sellerMargin"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, float64(6000), res.SellerMargin)
}

func TestCalcRejectsBadJSON(t *testing.T) {
	s := newTestServer(t, "http://unused.invalid")
	req := httptest.NewRequest(http.MethodPost, "/api/calc/margin", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPresets(t *testing.T) {
	s := newTestServer(t, "http://unused.invalid")
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "TX")
	assert.Contains(t, rec.Body.String(), "0050")

	// 期货合约 → 指数代号对照表，行情带入用
	var res struct {
		FuturesIndex map[string]map[string]string `json:"futuresIndex"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "taiex", res.FuturesIndex["tw"]["TX"])
	assert.Equal(t, "sp500", res.FuturesIndex["us"]["ES"])
}
