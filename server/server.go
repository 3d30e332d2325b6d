// Package server exposes the HTTP API: quote lookups, calculator
// endpoints, the CORS relay and the metrics scrape handler.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tradeguard-go/futures"
	"tradeguard-go/infrastructure/logger"
	"tradeguard-go/internal/engine"
	"tradeguard-go/margin"
	"tradeguard-go/monitor"
	"tradeguard-go/options"
	"tradeguard-go/preset"
	"tradeguard-go/quote"
)

type Server struct {
	engine *engine.Engine
	mon    *monitor.Monitor
	log    *logger.Logger
	relay  *Relay
	mux    *http.ServeMux
}

func New(e *engine.Engine, mon *monitor.Monitor, log *logger.Logger) *Server {
	s := &Server{
		engine: e,
		mon:    mon,
		log:    log,
		relay:  NewRelay(e.Config().Server.RelayAllowHosts, mon),
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/indices", s.handleIndices)
	s.mux.HandleFunc("/api/quote", s.handleQuote)
	s.mux.HandleFunc("/api/presets", s.handlePresets)
	s.mux.HandleFunc("/api/calc/margin", s.handleCalcMargin)
	s.mux.HandleFunc("/api/calc/futures", s.handleCalcFutures)
	s.mux.HandleFunc("/api/calc/options", s.handleCalcOptions)
	s.mux.Handle("/api/proxy", s.relay)
	s.mux.Handle("/metrics", s.mon.Handler())
}

func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

// corsMiddleware 计算器前端跨域直连，放行一切来源。
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// quoteStatus 把行情错误翻成对外状态码。
func quoteStatus(err error) int {
	switch {
	case errors.Is(err, quote.ErrMissingKey):
		return http.StatusUnprocessableEntity
	case errors.Is(err, quote.ErrUnsupported):
		return http.StatusNotFound
	case errors.Is(err, quote.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, quote.ErrConnectivity):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"lastRefresh": s.engine.LastRefresh(),
	})
}

// handleIndices GET 回传快取的指数板（含过期行情）；POST 触发刷新。
func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"indices":     s.engine.AllIndices(),
			"lastRefresh": s.engine.LastRefresh(),
		})
	case http.MethodPost:
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		errs := s.engine.RefreshAll(ctx)
		failed := make(map[string]string, len(errs))
		for k, err := range errs {
			failed[k] = err.Error()
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"indices": s.engine.AllIndices(),
			"failed":  failed,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	market := r.URL.Query().Get("market")
	if market == "" {
		market = s.engine.Config().Quotes.DefaultMarket
	}
	q, err := s.engine.StockQuote(r.Context(), code, market)
	if err != nil {
		writeError(w, quoteStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	reg := s.engine.Presets()
	contracts := map[string]map[string]preset.ContractSpec{}
	for _, market := range []string{"tw", "us"} {
		contracts[market] = map[string]preset.ContractSpec{}
		for _, code := range reg.Codes(market) {
			if spec, ok := reg.Get(market, code); ok {
				contracts[market][code] = spec
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contracts":    contracts,
		"etfs":         preset.ETFs,
		"futuresIndex": preset.FuturesIndexKey,
		"marginDate":   reg.DataDate(),
	})
}

func (s *Server) handleCalcMargin(w http.ResponseWriter, r *http.Request) {
	var in margin.Input
	if !decodeCalc(w, r, &in) {
		return
	}
	s.mon.RecordCalc("margin")
	res, ok := margin.Compute(in)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "insufficient input")
		return
	}
	s.log.LogCalc("margin", map[string]interface{}{"market": in.Market, "mode": in.Mode})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCalcFutures(w http.ResponseWriter, r *http.Request) {
	var req struct {
		futures.Input
		SpotPrice float64 `json:"spotPrice"`
	}
	if !decodeCalc(w, r, &req) {
		return
	}
	s.mon.RecordCalc("futures")
	in := s.engine.FuturesInput(req.Input, req.SpotPrice)
	res, ok := futures.Compute(in)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "insufficient input")
		return
	}
	s.log.LogCalc("futures", map[string]interface{}{"side": in.Side})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCalcOptions(w http.ResponseWriter, r *http.Request) {
	var in options.Input
	if !decodeCalc(w, r, &in) {
		return
	}
	s.mon.RecordCalc("options")
	res, ok := options.Compute(s.engine.OptionsInput(in))
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "insufficient input")
		return
	}
	s.log.LogCalc("options", map[string]interface{}{"type": in.Type, "side": in.Side})
	writeJSON(w, http.StatusOK, res)
}

func decodeCalc(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}
