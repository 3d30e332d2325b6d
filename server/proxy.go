package server

import (
	"io"
	"net/http"
	"net/url"
	"time"

	"tradeguard-go/monitor"
)

// Relay forwards browser requests to allow-listed quote hosts,
// echoing status, body and content type back with CORS headers.
type Relay struct {
	allow  map[string]bool
	client *http.Client
	mon    *monitor.Monitor
}

func NewRelay(allowHosts []string, mon *monitor.Monitor) *Relay {
	allow := make(map[string]bool, len(allowHosts))
	for _, h := range allowHosts {
		allow[h] = true
	}
	return &Relay{
		allow:  allow,
		client: &http.Client{Timeout: 10 * time.Second},
		mon:    mon,
	}
}

func (p *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS middleware 之外也可能被直接打到，自己处理 OPTIONS
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	target := r.URL.Query().Get("url")
	if target == "" {
		p.mon.RecordRelay("bad_request")
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		p.mon.RecordRelay("bad_request")
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	if !p.allow[u.Hostname()] {
		p.mon.RecordRelay("forbidden")
		writeError(w, http.StatusForbidden, "host not allowed")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		p.mon.RecordRelay("bad_request")
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.mon.RecordRelay("upstream_error")
		writeError(w, http.StatusBadGateway, "upstream fetch failed")
		return
	}
	defer resp.Body.Close()

	p.mon.RecordRelay("ok")
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	// 行情本来就只有秒级新鲜度，放 30 秒浏览器快取减少中继压力
	w.Header().Set("Cache-Control", "public, max-age=30")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
