// Package quote defines the normalized quote record shared by all
// provider adapters, the cache and the calculators.
package quote

import "time"

// Quote 单一商品的即时报价快照；由 provider 产生后不再修改。
// Change/ChangePct 永远由 Price 与 PrevClose 推导。
type Quote struct {
	Price      float64   `json:"price"`
	PrevClose  float64   `json:"prevClose"`
	Change     float64   `json:"change"`
	ChangePct  float64   `json:"changePct"`
	Currency   string    `json:"currency"`
	Name       string    `json:"name"`
	SourceTime time.Time `json:"sourceTime,omitzero"`
	Session    string    `json:"session,omitempty"`
}

// New builds a Quote from a last price and previous close, filling the
// derived change fields.
func New(price, prevClose float64) Quote {
	q := Quote{Price: price, PrevClose: prevClose, Change: price - prevClose}
	if prevClose != 0 {
		q.ChangePct = q.Change / prevClose * 100
	}
	return q
}
