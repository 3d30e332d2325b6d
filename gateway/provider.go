package gateway

import (
	"context"

	"tradeguard-go/quote"
)

// Provider is one upstream quote source. FormatSymbol turns a user
// code into the provider's wire symbol; IndexSymbol maps an internal
// index key (taiex, sp500, ...) to the provider symbol, ok=false when
// the provider does not carry that index.
type Provider interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (quote.Quote, error)
	FormatSymbol(code, market string) string
	IndexSymbol(key string) (string, bool)
}
