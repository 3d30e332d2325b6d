package quote

import "errors"

var (
	// ErrConnectivity 直连与所有代理链路都失败。
	ErrConnectivity = errors.New("all fetch attempts failed")
	// ErrNoData 响应可解析但没有可用的成交价。
	ErrNoData = errors.New("no usable quote in response")
	// ErrMissingKey provider 需要 API key 但未配置。
	ErrMissingKey = errors.New("api key required")
	// ErrUnsupported 没有任何 provider 认识这个指数。
	ErrUnsupported = errors.New("index not supported by any provider")
)
