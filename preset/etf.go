package preset

// ETF 指数 ETF 预设；Leverage 为 ETF 本身的杠杆倍数，反向为负。
type ETF struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Leverage float64 `json:"leverage"`
	Index    string  `json:"index"`
}

var ETFs = map[string][]ETF{
	"tw": {
		{Code: "0050", Name: "元大台灣50", Leverage: 1, Index: "taiex"},
		{Code: "006208", Name: "富邦台50", Leverage: 1, Index: "taiex"},
		{Code: "00631L", Name: "元大台灣50正2", Leverage: 2, Index: "taiex"},
		{Code: "00632R", Name: "元大台灣50反1", Leverage: -1, Index: "taiex"},
		{Code: "00675L", Name: "S&P500正2", Leverage: 2, Index: "sp500"},
		{Code: "00670L", Name: "美國道瓊正2", Leverage: 2, Index: "dow"},
	},
	"us": {
		{Code: "SPY", Name: "SPDR S&P 500", Leverage: 1, Index: "sp500"},
		{Code: "QQQ", Name: "Invesco Nasdaq", Leverage: 1, Index: "nasdaq"},
		{Code: "TQQQ", Name: "ProShares 3x QQQ", Leverage: 3, Index: "nasdaq"},
		{Code: "SQQQ", Name: "ProShares -3x QQQ", Leverage: -3, Index: "nasdaq"},
		{Code: "SPXL", Name: "Direxion 3x S&P", Leverage: 3, Index: "sp500"},
		{Code: "UPRO", Name: "ProShares 3x S&P", Leverage: 3, Index: "sp500"},
		{Code: "SOXL", Name: "Direxion 3x 費半", Leverage: 3, Index: "sox"},
		{Code: "SOXS", Name: "Direxion -3x 費半", Leverage: -3, Index: "sox"},
		{Code: "DIA", Name: "SPDR Dow Jones", Leverage: 1, Index: "dow"},
		{Code: "UDOW", Name: "ProShares 3x Dow", Leverage: 3, Index: "dow"},
	},
}

// FuturesIndexKey 期货合约 → 对应指数代号，用于「行情帶入」。
var FuturesIndexKey = map[string]map[string]string{
	"tw": {"TX": "taiex", "MTX": "taiex", "MXF": "taiex", "TE": "taiex", "TF": "taiex"},
	"us": {"ES": "sp500", "MES": "sp500", "NQ": "nasdaq", "MNQ": "nasdaq", "YM": "dow", "MYM": "dow"},
}
