package quote

// IndexDef describes one tracked market index.
type IndexDef struct {
	Name   string
	Market string // tw, us, jp, kr, cn, hk
}

// IndexDefs 全部可追踪指数；key 为内部指数代号。
var IndexDefs = map[string]IndexDef{
	"taiex":    {Name: "加權指數", Market: "tw"},
	"sp500":    {Name: "S&P 500", Market: "us"},
	"nasdaq":   {Name: "Nasdaq", Market: "us"},
	"dow":      {Name: "道瓊", Market: "us"},
	"sox":      {Name: "費半", Market: "us"},
	"nikkei":   {Name: "日經225", Market: "jp"},
	"kospi":    {Name: "KOSPI", Market: "kr"},
	"shanghai": {Name: "上證指數", Market: "cn"},
	"hsi":      {Name: "恆生指數", Market: "hk"},
}

// IndexMarket returns the market tag for an index key, defaulting to us
// for unknown keys so routing still has a generic provider to try.
func IndexMarket(key string) string {
	if def, ok := IndexDefs[key]; ok {
		return def.Market
	}
	return "us"
}
