// Package preset carries the static reference data consumed by the
// calculators: futures contract specs, ETF leverage presets and the
// TAIFEX contract-name map.
package preset

import "sync"

// ContractSpec 期货合约规格。InitialMargin/MaintenanceMargin 为每口金额，
// 可被交易所公告的最新数字覆盖（见 Registry.UpdateMargin）。
type ContractSpec struct {
	Name              string  `json:"name"`
	Multiplier        float64 `json:"multiplier"`
	InitialMargin     float64 `json:"initialMargin"`
	MaintenanceMargin float64 `json:"maintenanceMargin"`
	Unit              string  `json:"unit"`
}

// Registry holds the contract specs per market. Margin updates from the
// exchange mutate the registry in place; that is the one intentional
// mutation of reference data, so all access goes through the lock.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]map[string]ContractSpec
	dataDate  string
}

// NewRegistry seeds the registry with the built-in TW/US specs.
func NewRegistry() *Registry {
	return &Registry{
		contracts: map[string]map[string]ContractSpec{
			"tw": {
				"TX":  {Name: "臺股期貨 (大台)", Multiplier: 200, InitialMargin: 184000, MaintenanceMargin: 141000, Unit: "點"},
				"MTX": {Name: "小型臺指 (小台)", Multiplier: 50, InitialMargin: 46000, MaintenanceMargin: 35250, Unit: "點"},
				"MXF": {Name: "微型臺指 (微台)", Multiplier: 10, InitialMargin: 9200, MaintenanceMargin: 7050, Unit: "點"},
				"TE":  {Name: "電子期貨", Multiplier: 4000, InitialMargin: 210000, MaintenanceMargin: 161000, Unit: "點"},
				"TF":  {Name: "金融期貨", Multiplier: 1000, InitialMargin: 52500, MaintenanceMargin: 40250, Unit: "點"},
				"STK": {Name: "股票期貨", Multiplier: 2000, InitialMargin: 0, MaintenanceMargin: 0, Unit: "元"},
			},
			"us": {
				"ES":  {Name: "E-mini S&P 500", Multiplier: 50, InitialMargin: 12650, MaintenanceMargin: 11500, Unit: "pts"},
				"NQ":  {Name: "E-mini Nasdaq 100", Multiplier: 20, InitialMargin: 16500, MaintenanceMargin: 15000, Unit: "pts"},
				"MES": {Name: "Micro E-mini S&P", Multiplier: 5, InitialMargin: 1265, MaintenanceMargin: 1150, Unit: "pts"},
				"MNQ": {Name: "Micro E-mini NQ", Multiplier: 2, InitialMargin: 1650, MaintenanceMargin: 1500, Unit: "pts"},
				"YM":  {Name: "E-mini Dow", Multiplier: 5, InitialMargin: 9000, MaintenanceMargin: 8200, Unit: "pts"},
				"MYM": {Name: "Micro E-mini Dow", Multiplier: 0.5, InitialMargin: 900, MaintenanceMargin: 820, Unit: "pts"},
			},
		},
	}
}

// Get returns a copy of the spec for market+code.
func (r *Registry) Get(market, code string) (ContractSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.contracts[market][code]
	return spec, ok
}

// Codes lists the contract codes for a market.
func (r *Registry) Codes(market string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.contracts[market]))
	for code := range r.contracts[market] {
		codes = append(codes, code)
	}
	return codes
}

// UpdateMargin overwrites the per-lot margins for a contract with live
// exchange data. Unknown codes are ignored.
func (r *Registry) UpdateMargin(market, code string, im, mm float64) {
	if im <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	spec, ok := r.contracts[market][code]
	if !ok {
		return
	}
	spec.InitialMargin = im
	spec.MaintenanceMargin = mm
	r.contracts[market][code] = spec
}

// SetDataDate remembers the exchange publication date of the last
// margin refresh (YYYYMMDD as published).
func (r *Registry) SetDataDate(d string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d != "" {
		r.dataDate = d
	}
}

// DataDate returns the publication date of the current margin figures,
// empty until the first live refresh.
func (r *Registry) DataDate() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dataDate
}

// TaifexContractNames TAIFEX 公告的合约中文名称 → 内部合约代码。
var TaifexContractNames = map[string]string{
	"臺股期貨":   "TX",
	"小型臺指":   "MTX",
	"微型臺指期貨": "MXF",
	"電子期貨":   "TE",
	"金融期貨":   "TF",
}
