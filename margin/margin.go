// Package margin computes risk figures for cash, long-margin (融資) and
// short-margin (融券) equity positions under Taiwan and US conventions.
// All functions are pure; missing inputs yield ok=false instead of NaN.
package margin

import (
	"math"

	"tradeguard-go/risk"
)

type Market string

const (
	TW Market = "tw"
	US Market = "us"
)

type Mode string

const (
	Cash  Mode = "cash"
	Long  Mode = "long"  // 融資買進
	Short Mode = "short" // 融券賣出
)

type Product string

const (
	Stock        Product = "stock"
	ETF          Product = "etf"
	LeveragedETF Product = "letf"
)

const (
	twFeeRate    = 0.001425 // 台股券商公定手续费率
	twMinFee     = 20
	usSECFeeRate = 0.0000278 // SEC fee, sell side only
	twSharesLot  = 1000
	daysPerYear  = 365
)

// Input 单次计算的全部输入。数量单位：TW 张（1 张 = 1000 股）、US 股。
type Input struct {
	Market  Market  `json:"market"`
	Mode    Mode    `json:"mode"`
	Product Product `json:"product"`

	EntryPrice   float64 `json:"entryPrice"`   // long: 買進價 / short: 賣出價
	CurrentPrice float64 `json:"currentPrice"` // 0 → 同進場
	Qty          float64 `json:"qty"`

	MarginRate  float64 `json:"marginRate"`  // long: 融資成數 / short: 保證金成數
	CallRatio   float64 `json:"callRatio"`   // e.g. 1.30 (TW), 0.25 (US)
	ForcedRatio float64 `json:"forcedRatio"` // e.g. 1.20 (TW), 0.20 (US)

	FeeDiscount  float64 `json:"feeDiscount"`  // TW 手续费折扣 (0~1)
	TaxRate      float64 `json:"taxRate"`      // TW 证交税率（卖出）
	Commission   float64 `json:"commission"`   // US 每笔固定佣金
	InterestRate float64 `json:"interestRate"` // 年利率（融資利息/借券費）
	HoldDays     float64 `json:"holdDays"`

	ETFLeverage float64 `json:"etfLeverage"` // 杠杆 ETF 倍数，0 → 1
}

// Fees breaks down round-trip transaction costs.
type Fees struct {
	Open     float64 `json:"open"`
	Close    float64 `json:"close"`
	Tax      float64 `json:"tax"`
	Interest float64 `json:"interest"`
	Total    float64 `json:"total"`
}

// StressRow is one rung of the price ladder.
type StressRow struct {
	MovePct          float64    `json:"movePct"`
	Price            float64    `json:"price"`
	PL               float64    `json:"pl"`
	Equity           float64    `json:"equity"`
	MaintenanceRatio float64    `json:"maintenanceRatio"`
	Level            risk.Level `json:"level"`
	MarginCall       bool       `json:"marginCall"`
	ForcedSell       bool       `json:"forcedSell"`
	Current          bool       `json:"current"`
}

// Result 计算输出；比率均为小数（1.6667 = 166.67%）。
type Result struct {
	Shares      float64 `json:"shares"`
	Cost        float64 `json:"cost"`
	MarketValue float64 `json:"marketValue"`

	Loan       float64 `json:"loan,omitempty"`       // long
	OwnEquity  float64 `json:"ownEquity,omitempty"`  // long 自備款
	Deposit    float64 `json:"deposit,omitempty"`    // short 保證金
	Collateral float64 `json:"collateral,omitempty"` // short 擔保品

	Equity       float64 `json:"equity"`
	UnrealizedPL float64 `json:"unrealizedPL"`
	NetPL        float64 `json:"netPL"`
	ROI          float64 `json:"roi"`

	MaintenanceRatio float64 `json:"maintenanceRatio,omitempty"`
	CallPrice        float64 `json:"callPrice,omitempty"`
	ForcedPrice      float64 `json:"forcedPrice,omitempty"`
	// 触发价距现价的百分比；多头为负（下方触发）、空头为正。
	CallDistancePct   float64 `json:"callDistancePct,omitempty"`
	ForcedDistancePct float64 `json:"forcedDistancePct,omitempty"`
	Leverage          float64 `json:"leverage,omitempty"`
	EffectiveLeverage float64 `json:"effectiveLeverage,omitempty"`

	Level  risk.Level  `json:"level"`
	Fees   Fees        `json:"fees"`
	Stress []StressRow `json:"stress,omitempty"`
}

// fillDistances 计算触发价距现价的百分比，没有触发价时留 0。
func (r *Result) fillDistances(current float64) {
	if current <= 0 {
		return
	}
	if r.CallPrice > 0 {
		r.CallDistancePct = (r.CallPrice - current) / current * 100
	}
	if r.ForcedPrice > 0 {
		r.ForcedDistancePct = (r.ForcedPrice - current) / current * 100
	}
}

// 压力测试阶梯；多头向下、空头向上覆盖更深。
var (
	longStressSteps  = []float64{30, 25, 20, 15, 10, 5, 0, -5, -10, -15, -20, -25, -30, -35, -40, -45, -50}
	shortStressSteps = []float64{-30, -25, -20, -15, -10, -5, 0, 5, 10, 15, 20, 25, 30, 35, 40, 50, 60}
)

// Compute evaluates one position. ok=false means insufficient input
// (entry price or quantity missing) and the Result must be ignored.
func Compute(in Input) (Result, bool) {
	if in.EntryPrice <= 0 || in.Qty <= 0 {
		return Result{}, false
	}
	switch in.Mode {
	case Short:
		return computeShort(in), true
	case Cash:
		return computeCash(in), true
	default:
		return computeLong(in), true
	}
}

func (in Input) shares() float64 {
	if in.Market == TW {
		return in.Qty * twSharesLot
	}
	return in.Qty
}

func (in Input) current() float64 {
	if in.CurrentPrice > 0 {
		return in.CurrentPrice
	}
	return in.EntryPrice
}

func (in Input) etfLeverage() float64 {
	if in.Product == LeveragedETF && in.ETFLeverage != 0 {
		return math.Abs(in.ETFLeverage)
	}
	return 1
}

// tradeFee 单边手续费；TW 有最低收费与折扣，US 为固定佣金。
func (in Input) tradeFee(notional float64) float64 {
	if in.Market == TW {
		return math.Max(twMinFee, notional*twFeeRate*in.FeeDiscount)
	}
	return in.Commission
}

func (in Input) sellTax(notional float64) float64 {
	if in.Market == TW {
		return notional * in.TaxRate
	}
	return notional * usSECFeeRate
}

// carryCost 融資利息或借券費，按日计息。
func (in Input) carryCost(principal float64) float64 {
	return principal * in.InterestRate * in.HoldDays / daysPerYear
}

func computeLong(in Input) Result {
	tw := in.Market == TW
	shares := in.shares()
	entry, cp := in.EntryPrice, in.current()

	loanPerShare := entry * in.MarginRate
	equityPerShare := entry * (1 - in.MarginRate)
	loan := loanPerShare * shares
	ownEquity := equityPerShare * shares
	cost := entry * shares
	mv := cp * shares
	upl := (cp - entry) * shares
	equity := mv - loan

	fees := Fees{
		Open:     in.tradeFee(cost),
		Close:    in.tradeFee(mv),
		Tax:      in.sellTax(mv),
		Interest: in.carryCost(loan),
	}
	fees.Total = fees.Open + fees.Close + fees.Tax + fees.Interest

	r := Result{
		Shares:       shares,
		Cost:         cost,
		MarketValue:  mv,
		Loan:         loan,
		OwnEquity:    ownEquity,
		Equity:       equity,
		UnrealizedPL: upl,
		NetPL:        upl - fees.Total,
		Fees:         fees,
	}
	if ownEquity > 0 {
		r.ROI = r.NetPL / ownEquity
		r.Leverage = cost / ownEquity
		r.EffectiveLeverage = r.Leverage * in.etfLeverage()
	}

	if tw {
		if loan > 0 {
			r.MaintenanceRatio = mv / loan
		}
		r.CallPrice = loanPerShare * in.CallRatio
		r.ForcedPrice = loanPerShare * in.ForcedRatio
		r.Level = risk.Classify(r.MaintenanceRatio*100, 166, 140, in.CallRatio*100)
	} else {
		if mv > 0 {
			r.MaintenanceRatio = equity / mv
		}
		if in.CallRatio < 1 {
			r.CallPrice = loanPerShare / (1 - in.CallRatio)
		}
		if in.ForcedRatio < 1 {
			r.ForcedPrice = loanPerShare / (1 - in.ForcedRatio)
		}
		r.Level = risk.Classify(r.MaintenanceRatio*100, 40, 30, in.CallRatio*100)
	}
	if loan <= 0 {
		// 全额自备（融資成數 0），与现金买进等价，没有追缴问题。
		r.Level = risk.Safe
	}
	r.fillDistances(cp)

	for _, p := range longStressSteps {
		price := entry * (1 + p/100)
		v := price * shares
		eq := v - loan
		var ratio float64
		if tw {
			if loan > 0 {
				ratio = v / loan
			}
		} else if v > 0 {
			ratio = eq / v
		}
		var lvl risk.Level
		if tw {
			lvl = risk.Classify(ratio*100, 166, in.CallRatio*100+10, in.CallRatio*100)
		} else {
			lvl = risk.Classify(ratio*100, 40, in.CallRatio*100+5, in.CallRatio*100)
		}
		r.Stress = append(r.Stress, StressRow{
			MovePct:          p,
			Price:            price,
			PL:               (price - entry) * shares,
			Equity:           eq,
			MaintenanceRatio: ratio,
			Level:            lvl,
			MarginCall:       loan > 0 && ratio < in.CallRatio,
			ForcedSell:       loan > 0 && ratio < in.ForcedRatio,
			Current:          p == 0,
		})
	}
	return r
}

func computeShort(in Input) Result {
	tw := in.Market == TW
	shares := in.shares()
	sp, cp := in.EntryPrice, in.current()

	depositPerShare := sp * in.MarginRate
	collateralPerShare := sp
	perShare := depositPerShare + collateralPerShare
	mv := cp * shares
	upl := (sp - cp) * shares
	equity := (perShare - cp) * shares

	fees := Fees{
		Open:     in.tradeFee(sp * shares),
		Close:    in.tradeFee(mv),
		Tax:      in.sellTax(sp * shares), // 放空于卖出时课税
		Interest: in.carryCost(sp * shares),
	}
	fees.Total = fees.Open + fees.Close + fees.Tax + fees.Interest

	r := Result{
		Shares:       shares,
		Cost:         sp * shares,
		MarketValue:  mv,
		Deposit:      depositPerShare * shares,
		Collateral:   collateralPerShare * shares,
		Equity:       equity,
		UnrealizedPL: upl,
		NetPL:        upl - fees.Total,
		Fees:         fees,
	}
	if r.Deposit > 0 {
		r.ROI = r.NetPL / r.Deposit
	}

	if cp > 0 {
		if tw {
			r.MaintenanceRatio = perShare / cp
		} else {
			r.MaintenanceRatio = (perShare - cp) / cp
		}
	}
	if tw {
		if in.CallRatio > 0 {
			r.CallPrice = perShare / in.CallRatio
		}
		if in.ForcedRatio > 0 {
			r.ForcedPrice = perShare / in.ForcedRatio
		}
		r.Level = risk.Classify(r.MaintenanceRatio*100, 166, 140, in.CallRatio*100)
	} else {
		r.CallPrice = perShare / (1 + in.CallRatio)
		r.ForcedPrice = perShare / (1 + in.ForcedRatio)
		r.Level = risk.Classify(r.MaintenanceRatio*100, 50, 35, in.CallRatio*100)
	}
	r.fillDistances(cp)

	for _, p := range shortStressSteps {
		price := sp * (1 + p/100)
		var ratio float64
		if price > 0 {
			if tw {
				ratio = perShare / price
			} else {
				ratio = (perShare - price) / price
			}
		}
		var lvl risk.Level
		if tw {
			lvl = risk.Classify(ratio*100, 166, 140, in.CallRatio*100)
		} else {
			lvl = risk.Classify(ratio*100, 50, 35, in.CallRatio*100)
		}
		r.Stress = append(r.Stress, StressRow{
			MovePct:          p,
			Price:            price,
			PL:               (sp - price) * shares,
			Equity:           (perShare - price) * shares,
			MaintenanceRatio: ratio,
			Level:            lvl,
			MarginCall:       ratio < in.CallRatio,
			ForcedSell:       ratio < in.ForcedRatio,
			Current:          p == 0,
		})
	}
	return r
}

// computeCash 现股买进：没有融资、没有维持率，只有成本/市值/损益。
func computeCash(in Input) Result {
	shares := in.shares()
	entry, cp := in.EntryPrice, in.current()
	cost := entry * shares
	mv := cp * shares
	upl := (cp - entry) * shares

	fees := Fees{
		Open:  in.tradeFee(cost),
		Close: in.tradeFee(mv),
		Tax:   in.sellTax(mv),
	}
	fees.Total = fees.Open + fees.Close + fees.Tax

	r := Result{
		Shares:       shares,
		Cost:         cost,
		MarketValue:  mv,
		Equity:       mv,
		UnrealizedPL: upl,
		NetPL:        upl - fees.Total,
		Level:        risk.Safe,
		Fees:         fees,
	}
	if cost > 0 {
		r.ROI = r.NetPL / cost
	}
	return r
}
