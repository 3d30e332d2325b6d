// Package options prices intrinsic/time value, break-even, seller
// margin and expiration scenarios for single-leg option positions.
package options

import (
	"math"
	"sort"

	"tradeguard-go/risk"
)

type OptType string

const (
	Call OptType = "call"
	Put  OptType = "put"
)

type OptSide string

const (
	Buyer  OptSide = "buyer"
	Seller OptSide = "seller"
)

type Moneyness string

const (
	ITM Moneyness = "ITM"
	ATM Moneyness = "ATM"
	OTM Moneyness = "OTM"
)

// 台指选择权卖方保证金的风险系数，可由设定覆盖。
const (
	DefaultRiskRatio = 0.15
	DefaultMinRatio  = 0.10
)

// Input 单腿选择权输入。
type Input struct {
	Type       OptType `json:"type"`
	Side       OptSide `json:"side"`
	Underlying float64 `json:"underlying"`
	Strike     float64 `json:"strike"`
	Premium    float64 `json:"premium"`
	Qty        float64 `json:"qty"`
	Multiplier float64 `json:"multiplier"`

	RiskRatio  float64 `json:"riskRatio"`  // 0 → DefaultRiskRatio
	MinRatio   float64 `json:"minRatio"`   // 0 → DefaultMinRatio
	Commission float64 `json:"commission"` // 每口单边
	TaxRate    float64 `json:"taxRate"`    // 以权利金为税基，双边

	ExpiryUnderlying float64 `json:"expiryUnderlying"` // 到期情境价，0 → 不算
}

// Bound 有界/无界金额。卖出买权的最大损失没有上界。
type Bound struct {
	Amount  float64 `json:"amount"`
	Bounded bool    `json:"bounded"`
}

type StressRow struct {
	Underlying float64 `json:"underlying"`
	Intrinsic  float64 `json:"intrinsic"`
	PL         float64 `json:"pl"`
	AtStrike   bool    `json:"atStrike"`
	AtSpot     bool    `json:"atSpot"`
}

type Result struct {
	Intrinsic    float64   `json:"intrinsic"`  // 每点
	TimeValue    float64   `json:"timeValue"`  // 每点
	Moneyness    Moneyness `json:"moneyness"`
	BreakEven    float64   `json:"breakEven"`
	TotalPremium float64   `json:"totalPremium"`

	SellerMarginPerLot float64 `json:"sellerMarginPerLot,omitempty"`
	SellerMargin       float64 `json:"sellerMargin,omitempty"`

	MaxLoss Bound `json:"maxLoss"`
	MaxGain Bound `json:"maxGain"`

	ExpiryPL float64 `json:"expiryPL,omitempty"`
	Fees     float64 `json:"fees"`

	Level  risk.Level  `json:"level"`
	Stress []StressRow `json:"stress,omitempty"`
}

// Compute evaluates one option leg. ok=false means insufficient input
// (underlying, strike, quantity or multiplier missing).
func Compute(in Input) (Result, bool) {
	if in.Underlying <= 0 || in.Strike <= 0 || in.Qty <= 0 || in.Multiplier <= 0 {
		return Result{}, false
	}

	iv := intrinsic(in.Type, in.Underlying, in.Strike)
	oom := outOfMoney(in.Type, in.Underlying, in.Strike)
	totalPrem := in.Premium * in.Multiplier * in.Qty
	fees := in.Commission*in.Qty*2 + in.Premium*in.Multiplier*in.Qty*in.TaxRate*2

	r := Result{
		Intrinsic:    iv,
		TimeValue:    math.Max(0, in.Premium-iv),
		Moneyness:    moneyness(iv, oom),
		TotalPremium: totalPrem,
		Fees:         fees,
	}
	if in.Type == Call {
		r.BreakEven = in.Strike + in.Premium
	} else {
		r.BreakEven = in.Strike - in.Premium
	}

	if in.Side == Seller {
		rr := in.RiskRatio
		if rr <= 0 {
			rr = DefaultRiskRatio
		}
		minr := in.MinRatio
		if minr <= 0 {
			minr = DefaultMinRatio
		}
		// 保证金 = max(标的值×风险系数 − 价外值, 标的值×最低系数) + 权利金
		a := in.Underlying*in.Multiplier*rr - oom*in.Multiplier
		b := in.Underlying * in.Multiplier * minr
		r.SellerMarginPerLot = math.Max(a, b) + in.Premium*in.Multiplier
		r.SellerMargin = r.SellerMarginPerLot * in.Qty

		r.MaxGain = Bound{Amount: totalPrem - fees, Bounded: true}
		if in.Type == Put {
			// 标的跌到零时的损失
			r.MaxLoss = Bound{Amount: (in.Strike-in.Premium)*in.Multiplier*in.Qty + fees, Bounded: true}
		} else {
			r.MaxLoss = Bound{Bounded: false}
		}
		r.Level = sellerLevel(r.Moneyness)
	} else {
		r.MaxLoss = Bound{Amount: totalPrem + fees, Bounded: true}
		if in.Type == Call {
			r.MaxGain = Bound{Bounded: false}
		} else {
			r.MaxGain = Bound{Amount: (in.Strike-in.Premium)*in.Multiplier*in.Qty - fees, Bounded: true}
		}
		r.Level = risk.Safe
	}

	if in.ExpiryUnderlying > 0 {
		eIv := intrinsic(in.Type, in.ExpiryUnderlying, in.Strike)
		pl := (eIv - in.Premium) * in.Multiplier * in.Qty
		if in.Side == Seller {
			pl = -pl
		}
		r.ExpiryPL = pl
	}

	r.Stress = stressLadder(in)
	return r, true
}

func intrinsic(t OptType, ul, strike float64) float64 {
	if t == Call {
		return math.Max(0, ul-strike)
	}
	return math.Max(0, strike-ul)
}

// outOfMoney 价外点数，价内时为 0。
func outOfMoney(t OptType, ul, strike float64) float64 {
	if t == Call {
		return math.Max(0, strike-ul)
	}
	return math.Max(0, ul-strike)
}

func moneyness(iv, oom float64) Moneyness {
	switch {
	case iv > 0:
		return ITM
	case oom > 0:
		return OTM
	default:
		return ATM
	}
}

// sellerLevel 卖方风险只粗分档：深价内最危险，价外相对安全。
func sellerLevel(m Moneyness) risk.Level {
	switch m {
	case ITM:
		return risk.Danger
	case ATM:
		return risk.Caution
	default:
		return risk.Safe
	}
}

// stressLadder sweeps ±15% of the underlying in about ten steps each
// way, always anchoring the strike and the current spot as rungs.
func stressLadder(in Input) []StressRow {
	span := in.Underlying * 0.15
	step := span / 10
	if step >= 1 {
		// 指数点位取整数档
		step = math.Round(step)
	}
	rnd := func(v float64) float64 {
		if step >= 1 {
			return math.Round(v)
		}
		// 低价标的取整到分，取整数会把梯级塌成同一档
		return math.Round(v*100) / 100
	}

	seen := map[float64]bool{}
	var levels []float64
	add := func(v float64) {
		if v > 0 && !seen[v] {
			seen[v] = true
			levels = append(levels, v)
		}
	}
	for v := in.Underlying - span; v <= in.Underlying+span+step/2; v += step {
		add(rnd(v))
	}
	add(rnd(in.Strike))
	add(rnd(in.Underlying))
	sort.Float64s(levels)

	rows := make([]StressRow, 0, len(levels))
	for _, ul := range levels {
		iv := intrinsic(in.Type, ul, in.Strike)
		pl := (iv - in.Premium) * in.Multiplier * in.Qty
		if in.Side == Seller {
			pl = -pl
		}
		rows = append(rows, StressRow{
			Underlying: ul,
			Intrinsic:  iv,
			PL:         pl,
			AtStrike:   ul == rnd(in.Strike),
			AtSpot:     ul == rnd(in.Underlying),
		})
	}
	return rows
}
