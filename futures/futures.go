// Package futures computes margin usage, liquidation levels and stress
// ladders for index and single-stock futures positions.
package futures

import (
	"math"

	"tradeguard-go/risk"
)

type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// 股票期货保证金 = 现货价 × 乘数 × 比率；比率可由交易所级距覆盖。
const (
	DefaultStockIMRate = 0.135
	DefaultStockMMRate = 0.1035
)

var stressSteps = []float64{10, 8, 6, 5, 4, 3, 2, 1, 0, -1, -2, -3, -4, -5, -6, -8, -10, -12, -15, -20}

// Input 期货部位输入。InitialEquity 为 0 时取 3 倍原始保证金。
type Input struct {
	Side          Side    `json:"side"`
	EntryPrice    float64 `json:"entryPrice"`
	CurrentPrice  float64 `json:"currentPrice"` // 0 → 同進場
	Qty           float64 `json:"qty"`
	Multiplier    float64 `json:"multiplier"`
	InitialMargin float64 `json:"initialMargin"` // 每口
	MaintMargin   float64 `json:"maintMargin"`   // 每口
	InitialEquity float64 `json:"initialEquity"`
	Commission    float64 `json:"commission"` // 每口单边
	TaxRate       float64 `json:"taxRate"`    // 期交税率，双边各计一次
}

type StressRow struct {
	MovePct    float64    `json:"movePct"`
	Price      float64    `json:"price"`
	PL         float64    `json:"pl"`
	Equity     float64    `json:"equity"`
	RiskIndex  float64    `json:"riskIndex"`
	Level      risk.Level `json:"level"`
	MarginCall bool       `json:"marginCall"`
	Liquidated bool       `json:"liquidated"`
	Current    bool       `json:"current"`
}

// Result 期货计算输出。RiskIndex 为百分比（275 = 275%）。
type Result struct {
	TotalIM      float64 `json:"totalIM"`
	TotalMM      float64 `json:"totalMM"`
	PointValue   float64 `json:"pointValue"` // 每点损益（乘数 × 口数）
	PointDiff    float64 `json:"pointDiff"`
	UnrealizedPL float64 `json:"unrealizedPL"`
	Equity       float64 `json:"equity"`
	RiskIndex    float64 `json:"riskIndex"`
	CallLevel    float64 `json:"callLevel"`
	ForcedLevel  float64 `json:"forcedLevel"`
	// 触发价位距现价的百分比，负值代表在下方
	CallDistancePct   float64 `json:"callDistancePct,omitempty"`
	ForcedDistancePct float64 `json:"forcedDistancePct,omitempty"`
	Fees              float64 `json:"fees"`
	NetPL             float64 `json:"netPL"`

	Level  risk.Level  `json:"level"`
	Stress []StressRow `json:"stress,omitempty"`
}

// Compute evaluates one futures position. ok=false means insufficient
// input (entry price, quantity or multiplier missing).
func Compute(in Input) (Result, bool) {
	if in.EntryPrice <= 0 || in.Qty <= 0 || in.Multiplier <= 0 {
		return Result{}, false
	}
	cp := in.CurrentPrice
	if cp <= 0 {
		cp = in.EntryPrice
	}

	totalIM := in.InitialMargin * in.Qty
	totalMM := in.MaintMargin * in.Qty
	ppm := in.Multiplier * in.Qty

	pd := cp - in.EntryPrice
	if in.Side == Short {
		pd = in.EntryPrice - cp
	}
	upl := pd * ppm

	initEq := in.InitialEquity
	if initEq <= 0 {
		initEq = 3 * totalIM
	}
	equity := initEq + upl

	fees := in.Commission*in.Qty*2 + (in.EntryPrice+cp)*in.Multiplier*in.Qty*in.TaxRate

	r := Result{
		TotalIM:      totalIM,
		TotalMM:      totalMM,
		PointValue:   ppm,
		PointDiff:    pd,
		UnrealizedPL: upl,
		Equity:       equity,
		Fees:         fees,
		NetPL:        upl - fees,
	}
	if totalIM > 0 {
		r.RiskIndex = equity / totalIM * 100
	}
	r.Level = classify(equity, totalIM, totalMM, r.RiskIndex)

	// 追缴价位：权益吃到维持保证金；强平价位：权益剩 25% 原始保证金。
	if ppm > 0 {
		callMove := (initEq - totalMM) / ppm
		forcedMove := (initEq - 0.25*totalIM) / ppm
		if in.Side == Short {
			r.CallLevel = in.EntryPrice + callMove
			r.ForcedLevel = in.EntryPrice + forcedMove
		} else {
			r.CallLevel = in.EntryPrice - callMove
			r.ForcedLevel = in.EntryPrice - forcedMove
		}
		if cp > 0 {
			r.CallDistancePct = (r.CallLevel - cp) / cp * 100
			r.ForcedDistancePct = (r.ForcedLevel - cp) / cp * 100
		}
	}

	for _, p := range stressSteps {
		price := in.EntryPrice * (1 + p/100)
		d := price - in.EntryPrice
		if in.Side == Short {
			d = -d
		}
		pl := d * ppm
		eq := initEq + pl
		var ri float64
		if totalIM > 0 {
			ri = eq / totalIM * 100
		}
		r.Stress = append(r.Stress, StressRow{
			MovePct:    p,
			Price:      price,
			PL:         pl,
			Equity:     eq,
			RiskIndex:  ri,
			Level:      classify(eq, totalIM, totalMM, ri),
			MarginCall: eq < totalMM,
			Liquidated: eq <= 0.25*totalIM,
			Current:    p == 0,
		})
	}
	return r, true
}

// classify 风险指标 ≤25% 强平区、≤50% 注意；权益低于维持保证金为
// 危险。两个判据各给一档，取较重的那档。
func classify(equity, totalIM, totalMM, riskIndex float64) risk.Level {
	if totalIM <= 0 {
		return risk.Safe
	}
	byIndex := risk.Safe
	switch {
	case riskIndex <= 25:
		byIndex = risk.Critical
	case riskIndex <= 50:
		byIndex = risk.Caution
	}
	byEquity := risk.Safe
	if equity <= totalMM {
		byEquity = risk.Danger
	}
	if risk.Severity(byEquity) > risk.Severity(byIndex) {
		return byEquity
	}
	return byIndex
}

// MarginFromSpot derives per-lot stock futures margins from the spot
// price. Zero rates fall back to the exchange-wide approximation.
func MarginFromSpot(spot, multiplier, imRate, mmRate float64) (im, mm float64) {
	if spot <= 0 || multiplier <= 0 {
		return 0, 0
	}
	if imRate <= 0 {
		imRate = DefaultStockIMRate
	}
	if mmRate <= 0 {
		mmRate = DefaultStockMMRate
	}
	notional := spot * multiplier
	return math.Round(notional * imRate), math.Round(notional * mmRate)
}
