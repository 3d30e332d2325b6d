package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSellerCallMargin(t *testing.T) {
	in := Input{
		Type:       Call,
		Side:       Seller,
		Underlying: 500,
		Strike:     520,
		Premium:    5,
		Qty:        1,
		Multiplier: 100,
		RiskRatio:  0.15,
		MinRatio:   0.10,
	}
	r, ok := Compute(in)
	require.True(t, ok)

	// A = 500*100*0.15 - 20*100 = 5500, B = 500*100*0.10 = 5000
	// margin = max(A,B) + 5*100 = 6000
	assert.InDelta(t, 6000, r.SellerMarginPerLot, 1e-9)
	assert.InDelta(t, 6000, r.SellerMargin, 1e-9)
	assert.Equal(t, OTM, r.Moneyness)
	assert.False(t, r.MaxLoss.Bounded)
	assert.True(t, r.MaxGain.Bounded)
	assert.InDelta(t, 500, r.MaxGain.Amount, 1e-9)
}

func TestSellerMarginFloor(t *testing.T) {
	// 深价外时 A 跌破下限，保证金由 B 托底
	in := Input{
		Type:       Call,
		Side:       Seller,
		Underlying: 500,
		Strike:     560,
		Premium:    1,
		Qty:        2,
		Multiplier: 100,
	}
	r, ok := Compute(in)
	require.True(t, ok)

	// A = 7500-6000=1500, B = 5000 → 5000+100 = 5100 每口
	assert.InDelta(t, 5100, r.SellerMarginPerLot, 1e-9)
	assert.InDelta(t, 10200, r.SellerMargin, 1e-9)
}

func TestBuyerMaxLossBounded(t *testing.T) {
	in := Input{
		Type:       Call,
		Side:       Buyer,
		Underlying: 500,
		Strike:     520,
		Premium:    5,
		Qty:        3,
		Multiplier: 100,
		Commission: 20,
	}
	r, ok := Compute(in)
	require.True(t, ok)

	assert.True(t, r.MaxLoss.Bounded)
	assert.InDelta(t, 1500+120, r.MaxLoss.Amount, 1e-9)
	assert.False(t, r.MaxGain.Bounded)
	assert.Zero(t, r.SellerMargin)
}

func TestBuyerPutMaxGain(t *testing.T) {
	in := Input{
		Type:       Put,
		Side:       Buyer,
		Underlying: 500,
		Strike:     480,
		Premium:    4,
		Qty:        1,
		Multiplier: 100,
	}
	r, ok := Compute(in)
	require.True(t, ok)

	assert.True(t, r.MaxGain.Bounded)
	// (480-4)*100
	assert.InDelta(t, 47600, r.MaxGain.Amount, 1e-9)
	assert.Equal(t, OTM, r.Moneyness)
	assert.InDelta(t, 476, r.BreakEven, 1e-9)
}

func TestIntrinsicAndTimeValue(t *testing.T) {
	in := Input{
		Type:       Call,
		Side:       Buyer,
		Underlying: 530,
		Strike:     520,
		Premium:    14,
		Qty:        1,
		Multiplier: 100,
	}
	r, ok := Compute(in)
	require.True(t, ok)

	assert.InDelta(t, 10, r.Intrinsic, 1e-9)
	assert.InDelta(t, 4, r.TimeValue, 1e-9)
	assert.Equal(t, ITM, r.Moneyness)
	assert.InDelta(t, 534, r.BreakEven, 1e-9)
}

func TestExpiryPL(t *testing.T) {
	in := Input{
		Type:             Call,
		Side:             Buyer,
		Underlying:       500,
		Strike:           520,
		Premium:          5,
		Qty:              1,
		Multiplier:       100,
		ExpiryUnderlying: 540,
	}
	r, ok := Compute(in)
	require.True(t, ok)
	// (20-5)*100
	assert.InDelta(t, 1500, r.ExpiryPL, 1e-9)

	in.Side = Seller
	r, ok = Compute(in)
	require.True(t, ok)
	assert.InDelta(t, -1500, r.ExpiryPL, 1e-9)
}

func TestStressAnchors(t *testing.T) {
	in := Input{
		Type:       Call,
		Side:       Buyer,
		Underlying: 500,
		Strike:     523,
		Premium:    5,
		Qty:        1,
		Multiplier: 100,
	}
	r, ok := Compute(in)
	require.True(t, ok)
	require.NotEmpty(t, r.Stress)

	var atStrike, atSpot bool
	for i, row := range r.Stress {
		if row.AtStrike {
			atStrike = true
			assert.InDelta(t, 523, row.Underlying, 1e-9)
		}
		if row.AtSpot {
			atSpot = true
		}
		if i > 0 {
			assert.Greater(t, row.Underlying, r.Stress[i-1].Underlying)
		}
	}
	assert.True(t, atStrike)
	assert.True(t, atSpot)
}

func TestStressLowPricedUnderlying(t *testing.T) {
	// 低价标的的梯级不能被取整塌成同一档
	in := Input{
		Type:       Call,
		Side:       Buyer,
		Underlying: 0.5,
		Strike:     0.55,
		Premium:    0.02,
		Qty:        1,
		Multiplier: 1000,
	}
	r, ok := Compute(in)
	require.True(t, ok)
	require.Greater(t, len(r.Stress), 5)

	var atStrike, atSpot bool
	for _, row := range r.Stress {
		assert.Positive(t, row.Underlying)
		if row.AtStrike {
			atStrike = true
			assert.InDelta(t, 0.55, row.Underlying, 1e-9)
		}
		if row.AtSpot {
			atSpot = true
		}
	}
	assert.True(t, atStrike)
	assert.True(t, atSpot)
}

func TestInsufficientInput(t *testing.T) {
	_, ok := Compute(Input{Strike: 520, Qty: 1, Multiplier: 100})
	assert.False(t, ok)
	_, ok = Compute(Input{Underlying: 500, Qty: 1, Multiplier: 100})
	assert.False(t, ok)
	_, ok = Compute(Input{Underlying: 500, Strike: 520, Multiplier: 100})
	assert.False(t, ok)
}

func TestDefaultRatios(t *testing.T) {
	in := Input{
		Type:       Call,
		Side:       Seller,
		Underlying: 500,
		Strike:     520,
		Premium:    5,
		Qty:        1,
		Multiplier: 100,
	}
	r, ok := Compute(in)
	require.True(t, ok)
	assert.InDelta(t, 6000, r.SellerMarginPerLot, 1e-9)
}
