package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfpix/order-service/internal/orders"
)

// closedFormDigital is the reference total: 0, 15, 25, then +5 per unit.
func closedFormDigital(n int) decimal.Decimal {
	switch {
	case n <= 0:
		return decimal.Zero
	case n == 1:
		return decimal.NewFromInt(15)
	case n == 2:
		return decimal.NewFromInt(25)
	default:
		return decimal.NewFromInt(25 + 5*int64(n-2))
	}
}

func TestCalculateDigitalMatchesClosedForm(t *testing.T) {
	for n := 0; n <= 50; n++ {
		c := Calculate(n, orders.ProductDigital)
		want := closedFormDigital(n)
		require.True(t, c.Total.Equal(want), "n=%d total=%s want=%s", n, c.Total, want)

		// subtotal - total == savings, exactly.
		require.True(t, c.Subtotal.Sub(c.Total).Equal(c.Savings), "n=%d", n)
	}
}

func TestCalculateDigitalTierBreakdown(t *testing.T) {
	c := Calculate(5, orders.ProductDigital)
	require.Len(t, c.Tiers, 3)

	assert.Equal(t, 1, c.Tiers[0].Count)
	assert.True(t, c.Tiers[0].UnitPrice.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 1, c.Tiers[1].Count)
	assert.True(t, c.Tiers[1].UnitPrice.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 3, c.Tiers[2].Count)
	assert.True(t, c.Tiers[2].UnitPrice.Equal(decimal.NewFromInt(5)))

	assert.True(t, c.Total.Equal(decimal.NewFromInt(40)))
	assert.True(t, c.Savings.Equal(decimal.NewFromInt(35)))
}

func TestCalculateZeroCount(t *testing.T) {
	for _, pt := range []orders.ProductType{
		orders.ProductDigital, orders.ProductPrintA5, orders.ProductPrintA4,
		orders.ProductPrintA3, orders.ProductPrintA2,
	} {
		c := Calculate(0, pt)
		assert.True(t, c.Total.IsZero(), "%s", pt)
		assert.True(t, c.Subtotal.IsZero(), "%s", pt)
		assert.True(t, c.Savings.IsZero(), "%s", pt)
		assert.Empty(t, c.Tiers)
	}
}

func TestCalculatePrintsFlatNoSavings(t *testing.T) {
	prices := map[orders.ProductType]int64{
		orders.ProductPrintA5: 20,
		orders.ProductPrintA4: 30,
		orders.ProductPrintA3: 45,
		orders.ProductPrintA2: 65,
	}
	for pt, unit := range prices {
		for n := 1; n <= 10; n++ {
			c := Calculate(n, pt)
			want := decimal.NewFromInt(unit * int64(n))
			require.True(t, c.Total.Equal(want), "%s n=%d", pt, n)
			require.True(t, c.Savings.IsZero(), "%s n=%d", pt, n)
			require.Len(t, c.Tiers, 1)
		}
	}
}

func TestNextPhotoPriceMatchesMarginalDelta(t *testing.T) {
	for k := 0; k <= 20; k++ {
		delta := closedFormDigital(k + 1).Sub(closedFormDigital(k))
		got := NextPhotoPrice(k, orders.ProductDigital)
		require.True(t, got.Equal(delta), "k=%d got=%s want=%s", k, got, delta)
	}

	// Prints are flat regardless of cart size.
	for k := 0; k <= 5; k++ {
		assert.True(t, NextPhotoPrice(k, orders.ProductPrintA3).Equal(decimal.NewFromInt(45)))
	}
}

func TestDeliverySurcharge(t *testing.T) {
	assert.True(t, DeliverySurcharge(orders.ProductPrintA5, orders.DeliveryShipping).Equal(decimal.NewFromInt(5)))
	assert.True(t, DeliverySurcharge(orders.ProductPrintA2, orders.DeliveryShipping).Equal(decimal.NewFromInt(12)))

	// Pickup is always free; digital never ships.
	assert.True(t, DeliverySurcharge(orders.ProductPrintA2, orders.DeliveryPickup).IsZero())
	assert.True(t, DeliverySurcharge(orders.ProductDigital, orders.DeliveryShipping).IsZero())
}

func TestUnknownProductTypePanics(t *testing.T) {
	assert.Panics(t, func() { Calculate(1, orders.ProductType("poster")) })
	assert.Panics(t, func() { NextPhotoPrice(0, orders.ProductType("poster")) })
}
