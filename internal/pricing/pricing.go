// Package pricing computes cart prices. Pure functions, no I/O: the result
// is fixed at checkout-session creation and only recorded by fulfillment.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/surfpix/order-service/internal/orders"
)

// Digital photos are tiered on total cart quantity: first unit at base
// price, second cheaper, third and beyond cheaper still. Which specific
// photos are in the cart does not matter.
var (
	digitalBase  = decimal.NewFromInt(15)
	digitalTier2 = decimal.NewFromInt(10)
	digitalTier3 = decimal.NewFromInt(5)
)

var printPrices = map[orders.ProductType]decimal.Decimal{
	orders.ProductPrintA5: decimal.NewFromInt(20),
	orders.ProductPrintA4: decimal.NewFromInt(30),
	orders.ProductPrintA3: decimal.NewFromInt(45),
	orders.ProductPrintA2: decimal.NewFromInt(65),
}

var deliverySurcharges = map[orders.ProductType]decimal.Decimal{
	orders.ProductPrintA5: decimal.NewFromInt(5),
	orders.ProductPrintA4: decimal.NewFromInt(5),
	orders.ProductPrintA3: decimal.NewFromInt(8),
	orders.ProductPrintA2: decimal.NewFromInt(12),
}

type Tier struct {
	Count     int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

type Calculation struct {
	Tiers    []Tier
	Subtotal decimal.Decimal // count x base price, before discounts
	Savings  decimal.Decimal // rounded to 2dp at reporting
	Total    decimal.Decimal
}

// Calculate prices photoCount units of one product type. Total over all
// non-negative counts and all enumerated product types; an unknown product
// type is a programming error and panics.
func Calculate(photoCount int, productType orders.ProductType) Calculation {
	if photoCount <= 0 {
		zero := decimal.Zero
		return Calculation{Subtotal: zero, Savings: zero, Total: zero}
	}

	if productType != orders.ProductDigital {
		unit := printPrice(productType)
		total := unit.Mul(decimal.NewFromInt(int64(photoCount)))
		return Calculation{
			Tiers:    []Tier{{Count: photoCount, UnitPrice: unit, Subtotal: total}},
			Subtotal: total,
			Savings:  decimal.Zero,
			Total:    total,
		}
	}

	tiers := make([]Tier, 0, 3)
	addTier := func(count int, unit decimal.Decimal) {
		if count <= 0 {
			return
		}
		tiers = append(tiers, Tier{
			Count:     count,
			UnitPrice: unit,
			Subtotal:  unit.Mul(decimal.NewFromInt(int64(count))),
		})
	}
	addTier(min(photoCount, 1), digitalBase)
	addTier(min(photoCount-1, 1), digitalTier2)
	addTier(photoCount-2, digitalTier3)

	total := decimal.Zero
	for _, t := range tiers {
		total = total.Add(t.Subtotal)
	}
	subtotal := digitalBase.Mul(decimal.NewFromInt(int64(photoCount)))

	return Calculation{
		Tiers:    tiers,
		Subtotal: subtotal,
		Savings:  subtotal.Sub(total).Round(2),
		Total:    total,
	}
}

// NextPhotoPrice returns the marginal price of the next unit added to a
// cart already holding currentCount units of the given type.
func NextPhotoPrice(currentCount int, productType orders.ProductType) decimal.Decimal {
	if productType != orders.ProductDigital {
		return printPrice(productType)
	}
	switch {
	case currentCount <= 0:
		return digitalBase
	case currentCount == 1:
		return digitalTier2
	default:
		return digitalTier3
	}
}

// DeliverySurcharge is a flat per-format fee for shipped prints. Pickup is
// always free, as is anything digital.
func DeliverySurcharge(productType orders.ProductType, option orders.DeliveryOption) decimal.Decimal {
	if option != orders.DeliveryShipping || productType == orders.ProductDigital {
		return decimal.Zero
	}
	s, ok := deliverySurcharges[productType]
	if !ok {
		panic(fmt.Sprintf("pricing: unknown product type %q", productType))
	}
	return s
}

func printPrice(productType orders.ProductType) decimal.Decimal {
	p, ok := printPrices[productType]
	if !ok {
		panic(fmt.Sprintf("pricing: unknown product type %q", productType))
	}
	return p
}
