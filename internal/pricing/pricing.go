// Package pricing computes checkout shipping, tax and totals.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// FreeShippingThreshold is the subtotal from which shipping is free.
	FreeShippingThreshold = decimal.NewFromInt(100)

	// DefaultShippingRate applies to countries without a listed rate.
	DefaultShippingRate = decimal.NewFromInt(30)

	shippingRates = map[string]decimal.Decimal{
		"AR": decimal.NewFromInt(15),
		"US": decimal.NewFromInt(25),
		"BR": decimal.NewFromInt(20),
		"UY": decimal.NewFromInt(18),
		"CL": decimal.NewFromInt(20),
	}

	argentinaVAT = decimal.RequireFromString("0.21")
	defaultTax   = decimal.RequireFromString("0.10")
)

// Totals is the price breakdown of an order. Total always equals
// Subtotal + Shipping + Tax.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

func normalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

// Shipping returns the flat shipping fee for country, or zero when subtotal
// reaches FreeShippingThreshold.
func Shipping(subtotal decimal.Decimal, country string) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	if rate, ok := shippingRates[normalizeCountry(country)]; ok {
		return rate
	}
	return DefaultShippingRate
}

// TaxRate returns the tax rate applied for country.
func TaxRate(country string) decimal.Decimal {
	if normalizeCountry(country) == "AR" {
		return argentinaVAT
	}
	return defaultTax
}

// Tax returns subtotal × rate rounded to cents.
func Tax(subtotal decimal.Decimal, country string) decimal.Decimal {
	return subtotal.Mul(TaxRate(country)).Round(2)
}

// Compute returns the full breakdown for subtotal shipped to country.
func Compute(subtotal decimal.Decimal, country string) Totals {
	shipping := Shipping(subtotal, country)
	tax := Tax(subtotal, country)
	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}
