package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParcelDimensions are the outer parcel measurements in centimeters.
type ParcelDimensions struct {
	LengthCm float64 `json:"length_cm"`
	WidthCm  float64 `json:"width_cm"`
	HeightCm float64 `json:"height_cm"`
}

// WeightBreakdown splits the parcel weight into contents and packaging.
type WeightBreakdown struct {
	BooksGrams     int `json:"books_grams"`
	PackagingGrams int `json:"packaging_grams"`
}

// Quote is a normalized carrier shipping quote. A zero amount with a nil
// provider is the "no quote available" sentinel and must never be shown as
// a real price.
type Quote struct {
	AmountEUR        decimal.Decimal   `json:"amount_eur"`
	Provider         *string           `json:"provider"`
	Service          *string           `json:"service"`
	ETADateMin       *time.Time        `json:"eta_date_min"`
	ETADateMax       *time.Time        `json:"eta_date_max"`
	ParcelDimensions *ParcelDimensions `json:"parcel_dimensions_cm"`
	WeightBreakdown  *WeightBreakdown  `json:"weight_breakdown"`
}

// NoQuote returns the sentinel quote.
func NoQuote() Quote {
	return Quote{AmountEUR: decimal.Zero}
}

// IsSentinel reports whether the quote is the "no quote available" value.
func (q Quote) IsSentinel() bool {
	return q.Provider == nil && q.AmountEUR.IsZero()
}
