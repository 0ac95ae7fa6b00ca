package shipping

import (
	"context"
	"fmt"

	"github.com/rilegato/rilegato-backend/pkg/db/models"
	"github.com/rilegato/rilegato-backend/pkg/logger"
)

// Shipping defaults applied per unit when catalog data is absent or
// non-positive. A paperback of unknown size ships as 500 g, 13x20x3 cm.
const (
	DefaultWeightGrams = 500
	DefaultWidthCm     = 13
	DefaultHeightCm    = 20
	DefaultThicknessCm = 3
)

type catalogLoader interface {
	ShippingAttributes(ctx context.Context, ids []int64) (map[int64]models.Book, error)
}

// Resolver turns bare cart lines into fully populated shipping items.
type Resolver struct {
	catalog catalogLoader
	logg    *logger.Logger
}

// NewResolver builds a resolver backed by the catalog.
func NewResolver(catalog catalogLoader, logg *logger.Logger) (*Resolver, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	return &Resolver{catalog: catalog, logg: logg}, nil
}

// Resolve enriches every item with physical attributes, substituting defaults
// for missing data. It never fails: on a total catalog failure all items fall
// back to defaults so callers can treat resolution as infallible.
func (r *Resolver) Resolve(ctx context.Context, items []RequestItem) []ResolvedItem {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ItemID)
	}

	books, err := r.catalog.ShippingAttributes(ctx, ids)
	if err != nil {
		if r.logg != nil {
			r.logg.Error(ctx, "catalog lookup failed, using shipping defaults", err)
		}
		books = nil
	}

	resolved := make([]ResolvedItem, 0, len(items))
	for _, item := range items {
		book, ok := books[item.ItemID]
		if !ok {
			resolved = append(resolved, defaultedItem(item))
			continue
		}
		resolved = append(resolved, ResolvedItem{
			ItemID:      item.ItemID,
			Quantity:    item.Quantity,
			WeightGrams: intOrDefault(book.WeightGrams, DefaultWeightGrams),
			WidthCm:     floatOrDefault(book.WidthCm, DefaultWidthCm),
			HeightCm:    floatOrDefault(book.HeightCm, DefaultHeightCm),
			ThicknessCm: floatOrDefault(book.ThicknessCm, DefaultThicknessCm),
		})
	}
	return resolved
}

func defaultedItem(item RequestItem) ResolvedItem {
	return ResolvedItem{
		ItemID:      item.ItemID,
		Quantity:    item.Quantity,
		WeightGrams: DefaultWeightGrams,
		WidthCm:     DefaultWidthCm,
		HeightCm:    DefaultHeightCm,
		ThicknessCm: DefaultThicknessCm,
	}
}

func intOrDefault(value *int, fallback int) int {
	if value == nil || *value <= 0 {
		return fallback
	}
	return *value
}

func floatOrDefault(value *float64, fallback float64) float64 {
	if value == nil || *value <= 0 {
		return fallback
	}
	return *value
}
