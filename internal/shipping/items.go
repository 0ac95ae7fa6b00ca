package shipping

// RequestItem identifies a cart line by catalog id and quantity. This is all
// the storefront needs to send; physical attributes are resolved server-side.
type RequestItem struct {
	ItemID   int64 `json:"item_id" validate:"required"`
	Quantity int   `json:"quantity" validate:"required,min=1"`
}

// ResolvedItem is a RequestItem enriched with shipping-relevant physical
// attributes. Every field is populated; defaults stand in for missing
// catalog data.
type ResolvedItem struct {
	ItemID      int64   `json:"item_id"`
	Quantity    int     `json:"quantity"`
	WeightGrams int     `json:"weight_grams"`
	WidthCm     float64 `json:"width_cm"`
	HeightCm    float64 `json:"height_cm"`
	ThicknessCm float64 `json:"thickness_cm"`
}

// TotalWeightGrams sums item weight across quantities.
func TotalWeightGrams(items []ResolvedItem) int {
	total := 0
	for _, item := range items {
		total += item.WeightGrams * item.Quantity
	}
	return total
}
