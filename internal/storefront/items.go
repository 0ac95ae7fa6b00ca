package storefront

import "github.com/shopspring/decimal"

// LineItem is one in-memory cart line with the catalog fields the UI needs.
// StockLimit nil means unlimited.
type LineItem struct {
	ItemID     int64
	Quantity   int
	UnitPrice  decimal.Decimal
	Title      string
	Image      string
	StockLimit *int
}

// ItemRef identifies a line by catalog id and quantity on the wire. Merge
// payloads and quote requests both use this shape.
type ItemRef struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// Totals is the derived cart summary, recomputed from the items after every
// mutation rather than adjusted incrementally.
type Totals struct {
	Items int
	Price decimal.Decimal
}

func computeTotals(items []LineItem) Totals {
	totals := Totals{Price: decimal.Zero}
	for _, item := range items {
		totals.Items += item.Quantity
		totals.Price = totals.Price.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return totals
}

func toStored(items []LineItem) []StoredItem {
	stored := make([]StoredItem, 0, len(items))
	for _, item := range items {
		stored = append(stored, StoredItem{
			ItemID:     item.ItemID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Title:      item.Title,
			Image:      item.Image,
			StockLimit: item.StockLimit,
		})
	}
	return stored
}

func fromStored(items []StoredItem) []LineItem {
	lines := make([]LineItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		lines = append(lines, LineItem{
			ItemID:     item.ItemID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Title:      item.Title,
			Image:      item.Image,
			StockLimit: item.StockLimit,
		})
	}
	return lines
}
