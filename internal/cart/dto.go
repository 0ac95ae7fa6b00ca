package cart

// LineItem is a cart line joined with its catalog row. UnitPriceCents is the
// snapshot taken when the line was created, not the current catalog price.
type LineItem struct {
	ItemID         int64   `json:"item_id"`
	Title          string  `json:"title"`
	Quantity       int     `json:"quantity"`
	UnitPriceCents int     `json:"unit_price_cents"`
	StockLimit     *int    `json:"stock_limit,omitempty"`
	CoverURL       *string `json:"cover_url,omitempty"`
}

// Cart is the full server-of-record cart view returned to clients.
type Cart struct {
	Items         []LineItem `json:"items"`
	TotalQuantity int        `json:"total_quantity"`
	SubtotalCents int        `json:"subtotal_cents"`
}

// MergeLine is one guest-cart line submitted for reconciliation.
type MergeLine struct {
	ItemID   int64 `json:"item_id" validate:"required"`
	Quantity int   `json:"quantity" validate:"required,min=1"`
}

func newCart(items []LineItem) *Cart {
	cart := &Cart{Items: items}
	if cart.Items == nil {
		cart.Items = []LineItem{}
	}
	for _, item := range cart.Items {
		cart.TotalQuantity += item.Quantity
		cart.SubtotalCents += item.Quantity * item.UnitPriceCents
	}
	return cart
}
