package storefront

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/rilegato/rilegato-backend/pkg/logger"
)

// Session bundles the client-side cart machinery for one browsing session:
// the in-memory store, the one-shot reconciler and the debounced quote
// controller, all talking through one API client.
type Session struct {
	Store      *CartStore
	Reconciler *Reconciler
	Quotes     *QuoteController
	Client     *Client
}

// NewSession wires a full storefront session on top of the given storage and
// API client.
func NewSession(storage Storage, client *Client, logg *logger.Logger, opts ...ControllerOption) (*Session, error) {
	if client == nil {
		return nil, fmt.Errorf("api client required")
	}
	store, err := NewCartStore(storage, client, logg)
	if err != nil {
		return nil, err
	}
	reconciler, err := NewReconciler(store, client, storage, logg)
	if err != nil {
		return nil, err
	}
	quotes, err := NewQuoteController(client, store, opts...)
	if err != nil {
		return nil, err
	}
	return &Session{
		Store:      store,
		Reconciler: reconciler,
		Quotes:     quotes,
		Client:     client,
	}, nil
}

// Close stops the quote controller and flushes any guest snapshot. Both run
// even when one fails; errors are aggregated.
func (s *Session) Close() error {
	return multierr.Combine(
		s.Quotes.Close(),
		s.Store.Flush(),
	)
}
