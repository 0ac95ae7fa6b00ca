package storefront

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rilegato/rilegato-backend/pkg/enums"
	"github.com/rilegato/rilegato-backend/pkg/logger"
)

const syncCallTimeout = 10 * time.Second

type cartSyncer interface {
	AddItem(ctx context.Context, itemID int64, quantity int) error
	UpdateItem(ctx context.Context, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, itemID int64) error
	ClearCart(ctx context.Context) error
}

// CartStore holds the client's authoritative in-memory cart. Every mutation
// clamps quantities to [0, stockLimit] and recomputes totals from scratch.
// Before the server merge it persists a guest snapshot after each change;
// after the merge, changes are mirrored to the server fire-and-forget and the
// guest snapshot is no longer written.
type CartStore struct {
	mu      sync.Mutex
	items   []LineItem
	totals  Totals
	state   enums.MergeState
	storage Storage
	sync    cartSyncer
	logg    *logger.Logger
}

// NewCartStore builds a store hydrated from the guest snapshot, if one exists.
func NewCartStore(storage Storage, sync cartSyncer, logg *logger.Logger) (*CartStore, error) {
	if storage == nil {
		return nil, fmt.Errorf("guest storage required")
	}
	store := &CartStore{
		storage: storage,
		sync:    sync,
		logg:    logg,
		state:   enums.MergeStateNotMerged,
		totals:  computeTotals(nil),
	}
	stored, err := storage.Load()
	if err != nil {
		return nil, fmt.Errorf("loading guest snapshot: %w", err)
	}
	store.items = fromStored(stored)
	store.totals = computeTotals(store.items)
	return store, nil
}

// Items returns a copy of the current lines.
func (s *CartStore) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// ItemRefs returns the wire shape of the current lines.
func (s *CartStore) ItemRefs() []ItemRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make([]ItemRef, 0, len(s.items))
	for _, item := range s.items {
		refs = append(refs, ItemRef{ItemID: item.ItemID, Quantity: item.Quantity})
	}
	return refs
}

// Totals returns the derived summary.
func (s *CartStore) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

// MergeState returns the reconciliation state.
func (s *CartStore) MergeState() enums.MergeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BeginMerge transitions NotMerged to Merging. A false return means a merge
// already ran or is running; callers must not start another.
func (s *CartStore) BeginMerge() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != enums.MergeStateNotMerged {
		return false
	}
	s.state = enums.MergeStateMerging
	return true
}

// FinishMerge marks the merge terminal. No reconciliation runs again for the
// lifetime of this store.
func (s *CartStore) FinishMerge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == enums.MergeStateMerging {
		s.state = enums.MergeStateMerged
	}
}

// AbortMerge reopens the store for a later reconciliation attempt.
func (s *CartStore) AbortMerge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == enums.MergeStateMerging {
		s.state = enums.MergeStateNotMerged
	}
}

// AddItem inserts a line or raises the quantity of an existing one.
func (s *CartStore) AddItem(item LineItem) {
	s.mu.Lock()
	applied := 0
	found := false
	for i := range s.items {
		if s.items[i].ItemID != item.ItemID {
			continue
		}
		s.items[i].Quantity = clamp(s.items[i].Quantity+item.Quantity, s.items[i].StockLimit)
		applied = s.items[i].Quantity
		found = true
		break
	}
	if !found {
		item.Quantity = clamp(item.Quantity, item.StockLimit)
		if item.Quantity > 0 {
			s.items = append(s.items, item)
			applied = item.Quantity
		}
	}
	s.recomputeLocked()
	s.mu.Unlock()

	if applied > 0 {
		s.afterMutation("add", func(ctx context.Context) error {
			if found {
				return s.sync.UpdateItem(ctx, item.ItemID, applied)
			}
			return s.sync.AddItem(ctx, item.ItemID, applied)
		})
	}
}

// UpdateQuantity sets a line's quantity, clamped to the stock limit. Zero or
// below removes the line.
func (s *CartStore) UpdateQuantity(itemID int64, quantity int) {
	s.mu.Lock()
	applied := -1
	for i := range s.items {
		if s.items[i].ItemID != itemID {
			continue
		}
		next := clamp(quantity, s.items[i].StockLimit)
		if next <= 0 {
			s.items = append(s.items[:i], s.items[i+1:]...)
			applied = 0
		} else {
			s.items[i].Quantity = next
			applied = next
		}
		break
	}
	s.recomputeLocked()
	s.mu.Unlock()

	switch {
	case applied > 0:
		s.afterMutation("update", func(ctx context.Context) error {
			return s.sync.UpdateItem(ctx, itemID, applied)
		})
	case applied == 0:
		s.afterMutation("remove", func(ctx context.Context) error {
			return s.sync.RemoveItem(ctx, itemID)
		})
	}
}

// RemoveItem drops a line. Removing an absent line is a no-op.
func (s *CartStore) RemoveItem(itemID int64) {
	s.mu.Lock()
	removed := false
	for i := range s.items {
		if s.items[i].ItemID == itemID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			removed = true
			break
		}
	}
	s.recomputeLocked()
	s.mu.Unlock()

	if removed {
		s.afterMutation("remove", func(ctx context.Context) error {
			return s.sync.RemoveItem(ctx, itemID)
		})
	}
}

// Clear empties the cart.
func (s *CartStore) Clear() {
	s.mu.Lock()
	s.items = nil
	s.recomputeLocked()
	s.mu.Unlock()

	s.afterMutation("clear", func(ctx context.Context) error {
		return s.sync.ClearCart(ctx)
	})
}

// ReplaceWithServerCart swaps the local lines for the server's truth. This is
// not a mutation of the user's making: no snapshot write, no sync call.
func (s *CartStore) ReplaceWithServerCart(items []LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]LineItem, len(items))
	copy(s.items, items)
	s.recomputeLocked()
}

// Flush persists the guest snapshot if the store is still in guest mode.
func (s *CartStore) Flush() error {
	s.mu.Lock()
	merged := s.state == enums.MergeStateMerged
	stored := toStored(s.items)
	s.mu.Unlock()
	if merged {
		return nil
	}
	return s.storage.Save(stored)
}

// recomputeLocked derives totals from the items. Caller holds the mutex.
func (s *CartStore) recomputeLocked() {
	s.totals = computeTotals(s.items)
}

// afterMutation runs the persistence side effect for a user mutation. The
// in-memory state is already committed and stands regardless of the outcome;
// failures are logged here and nowhere else.
func (s *CartStore) afterMutation(op string, syncCall func(ctx context.Context) error) {
	s.mu.Lock()
	merged := s.state == enums.MergeStateMerged
	stored := toStored(s.items)
	s.mu.Unlock()

	if !merged {
		if err := s.storage.Save(stored); err != nil && s.logg != nil {
			s.logg.Error(context.Background(), "guest snapshot write failed: "+op, err)
		}
		return
	}
	if s.sync == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncCallTimeout)
		defer cancel()
		if err := syncCall(ctx); err != nil && s.logg != nil {
			s.logg.Error(ctx, "cart sync failed: "+op, err)
		}
	}()
}

func clamp(quantity int, stockLimit *int) int {
	if quantity < 0 {
		return 0
	}
	if stockLimit != nil && quantity > *stockLimit {
		return *stockLimit
	}
	return quantity
}
