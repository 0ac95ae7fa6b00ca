package storefront

import (
	"context"
	"fmt"

	pkgerrors "github.com/rilegato/rilegato-backend/pkg/errors"
	"github.com/rilegato/rilegato-backend/pkg/logger"
)

type cartAPI interface {
	GetCart(ctx context.Context) ([]LineItem, error)
	MergeCart(ctx context.Context, items []ItemRef) error
}

// Reconciler performs the one-shot guest-to-server cart merge after login.
// Presence on the server wins: guest lines for items the server already has
// are dropped, never summed, so the same cart on two devices cannot
// double-count.
type Reconciler struct {
	store   *CartStore
	api     cartAPI
	storage Storage
	logg    *logger.Logger
}

// NewReconciler wires the reconciler.
func NewReconciler(store *CartStore, api cartAPI, storage Storage, logg *logger.Logger) (*Reconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if api == nil {
		return nil, fmt.Errorf("cart api required")
	}
	if storage == nil {
		return nil, fmt.Errorf("guest storage required")
	}
	return &Reconciler{store: store, api: api, storage: storage, logg: logg}, nil
}

// Reconcile runs the merge once. The steps run in strict order: fetch server
// cart, diff, submit missing lines, clear guest storage, re-fetch, replace
// local state, mark merged. Any failure before the final step leaves the
// merge state unset so a later call can retry; the visible cart is never
// corrupted. Calling Reconcile after a completed merge is a no-op.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	if !r.store.BeginMerge() {
		return nil
	}

	guest, err := r.storage.Load()
	if err != nil {
		r.store.AbortMerge()
		r.logError(ctx, "loading guest snapshot failed", err)
		return err
	}
	local := fromStored(guest)

	server, err := r.api.GetCart(ctx)
	if err != nil {
		r.store.AbortMerge()
		if pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
			// Session not established yet. Expected during login races;
			// the next mount retries.
			return nil
		}
		r.logError(ctx, "fetching server cart failed", err)
		return err
	}

	present := make(map[int64]struct{}, len(server))
	for _, item := range server {
		present[item.ItemID] = struct{}{}
	}

	missing := make([]ItemRef, 0, len(local))
	for _, item := range local {
		if _, exists := present[item.ItemID]; exists {
			continue
		}
		missing = append(missing, ItemRef{ItemID: item.ItemID, Quantity: item.Quantity})
	}

	if len(missing) > 0 {
		// A failed submit does not abort: the server cart is still the
		// fallback truth and is re-fetched below.
		if err := r.api.MergeCart(ctx, missing); err != nil {
			r.logError(ctx, "submitting missing cart lines failed", err)
		}
	}

	// The merge has been attempted; the guest snapshot must never be
	// replayed, even if the submit above failed.
	if err := r.storage.Clear(); err != nil {
		r.logError(ctx, "clearing guest snapshot failed", err)
	}

	merged, err := r.api.GetCart(ctx)
	if err != nil {
		r.store.AbortMerge()
		r.logError(ctx, "re-fetching server cart failed", err)
		return err
	}

	r.store.ReplaceWithServerCart(merged)
	r.store.FinishMerge()
	return nil
}

func (r *Reconciler) logError(ctx context.Context, msg string, err error) {
	if r.logg != nil {
		r.logg.Error(ctx, msg, err)
	}
}
