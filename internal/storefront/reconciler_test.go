package storefront

import (
	"context"
	"sync"
	"testing"

	"github.com/rilegato/rilegato-backend/pkg/enums"
	pkgerrors "github.com/rilegato/rilegato-backend/pkg/errors"
)

// fakeCartAPI plays the server side of the merge: MergeCart appends the
// submitted lines to the server cart so the re-fetch sees them.
type fakeCartAPI struct {
	mu        sync.Mutex
	server    []LineItem
	getErr    error
	mergeErr  error
	getCalls  int
	submitted [][]ItemRef
}

func (f *fakeCartAPI) GetCart(_ context.Context) ([]LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make([]LineItem, len(f.server))
	copy(out, f.server)
	return out, nil
}

func (f *fakeCartAPI) MergeCart(_ context.Context, items []ItemRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	recorded := make([]ItemRef, len(items))
	copy(recorded, items)
	f.submitted = append(f.submitted, recorded)
	if f.mergeErr != nil {
		return f.mergeErr
	}
	for _, ref := range items {
		f.server = append(f.server, LineItem{ItemID: ref.ItemID, Quantity: ref.Quantity})
	}
	return nil
}

func (f *fakeCartAPI) submittedLines() [][]ItemRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted
}

func newTestReconciler(t *testing.T, guest []StoredItem, api *fakeCartAPI) (*Reconciler, *CartStore, *memStorage) {
	t.Helper()
	storage := &memStorage{items: guest}
	store, err := NewCartStore(storage, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reconciler, err := NewReconciler(store, api, storage, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return reconciler, store, storage
}

func TestReconcileGuestIntoEmptyServerCart(t *testing.T) {
	t.Parallel()

	api := &fakeCartAPI{}
	reconciler, store, storage := newTestReconciler(t, []StoredItem{
		{ItemID: 7, Quantity: 2, UnitPrice: price("15.00")},
	}, api)

	if err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	submitted := api.submittedLines()
	if len(submitted) != 1 || len(submitted[0]) != 1 {
		t.Fatalf("expected one merge with one line, got %+v", submitted)
	}
	if submitted[0][0] != (ItemRef{ItemID: 7, Quantity: 2}) {
		t.Fatalf("unexpected merge payload %+v", submitted[0][0])
	}

	if got := storage.snapshot(); len(got) != 0 {
		t.Fatalf("expected guest snapshot cleared, got %+v", got)
	}
	if store.MergeState() != enums.MergeStateMerged {
		t.Fatalf("expected merged state, got %s", store.MergeState())
	}
	items := store.Items()
	if len(items) != 1 || items[0].ItemID != 7 || items[0].Quantity != 2 {
		t.Fatalf("unexpected local cart %+v", items)
	}
}

func TestReconcileServerPresenceWins(t *testing.T) {
	t.Parallel()

	api := &fakeCartAPI{server: []LineItem{testLine(7, 5, "15.00", nil)}}
	reconciler, store, _ := newTestReconciler(t, []StoredItem{
		{ItemID: 7, Quantity: 2, UnitPrice: price("15.00")},
		{ItemID: 9, Quantity: 1, UnitPrice: price("9.00")},
	}, api)

	if err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Item 7 exists server-side: only item 9 may be submitted, and the
	// server quantity for 7 must stand untouched.
	submitted := api.submittedLines()
	if len(submitted) != 1 || len(submitted[0]) != 1 || submitted[0][0].ItemID != 9 {
		t.Fatalf("expected only item 9 submitted, got %+v", submitted)
	}

	quantities := map[int64]int{}
	for _, item := range store.Items() {
		quantities[item.ItemID] = item.Quantity
	}
	if quantities[7] != 5 {
		t.Fatalf("expected server quantity 5 for item 7, got %d", quantities[7])
	}
	if quantities[9] != 1 {
		t.Fatalf("expected item 9 merged with quantity 1, got %d", quantities[9])
	}
}

func TestReconcileEmptyGuestCartSkipsMerge(t *testing.T) {
	t.Parallel()

	api := &fakeCartAPI{server: []LineItem{testLine(7, 5, "15.00", nil)}}
	reconciler, store, _ := newTestReconciler(t, nil, api)

	if err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.submittedLines()) != 0 {
		t.Fatal("expected no merge call for an empty guest cart")
	}
	if items := store.Items(); len(items) != 1 || items[0].Quantity != 5 {
		t.Fatalf("expected server cart adopted, got %+v", items)
	}
}

func TestReconcileIsOneShot(t *testing.T) {
	t.Parallel()

	api := &fakeCartAPI{}
	reconciler, _, _ := newTestReconciler(t, []StoredItem{
		{ItemID: 7, Quantity: 2, UnitPrice: price("15.00")},
	}, api)

	if err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	callsAfterFirst := api.getCalls

	if err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.getCalls != callsAfterFirst {
		t.Fatal("expected the second reconcile to be a no-op")
	}
}

func TestReconcileFetchFailureLeavesStateRetryable(t *testing.T) {
	t.Parallel()

	api := &fakeCartAPI{getErr: pkgerrors.New(pkgerrors.CodeDependency, "server down")}
	reconciler, store, storage := newTestReconciler(t, []StoredItem{
		{ItemID: 7, Quantity: 2, UnitPrice: price("15.00")},
	}, api)

	if err := reconciler.Reconcile(context.Background()); err == nil {
		t.Fatal("expected error when the server cart cannot be fetched")
	}
	if store.MergeState() != enums.MergeStateNotMerged {
		t.Fatalf("expected not_merged after failure, got %s", store.MergeState())
	}
	if got := storage.snapshot(); len(got) != 1 {
		t.Fatalf("guest snapshot must survive a failed merge, got %+v", got)
	}

	// The server recovers; the next attempt completes.
	api.mu.Lock()
	api.getErr = nil
	api.mu.Unlock()
	if err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if store.MergeState() != enums.MergeStateMerged {
		t.Fatalf("expected merged after retry, got %s", store.MergeState())
	}
}

func TestReconcileUnauthorizedIsSilent(t *testing.T) {
	t.Parallel()

	api := &fakeCartAPI{getErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "no session")}
	reconciler, store, _ := newTestReconciler(t, []StoredItem{
		{ItemID: 7, Quantity: 2, UnitPrice: price("15.00")},
	}, api)

	if err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("unauthorized is not an error, got %v", err)
	}
	if store.MergeState() != enums.MergeStateNotMerged {
		t.Fatalf("expected not_merged, got %s", store.MergeState())
	}
	if len(api.submittedLines()) != 0 {
		t.Fatal("expected no merge attempt without a session")
	}
}

func TestReconcileSubmitFailureStillClearsAndFinishes(t *testing.T) {
	t.Parallel()

	api := &fakeCartAPI{
		server:   []LineItem{testLine(7, 5, "15.00", nil)},
		mergeErr: pkgerrors.New(pkgerrors.CodeDependency, "merge rejected"),
	}
	reconciler, store, storage := newTestReconciler(t, []StoredItem{
		{ItemID: 9, Quantity: 1, UnitPrice: price("9.00")},
	}, api)

	if err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The snapshot is gone either way: a failed submit must never be
	// replayed on the next login.
	if got := storage.snapshot(); len(got) != 0 {
		t.Fatalf("expected guest snapshot cleared, got %+v", got)
	}
	if store.MergeState() != enums.MergeStateMerged {
		t.Fatalf("expected merged, got %s", store.MergeState())
	}
	// Local state falls back to the server truth without the lost line.
	items := store.Items()
	if len(items) != 1 || items[0].ItemID != 7 {
		t.Fatalf("expected server cart adopted, got %+v", items)
	}
}
