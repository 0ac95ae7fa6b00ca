package storefront

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rilegato/rilegato-backend/pkg/enums"
	pkgerrors "github.com/rilegato/rilegato-backend/pkg/errors"
	"github.com/rilegato/rilegato-backend/pkg/types"
)

type staticItems struct {
	refs []ItemRef
}

func (s staticItems) ItemRefs() []ItemRef {
	return s.refs
}

type scriptedFetcher struct {
	mu       sync.Mutex
	quote    types.Quote
	err      error
	calls    int
	lastDest types.Destination
}

func (f *scriptedFetcher) FetchQuote(_ context.Context, dest types.Destination, _ []ItemRef) (types.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastDest = dest
	return f.quote, f.err
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *scriptedFetcher) set(quote types.Quote, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quote = quote
	f.err = err
}

func quoteOf(amount, provider string) types.Quote {
	return types.Quote{AmountEUR: price(amount), Provider: &provider}
}

var controllerDest = types.Destination{CountryCode: "IT", PostalCode: "40121", City: "Bologna"}

func newTestController(t *testing.T, fetcher quoteFetcher, items itemSource) (*QuoteController, chan QuoteState) {
	t.Helper()
	updates := make(chan QuoteState, 64)
	controller, err := NewQuoteController(fetcher, items,
		WithDebounce(20*time.Millisecond),
		WithOnUpdate(func(state QuoteState) { updates <- state }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = controller.Close() })
	return controller, updates
}

func waitPhase(t *testing.T, updates chan QuoteState, phase enums.QuotePhase) QuoteState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case state := <-updates:
			if state.Phase == phase {
				return state
			}
		case <-deadline:
			t.Fatalf("timed out waiting for phase %s", phase)
		}
	}
}

func TestRapidEditsCollapseIntoOneRequest(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{quote: quoteOf("4.90", "poste")}
	controller, updates := newTestController(t, fetcher, staticItems{refs: []ItemRef{{ItemID: 7, Quantity: 2}}})

	for _, postal := range []string{"40121", "40122", "40123", "40124", "40125"} {
		controller.SetDestination(types.Destination{CountryCode: "IT", PostalCode: postal, City: "Bologna"})
	}

	waitPhase(t, updates, enums.QuotePhaseSettled)
	if got := fetcher.callCount(); got != 1 {
		t.Fatalf("expected one request for five rapid edits, got %d", got)
	}
	fetcher.mu.Lock()
	lastPostal := fetcher.lastDest.PostalCode
	fetcher.mu.Unlock()
	if lastPostal != "40125" {
		t.Fatalf("expected the last destination to win, got %q", lastPostal)
	}
}

func TestNoRequestWithoutPostalCode(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{quote: quoteOf("4.90", "poste")}
	controller, _ := newTestController(t, fetcher, staticItems{refs: []ItemRef{{ItemID: 7, Quantity: 2}}})

	controller.SetDestination(types.Destination{CountryCode: "IT", City: "Bologna"})
	time.Sleep(100 * time.Millisecond)

	if got := fetcher.callCount(); got != 0 {
		t.Fatalf("expected no request without a postal code, got %d", got)
	}
	if state := controller.State(); state.Phase != enums.QuotePhaseIdle {
		t.Fatalf("expected idle, got %s", state.Phase)
	}
}

func TestEmptyCartSettlesSentinelWithoutRequest(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{quote: quoteOf("4.90", "poste")}
	controller, updates := newTestController(t, fetcher, staticItems{})

	controller.SetDestination(controllerDest)
	state := waitPhase(t, updates, enums.QuotePhaseSettled)

	if fetcher.callCount() != 0 {
		t.Fatal("expected no outbound request for an empty cart")
	}
	if state.Quote == nil || !state.Quote.IsSentinel() {
		t.Fatalf("expected settled sentinel, got %+v", state.Quote)
	}
}

func TestRateLimitKeepsDisplayedQuote(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{quote: quoteOf("4.90", "poste")}
	controller, updates := newTestController(t, fetcher, staticItems{refs: []ItemRef{{ItemID: 7, Quantity: 2}}})

	controller.SetDestination(controllerDest)
	waitPhase(t, updates, enums.QuotePhaseSettled)

	fetcher.set(types.NoQuote(), pkgerrors.New(pkgerrors.CodeRateLimit, "slow down"))
	controller.ItemsChanged()

	state := waitPhase(t, updates, enums.QuotePhaseRateLimited)
	if !state.RetryLater {
		t.Fatal("expected retry-later flag")
	}
	if state.Quote == nil || state.Quote.AmountEUR.StringFixed(2) != "4.90" {
		t.Fatalf("expected the last settled quote preserved, got %+v", state.Quote)
	}
}

func TestFailureKeepsDisplayedQuote(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{quote: quoteOf("4.90", "poste")}
	controller, updates := newTestController(t, fetcher, staticItems{refs: []ItemRef{{ItemID: 7, Quantity: 2}}})

	controller.SetDestination(controllerDest)
	waitPhase(t, updates, enums.QuotePhaseSettled)

	fetcher.set(types.NoQuote(), pkgerrors.New(pkgerrors.CodeDependency, "carrier down"))
	controller.ItemsChanged()

	state := waitPhase(t, updates, enums.QuotePhaseFailed)
	if state.RetryLater {
		t.Fatal("failed is not retry-later")
	}
	if state.Quote == nil || state.Quote.AmountEUR.StringFixed(2) != "4.90" {
		t.Fatalf("expected the last settled quote preserved, got %+v", state.Quote)
	}
}

// slowThenFastFetcher blocks its first call until released; later calls
// return immediately with a different quote.
type slowThenFastFetcher struct {
	mu      sync.Mutex
	n       int
	started chan struct{}
	release chan struct{}
}

func (f *slowThenFastFetcher) FetchQuote(_ context.Context, _ types.Destination, _ []ItemRef) (types.Quote, error) {
	f.mu.Lock()
	f.n++
	call := f.n
	f.mu.Unlock()

	if call == 1 {
		close(f.started)
		<-f.release
		return quoteOf("9.99", "slow"), nil
	}
	return quoteOf("4.90", "fast"), nil
}

func TestSupersededResultIsDiscarded(t *testing.T) {
	t.Parallel()

	fetcher := &slowThenFastFetcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	controller, updates := newTestController(t, fetcher, staticItems{refs: []ItemRef{{ItemID: 7, Quantity: 2}}})

	controller.SetDestination(controllerDest)
	<-fetcher.started

	// A second edit while the first call hangs supersedes it.
	controller.SetDestination(types.Destination{CountryCode: "IT", PostalCode: "40122", City: "Bologna"})
	state := waitPhase(t, updates, enums.QuotePhaseSettled)
	if state.Quote == nil || *state.Quote.Provider != "fast" {
		t.Fatalf("expected the winner's quote, got %+v", state.Quote)
	}

	// The stale call finally returns; its result must not be applied.
	close(fetcher.release)
	time.Sleep(50 * time.Millisecond)
	if got := controller.State(); got.Quote == nil || *got.Quote.Provider != "fast" {
		t.Fatalf("stale result overwrote the state: %+v", got.Quote)
	}
}

func TestClearingPostalCodeParksIdle(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{quote: quoteOf("4.90", "poste")}
	controller, updates := newTestController(t, fetcher, staticItems{refs: []ItemRef{{ItemID: 7, Quantity: 2}}})

	controller.SetDestination(controllerDest)
	waitPhase(t, updates, enums.QuotePhaseSettled)

	controller.SetDestination(types.Destination{CountryCode: "IT", City: "Bologna"})
	state := waitPhase(t, updates, enums.QuotePhaseIdle)
	if state.Quote != nil {
		t.Fatalf("expected no quote when parked idle, got %+v", state.Quote)
	}
}

func TestCloseStopsAllActivity(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{quote: quoteOf("4.90", "poste")}
	controller, _ := newTestController(t, fetcher, staticItems{refs: []ItemRef{{ItemID: 7, Quantity: 2}}})

	if err := controller.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	controller.SetDestination(controllerDest)
	time.Sleep(100 * time.Millisecond)

	if got := fetcher.callCount(); got != 0 {
		t.Fatalf("expected no requests after close, got %d", got)
	}
}
