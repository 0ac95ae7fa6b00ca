package storefront

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rilegato/rilegato-backend/pkg/enums"
	"github.com/rilegato/rilegato-backend/pkg/errors"
	"github.com/rilegato/rilegato-backend/pkg/types"
)

// DefaultDebounce is the quiet period between the last cart or destination
// change and the outbound rate request.
const DefaultDebounce = 320 * time.Millisecond

type quoteFetcher interface {
	FetchQuote(ctx context.Context, dest types.Destination, items []ItemRef) (types.Quote, error)
}

type itemSource interface {
	ItemRefs() []ItemRef
}

// QuoteState is what the shipping section renders: exactly one of a price,
// an explicit "no options" (settled sentinel), or a pending indicator. Quote
// holds the last settled quote and survives Failed and RateLimited phases so
// a transient outage never blanks an already-shown price.
type QuoteState struct {
	Phase      enums.QuotePhase
	Quote      *types.Quote
	RetryLater bool
}

// QuoteController debounces cart and destination changes into rate requests.
// Last request wins: firing cancels any in-flight call, and a superseded
// call's result is discarded even if it arrives after the winner's.
type QuoteController struct {
	mu         sync.Mutex
	fetcher    quoteFetcher
	items      itemSource
	debounce   time.Duration
	onUpdate   func(QuoteState)
	dest       types.Destination
	timer      *time.Timer
	generation uint64
	cancel     context.CancelFunc
	state      QuoteState
	closed     bool
}

// ControllerOption configures optional controller behavior.
type ControllerOption func(*QuoteController)

// WithDebounce overrides the default quiet period.
func WithDebounce(d time.Duration) ControllerOption {
	return func(c *QuoteController) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithOnUpdate registers a callback invoked after every state change.
func WithOnUpdate(fn func(QuoteState)) ControllerOption {
	return func(c *QuoteController) {
		c.onUpdate = fn
	}
}

// NewQuoteController wires the controller. It starts Idle and does nothing
// until a destination or item change arrives.
func NewQuoteController(fetcher quoteFetcher, items itemSource, opts ...ControllerOption) (*QuoteController, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("quote fetcher required")
	}
	if items == nil {
		return nil, fmt.Errorf("item source required")
	}
	controller := &QuoteController{
		fetcher:  fetcher,
		items:    items,
		debounce: DefaultDebounce,
		state:    QuoteState{Phase: enums.QuotePhaseIdle},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(controller)
		}
	}
	return controller, nil
}

// State returns the current render state.
func (c *QuoteController) State() QuoteState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetDestination records a destination change and restarts the debounce.
func (c *QuoteController) SetDestination(dest types.Destination) {
	c.mu.Lock()
	c.dest = dest.Normalized()
	state, notify := c.scheduleLocked()
	c.mu.Unlock()
	if notify {
		c.publish(state)
	}
}

// ItemsChanged records a cart change and restarts the debounce.
func (c *QuoteController) ItemsChanged() {
	c.mu.Lock()
	state, notify := c.scheduleLocked()
	c.mu.Unlock()
	if notify {
		c.publish(state)
	}
}

// Close cancels any in-flight request and stops the timer. The controller
// ignores all events afterwards.
func (c *QuoteController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.generation++
	c.stopTimerLocked()
	c.cancelInflightLocked()
	return nil
}

// scheduleLocked restarts the debounce timer, or parks the controller Idle
// when no postal code is set. A request is never issued for an incomplete
// destination. Caller holds the mutex.
func (c *QuoteController) scheduleLocked() (QuoteState, bool) {
	if c.closed {
		return QuoteState{}, false
	}
	if !c.dest.HasPostalCode() {
		c.generation++
		c.stopTimerLocked()
		c.cancelInflightLocked()
		c.state = QuoteState{Phase: enums.QuotePhaseIdle}
		return c.state, true
	}

	c.stopTimerLocked()
	c.timer = time.AfterFunc(c.debounce, c.fire)
	c.state = QuoteState{Phase: enums.QuotePhasePending, Quote: c.state.Quote}
	return c.state, true
}

// fire runs when the quiet period elapses with no further changes.
func (c *QuoteController) fire() {
	c.mu.Lock()
	if c.closed || !c.dest.HasPostalCode() {
		c.mu.Unlock()
		return
	}

	c.generation++
	generation := c.generation
	c.cancelInflightLocked()

	items := c.items.ItemRefs()
	dest := c.dest

	if len(items) == 0 {
		sentinel := types.NoQuote()
		c.state = QuoteState{Phase: enums.QuotePhaseSettled, Quote: &sentinel}
		state := c.state
		c.mu.Unlock()
		c.publish(state)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.request(ctx, generation, dest, items)
}

func (c *QuoteController) request(ctx context.Context, generation uint64, dest types.Destination, items []ItemRef) {
	quote, err := c.fetcher.FetchQuote(ctx, dest, items)

	c.mu.Lock()
	if c.closed || generation != c.generation {
		// Superseded by a newer request; this result must not be applied.
		c.mu.Unlock()
		return
	}

	switch {
	case err == nil:
		// Includes the sentinel: "no options for this destination" is a
		// settled outcome, not a failure.
		c.state = QuoteState{Phase: enums.QuotePhaseSettled, Quote: &quote}
	case errors.HasCode(err, errors.CodeRateLimit):
		c.state = QuoteState{
			Phase:      enums.QuotePhaseRateLimited,
			Quote:      c.state.Quote,
			RetryLater: true,
		}
	default:
		c.state = QuoteState{Phase: enums.QuotePhaseFailed, Quote: c.state.Quote}
	}
	state := c.state
	c.mu.Unlock()
	c.publish(state)
}

func (c *QuoteController) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *QuoteController) cancelInflightLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *QuoteController) publish(state QuoteState) {
	if c.onUpdate != nil {
		c.onUpdate(state)
	}
}
