package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/rilegato/rilegato-backend/pkg/errors"
	"github.com/rilegato/rilegato-backend/pkg/types"
)

const (
	defaultClientTimeout = 20 * time.Second
	sessionCookieName    = "rilegato_session"
)

// Client talks to the storefront API. Cart mutations map one-to-one to the
// server endpoints; quote fetches classify 429 separately so the controller
// can keep the displayed price.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	sessionToken string
}

// ClientOption configures optional client behavior.
type ClientOption func(*Client)

// WithClientHTTP overrides the default HTTP client.
func WithClientHTTP(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSessionToken attaches the session cookie to every request.
func WithSessionToken(token string) ClientOption {
	return func(c *Client) {
		c.sessionToken = strings.TrimSpace(token)
	}
}

// NewClient builds a storefront API client.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type wireCartItem struct {
	ItemID         int64   `json:"item_id"`
	Title          string  `json:"title"`
	Quantity       int     `json:"quantity"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	StockLimit     *int    `json:"stock_limit"`
	CoverURL       *string `json:"cover_url"`
}

type wireCart struct {
	Items []wireCartItem `json:"items"`
}

// GetCart reads the server-of-record cart.
func (c *Client) GetCart(ctx context.Context) ([]LineItem, error) {
	var cart wireCart
	if err := c.do(ctx, http.MethodGet, "/cart", nil, &cart); err != nil {
		return nil, err
	}
	items := make([]LineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		line := LineItem{
			ItemID:     item.ItemID,
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  decimal.New(item.UnitPriceCents, -2),
			StockLimit: item.StockLimit,
		}
		if item.CoverURL != nil {
			line.Image = *item.CoverURL
		}
		items = append(items, line)
	}
	return items, nil
}

// MergeCart submits the missing guest lines in one batched request.
func (c *Client) MergeCart(ctx context.Context, items []ItemRef) error {
	body := struct {
		Items []ItemRef `json:"items"`
	}{Items: items}
	return c.do(ctx, http.MethodPost, "/cart/merge", body, nil)
}

// AddItem mirrors an add mutation to the server.
func (c *Client) AddItem(ctx context.Context, itemID int64, quantity int) error {
	return c.do(ctx, http.MethodPost, "/cart/add", ItemRef{ItemID: itemID, Quantity: quantity}, nil)
}

// UpdateItem mirrors a quantity change to the server.
func (c *Client) UpdateItem(ctx context.Context, itemID int64, quantity int) error {
	return c.do(ctx, http.MethodPut, "/cart/update", ItemRef{ItemID: itemID, Quantity: quantity}, nil)
}

// RemoveItem mirrors a line removal to the server.
func (c *Client) RemoveItem(ctx context.Context, itemID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/cart/remove/%d", itemID), nil, nil)
}

// ClearCart mirrors a cart clear to the server.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/cart/clear", nil, nil)
}

type wireQuoteResponse struct {
	Cheapest *types.Quote `json:"cheapest"`
	Rates    []types.Quote `json:"rates"`
}

// FetchQuote requests a shipping quote for the given destination and items.
// A null cheapest offer maps to the sentinel with nil error; failures carry
// a code the caller can branch on (rate limit vs timeout vs unavailable).
func (c *Client) FetchQuote(ctx context.Context, dest types.Destination, items []ItemRef) (types.Quote, error) {
	normalized := dest.Normalized()
	body := struct {
		ToPostal  string    `json:"to_postal"`
		ToCity    string    `json:"to_city"`
		ToCountry string    `json:"to_country,omitempty"`
		Items     []ItemRef `json:"items"`
	}{
		ToPostal:  normalized.PostalCode,
		ToCity:    normalized.City,
		ToCountry: normalized.CountryCode,
		Items:     items,
	}

	var quote wireQuoteResponse
	if err := c.do(ctx, http.MethodPost, "/shipping/rates", body, &quote); err != nil {
		return types.NoQuote(), err
	}
	if quote.Cheapest == nil {
		return types.NoQuote(), nil
	}
	return *quote.Cheapest, nil
}

// do executes one API call, unwrapping the success envelope into out when
// out is non-nil and mapping failures to coded errors.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal request body")
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: c.sessionToken})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeoutErr(err) {
			return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "request timed out")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapFailure(resp)
	}
	if out == nil {
		return nil
	}

	envelope := types.SuccessEnvelope{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	return nil
}

func (c *Client) mapFailure(resp *http.Response) error {
	var envelope types.ErrorEnvelope
	message := "request rejected"
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return pkgerrors.New(pkgerrors.CodeRateLimit, message)
	case http.StatusUnauthorized:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, message)
	case http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	case http.StatusGatewayTimeout:
		return pkgerrors.New(pkgerrors.CodeTimeout, message)
	case http.StatusBadRequest:
		return pkgerrors.New(pkgerrors.CodeValidation, message)
	default:
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("%s (status %d)", message, resp.StatusCode))
	}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
