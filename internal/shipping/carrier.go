package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/rilegato/rilegato-backend/pkg/errors"
	"github.com/rilegato/rilegato-backend/pkg/types"
)

const (
	defaultCarrierTimeout       = 20 * time.Second
	responseBodyReadLimit int64 = 1024
	etaDateLayout               = "2006-01-02"
)

var errBaseURLRequired = errors.New("carrier base url is required")

// CarrierClient wraps the external rate-quoting endpoint. Parcel packing and
// rate math live behind that endpoint; this side only classifies failures
// and normalizes the cheapest quote.
type CarrierClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// CarrierOption configures optional client behavior.
type CarrierOption func(*CarrierClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) CarrierOption {
	return func(c *CarrierClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default call timeout.
func WithTimeout(timeout time.Duration) CarrierOption {
	return func(c *CarrierClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewCarrierClient builds the carrier rate client.
func NewCarrierClient(baseURL, apiKey string, opts ...CarrierOption) (*CarrierClient, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &CarrierClient{
		baseURL:    strings.TrimRight(trimmed, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultCarrierTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

type rateRequest struct {
	ToPostal  string         `json:"to_postal"`
	ToCity    string         `json:"to_city"`
	ToCountry string         `json:"to_country,omitempty"`
	Items     []ResolvedItem `json:"items"`
}

type wireQuote struct {
	AmountEUR decimal.Decimal `json:"amount_eur"`
	Provider  string          `json:"provider"`
	Service   string          `json:"service"`
	ETAMin    string          `json:"eta_date_min"`
	ETAMax    string          `json:"eta_date_max"`
	Dims      *struct {
		Length float64 `json:"length"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"dims"`
	Weights *struct {
		BooksGrams     int `json:"books_grams"`
		PackagingGrams int `json:"packaging_grams"`
	} `json:"weight_breakdown"`
}

// Quote calls the carrier rate endpoint and returns the cheapest offer. On
// any failure the sentinel quote is returned together with a coded error:
// CodeRateLimit for HTTP 429, CodeTimeout for deadline/timeout, and
// CodeDependency for everything else. An empty rate list is a legitimate
// "no options for this destination" and returns the sentinel with nil error.
func (c *CarrierClient) Quote(ctx context.Context, dest types.Destination, items []ResolvedItem) (types.Quote, error) {
	if c == nil {
		return types.NoQuote(), pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}

	normalized := dest.Normalized()
	payload, err := json.Marshal(rateRequest{
		ToPostal:  normalized.PostalCode,
		ToCity:    normalized.City,
		ToCountry: normalized.CountryCode,
		Items:     items,
	})
	if err != nil {
		return types.NoQuote(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal rate request")
	}

	url := fmt.Sprintf("%s/shipping/rates", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return types.NoQuote(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build rate request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return types.NoQuote(), pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "carrier call timed out")
		}
		return types.NoQuote(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute rate request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return types.NoQuote(), pkgerrors.New(pkgerrors.CodeRateLimit, "carrier rate limit reached")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return types.NoQuote(), pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"rate request failed",
		)
	}

	var apiResp struct {
		Cheapest *wireQuote  `json:"cheapest"`
		Rates    []wireQuote `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return types.NoQuote(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode rate response")
	}

	if apiResp.Cheapest == nil {
		if len(apiResp.Rates) == 0 {
			return types.NoQuote(), nil
		}
		apiResp.Cheapest = &apiResp.Rates[0]
	}

	return mapQuote(*apiResp.Cheapest), nil
}

func mapQuote(wire wireQuote) types.Quote {
	quote := types.Quote{AmountEUR: wire.AmountEUR}
	if provider := strings.TrimSpace(wire.Provider); provider != "" {
		quote.Provider = &provider
	}
	if service := strings.TrimSpace(wire.Service); service != "" {
		quote.Service = &service
	}
	if eta := parseETADate(wire.ETAMin); eta != nil {
		quote.ETADateMin = eta
	}
	if eta := parseETADate(wire.ETAMax); eta != nil {
		quote.ETADateMax = eta
	}
	if wire.Dims != nil {
		quote.ParcelDimensions = &types.ParcelDimensions{
			LengthCm: wire.Dims.Length,
			WidthCm:  wire.Dims.Width,
			HeightCm: wire.Dims.Height,
		}
	}
	if wire.Weights != nil {
		quote.WeightBreakdown = &types.WeightBreakdown{
			BooksGrams:     wire.Weights.BooksGrams,
			PackagingGrams: wire.Weights.PackagingGrams,
		}
	}
	return quote
}

func parseETADate(value string) *time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	parsed, err := time.Parse(etaDateLayout, trimmed)
	if err != nil {
		return nil
	}
	return &parsed
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
