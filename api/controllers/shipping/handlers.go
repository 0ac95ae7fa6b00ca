package shipping

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rilegato/rilegato-backend/api/middleware"
	"github.com/rilegato/rilegato-backend/api/responses"
	"github.com/rilegato/rilegato-backend/api/validators"
	cartsvc "github.com/rilegato/rilegato-backend/internal/cart"
	shippingsvc "github.com/rilegato/rilegato-backend/internal/shipping"
	pkgerrors "github.com/rilegato/rilegato-backend/pkg/errors"
	"github.com/rilegato/rilegato-backend/pkg/logger"
	"github.com/rilegato/rilegato-backend/pkg/types"

	"github.com/go-chi/chi/v5"
)

type rateRequest struct {
	ToPostal  string                    `json:"to_postal" validate:"required"`
	ToCity    string                    `json:"to_city"`
	ToCountry string                    `json:"to_country"`
	Items     []shippingsvc.RequestItem `json:"items" validate:"required,dive"`
}

type rateResponse struct {
	Cheapest *types.Quote  `json:"cheapest"`
	Rates    []types.Quote `json:"rates"`
}

func newRateResponse(quote types.Quote) rateResponse {
	if quote.IsSentinel() {
		return rateResponse{Cheapest: nil, Rates: []types.Quote{}}
	}
	return rateResponse{Cheapest: &quote, Rates: []types.Quote{quote}}
}

// Rates quotes shipping for the submitted items. Carrier failures surface by
// status code: 429 for rate limiting, 504 for timeouts, 503 otherwise, so the
// storefront can keep its displayed price on a 429.
func Rates(svc shippingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middleware.UserIDFromContext(r.Context())
		if subject == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session"))
			return
		}

		var payload rateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dest := types.Destination{
			CountryCode: payload.ToCountry,
			PostalCode:  payload.ToPostal,
			City:        payload.ToCity,
		}

		quote, err := svc.GetQuote(r.Context(), subject, dest, payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newRateResponse(quote))
	}
}

type adminQuoteResponse struct {
	AmountEUR   string                  `json:"amount_eur"`
	Provider    *string                 `json:"provider"`
	Service     *string                 `json:"service"`
	Dims        *types.ParcelDimensions `json:"dims"`
	WeightGrams int                     `json:"weight_grams"`
}

// AdminCachedQuote exposes the cached quote for a user's current cart. It
// reads the quote cache only: rendering an admin grid of carts must never
// fan out into carrier calls.
func AdminCachedQuote(quotes shippingsvc.Service, carts cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		dest := types.Destination{
			PostalCode: r.URL.Query().Get("postal"),
			City:       r.URL.Query().Get("city"),
		}
		if !dest.HasPostalCode() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "postal query parameter is required"))
			return
		}

		cart, err := carts.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]shippingsvc.RequestItem, 0, len(cart.Items))
		for _, line := range cart.Items {
			items = append(items, shippingsvc.RequestItem{ItemID: line.ItemID, Quantity: line.Quantity})
		}

		quote := quotes.CachedQuote(r.Context(), userID.String(), dest, items)
		if quote == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no cached quote for this cart"))
			return
		}

		resp := adminQuoteResponse{
			AmountEUR: quote.AmountEUR.StringFixed(2),
			Provider:  quote.Provider,
			Service:   quote.Service,
			Dims:      quote.ParcelDimensions,
		}
		if quote.WeightBreakdown != nil {
			resp.WeightGrams = quote.WeightBreakdown.BooksGrams + quote.WeightBreakdown.PackagingGrams
		}

		responses.WriteSuccess(w, resp)
	}
}
