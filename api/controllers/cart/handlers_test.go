package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rilegato/rilegato-backend/api/middleware"
	cartsvc "github.com/rilegato/rilegato-backend/internal/cart"
	pkgerrors "github.com/rilegato/rilegato-backend/pkg/errors"
)

type stubCartService struct {
	cart       *cartsvc.Cart
	err        error
	lastMerge  []cartsvc.MergeLine
	lastItemID int64
	lastQty    int
}

func (s *stubCartService) Get(ctx context.Context, userID uuid.UUID) (*cartsvc.Cart, error) {
	return s.cart, s.err
}

func (s *stubCartService) Merge(ctx context.Context, userID uuid.UUID, lines []cartsvc.MergeLine) (*cartsvc.Cart, error) {
	s.lastMerge = lines
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID uuid.UUID, bookID int64, quantity int) (*cartsvc.Cart, error) {
	s.lastItemID = bookID
	s.lastQty = quantity
	return s.cart, s.err
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, userID uuid.UUID, bookID int64, quantity int) (*cartsvc.Cart, error) {
	s.lastItemID = bookID
	s.lastQty = quantity
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID uuid.UUID, bookID int64) (*cartsvc.Cart, error) {
	s.lastItemID = bookID
	return s.cart, s.err
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.err
}

func withSession(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.New().String()))
}

func testCart() *cartsvc.Cart {
	return &cartsvc.Cart{
		Items: []cartsvc.LineItem{
			{ItemID: 7, Title: "Il Gattopardo", Quantity: 2, UnitPriceCents: 1550},
		},
		TotalQuantity: 2,
		SubtotalCents: 3100,
	}
}

func TestFetchSuccess(t *testing.T) {
	handler := Fetch(&stubCartService{cart: testCart()}, nil)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var envelope struct {
		Data cartsvc.Cart `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.TotalQuantity != 2 || envelope.Data.SubtotalCents != 3100 {
		t.Fatalf("unexpected cart %+v", envelope.Data)
	}
}

func TestFetchMissingSession(t *testing.T) {
	handler := Fetch(&stubCartService{cart: testCart()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestMergeSuccess(t *testing.T) {
	service := &stubCartService{cart: testCart()}
	handler := Merge(service, nil)

	body := `{"items": [{"item_id": 7, "quantity": 2}, {"item_id": 9, "quantity": 1}]}`
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", strings.NewReader(body)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(service.lastMerge) != 2 || service.lastMerge[1].ItemID != 9 {
		t.Fatalf("unexpected merge lines %+v", service.lastMerge)
	}
}

func TestMergeRejectsUnknownFields(t *testing.T) {
	handler := Merge(&stubCartService{cart: testCart()}, nil)

	body := `{"items": [], "replace": true}`
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", strings.NewReader(body)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAddValidatesQuantity(t *testing.T) {
	handler := Add(&stubCartService{cart: testCart()}, nil)

	body := `{"item_id": 7, "quantity": 0}`
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/add", strings.NewReader(body)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestUpdatePassesZeroQuantity(t *testing.T) {
	service := &stubCartService{cart: testCart()}
	handler := Update(service, nil)

	body := `{"item_id": 7, "quantity": 0}`
	req := withSession(httptest.NewRequest(http.MethodPut, "/api/v1/cart/update", strings.NewReader(body)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if service.lastItemID != 7 || service.lastQty != 0 {
		t.Fatalf("expected zero quantity forwarded, got item %d qty %d", service.lastItemID, service.lastQty)
	}
}

func TestRemoveParsesItemID(t *testing.T) {
	service := &stubCartService{cart: testCart()}
	handler := Remove(service, nil)

	req := withSession(httptest.NewRequest(http.MethodDelete, "/api/v1/cart/remove/7", nil))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("itemID", "7")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if service.lastItemID != 7 {
		t.Fatalf("expected item 7, got %d", service.lastItemID)
	}
}

func TestRemoveInvalidItemID(t *testing.T) {
	handler := Remove(&stubCartService{cart: testCart()}, nil)

	req := withSession(httptest.NewRequest(http.MethodDelete, "/api/v1/cart/remove/abc", nil))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("itemID", "abc")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestClearServiceError(t *testing.T) {
	handler := Clear(&stubCartService{err: pkgerrors.New(pkgerrors.CodeInternal, "boom")}, nil)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/clear", nil))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}
