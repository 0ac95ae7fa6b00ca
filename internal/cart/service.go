package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rilegato/rilegato-backend/pkg/db/models"
	pkgerrors "github.com/rilegato/rilegato-backend/pkg/errors"
	"github.com/rilegato/rilegato-backend/pkg/logger"
	"github.com/rilegato/rilegato-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogReader interface {
	GetByID(ctx context.Context, id int64) (*models.Book, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Book, error)
}

// Service owns the server-of-record cart. All writes clamp quantities to the
// catalog stock limit and snapshot the unit price at line creation.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*Cart, error)
	Merge(ctx context.Context, userID uuid.UUID, lines []MergeLine) (*Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, bookID int64, quantity int) (*Cart, error)
	UpdateQuantity(ctx context.Context, userID uuid.UUID, bookID int64, quantity int) (*Cart, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, bookID int64) (*Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repos   Repository
	catalog catalogReader
	tx      txRunner
	metrics *metrics.ShippingMetrics
	logg    *logger.Logger
}

// NewService wires the cart service.
func NewService(repos Repository, catalog catalogReader, tx txRunner, m *metrics.ShippingMetrics, logg *logger.Logger) (Service, error) {
	if repos == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repos: repos, catalog: catalog, tx: tx, metrics: m, logg: logg}, nil
}

// Get returns the user's cart joined with catalog data. A user with no cart
// record gets an empty cart, not an error.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	record, err := s.repos.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if record == nil {
		return newCart(nil), nil
	}
	return s.hydrate(ctx, record)
}

// Merge folds guest lines into the server cart. A line whose book is already
// in the server cart is dropped entirely; the server quantity stands. Lines
// for unknown or inactive books are skipped. Running a merge twice with the
// same payload is a no-op the second time.
func (s *service) Merge(ctx context.Context, userID uuid.UUID, lines []MergeLine) (*Cart, error) {
	if len(lines) == 0 {
		s.metrics.IncMerge("noop")
		return s.Get(ctx, userID)
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	books, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		s.metrics.IncMerge("failure")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load catalog for merge")
	}

	var record *models.CartRecord
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		record, err = s.repos.EnsureForUser(tx, userID)
		if err != nil {
			return err
		}

		present := make(map[int64]struct{}, len(record.Items))
		for _, item := range record.Items {
			present[item.BookID] = struct{}{}
		}

		inserts := make([]models.CartItem, 0, len(lines))
		for _, line := range lines {
			if _, exists := present[line.ItemID]; exists {
				continue
			}
			book, known := books[line.ItemID]
			if !known || !book.IsActive {
				continue
			}
			quantity := clampToStock(line.Quantity, book.Stock)
			if quantity <= 0 {
				continue
			}
			inserts = append(inserts, models.CartItem{
				ID:             uuid.New(),
				CartID:         record.ID,
				BookID:         line.ItemID,
				Quantity:       quantity,
				UnitPriceCents: book.PriceCents,
			})
			present[line.ItemID] = struct{}{}
		}

		if err := s.repos.InsertItems(tx, inserts); err != nil {
			return err
		}
		record.Items = append(record.Items, inserts...)
		return nil
	})
	if err != nil {
		s.metrics.IncMerge("failure")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge cart")
	}

	s.metrics.IncMerge("success")
	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "guest cart merged")
	}
	return s.hydrate(ctx, record)
}

// AddItem adds quantity of a book to the cart, creating the line if needed.
// The resulting quantity is clamped to the stock limit.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, bookID int64, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	book, err := s.activeBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		record, err := s.repos.EnsureForUser(tx, userID)
		if err != nil {
			return err
		}
		for _, item := range record.Items {
			if item.BookID != bookID {
				continue
			}
			next := clampToStock(item.Quantity+quantity, book.Stock)
			return s.repos.UpdateQuantity(tx, record.ID, bookID, next)
		}
		return s.repos.InsertItems(tx, []models.CartItem{{
			ID:             uuid.New(),
			CartID:         record.ID,
			BookID:         bookID,
			Quantity:       clampToStock(quantity, book.Stock),
			UnitPriceCents: book.PriceCents,
		}})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
	}
	return s.Get(ctx, userID)
}

// UpdateQuantity sets the quantity of an existing line. Zero or negative
// removes the line.
func (s *service) UpdateQuantity(ctx context.Context, userID uuid.UUID, bookID int64, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, bookID)
	}
	book, err := s.activeBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		record, err := s.repos.EnsureForUser(tx, userID)
		if err != nil {
			return err
		}
		for _, item := range record.Items {
			if item.BookID == bookID {
				return s.repos.UpdateQuantity(tx, record.ID, bookID, clampToStock(quantity, book.Stock))
			}
		}
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	return s.Get(ctx, userID)
}

// RemoveItem deletes a line. Removing an absent line is a no-op.
func (s *service) RemoveItem(ctx context.Context, userID uuid.UUID, bookID int64) (*Cart, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		record, err := s.repos.EnsureForUser(tx, userID)
		if err != nil {
			return err
		}
		return s.repos.DeleteItem(tx, record.ID, bookID)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	return s.Get(ctx, userID)
}

// Clear empties the cart.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		record, err := s.repos.EnsureForUser(tx, userID)
		if err != nil {
			return err
		}
		return s.repos.ClearItems(tx, record.ID)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

func (s *service) activeBook(ctx context.Context, bookID int64) (*models.Book, error) {
	book, err := s.catalog.GetByID(ctx, bookID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "book not found")
	}
	if !book.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not available")
	}
	return book, nil
}

// hydrate joins cart lines with catalog rows. Lines whose book has been
// removed from the catalog are dropped from the view.
func (s *service) hydrate(ctx context.Context, record *models.CartRecord) (*Cart, error) {
	if record == nil || len(record.Items) == 0 {
		return newCart(nil), nil
	}

	ids := make([]int64, 0, len(record.Items))
	for _, item := range record.Items {
		ids = append(ids, item.BookID)
	}
	books, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load catalog for cart")
	}

	items := make([]LineItem, 0, len(record.Items))
	for _, item := range record.Items {
		book, ok := books[item.BookID]
		if !ok {
			continue
		}
		items = append(items, LineItem{
			ItemID:         item.BookID,
			Title:          book.Title,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			StockLimit:     book.Stock,
			CoverURL:       book.CoverURL,
		})
	}
	return newCart(items), nil
}

func clampToStock(quantity int, stock *int) int {
	if quantity < 0 {
		return 0
	}
	if stock != nil && quantity > *stock {
		return *stock
	}
	return quantity
}
