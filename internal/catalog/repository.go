package catalog

import (
	"context"
	"errors"

	"github.com/rilegato/rilegato-backend/internal/repo"
	"github.com/rilegato/rilegato-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes catalog reads needed by the cart and shipping layers.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*models.Book, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Book, error)
	ShippingAttributes(ctx context.Context, ids []int64) (map[int64]models.Book, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a catalog repository on the provided connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) GetByID(ctx context.Context, id int64) (*models.Book, error) {
	var book models.Book
	if err := r.DB(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Book, error) {
	if len(ids) == 0 {
		return map[int64]models.Book{}, nil
	}
	var rows []models.Book
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Book, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID, nil
}

// ShippingAttributes is GetByIDs under a name the shipping resolver binds to.
func (r *repository) ShippingAttributes(ctx context.Context, ids []int64) (map[int64]models.Book, error) {
	return r.GetByIDs(ctx, ids)
}

// IsNotFound reports whether err is the record-missing case.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
