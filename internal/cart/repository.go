package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rilegato/rilegato-backend/internal/repo"
	"github.com/rilegato/rilegato-backend/pkg/db/models"
)

// Repository persists cart records and their lines. Write methods take the
// transaction handle explicitly so the service can group them atomically.
type Repository interface {
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
	EnsureForUser(tx *gorm.DB, userID uuid.UUID) (*models.CartRecord, error)
	InsertItems(tx *gorm.DB, items []models.CartItem) error
	UpdateQuantity(tx *gorm.DB, cartID uuid.UUID, bookID int64, quantity int) error
	DeleteItem(tx *gorm.DB, cartID uuid.UUID, bookID int64) error
	ClearItems(tx *gorm.DB, cartID uuid.UUID) error
}

type repository struct {
	repo.Base
}

// NewRepository builds a cart repository on the provided connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

// FindByUser loads the user's cart with its lines, or nil when none exists.
func (r *repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	var record models.CartRecord
	err := r.DB(ctx).Preload("Items").First(&record, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// EnsureForUser returns the user's cart, creating an empty one if absent.
// The user_id unique index makes concurrent creation safe: the loser of the
// race reloads the winner's row.
func (r *repository) EnsureForUser(tx *gorm.DB, userID uuid.UUID) (*models.CartRecord, error) {
	var record models.CartRecord
	err := tx.Preload("Items").First(&record, "user_id = ?", userID).Error
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	record = models.CartRecord{ID: uuid.New(), UserID: userID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&record).Error; err != nil {
		return nil, err
	}
	if err := tx.Preload("Items").First(&record, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) InsertItems(tx *gorm.DB, items []models.CartItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.Create(&items).Error
}

func (r *repository) UpdateQuantity(tx *gorm.DB, cartID uuid.UUID, bookID int64, quantity int) error {
	return tx.Model(&models.CartItem{}).
		Where("cart_id = ? AND book_id = ?", cartID, bookID).
		Update("quantity", quantity).Error
}

func (r *repository) DeleteItem(tx *gorm.DB, cartID uuid.UUID, bookID int64) error {
	return tx.Where("cart_id = ? AND book_id = ?", cartID, bookID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) ClearItems(tx *gorm.DB, cartID uuid.UUID) error {
	return tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}
