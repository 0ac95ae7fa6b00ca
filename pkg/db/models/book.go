package models

import "time"

// Book is the catalog row behind every sellable item. Physical fields are
// nullable: missing data is substituted with shipping defaults downstream.
type Book struct {
	ID          int64    `gorm:"column:id;primaryKey;autoIncrement"`
	Title       string   `gorm:"column:title;not null"`
	ISBN        *string  `gorm:"column:isbn;uniqueIndex"`
	PriceCents  int      `gorm:"column:price_cents;not null"`
	Stock       *int     `gorm:"column:stock"` // nil means unlimited
	WeightGrams *int     `gorm:"column:weight_grams"`
	WidthCm     *float64 `gorm:"column:width_cm"`
	HeightCm    *float64 `gorm:"column:height_cm"`
	ThicknessCm *float64 `gorm:"column:thickness_cm"`
	CoverURL    *string  `gorm:"column:cover_url"`
	IsActive    bool     `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the plural table name explicit.
func (Book) TableName() string { return "books" }
