package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base carries the shared GORM handle embedded by the domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase wraps a GORM connection for embedding.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB binds the connection to ctx so cancellation propagates into queries.
// Write paths that run inside a transaction take the tx handle explicitly
// instead of going through here.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
