package storefront

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
)

// StoredItem is the durable guest-cart line shape. The key layout is fixed:
// persisted snapshots survive client upgrades, so field names never change.
type StoredItem struct {
	ItemID     int64           `json:"itemId"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Title      string          `json:"title"`
	Image      string          `json:"image,omitempty"`
	StockLimit *int            `json:"stockLimit,omitempty"`
}

// Storage is the durable guest-cart snapshot boundary. An absent snapshot is
// an empty cart, not an error.
type Storage interface {
	Load() ([]StoredItem, error)
	Save(items []StoredItem) error
	Clear() error
}

// FileStorage persists the guest cart as a single JSON file.
type FileStorage struct {
	path string
}

// NewFileStorage builds file-backed guest storage at path.
func NewFileStorage(path string) (*FileStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("storage path required")
	}
	return &FileStorage{path: path}, nil
}

func (s *FileStorage) Load() ([]StoredItem, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cart snapshot: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var items []StoredItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding cart snapshot: %w", err)
	}
	return items, nil
}

// Save writes the snapshot atomically: a torn write must not corrupt the
// only durable copy of a guest's cart.
func (s *FileStorage) Save(items []StoredItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding cart snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("writing cart snapshot: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStorage) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clearing cart snapshot: %w", err)
	}
	return nil
}
