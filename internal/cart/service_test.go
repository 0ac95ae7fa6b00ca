package cart

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rilegato/rilegato-backend/internal/catalog"
	"github.com/rilegato/rilegato-backend/pkg/db/models"
	pkgerrors "github.com/rilegato/rilegato-backend/pkg/errors"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named in-memory database with a shared cache keeps GORM's pooled
	// connections on the same schema while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	books := `
CREATE TABLE IF NOT EXISTS books (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  isbn TEXT,
  price_cents INTEGER NOT NULL,
  stock INTEGER,
  weight_grams INTEGER,
  width_cm REAL,
  height_cm REAL,
  thickness_cm REAL,
  cover_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	cartRecords := `
CREATE TABLE IF NOT EXISTS cart_records (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`
	cartItems := `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  book_id INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE(cart_id, book_id)
);`

	for _, stmt := range []string{books, cartRecords, cartItems} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func seedBook(t *testing.T, db *gorm.DB, id int64, price int, stock *int, active bool) {
	t.Helper()
	book := models.Book{ID: id, Title: "book", PriceCents: price, Stock: stock, IsActive: active}
	require.NoError(t, db.Create(&book).Error)
}

func newCartTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), catalog.NewRepository(db), testTxRunner{db: db}, nil, nil)
	require.NoError(t, err)
	return svc
}

func stockPtr(v int) *int { return &v }

func TestGetReturnsEmptyCartForNewUser(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartTestService(t, db)

	cart, err := svc.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.TotalQuantity)
	assert.Equal(t, 0, cart.SubtotalCents)
}

func TestAddItemCreatesLineAndTotals(t *testing.T) {
	db := setupCartTestDB(t)
	seedBook(t, db, 7, 1500, stockPtr(10), true)
	svc := newCartTestService(t, db)
	userID := uuid.New()

	cart, err := svc.AddItem(context.Background(), userID, 7, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(7), cart.Items[0].ItemID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 2, cart.TotalQuantity)
	assert.Equal(t, 3000, cart.SubtotalCents)
}

func TestAddItemClampsToStock(t *testing.T) {
	db := setupCartTestDB(t)
	seedBook(t, db, 7, 1500, stockPtr(3), true)
	svc := newCartTestService(t, db)
	userID := uuid.New()

	cart, err := svc.AddItem(context.Background(), userID, 7, 99)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)

	// Adding more on top of a full line stays clamped.
	cart, err = svc.AddItem(context.Background(), userID, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestAddItemUnlimitedStock(t *testing.T) {
	db := setupCartTestDB(t)
	seedBook(t, db, 7, 1500, nil, true)
	svc := newCartTestService(t, db)

	cart, err := svc.AddItem(context.Background(), uuid.New(), 7, 500)
	require.NoError(t, err)
	assert.Equal(t, 500, cart.Items[0].Quantity)
}

func TestAddItemUnknownBook(t *testing.T) {
	db := setupCartTestDB(t)
	svc := newCartTestService(t, db)

	_, err := svc.AddItem(context.Background(), uuid.New(), 404, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	db := setupCartTestDB(t)
	seedBook(t, db, 7, 1500, stockPtr(10), true)
	svc := newCartTestService(t, db)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, 7, 2)
	require.NoError(t, err)

	cart, err := svc.UpdateQuantity(context.Background(), userID, 7, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestUpdateQuantityClampsToStock(t *testing.T) {
	db := setupCartTestDB(t)
	seedBook(t, db, 7, 1500, stockPtr(5), true)
	svc := newCartTestService(t, db)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, 7, 1)
	require.NoError(t, err)

	cart, err := svc.UpdateQuantity(context.Background(), userID, 7, 42)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestMergeAddsOnlyMissingLines(t *testing.T) {
	db := setupCartTestDB(t)
	seedBook(t, db, 7, 1500, stockPtr(10), true)
	seedBook(t, db, 9, 900, stockPtr(10), true)
	svc := newCartTestService(t, db)
	userID := uuid.New()

	// Server already has item 7 with quantity 5.
	_, err := svc.AddItem(context.Background(), userID, 7, 5)
	require.NoError(t, err)

	cart, err := svc.Merge(context.Background(), userID, []MergeLine{
		{ItemID: 7, Quantity: 2},
		{ItemID: 9, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)

	byID := map[int64]LineItem{}
	for _, item := range cart.Items {
		byID[item.ItemID] = item
	}
	assert.Equal(t, 5, byID[7].Quantity, "server quantity wins, never summed")
	assert.Equal(t, 1, byID[9].Quantity)
}

func TestMergeIntoEmptyServerCart(t *testing.T) {
	db := setupCartTestDB(t)
	seedBook(t, db, 7, 1500, stockPtr(10), true)
	svc := newCartTestService(t, db)
	userID := uuid.New()

	cart, err := svc.Merge(context.Background(), userID, []MergeLine{{ItemID: 7, Quantity: 2}})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestMergeIsIdempotent(t *testing.T) {
	db := setupCartTestDB(t)
	seedBook(t, db, 7, 1500, stockPtr(10), true)
	svc := newCartTestService(t, db)
	userID := uuid.New()

	lines := []MergeLine{{ItemID: 7, Quantity: 2}}
	first, err := svc.Merge(context.Background(), userID, lines)
	require.NoError(t, err)

	second, err := svc.Merge(context.Background(), userID, lines)
	require.NoError(t, err)
	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, first.SubtotalCents, second.SubtotalCents)
}

func TestMergeSkipsInactiveAndUnknownBooks(t *testing.T) {
	db := setupCartTestDB(t)
	seedBook(t, db, 7, 1500, stockPtr(10), true)
	seedBook(t, db, 8, 900, stockPtr(10), false)
	svc := newCartTestService(t, db)
	userID := uuid.New()

	cart, err := svc.Merge(context.Background(), userID, []MergeLine{
		{ItemID: 7, Quantity: 1},
		{ItemID: 8, Quantity: 1},
		{ItemID: 404, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(7), cart.Items[0].ItemID)
}

func TestRemoveAndClear(t *testing.T) {
	db := setupCartTestDB(t)
	seedBook(t, db, 7, 1500, stockPtr(10), true)
	seedBook(t, db, 9, 900, stockPtr(10), true)
	svc := newCartTestService(t, db)
	userID := uuid.New()

	_, err := svc.AddItem(context.Background(), userID, 7, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), userID, 9, 1)
	require.NoError(t, err)

	cart, err := svc.RemoveItem(context.Background(), userID, 7)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	require.NoError(t, svc.Clear(context.Background(), userID))
	cart, err = svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestMergePriceSnapshotFromCatalog(t *testing.T) {
	db := setupCartTestDB(t)
	seedBook(t, db, 7, 1500, stockPtr(10), true)
	svc := newCartTestService(t, db)
	userID := uuid.New()

	cart, err := svc.Merge(context.Background(), userID, []MergeLine{{ItemID: 7, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, 1500, cart.Items[0].UnitPriceCents)
	assert.Equal(t, 3000, cart.SubtotalCents)
}
