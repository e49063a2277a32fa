package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sportlentes/backend/internal/domain"
	"sportlentes/backend/internal/store"
)

func seededProduct(t *testing.T, s *Store, code string) domain.Product {
	t.Helper()
	product, err := s.GetProductByCode(context.Background(), code)
	if err != nil {
		t.Fatalf("seed product %s missing: %v", code, err)
	}
	return *product
}

func saleWith(items ...domain.SaleItem) domain.Sale {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty))))
	}
	return domain.Sale{
		IdempotencyKey: "idem-mem",
		SellerID:       "usr-mem",
		SellerName:     "Memoria",
		SaleType:       domain.SaleTypeUnit,
		Items:          items,
		Subtotal:       total,
		Discount:       decimal.Zero,
		Total:          total,
	}
}

func TestCreateSaleFailingLineLeavesAllStockUntouched(t *testing.T) {
	s := NewSeeded()
	casual := seededProduct(t, s, "1006")
	snow := seededProduct(t, s, "1007")

	sale := saleWith(
		domain.SaleItem{ProductID: casual.ID, Qty: 3, UnitPrice: casual.Price},
		domain.SaleItem{ProductID: snow.ID, Qty: snow.Stock + 1, UnitPrice: snow.Price},
	)

	if _, err := s.CreateSale(context.Background(), sale); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if after := seededProduct(t, s, "1006"); after.Stock != casual.Stock {
		t.Fatalf("first line decremented despite aborted sale: %d", after.Stock)
	}
	if after := seededProduct(t, s, "1007"); after.Stock != snow.Stock {
		t.Fatalf("failing line decremented: %d", after.Stock)
	}
}

func TestCreateSaleRepeatedLineCannotOversell(t *testing.T) {
	s := NewSeeded()
	cycling := seededProduct(t, s, "1004") // seeded with stock 3

	sale := saleWith(
		domain.SaleItem{ProductID: cycling.ID, Qty: 2, UnitPrice: cycling.Price},
		domain.SaleItem{ProductID: cycling.ID, Qty: 2, UnitPrice: cycling.Price},
	)

	if _, err := s.CreateSale(context.Background(), sale); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for cumulative demand 4 against stock 3, got %v", err)
	}
	if after := seededProduct(t, s, "1004"); after.Stock != cycling.Stock {
		t.Fatalf("stock changed on aborted sale: %d -> %d", cycling.Stock, after.Stock)
	}

	// The same product split across lines still commits when the combined
	// quantity fits.
	ok := saleWith(
		domain.SaleItem{ProductID: cycling.ID, Qty: 2, UnitPrice: cycling.Price},
		domain.SaleItem{ProductID: cycling.ID, Qty: 1, UnitPrice: cycling.Price},
	)
	if _, err := s.CreateSale(context.Background(), ok); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if after := seededProduct(t, s, "1004"); after.Stock != 0 {
		t.Fatalf("stock = %d, want 0 after selling all three", after.Stock)
	}
}

func TestCreateSaleIdempotencyReturnsOriginal(t *testing.T) {
	s := NewSeeded()
	casual := seededProduct(t, s, "1006")

	sale := saleWith(domain.SaleItem{ProductID: casual.ID, Qty: 2, UnitPrice: casual.Price})
	first, err := s.CreateSale(context.Background(), sale)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if first.Items[0].ProductName != casual.Name {
		t.Fatalf("product name not filled from catalog: %+v", first.Items[0])
	}

	replay := saleWith(domain.SaleItem{ProductID: casual.ID, Qty: 2, UnitPrice: casual.Price})
	replay.ID = "sale-other-id"
	second, err := s.CreateSale(context.Background(), replay)
	if err != nil {
		t.Fatalf("replay sale: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay created a new sale: %s vs %s", second.ID, first.ID)
	}

	if after := seededProduct(t, s, "1006"); after.Stock != casual.Stock-2 {
		t.Fatalf("stock = %d, want single decrement to %d", after.Stock, casual.Stock-2)
	}
}

func TestCreateSaleReturnsClones(t *testing.T) {
	s := NewSeeded()
	casual := seededProduct(t, s, "1006")

	sale := saleWith(domain.SaleItem{ProductID: casual.ID, Qty: 1, UnitPrice: casual.Price})
	created, err := s.CreateSale(context.Background(), sale)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	// Mutating the returned value must not leak into the store.
	created.Items[0].Qty = 999
	created.SellerName = "tampered"

	stored, err := s.FindSaleByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("find sale: %v", err)
	}
	if stored.Items[0].Qty != 1 || stored.SellerName != "Memoria" {
		t.Fatalf("stored sale mutated through returned pointer: %+v", stored)
	}
}

func TestListSalesWindowIsHalfOpen(t *testing.T) {
	s := NewSeeded()
	casual := seededProduct(t, s, "1006")

	base := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	for i, key := range []string{"idem-a", "idem-b", "idem-c"} {
		sale := saleWith(domain.SaleItem{ProductID: casual.ID, Qty: 1, UnitPrice: casual.Price})
		sale.IdempotencyKey = key
		sale.CreatedAt = base.AddDate(0, 0, i)
		if _, err := s.CreateSale(context.Background(), sale); err != nil {
			t.Fatalf("create sale %s: %v", key, err)
		}
	}

	sales, err := s.ListSales(context.Background(), base, base.AddDate(0, 0, 2), 10)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 sales in [base, base+2d), got %d", len(sales))
	}
	if !sales[0].CreatedAt.After(sales[1].CreatedAt) {
		t.Fatalf("sales not ordered newest first")
	}
}

func TestAdjustStockFloorsAtZero(t *testing.T) {
	s := NewSeeded()
	cycling := seededProduct(t, s, "1004")

	updated, err := s.AdjustStock(context.Background(), cycling.ID, -1000)
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if updated.Stock != 0 {
		t.Fatalf("stock = %d, want floor at 0", updated.Stock)
	}
}

func TestDeleteSalesDataKeepsProductsAndUsers(t *testing.T) {
	s := NewSeeded()
	casual := seededProduct(t, s, "1006")

	if _, err := s.CreateSale(context.Background(), saleWith(domain.SaleItem{ProductID: casual.ID, Qty: 1, UnitPrice: casual.Price})); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if err := s.AppendActivity(context.Background(), domain.ActivityLog{Actor: "test", Action: "noop"}); err != nil {
		t.Fatalf("append activity: %v", err)
	}

	salesDeleted, logsDeleted, err := s.DeleteSalesData(context.Background())
	if err != nil {
		t.Fatalf("delete sales data: %v", err)
	}
	if salesDeleted != 1 || logsDeleted != 1 {
		t.Fatalf("deleted = (%d, %d), want (1, 1)", salesDeleted, logsDeleted)
	}

	products, err := s.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 8 {
		t.Fatalf("catalog shrank: %d", len(products))
	}
	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("users shrank: %d", len(users))
	}

	// The old idempotency key is free again after a reset.
	if _, err := s.CreateSale(context.Background(), saleWith(domain.SaleItem{ProductID: casual.ID, Qty: 1, UnitPrice: casual.Price})); err != nil {
		t.Fatalf("create sale after reset: %v", err)
	}
}
