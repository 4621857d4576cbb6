package memory

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/inventory"
	"hielitos/backend/internal/logging"
	"hielitos/backend/internal/store"
)

func seedFlavor(t *testing.T, s *Store, stock int) domain.Flavor {
	t.Helper()
	ctx := context.Background()

	cat, err := s.CreateCategory(ctx, domain.Category{Name: "Water"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	flavor, err := s.CreateFlavor(ctx, domain.Flavor{Name: "Lime", CategoryID: cat.ID, Price: 10, Active: true}, nil)
	if err != nil {
		t.Fatalf("create flavor: %v", err)
	}
	if stock > 0 {
		if _, err := s.CreateMovement(ctx, domain.Movement{FlavorID: flavor.ID, Kind: domain.MovementStockIn, Quantity: stock, Note: "initial stock"}); err != nil {
			t.Fatalf("create movement: %v", err)
		}
	}
	return *flavor
}

func TestNewSeededHashesAdminPassword(t *testing.T) {
	s, err := NewSeeded("s3cret", nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	admin, err := s.GetUserByName(context.Background(), "admin")
	if err != nil {
		t.Fatalf("expected seeded admin: %v", err)
	}
	if admin.Password == "s3cret" {
		t.Fatalf("seed password must be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("s3cret")); err != nil {
		t.Fatalf("hash does not match seed password: %v", err)
	}
}

func TestUserNamesAreUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.CreateUser(ctx, domain.User{Name: "ana", Password: "x"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := s.CreateUser(ctx, domain.User{Name: "ana", Password: "y"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for duplicate name, got %v", err)
	}
}

func TestCreateFlavorRequiresCategory(t *testing.T) {
	s := New()
	_, err := s.CreateFlavor(context.Background(), domain.Flavor{Name: "Lime", CategoryID: "missing", Price: 10}, nil)
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewSeededWarnsOnDevPassword(t *testing.T) {
	var out bytes.Buffer
	if _, err := NewSeeded("", logging.NewWithOutput("info", &out)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out.String(), "default dev credentials") {
		t.Fatalf("expected dev credential warning in log, got %q", out.String())
	}
}

func TestCreateFlavorWritesOpeningMovementAtomically(t *testing.T) {
	s := New()
	ctx := context.Background()
	cat, err := s.CreateCategory(ctx, domain.Category{Name: "Water"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	flavor, err := s.CreateFlavor(ctx, domain.Flavor{Name: "Lime", CategoryID: cat.ID, Price: 10}, &domain.Movement{
		Kind: domain.MovementStockIn, Quantity: 4, Note: "initial stock",
	})
	if err != nil {
		t.Fatalf("create flavor: %v", err)
	}
	movements, _ := s.ListMovementsByFlavor(ctx, flavor.ID)
	if len(movements) != 1 || movements[0].FlavorID != flavor.ID || inventory.StockOf(movements, flavor.ID) != 4 {
		t.Fatalf("expected one opening movement of 4, got %+v", movements)
	}

	_, err = s.CreateFlavor(ctx, domain.Flavor{Name: "Mango", CategoryID: cat.ID, Price: 10}, &domain.Movement{
		Kind: "gift", Quantity: 2,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for bad opening movement, got %v", err)
	}
	flavors, _ := s.ListFlavors(ctx)
	if len(flavors) != 1 {
		t.Fatalf("rejected flavor must not be stored, got %d flavors", len(flavors))
	}
}

func TestDeleteGuards(t *testing.T) {
	s := New()
	ctx := context.Background()
	flavor := seedFlavor(t, s, 3)

	if err := s.DeleteCategory(ctx, flavor.CategoryID); !errors.Is(err, store.ErrInUse) {
		t.Fatalf("expected in use for category, got %v", err)
	}
	if err := s.DeleteFlavor(ctx, flavor.ID); !errors.Is(err, store.ErrInUse) {
		t.Fatalf("expected in use for flavor with movements, got %v", err)
	}
	if err := s.DeleteFlavor(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMovementsNewestFirstWithMillisecondTimestamps(t *testing.T) {
	s := New()
	ctx := context.Background()
	flavor := seedFlavor(t, s, 0)

	base := time.Date(2025, 1, 1, 10, 0, 0, 123456789, time.UTC)
	for i := 1; i <= 3; i++ {
		_, err := s.CreateMovement(ctx, domain.Movement{
			FlavorID:  flavor.ID,
			Kind:      domain.MovementStockIn,
			Quantity:  i,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create movement %d: %v", i, err)
		}
	}

	got, err := s.ListMovements(ctx)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(got) != 3 || got[0].Quantity != 3 || got[2].Quantity != 1 {
		t.Fatalf("expected newest first, got %+v", got)
	}
	if got[0].CreatedAt.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("expected millisecond precision, got %v", got[0].CreatedAt)
	}
}

func TestCommitSaleIsAtomic(t *testing.T) {
	s := New()
	ctx := context.Background()
	flavor := seedFlavor(t, s, 5)

	commit := store.SaleCommit{
		Sale:      domain.Sale{Kind: domain.SaleNormal, Total: 20, Tendered: 20},
		Lines:     []domain.SaleLine{{FlavorID: flavor.ID, Quantity: 2, Subtotal: 20}},
		Movements: []domain.Movement{{FlavorID: flavor.ID, Kind: domain.MovementSaleDeduction, Quantity: -2, Note: "sale"}},
	}
	saved, err := s.CommitSale(ctx, commit)
	if err != nil {
		t.Fatalf("commit sale: %v", err)
	}
	if saved.Sale.ID == "" || saved.Lines[0].SaleID != saved.Sale.ID {
		t.Fatalf("expected lines bound to the new sale, got %+v", saved)
	}

	movements, _ := s.ListMovements(ctx)
	if stock := inventory.StockOf(movements, flavor.ID); stock != 3 {
		t.Fatalf("expected stock 3, got %d", stock)
	}

	greedy := store.SaleCommit{
		Sale:      domain.Sale{Kind: domain.SaleNormal, Total: 40, Tendered: 40},
		Lines:     []domain.SaleLine{{FlavorID: flavor.ID, Quantity: 4, Subtotal: 40}},
		Movements: []domain.Movement{{FlavorID: flavor.ID, Kind: domain.MovementSaleDeduction, Quantity: -4}},
	}
	if _, err := s.CommitSale(ctx, greedy); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	sales, _ := s.ListSales(ctx)
	lines, _ := s.ListAllSaleLines(ctx)
	movements, _ = s.ListMovements(ctx)
	if len(sales) != 1 || len(lines) != 1 || len(movements) != 2 {
		t.Fatalf("failed commit left partial writes: sales=%d lines=%d movements=%d", len(sales), len(lines), len(movements))
	}
}

func TestAuditLogsNewestFirstWithLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now()
	for i, action := range []string{"a", "b", "c"} {
		if err := s.CreateAuditLog(ctx, domain.AuditLog{Action: action, CreatedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("audit: %v", err)
		}
	}
	logs, err := s.ListAuditLogs(ctx, 2)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(logs) != 2 || logs[0].Action != "c" || logs[1].Action != "b" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}
