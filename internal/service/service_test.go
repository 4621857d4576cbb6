package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"hielitos/backend/internal/cache"
	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/inventory"
	"hielitos/backend/internal/store"
	"hielitos/backend/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.New()
	svc := New(repo, cache.NewMemoryDashboardCache(), Options{
		DashboardTTL: time.Minute,
		Location:     time.UTC,
	})
	return svc, repo
}

func cashierCtx(id string) context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: id, Name: id})
}

func price(v float64) *float64 { return &v }

func mustFlavor(t *testing.T, svc *Service, ctx context.Context, name string, unit float64, stock int) domain.FlavorStock {
	t.Helper()
	categories, _ := svc.ListCategories(ctx)
	var categoryID string
	if len(categories) > 0 {
		categoryID = categories[0].ID
	} else {
		cat, err := svc.CreateCategory(ctx, domain.CategoryCreateRequest{Name: "Water"})
		if err != nil {
			t.Fatalf("create category: %v", err)
		}
		categoryID = cat.ID
	}
	flavor, err := svc.CreateFlavor(ctx, domain.FlavorCreateRequest{
		Name:         name,
		CategoryID:   categoryID,
		Price:        price(unit),
		Active:       true,
		InitialStock: stock,
	})
	if err != nil {
		t.Fatalf("create flavor %s: %v", name, err)
	}
	return flavor
}

func TestCreateFlavorRecordsInitialStock(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx("u1")

	lime := mustFlavor(t, svc, ctx, "Lime", 10, 5)
	if lime.Stock != 5 {
		t.Fatalf("expected stock 5, got %d", lime.Stock)
	}

	movements, _ := repo.ListMovementsByFlavor(ctx, lime.ID)
	if len(movements) != 1 || movements[0].Kind != domain.MovementStockIn || movements[0].Note != "initial stock" {
		t.Fatalf("unexpected movements: %+v", movements)
	}

	none := mustFlavor(t, svc, ctx, "Mango", 12, 0)
	movements, _ = repo.ListMovementsByFlavor(ctx, none.ID)
	if len(movements) != 0 {
		t.Fatalf("zero initial stock must not write a movement")
	}
}

func TestCreateFlavorValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("u1")
	cat, _ := svc.CreateCategory(ctx, domain.CategoryCreateRequest{Name: "Water"})

	cases := []struct {
		name string
		req  domain.FlavorCreateRequest
	}{
		{"missing name", domain.FlavorCreateRequest{CategoryID: cat.ID, Price: price(10)}},
		{"missing price", domain.FlavorCreateRequest{Name: "Lime", CategoryID: cat.ID}},
		{"negative price", domain.FlavorCreateRequest{Name: "Lime", CategoryID: cat.ID, Price: price(-1)}},
		{"unknown category", domain.FlavorCreateRequest{Name: "Lime", CategoryID: "nope", Price: price(10)}},
		{"negative stock", domain.FlavorCreateRequest{Name: "Lime", CategoryID: cat.ID, Price: price(10), InitialStock: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateFlavor(ctx, tc.req); !errors.Is(err, store.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCategoryNamesAreUnique(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("u1")

	if _, err := svc.CreateCategory(ctx, domain.CategoryCreateRequest{Name: "Water"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateCategory(ctx, domain.CategoryCreateRequest{Name: " Water "}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected duplicate rejected, got %v", err)
	}
	if _, err := svc.CreateCategory(ctx, domain.CategoryCreateRequest{Name: "   "}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected blank name rejected, got %v", err)
	}
	milk, err := svc.CreateCategory(ctx, domain.CategoryCreateRequest{Name: "Milk"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	name := "Water"
	if _, err := svc.UpdateCategory(ctx, milk.ID, domain.CategoryUpdateRequest{Name: &name}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected rename onto existing name rejected, got %v", err)
	}
}

func TestSellTwoLimes(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx("u1")
	lime := mustFlavor(t, svc, ctx, "Lime", 10, 5)

	for i := 0; i < 2; i++ {
		if _, err := svc.AddTicketLine(ctx, domain.TicketLineRequest{FlavorID: lime.ID}); err != nil {
			t.Fatalf("add line: %v", err)
		}
	}
	view, err := svc.SetTicketTendered(ctx, domain.TicketTenderedRequest{Amount: 20})
	if err != nil {
		t.Fatalf("tender: %v", err)
	}
	if view.Subtotal != 20 || view.Total != 20 {
		t.Fatalf("expected subtotal 20, got %+v", view)
	}

	receipt, err := svc.ConfirmTicket(ctx)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if receipt.Sale.Change != 0 || receipt.Sale.UserID != "u1" {
		t.Fatalf("unexpected sale: %+v", receipt.Sale)
	}

	stock, _ := svc.FlavorStock(ctx, lime.ID)
	if stock.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", stock.Stock)
	}

	sales, _ := svc.ListSales(ctx)
	if len(sales) != 1 {
		t.Fatalf("expected one sale, got %d", len(sales))
	}
	lines, _ := svc.SaleLines(ctx, sales[0].ID)
	if len(lines) != 1 || lines[0].Quantity != 2 || lines[0].Subtotal != 20 {
		t.Fatalf("unexpected lines: %+v", lines)
	}

	movements, _ := repo.ListMovementsByFlavor(ctx, lime.ID)
	deductions := 0
	for _, m := range movements {
		if m.Kind == domain.MovementSaleDeduction {
			deductions++
			if m.Quantity != -2 || !strings.HasPrefix(m.Note, "sale ") {
				t.Fatalf("unexpected deduction: %+v", m)
			}
		}
	}
	if deductions != 1 {
		t.Fatalf("expected one deduction, got %d", deductions)
	}

	after, _ := svc.Ticket(ctx)
	if len(after.Lines) != 0 || after.State != domain.TicketBuilding {
		t.Fatalf("expected ticket reset after commit, got %+v", after)
	}
}

func TestSetLineQuantityBeyondStockKeepsTicket(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("u1")
	lime := mustFlavor(t, svc, ctx, "Lime", 10, 3)

	_, _ = svc.AddTicketLine(ctx, domain.TicketLineRequest{FlavorID: lime.ID})
	before, _ := svc.Ticket(ctx)

	_, err := svc.SetTicketLineQuantity(ctx, lime.ID, domain.TicketQuantityRequest{Quantity: 5})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	after, _ := svc.Ticket(ctx)
	if after.Subtotal != before.Subtotal || after.Lines[0].Quantity != 1 {
		t.Fatalf("ticket changed after rejected edit: %+v", after)
	}
}

func TestDiscountSaleCountsLoss(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("u1")
	mango := mustFlavor(t, svc, ctx, "Mango", 25, 4)

	_, _ = svc.AddTicketLine(ctx, domain.TicketLineRequest{FlavorID: mango.ID})
	_, _ = svc.AddTicketLine(ctx, domain.TicketLineRequest{FlavorID: mango.ID})
	if _, err := svc.SetTicketKind(ctx, domain.TicketKindRequest{Kind: "discount"}); err != nil {
		t.Fatalf("kind: %v", err)
	}
	view, err := svc.SetTicketDiscount(ctx, domain.TicketDiscountRequest{Fixed: price(5)})
	if err != nil {
		t.Fatalf("discount: %v", err)
	}
	if view.Total != 45 {
		t.Fatalf("expected total 45, got %v", view.Total)
	}
	_, _ = svc.SetTicketTendered(ctx, domain.TicketTenderedRequest{Amount: 50})

	before, _ := svc.Summary(ctx)
	receipt, err := svc.ConfirmTicket(ctx)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if receipt.Sale.Change != 5 {
		t.Fatalf("expected change 5, got %v", receipt.Sale.Change)
	}

	after, _ := svc.Summary(ctx)
	if math.Abs(after.DiscountLoss-before.DiscountLoss-5) > 1e-9 {
		t.Fatalf("expected discount loss to grow by 5, got %v -> %v", before.DiscountLoss, after.DiscountLoss)
	}
	if after.Revenue != 45 {
		t.Fatalf("expected revenue 45, got %v", after.Revenue)
	}
}

func TestDiscountRequiresExactlyOneValue(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("u1")
	_, _ = svc.SetTicketKind(ctx, domain.TicketKindRequest{Kind: "discount"})

	if _, err := svc.SetTicketDiscount(ctx, domain.TicketDiscountRequest{}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for empty discount, got %v", err)
	}
	if _, err := svc.SetTicketDiscount(ctx, domain.TicketDiscountRequest{Fixed: price(1), Percent: price(10)}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for both values, got %v", err)
	}
	if _, err := svc.SetTicketDiscount(ctx, domain.TicketDiscountRequest{Percent: price(150)}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for percent > 100, got %v", err)
	}
}

func TestInsufficientPaymentLeavesEverythingUnchanged(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx("u1")
	lime := mustFlavor(t, svc, ctx, "Lime", 10, 5)

	_, _ = svc.AddTicketLine(ctx, domain.TicketLineRequest{FlavorID: lime.ID})
	_, _ = svc.AddTicketLine(ctx, domain.TicketLineRequest{FlavorID: lime.ID})
	_, _ = svc.SetTicketTendered(ctx, domain.TicketTenderedRequest{Amount: 15})

	if _, err := svc.ConfirmTicket(ctx); !errors.Is(err, store.ErrInsufficientPayment) {
		t.Fatalf("expected insufficient payment, got %v", err)
	}

	view, _ := svc.Ticket(ctx)
	if len(view.Lines) != 1 || view.Lines[0].Quantity != 2 || view.Tendered != 15 {
		t.Fatalf("ticket changed: %+v", view)
	}
	sales, _ := repo.ListSales(ctx)
	movements, _ := repo.ListMovementsByFlavor(ctx, lime.ID)
	if len(sales) != 0 || len(movements) != 1 {
		t.Fatalf("failed payment wrote to the ledger: sales=%d movements=%d", len(sales), len(movements))
	}
}

func TestConfirmRechecksStockAtCommit(t *testing.T) {
	svc, _ := newTestService()
	ana := cashierCtx("ana")
	luis := cashierCtx("luis")
	lime := mustFlavor(t, svc, ana, "Lime", 10, 1)

	_, _ = svc.AddTicketLine(ana, domain.TicketLineRequest{FlavorID: lime.ID})
	_, _ = svc.AddTicketLine(luis, domain.TicketLineRequest{FlavorID: lime.ID})
	_, _ = svc.SetTicketTendered(ana, domain.TicketTenderedRequest{Amount: 10})
	_, _ = svc.SetTicketTendered(luis, domain.TicketTenderedRequest{Amount: 10})

	if _, err := svc.ConfirmTicket(ana); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := svc.ConfirmTicket(luis); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock on stale ticket, got %v", err)
	}
	view, _ := svc.Ticket(luis)
	if len(view.Lines) != 1 {
		t.Fatalf("rejected ticket must be kept, got %+v", view)
	}
}

func TestDonationSale(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("u1")
	lime := mustFlavor(t, svc, ctx, "Lime", 10, 5)

	_, _ = svc.AddTicketLine(ctx, domain.TicketLineRequest{FlavorID: lime.ID})
	_, _ = svc.SetTicketKind(ctx, domain.TicketKindRequest{Kind: "donation"})
	receipt, err := svc.ConfirmTicket(ctx)
	if err != nil {
		t.Fatalf("confirm donation: %v", err)
	}
	if receipt.Sale.Total != 0 || receipt.Sale.Change != 0 {
		t.Fatalf("unexpected donation: %+v", receipt.Sale)
	}

	summary, _ := svc.Summary(ctx)
	if summary.DonationLoss != 10 || summary.GlobalStock != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestDesiredStockWritesOneAdjustment(t *testing.T) {
	svc, repo := newTestService()
	ctx := cashierCtx("u1")
	lime := mustFlavor(t, svc, ctx, "Lime", 10, 5)

	for _, desired := range []int{2, 9, 9} {
		before, _ := repo.ListMovementsByFlavor(ctx, lime.ID)
		target := desired
		updated, err := svc.UpdateFlavor(ctx, lime.ID, domain.FlavorUpdateRequest{DesiredStock: &target})
		if err != nil {
			t.Fatalf("update to %d: %v", desired, err)
		}
		after, _ := repo.ListMovementsByFlavor(ctx, lime.ID)
		if updated.Stock != desired || inventory.StockOf(after, lime.ID) != desired {
			t.Fatalf("expected stock %d, got %d", desired, updated.Stock)
		}

		wantNew := 1
		if inventory.StockOf(before, lime.ID) == desired {
			wantNew = 0
		}
		if len(after)-len(before) != wantNew {
			t.Fatalf("expected %d new movements, got %d", wantNew, len(after)-len(before))
		}
	}

	movements, _ := repo.ListMovementsByFlavor(ctx, lime.ID)
	latest := movements[0]
	if latest.Kind != domain.MovementStockIn || latest.Quantity != 7 || latest.Note != "manual adjustment (2→9)" {
		t.Fatalf("unexpected adjustment: %+v", latest)
	}

	negative := -1
	if _, err := svc.UpdateFlavor(ctx, lime.ID, domain.FlavorUpdateRequest{DesiredStock: &negative}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected negative desired stock rejected, got %v", err)
	}
}

func TestDeleteGuards(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("u1")
	lime := mustFlavor(t, svc, ctx, "Lime", 10, 1)
	unused := mustFlavor(t, svc, ctx, "Mango", 10, 0)

	if err := svc.DeleteCategory(ctx, lime.CategoryID); !errors.Is(err, store.ErrInUse) {
		t.Fatalf("expected category in use, got %v", err)
	}
	if err := svc.DeleteFlavor(ctx, lime.ID); !errors.Is(err, store.ErrInUse) {
		t.Fatalf("expected flavor in use, got %v", err)
	}
	if err := svc.DeleteFlavor(ctx, unused.ID); err != nil {
		t.Fatalf("delete unused flavor: %v", err)
	}
	if err := svc.DeleteFlavor(ctx, unused.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateMovementRules(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("u1")
	lime := mustFlavor(t, svc, ctx, "Lime", 10, 5)

	cases := []struct {
		name string
		req  domain.MovementCreateRequest
		ok   bool
	}{
		{"stock in", domain.MovementCreateRequest{FlavorID: lime.ID, Kind: "stock_in", Quantity: 3}, true},
		{"legacy label", domain.MovementCreateRequest{FlavorID: lime.ID, Kind: "stock-out", Quantity: 1}, true},
		{"negative adjustment", domain.MovementCreateRequest{FlavorID: lime.ID, Kind: "adjustment", Quantity: -2}, true},
		{"zero quantity", domain.MovementCreateRequest{FlavorID: lime.ID, Kind: "stock_in", Quantity: 0}, false},
		{"negative stock in", domain.MovementCreateRequest{FlavorID: lime.ID, Kind: "stock_in", Quantity: -3}, false},
		{"sale deduction", domain.MovementCreateRequest{FlavorID: lime.ID, Kind: "sale_deduction", Quantity: 1}, false},
		{"unknown kind", domain.MovementCreateRequest{FlavorID: lime.ID, Kind: "gift", Quantity: 1}, false},
		{"unknown flavor", domain.MovementCreateRequest{FlavorID: "nope", Kind: "stock_in", Quantity: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateMovement(ctx, tc.req)
			if tc.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tc.ok && !errors.Is(err, store.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	stock, _ := svc.FlavorStock(ctx, lime.ID)
	if stock.Stock != 5 {
		t.Fatalf("expected 5+3-1-2 = 5, got %d", stock.Stock)
	}
}

func TestVerifyUser(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, domain.UserCreateRequest{Name: "ana", Password: "secret"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.Password == "secret" {
		t.Fatalf("password must be hashed")
	}

	user, err := svc.VerifyUser(ctx, "ana", "secret")
	if err != nil || user == nil || user.ID != created.ID {
		t.Fatalf("expected ana verified, got %+v err=%v", user, err)
	}
	if user, _ := svc.VerifyUser(ctx, "ana", "wrong"); user != nil {
		t.Fatalf("expected wrong password rejected")
	}
	if user, _ := svc.VerifyUser(ctx, "nobody", "secret"); user != nil {
		t.Fatalf("expected unknown user rejected")
	}

	legacy, _ := repo.CreateUser(ctx, domain.User{Name: "old", Password: "plain"})
	if user, _ := svc.VerifyUser(ctx, "old", "plain"); user == nil {
		t.Fatalf("expected legacy password accepted")
	}
	upgraded, _ := repo.GetUser(ctx, legacy.ID)
	if !isPasswordHash(upgraded.Password) {
		t.Fatalf("expected legacy password upgraded to a hash")
	}
}

func TestDashboardCacheInvalidatedBySale(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("u1")
	lime := mustFlavor(t, svc, ctx, "Lime", 10, 5)

	first, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if first.Summary.Sales != 0 || first.Trends.TopFlavor.Found {
		t.Fatalf("unexpected empty dashboard: %+v", first)
	}

	_, _ = svc.AddTicketLine(ctx, domain.TicketLineRequest{FlavorID: lime.ID})
	_, _ = svc.SetTicketTendered(ctx, domain.TicketTenderedRequest{Amount: 10})
	if _, err := svc.ConfirmTicket(ctx); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	second, _ := svc.Dashboard(ctx)
	if second.Summary.Sales != 1 || second.Trends.TopFlavor.Name != "Lime" {
		t.Fatalf("expected refreshed dashboard, got %+v", second)
	}
}

// stallingRepo parks the first ListAllSaleLines call until released, so a
// dashboard build can be held mid-snapshot.
type stallingRepo struct {
	*memory.Store
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (r *stallingRepo) ListAllSaleLines(ctx context.Context) ([]domain.SaleLine, error) {
	if r.armed.CompareAndSwap(true, false) {
		close(r.entered)
		<-r.release
	}
	return r.Store.ListAllSaleLines(ctx)
}

func TestDashboardBuiltBeforeSaleIsNotCached(t *testing.T) {
	repo := &stallingRepo{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	svc := New(repo, cache.NewMemoryDashboardCache(), Options{DashboardTTL: time.Minute, Location: time.UTC})
	ctx := cashierCtx("u1")
	lime := mustFlavor(t, svc, ctx, "Lime", 10, 5)

	_, _ = svc.AddTicketLine(ctx, domain.TicketLineRequest{FlavorID: lime.ID})
	_, _ = svc.SetTicketTendered(ctx, domain.TicketTenderedRequest{Amount: 10})

	repo.armed.Store(true)
	done := make(chan domain.Dashboard)
	go func() {
		dash, _ := svc.Dashboard(ctx)
		done <- dash
	}()
	<-repo.entered

	if _, err := svc.ConfirmTicket(ctx); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	close(repo.release)
	if stale := <-done; stale.Summary.Sales != 0 {
		t.Fatalf("in-flight dashboard should predate the sale, got %d sales", stale.Summary.Sales)
	}

	fresh, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if fresh.Summary.Sales != 1 || fresh.Summary.GlobalStock != 4 {
		t.Fatalf("expected dashboard with the committed sale, got sales=%d stock=%d", fresh.Summary.Sales, fresh.Summary.GlobalStock)
	}
}

func TestDeleteUserDropsOpenTicket(t *testing.T) {
	svc, _ := newTestService()
	admin := cashierCtx("admin")
	lime := mustFlavor(t, svc, admin, "Lime", 10, 5)

	user, err := svc.CreateUser(admin, domain.UserCreateRequest{Name: "luis", Password: "hielo"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	luis := WithActor(context.Background(), domain.Actor{UserID: user.ID, Name: user.Name})
	if _, err := svc.AddTicketLine(luis, domain.TicketLineRequest{FlavorID: lime.ID}); err != nil {
		t.Fatalf("add line: %v", err)
	}

	if err := svc.DeleteUser(admin, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	view, _ := svc.Ticket(luis)
	if len(view.Lines) != 0 {
		t.Fatalf("deleted user's ticket should be discarded, got %+v", view.Lines)
	}
}

func TestAvailableShelfHidesInactiveAndSoldOut(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("u1")
	lime := mustFlavor(t, svc, ctx, "Lime", 10, 5)
	mustFlavor(t, svc, ctx, "Mango", 10, 0)
	hidden := mustFlavor(t, svc, ctx, "Tamarind", 10, 5)
	inactive := false
	if _, err := svc.UpdateFlavor(ctx, hidden.ID, domain.FlavorUpdateRequest{Active: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.CreateCategory(ctx, domain.CategoryCreateRequest{Name: "Empty"}); err != nil {
		t.Fatalf("create category: %v", err)
	}

	shelves, err := svc.AvailableShelf(ctx)
	if err != nil {
		t.Fatalf("shelf: %v", err)
	}
	if len(shelves) != 1 || len(shelves[0].Flavors) != 1 || shelves[0].Flavors[0].ID != lime.ID {
		t.Fatalf("unexpected shelves: %+v", shelves)
	}

	if _, err := svc.AddTicketLine(ctx, domain.TicketLineRequest{FlavorID: hidden.ID}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected inactive flavor rejected, got %v", err)
	}
}

func TestAuditTrailRecordsActor(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx("ana")
	mustFlavor(t, svc, ctx, "Lime", 10, 1)

	logs, err := svc.ListAuditLogs(ctx, 10)
	if err != nil {
		t.Fatalf("audit logs: %v", err)
	}
	if len(logs) == 0 || logs[0].Actor != "ana" {
		t.Fatalf("expected audit entries by ana, got %+v", logs)
	}
}
