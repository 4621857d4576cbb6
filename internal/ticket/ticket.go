// Package ticket holds the in-progress sale a cashier is building before
// payment is confirmed. Nothing here touches storage; Settle produces the
// writes a confirmed sale needs and the caller commits them.
package ticket

import (
	"fmt"
	"math"
	"time"

	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/store"
	"hielitos/backend/internal/xid"
)

type Ticket struct {
	state    domain.TicketState
	kind     domain.SaleKind
	lines    []domain.TicketLine
	fixed    float64
	percent  float64
	tendered float64
}

func New() *Ticket {
	t := &Ticket{}
	t.Reset()
	return t
}

// Reset discards every selection. It is both the abandon path and the
// post-commit cleanup.
func (t *Ticket) Reset() {
	t.state = domain.TicketBuilding
	t.kind = domain.SaleNormal
	t.lines = nil
	t.fixed = 0
	t.percent = 0
	t.tendered = 0
}

func (t *Ticket) State() domain.TicketState { return t.state }

func (t *Ticket) Kind() domain.SaleKind { return t.kind }

func (t *Ticket) Lines() []domain.TicketLine {
	return append([]domain.TicketLine(nil), t.lines...)
}

func (t *Ticket) Quantity(flavorID string) int {
	if idx := t.indexOf(flavorID); idx >= 0 {
		return t.lines[idx].Quantity
	}
	return 0
}

// AddLine adds one unit of flavor. stock is the flavor's current derived
// stock; the ticket quantity never exceeds it.
func (t *Ticket) AddLine(flavor domain.Flavor, stock int) error {
	idx := t.indexOf(flavor.ID)
	if idx >= 0 {
		line := t.lines[idx]
		next := line.Quantity + 1
		if next > stock {
			return fmt.Errorf("%w: %s has %d left", store.ErrInsufficientStock, flavor.Name, stock)
		}
		line.Quantity = next
		line.Subtotal = float64(next) * line.UnitPrice
		t.lines[idx] = line
		t.touch()
		return nil
	}

	if stock <= 0 {
		return fmt.Errorf("%w: %s is sold out", store.ErrInsufficientStock, flavor.Name)
	}
	t.lines = append(t.lines, domain.TicketLine{
		FlavorID:  flavor.ID,
		Name:      flavor.Name,
		Color:     flavor.Color,
		ImageURL:  flavor.ImageURL,
		UnitPrice: flavor.Price,
		Quantity:  1,
		Subtotal:  flavor.Price,
	})
	t.touch()
	return nil
}

// SetLineQuantity sets a line's quantity; qty <= 0 removes the line. The
// subtotal uses the unit price captured when the line was added.
func (t *Ticket) SetLineQuantity(flavorID string, qty int, stock int) error {
	idx := t.indexOf(flavorID)
	if qty <= 0 {
		if idx >= 0 {
			t.lines = append(t.lines[:idx], t.lines[idx+1:]...)
			t.touch()
		}
		return nil
	}
	if idx < 0 {
		return fmt.Errorf("%w: flavor %s is not on the ticket", store.ErrNotFound, flavorID)
	}
	if qty > stock {
		return fmt.Errorf("%w: %s has %d left", store.ErrInsufficientStock, t.lines[idx].Name, stock)
	}
	line := t.lines[idx]
	line.Quantity = qty
	line.Subtotal = float64(qty) * line.UnitPrice
	t.lines[idx] = line
	t.touch()
	return nil
}

func (t *Ticket) Subtotal() float64 {
	sum := 0.0
	for _, line := range t.lines {
		sum += line.Subtotal
	}
	return sum
}

// SetKind switches the sale kind and clears discounts and the tendered amount.
func (t *Ticket) SetKind(kind domain.SaleKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown sale kind %q", store.ErrValidation, kind)
	}
	t.kind = kind
	t.fixed = 0
	t.percent = 0
	t.tendered = 0
	t.touch()
	return nil
}

// SetFixedDiscount sets a monetary discount and clears any percentage.
// Whether it exceeds the subtotal is checked at settlement.
func (t *Ticket) SetFixedDiscount(amount float64) error {
	if t.kind != domain.SaleDiscount {
		return fmt.Errorf("%w: discounts apply to discount sales only", store.ErrValidation)
	}
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: fixed discount must be >= 0", store.ErrValidation)
	}
	t.fixed = amount
	if amount > 0 {
		t.percent = 0
	}
	t.touch()
	return nil
}

// SetPercentDiscount sets a percentage discount and clears any fixed amount.
func (t *Ticket) SetPercentDiscount(percent float64) error {
	if t.kind != domain.SaleDiscount {
		return fmt.Errorf("%w: discounts apply to discount sales only", store.ErrValidation)
	}
	if percent < 0 || percent > 100 || math.IsNaN(percent) {
		return fmt.Errorf("%w: percent discount must be within 0..100", store.ErrValidation)
	}
	t.percent = percent
	if percent > 0 {
		t.fixed = 0
	}
	t.touch()
	return nil
}

// SetTendered records the cash handed over. It belongs to the payment step
// and leaves the state alone.
func (t *Ticket) SetTendered(amount float64) error {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: tendered amount must be >= 0", store.ErrValidation)
	}
	t.tendered = amount
	return nil
}

// EffectiveTotal is what the customer is charged.
func (t *Ticket) EffectiveTotal() float64 {
	sub := t.Subtotal()
	switch t.kind {
	case domain.SaleDonation:
		return t.tendered
	case domain.SaleDiscount:
		if t.fixed > 0 {
			return math.Max(0, sub-t.fixed)
		}
		if t.percent > 0 {
			return math.Max(0, sub*(1-t.percent/100))
		}
	}
	return sub
}

func (t *Ticket) change(total float64) float64 {
	if t.kind == domain.SaleDonation {
		return 0
	}
	return t.tendered - total
}

// RequestPayment moves the ticket to awaiting payment confirmation.
func (t *Ticket) RequestPayment() error {
	if len(t.lines) == 0 {
		return fmt.Errorf("%w: ticket has no lines", store.ErrValidation)
	}
	if t.Subtotal() <= 0 && t.kind != domain.SaleDonation {
		return fmt.Errorf("%w: total must be greater than zero", store.ErrValidation)
	}
	t.state = domain.TicketAwaitingPayment
	return nil
}

// Settle validates payment and builds the sale header, line items and the
// compensating ledger movements. The ticket itself is left untouched; the
// caller resets it once the commit is durable.
func (t *Ticket) Settle(now time.Time, userID string) (store.SaleCommit, error) {
	if err := t.RequestPayment(); err != nil {
		return store.SaleCommit{}, err
	}

	sub := t.Subtotal()
	if t.kind == domain.SaleDiscount && t.fixed > sub {
		return store.SaleCommit{}, fmt.Errorf("%w: fixed discount %.2f exceeds subtotal %.2f", store.ErrValidation, t.fixed, sub)
	}

	total := t.EffectiveTotal()
	if t.kind != domain.SaleDonation && t.tendered < total {
		return store.SaleCommit{}, fmt.Errorf("%w: tendered %.2f, total %.2f", store.ErrInsufficientPayment, t.tendered, total)
	}

	percent, fixed := 0.0, 0.0
	if t.kind == domain.SaleDiscount {
		percent = t.percent
		fixed = t.fixed
		if fixed > 0 {
			percent = fixed / sub * 100
		}
	}

	at := xid.Millis(now)
	sale := domain.Sale{
		ID:              xid.New(),
		Kind:            t.kind,
		Total:           total,
		Tendered:        t.tendered,
		Change:          t.change(total),
		DiscountPercent: percent,
		FixedDiscount:   fixed,
		UserID:          userID,
		CreatedAt:       at,
	}

	commit := store.SaleCommit{
		Sale:      sale,
		Lines:     make([]domain.SaleLine, 0, len(t.lines)),
		Movements: make([]domain.Movement, 0, len(t.lines)),
	}
	for _, line := range t.lines {
		commit.Lines = append(commit.Lines, domain.SaleLine{
			ID:       xid.New(),
			SaleID:   sale.ID,
			FlavorID: line.FlavorID,
			Quantity: line.Quantity,
			Subtotal: line.Subtotal,
		})
		commit.Movements = append(commit.Movements, domain.Movement{
			ID:        xid.New(),
			FlavorID:  line.FlavorID,
			Kind:      domain.MovementSaleDeduction,
			Quantity:  -line.Quantity,
			Note:      "sale " + sale.ID,
			CreatedAt: at,
		})
	}
	return commit, nil
}

func (t *Ticket) View() domain.TicketView {
	total := t.EffectiveTotal()
	lines := t.Lines()
	if lines == nil {
		lines = []domain.TicketLine{}
	}
	return domain.TicketView{
		State:           t.state,
		Kind:            t.kind,
		Lines:           lines,
		Subtotal:        t.Subtotal(),
		FixedDiscount:   t.fixed,
		DiscountPercent: t.percent,
		Total:           total,
		Tendered:        t.tendered,
		Change:          t.change(total),
	}
}

// touch sends the ticket back to building after any edit.
func (t *Ticket) touch() {
	t.state = domain.TicketBuilding
}

func (t *Ticket) indexOf(flavorID string) int {
	for i, line := range t.lines {
		if line.FlavorID == flavorID {
			return i
		}
	}
	return -1
}
