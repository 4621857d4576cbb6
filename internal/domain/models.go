package domain

import (
	"strings"
	"time"
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserUpdateRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=1"`
}

type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated user behind a request.
type Actor struct {
	UserID string
	Name   string
}

type Category struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	BasePrice *float64 `json:"base_price,omitempty"`
	ParentID  string   `json:"parent_id,omitempty"`
}

type CategoryCreateRequest struct {
	Name      string   `json:"name" validate:"required"`
	BasePrice *float64 `json:"base_price,omitempty" validate:"omitempty,gte=0"`
}

type CategoryUpdateRequest struct {
	Name      *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	BasePrice *float64 `json:"base_price,omitempty" validate:"omitempty,gte=0"`
}

type Flavor struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	CategoryID string  `json:"category_id"`
	Price      float64 `json:"price"`
	Color      string  `json:"color"`
	Active     bool    `json:"active"`
	ImageURL   string  `json:"image_url,omitempty"`
}

type FlavorCreateRequest struct {
	Name         string   `json:"name" validate:"required"`
	CategoryID   string   `json:"category_id" validate:"required"`
	Price        *float64 `json:"price" validate:"required,gte=0"`
	Color        string   `json:"color"`
	Active       bool     `json:"active"`
	ImageURL     string   `json:"image_url,omitempty"`
	InitialStock int      `json:"initial_stock" validate:"gte=0"`
}

type FlavorUpdateRequest struct {
	Name         *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	CategoryID   *string  `json:"category_id,omitempty" validate:"omitempty,min=1"`
	Price        *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Color        *string  `json:"color,omitempty"`
	Active       *bool    `json:"active,omitempty"`
	ImageURL     *string  `json:"image_url,omitempty"`
	DesiredStock *int     `json:"desired_stock,omitempty" validate:"omitempty,gte=0"`
}

// FlavorStock pairs a flavor with its stock derived from the movement ledger.
type FlavorStock struct {
	Flavor
	Stock int `json:"stock"`
}

type CategoryShelf struct {
	Category Category      `json:"category"`
	Flavors  []FlavorStock `json:"flavors"`
}

// MovementKind identifies a ledger entry type. Each kind carries its own sign
// except adjustments, whose sign is the stored quantity's.
type MovementKind string

const (
	MovementStockIn       MovementKind = "stock_in"
	MovementStockOut      MovementKind = "stock_out"
	MovementSaleDeduction MovementKind = "sale_deduction"
	MovementAdjustment    MovementKind = "adjustment"
)

// Sign returns +1 or -1 for kinds with a fixed direction and 0 for kinds
// whose direction comes from the quantity itself.
func (k MovementKind) Sign() int {
	switch k {
	case MovementStockIn:
		return 1
	case MovementStockOut, MovementSaleDeduction:
		return -1
	default:
		return 0
	}
}

func (k MovementKind) Valid() bool {
	switch k {
	case MovementStockIn, MovementStockOut, MovementSaleDeduction, MovementAdjustment:
		return true
	default:
		return false
	}
}

// ParseMovementKind normalises user input and legacy kind labels such as
// "stock-in" or "stock-out automatic sale" into a MovementKind.
func ParseMovementKind(raw string) (MovementKind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch {
	case normalized == "":
		return "", false
	case MovementKind(normalized).Valid():
		return MovementKind(normalized), true
	case strings.HasPrefix(normalized, "stock_in"):
		return MovementStockIn, true
	case strings.HasPrefix(normalized, "stock_out") && strings.Contains(normalized, "sale"):
		return MovementSaleDeduction, true
	case strings.HasPrefix(normalized, "stock_out"):
		return MovementStockOut, true
	case strings.HasPrefix(normalized, "adjust"):
		return MovementAdjustment, true
	default:
		return "", false
	}
}

type Movement struct {
	ID        string       `json:"id"`
	FlavorID  string       `json:"flavor_id"`
	Kind      MovementKind `json:"kind"`
	Quantity  int          `json:"quantity"`
	Note      string       `json:"note"`
	CreatedAt time.Time    `json:"created_at"`
}

type MovementCreateRequest struct {
	FlavorID string `json:"flavor_id" validate:"required"`
	Kind     string `json:"kind" validate:"required"`
	Quantity int    `json:"quantity" validate:"ne=0"`
	Note     string `json:"note"`
}

type SaleKind string

const (
	SaleNormal   SaleKind = "normal"
	SaleDiscount SaleKind = "discount"
	SaleDonation SaleKind = "donation"
)

func (k SaleKind) Valid() bool {
	switch k {
	case SaleNormal, SaleDiscount, SaleDonation:
		return true
	default:
		return false
	}
}

type Sale struct {
	ID              string    `json:"id"`
	Kind            SaleKind  `json:"kind"`
	Total           float64   `json:"total"`
	Tendered        float64   `json:"tendered"`
	Change          float64   `json:"change"`
	DiscountPercent float64   `json:"discount_percent"`
	FixedDiscount   float64   `json:"fixed_discount"`
	UserID          string    `json:"user_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type SaleLine struct {
	ID       string  `json:"id"`
	SaleID   string  `json:"sale_id"`
	FlavorID string  `json:"flavor_id"`
	Quantity int     `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

type SaleCreateRequest struct {
	Kind            string  `json:"kind" validate:"required"`
	Total           float64 `json:"total" validate:"gte=0"`
	Tendered        float64 `json:"tendered" validate:"gte=0"`
	Change          float64 `json:"change"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	FixedDiscount   float64 `json:"fixed_discount" validate:"gte=0"`
}

type SaleLineCreateRequest struct {
	FlavorID string  `json:"flavor_id" validate:"required"`
	Quantity int     `json:"quantity" validate:"gt=0"`
	Subtotal float64 `json:"subtotal" validate:"gte=0"`
}

type TicketState string

const (
	TicketBuilding        TicketState = "building"
	TicketAwaitingPayment TicketState = "awaiting_payment"
)

type TicketLine struct {
	FlavorID  string  `json:"flavor_id"`
	Name      string  `json:"name"`
	Color     string  `json:"color,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

// TicketView is the client-facing snapshot of an in-progress ticket.
type TicketView struct {
	State           TicketState  `json:"state"`
	Kind            SaleKind     `json:"kind"`
	Lines           []TicketLine `json:"lines"`
	Subtotal        float64      `json:"subtotal"`
	FixedDiscount   float64      `json:"fixed_discount"`
	DiscountPercent float64      `json:"discount_percent"`
	Total           float64      `json:"total"`
	Tendered        float64      `json:"tendered"`
	Change          float64      `json:"change"`
}

type TicketLineRequest struct {
	FlavorID string `json:"flavor_id" validate:"required"`
}

type TicketQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type TicketKindRequest struct {
	Kind string `json:"kind" validate:"required"`
}

type TicketDiscountRequest struct {
	Fixed   *float64 `json:"fixed,omitempty" validate:"omitempty,gte=0"`
	Percent *float64 `json:"percent,omitempty" validate:"omitempty,gte=0,lte=100"`
}

type TicketTenderedRequest struct {
	Amount float64 `json:"amount" validate:"gte=0"`
}

type SaleReceipt struct {
	Sale      Sale       `json:"sale"`
	Lines     []SaleLine `json:"lines"`
	Movements []Movement `json:"movements"`
}

type CategoryStock struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Stock      int    `json:"stock"`
}

type Summary struct {
	GlobalStock     int             `json:"global_stock"`
	StockByCategory []CategoryStock `json:"stock_by_category"`
	Revenue         float64         `json:"revenue"`
	StockValue      float64         `json:"stock_value"`
	DiscountLoss    float64         `json:"discount_loss"`
	DonationLoss    float64         `json:"donation_loss"`
	TotalLoss       float64         `json:"total_loss"`
	Sales           int             `json:"sales"`
}

type TopFlavor struct {
	Found    bool   `json:"found"`
	FlavorID string `json:"flavor_id,omitempty"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// TopBucket is the winning calendar bucket (weekday, month or hour).
type TopBucket struct {
	Found bool    `json:"found"`
	Index int     `json:"index"`
	Label string  `json:"label"`
	Total float64 `json:"total"`
}

type TopCashier struct {
	Found  bool    `json:"found"`
	UserID string  `json:"user_id,omitempty"`
	Name   string  `json:"name"`
	Total  float64 `json:"total"`
}

type Trends struct {
	TopFlavor  TopFlavor  `json:"top_flavor"`
	TopWeekday TopBucket  `json:"top_weekday"`
	TopMonth   TopBucket  `json:"top_month"`
	TopHour    TopBucket  `json:"top_hour"`
	TopCashier TopCashier `json:"top_cashier"`
}

type Dashboard struct {
	Summary     Summary   `json:"summary"`
	Trends      Trends    `json:"trends"`
	GeneratedAt time.Time `json:"generated_at"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
