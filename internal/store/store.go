package store

import (
	"context"
	"errors"
	"fmt"

	"hielitos/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrInUse               = errors.New("still referenced")
)

// StorageError reports a failure of the underlying persistence engine.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap tags err as a StorageError unless it is nil or already one of the
// package sentinels.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrValidation, ErrInsufficientStock, ErrInsufficientPayment, ErrInUse} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// SaleCommit is everything a confirmed ticket writes: the header, its line
// items and one compensating movement per line.
type SaleCommit struct {
	Sale      domain.Sale
	Lines     []domain.SaleLine
	Movements []domain.Movement
}

type Repository interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByName(ctx context.Context, name string) (*domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	CountFlavorsByCategory(ctx context.Context, categoryID string) (int, error)

	ListFlavors(ctx context.Context) ([]domain.Flavor, error)
	GetFlavor(ctx context.Context, id string) (*domain.Flavor, error)
	// CreateFlavor inserts the flavor and, when opening is non-nil, its first
	// ledger movement in one write.
	CreateFlavor(ctx context.Context, flavor domain.Flavor, opening *domain.Movement) (*domain.Flavor, error)
	UpdateFlavor(ctx context.Context, flavor domain.Flavor) (*domain.Flavor, error)
	DeleteFlavor(ctx context.Context, id string) error
	CountFlavorReferences(ctx context.Context, flavorID string) (int, error)

	ListMovements(ctx context.Context) ([]domain.Movement, error)
	ListMovementsByFlavor(ctx context.Context, flavorID string) ([]domain.Movement, error)
	CreateMovement(ctx context.Context, movement domain.Movement) (*domain.Movement, error)

	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	AddSaleLine(ctx context.Context, line domain.SaleLine) (*domain.SaleLine, error)
	ListSaleLines(ctx context.Context, saleID string) ([]domain.SaleLine, error)
	ListAllSaleLines(ctx context.Context) ([]domain.SaleLine, error)
	CommitSale(ctx context.Context, commit SaleCommit) (*SaleCommit, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}
