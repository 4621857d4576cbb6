package service

import (
	"context"
	"fmt"

	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/store"
)

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// CreateSale records a bare sale header. It does not touch stock; the
// ticket flow is the path that deducts inventory.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	if err := s.check(req); err != nil {
		return domain.Sale{}, err
	}
	kind := domain.SaleKind(req.Kind)
	if !kind.Valid() {
		return domain.Sale{}, fmt.Errorf("%w: unknown sale kind %q", store.ErrValidation, req.Kind)
	}

	sale := domain.Sale{
		Kind:            kind,
		Total:           req.Total,
		Tendered:        req.Tendered,
		Change:          req.Change,
		DiscountPercent: req.DiscountPercent,
		FixedDiscount:   req.FixedDiscount,
		CreatedAt:       s.now(),
	}
	if actor, ok := ActorFromContext(ctx); ok {
		sale.UserID = actor.UserID
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "sale_create", "sale", created.ID, fmt.Sprintf("kind=%s,total=%.2f", created.Kind, created.Total))
	return *created, nil
}

func (s *Service) AddSaleLine(ctx context.Context, saleID string, req domain.SaleLineCreateRequest) (domain.SaleLine, error) {
	if err := s.check(req); err != nil {
		return domain.SaleLine{}, err
	}
	created, err := s.repo.AddSaleLine(ctx, domain.SaleLine{
		SaleID:   saleID,
		FlavorID: req.FlavorID,
		Quantity: req.Quantity,
		Subtotal: req.Subtotal,
	})
	if err != nil {
		return domain.SaleLine{}, err
	}

	s.invalidateDashboard(ctx)
	return *created, nil
}

func (s *Service) SaleLines(ctx context.Context, saleID string) ([]domain.SaleLine, error) {
	if _, err := s.repo.GetSale(ctx, saleID); err != nil {
		return nil, err
	}
	return s.repo.ListSaleLines(ctx, saleID)
}
