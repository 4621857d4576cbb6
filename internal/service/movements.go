package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/store"
)

func (s *Service) ListMovements(ctx context.Context) ([]domain.Movement, error) {
	return s.repo.ListMovements(ctx)
}

// CreateMovement records a manual ledger entry. Sale deductions are written
// only by ticket confirmation. Stock in and stock out take a positive
// quantity; adjustments carry their own sign.
func (s *Service) CreateMovement(ctx context.Context, req domain.MovementCreateRequest) (domain.Movement, error) {
	if err := s.check(req); err != nil {
		return domain.Movement{}, err
	}

	kind, ok := domain.ParseMovementKind(req.Kind)
	if !ok {
		return domain.Movement{}, fmt.Errorf("%w: unknown movement kind %q", store.ErrValidation, req.Kind)
	}
	switch kind {
	case domain.MovementSaleDeduction:
		return domain.Movement{}, fmt.Errorf("%w: sale deductions are recorded by sales only", store.ErrValidation)
	case domain.MovementStockIn, domain.MovementStockOut:
		if req.Quantity < 0 {
			return domain.Movement{}, fmt.Errorf("%w: quantity must be positive for %s", store.ErrValidation, kind)
		}
	}

	if _, err := s.repo.GetFlavor(ctx, req.FlavorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Movement{}, fmt.Errorf("%w: unknown flavor %q", store.ErrValidation, req.FlavorID)
		}
		return domain.Movement{}, err
	}

	created, err := s.repo.CreateMovement(ctx, domain.Movement{
		FlavorID:  req.FlavorID,
		Kind:      kind,
		Quantity:  req.Quantity,
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.Movement{}, err
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "movement_create", "flavor", created.FlavorID, fmt.Sprintf("kind=%s,qty=%d", created.Kind, created.Quantity))
	return *created, nil
}
