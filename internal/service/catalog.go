package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/inventory"
	"hielitos/backend/internal/store"
)

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return domain.Category{}, err
	}
	if err := s.ensureCategoryNameFree(ctx, req.Name, ""); err != nil {
		return domain.Category{}, err
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		Name:      req.Name,
		BasePrice: req.BasePrice,
	})
	if err != nil {
		return domain.Category{}, err
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "category_create", "category", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryUpdateRequest) (domain.Category, error) {
	req.Name = trimmed(req.Name)
	if err := s.check(req); err != nil {
		return domain.Category{}, err
	}

	existing, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}

	updated := *existing
	if req.Name != nil {
		if err := s.ensureCategoryNameFree(ctx, *req.Name, id); err != nil {
			return domain.Category{}, err
		}
		updated.Name = *req.Name
	}
	if req.BasePrice != nil {
		price := *req.BasePrice
		updated.BasePrice = &price
	}

	saved, err := s.repo.UpdateCategory(ctx, updated)
	if err != nil {
		return domain.Category{}, err
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "category_update", "category", saved.ID, "name="+saved.Name)
	return *saved, nil
}

// DeleteCategory refuses while any flavor still points at the category.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.repo.GetCategory(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountFlavorsByCategory(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: category has %d flavors", store.ErrInUse, count)
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "category_delete", "category", id, "")
	return nil
}

func (s *Service) ensureCategoryNameFree(ctx context.Context, name string, exceptID string) error {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range categories {
		if c.Name == name && c.ID != exceptID {
			return fmt.Errorf("%w: category %q already exists", store.ErrValidation, name)
		}
	}
	return nil
}

func (s *Service) CreateFlavor(ctx context.Context, req domain.FlavorCreateRequest) (domain.FlavorStock, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.CategoryID = strings.TrimSpace(req.CategoryID)
	if err := s.check(req); err != nil {
		return domain.FlavorStock{}, err
	}
	if err := s.ensureCategoryExists(ctx, req.CategoryID); err != nil {
		return domain.FlavorStock{}, err
	}

	var opening *domain.Movement
	if req.InitialStock > 0 {
		opening = &domain.Movement{
			Kind:      domain.MovementStockIn,
			Quantity:  req.InitialStock,
			Note:      "initial stock",
			CreatedAt: s.now(),
		}
	}
	created, err := s.repo.CreateFlavor(ctx, domain.Flavor{
		Name:       req.Name,
		CategoryID: req.CategoryID,
		Price:      *req.Price,
		Color:      strings.TrimSpace(req.Color),
		Active:     req.Active,
		ImageURL:   strings.TrimSpace(req.ImageURL),
	}, opening)
	if err != nil {
		return domain.FlavorStock{}, err
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "flavor_create", "flavor", created.ID, fmt.Sprintf("name=%s,price=%.2f,stock=%d", created.Name, created.Price, req.InitialStock))
	return domain.FlavorStock{Flavor: *created, Stock: req.InitialStock}, nil
}

// UpdateFlavor applies the provided fields. A desired stock level is reached
// with exactly one compensating movement; the ledger is never rewritten.
func (s *Service) UpdateFlavor(ctx context.Context, id string, req domain.FlavorUpdateRequest) (domain.FlavorStock, error) {
	req.Name = trimmed(req.Name)
	req.CategoryID = trimmed(req.CategoryID)
	if err := s.check(req); err != nil {
		return domain.FlavorStock{}, err
	}

	existing, err := s.repo.GetFlavor(ctx, id)
	if err != nil {
		return domain.FlavorStock{}, err
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = *req.Name
	}
	if req.CategoryID != nil && *req.CategoryID != existing.CategoryID {
		if err := s.ensureCategoryExists(ctx, *req.CategoryID); err != nil {
			return domain.FlavorStock{}, err
		}
		updated.CategoryID = *req.CategoryID
	}
	if req.Price != nil {
		updated.Price = *req.Price
	}
	if req.Color != nil {
		updated.Color = strings.TrimSpace(*req.Color)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if req.ImageURL != nil {
		updated.ImageURL = strings.TrimSpace(*req.ImageURL)
	}

	saved, err := s.repo.UpdateFlavor(ctx, updated)
	if err != nil {
		return domain.FlavorStock{}, err
	}

	movements, err := s.repo.ListMovementsByFlavor(ctx, id)
	if err != nil {
		return domain.FlavorStock{}, err
	}
	stock := inventory.StockOf(movements, id)

	detail := fmt.Sprintf("name=%s,price=%.2f,active=%t", saved.Name, saved.Price, saved.Active)
	if req.DesiredStock != nil {
		desired := *req.DesiredStock
		if delta := desired - stock; delta != 0 {
			movement := domain.Movement{
				FlavorID:  id,
				Kind:      domain.MovementStockIn,
				Quantity:  delta,
				Note:      fmt.Sprintf("manual adjustment (%d→%d)", stock, desired),
				CreatedAt: s.now(),
			}
			if delta < 0 {
				movement.Kind = domain.MovementStockOut
				movement.Quantity = -delta
			}
			if _, err := s.repo.CreateMovement(ctx, movement); err != nil {
				return domain.FlavorStock{}, err
			}
			detail += fmt.Sprintf(",stock=%d->%d", stock, desired)
			stock = desired
		}
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "flavor_update", "flavor", saved.ID, detail)
	return domain.FlavorStock{Flavor: *saved, Stock: stock}, nil
}

// DeleteFlavor refuses once the flavor appears in the ledger; deactivate it
// instead so history keeps resolving.
func (s *Service) DeleteFlavor(ctx context.Context, id string) error {
	if _, err := s.repo.GetFlavor(ctx, id); err != nil {
		return err
	}
	refs, err := s.repo.CountFlavorReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: flavor has %d ledger entries, deactivate it instead", store.ErrInUse, refs)
	}
	if err := s.repo.DeleteFlavor(ctx, id); err != nil {
		return err
	}

	s.invalidateDashboard(ctx)
	s.logAudit(ctx, "flavor_delete", "flavor", id, "")
	return nil
}

func (s *Service) ensureCategoryExists(ctx context.Context, id string) error {
	if _, err := s.repo.GetCategory(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: unknown category %q", store.ErrValidation, id)
		}
		return err
	}
	return nil
}

func (s *Service) ListFlavors(ctx context.Context) ([]domain.FlavorStock, error) {
	flavors, err := s.repo.ListFlavors(ctx)
	if err != nil {
		return nil, err
	}
	movements, err := s.repo.ListMovements(ctx)
	if err != nil {
		return nil, err
	}

	levels := inventory.Project(movements)
	out := make([]domain.FlavorStock, 0, len(flavors))
	for _, f := range flavors {
		out = append(out, domain.FlavorStock{Flavor: f, Stock: levels.Of(f.ID)})
	}
	return out, nil
}

func (s *Service) FlavorStock(ctx context.Context, id string) (domain.FlavorStock, error) {
	flavor, err := s.repo.GetFlavor(ctx, id)
	if err != nil {
		return domain.FlavorStock{}, err
	}
	movements, err := s.repo.ListMovementsByFlavor(ctx, id)
	if err != nil {
		return domain.FlavorStock{}, err
	}
	return domain.FlavorStock{Flavor: *flavor, Stock: inventory.StockOf(movements, id)}, nil
}

// AvailableShelf lists active flavors with stock on hand, grouped by
// category in category order. Categories with nothing to sell are omitted.
func (s *Service) AvailableShelf(ctx context.Context) ([]domain.CategoryShelf, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	flavors, err := s.ListFlavors(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string][]domain.FlavorStock, len(categories))
	for _, f := range flavors {
		if !f.Active || f.Stock <= 0 {
			continue
		}
		byCategory[f.CategoryID] = append(byCategory[f.CategoryID], f)
	}

	shelves := make([]domain.CategoryShelf, 0, len(categories))
	for _, c := range categories {
		if len(byCategory[c.ID]) == 0 {
			continue
		}
		shelves = append(shelves, domain.CategoryShelf{Category: c, Flavors: byCategory[c.ID]})
	}
	return shelves, nil
}
