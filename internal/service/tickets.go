package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/inventory"
	"hielitos/backend/internal/store"
	"hielitos/backend/internal/ticket"
)

// ticketKey scopes the open ticket to the authenticated user.
func ticketKey(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.UserID != "" {
		return actor.UserID
	}
	return "local"
}

func (s *Service) withTicket(ctx context.Context, fn func(t *ticket.Ticket) error) (domain.TicketView, error) {
	var view domain.TicketView
	err := s.tickets.With(ticketKey(ctx), func(t *ticket.Ticket) error {
		if err := fn(t); err != nil {
			return err
		}
		view = t.View()
		return nil
	})
	return view, err
}

func (s *Service) Ticket(ctx context.Context) (domain.TicketView, error) {
	return s.withTicket(ctx, func(*ticket.Ticket) error { return nil })
}

func (s *Service) AddTicketLine(ctx context.Context, req domain.TicketLineRequest) (domain.TicketView, error) {
	if err := s.check(req); err != nil {
		return domain.TicketView{}, err
	}
	flavor, stock, err := s.sellable(ctx, req.FlavorID)
	if err != nil {
		return domain.TicketView{}, err
	}
	return s.withTicket(ctx, func(t *ticket.Ticket) error {
		return t.AddLine(flavor, stock)
	})
}

func (s *Service) SetTicketLineQuantity(ctx context.Context, flavorID string, req domain.TicketQuantityRequest) (domain.TicketView, error) {
	stock := 0
	if req.Quantity > 0 {
		var err error
		if _, stock, err = s.sellable(ctx, flavorID); err != nil {
			return domain.TicketView{}, err
		}
	}
	return s.withTicket(ctx, func(t *ticket.Ticket) error {
		return t.SetLineQuantity(flavorID, req.Quantity, stock)
	})
}

// sellable loads an active flavor and its current stock.
func (s *Service) sellable(ctx context.Context, flavorID string) (domain.Flavor, int, error) {
	flavor, err := s.repo.GetFlavor(ctx, flavorID)
	if err != nil {
		return domain.Flavor{}, 0, err
	}
	if !flavor.Active {
		return domain.Flavor{}, 0, fmt.Errorf("%w: %s is not active", store.ErrValidation, flavor.Name)
	}
	movements, err := s.repo.ListMovementsByFlavor(ctx, flavorID)
	if err != nil {
		return domain.Flavor{}, 0, err
	}
	return *flavor, inventory.StockOf(movements, flavorID), nil
}

func (s *Service) SetTicketKind(ctx context.Context, req domain.TicketKindRequest) (domain.TicketView, error) {
	if err := s.check(req); err != nil {
		return domain.TicketView{}, err
	}
	return s.withTicket(ctx, func(t *ticket.Ticket) error {
		return t.SetKind(domain.SaleKind(req.Kind))
	})
}

func (s *Service) SetTicketDiscount(ctx context.Context, req domain.TicketDiscountRequest) (domain.TicketView, error) {
	if err := s.check(req); err != nil {
		return domain.TicketView{}, err
	}
	if (req.Fixed == nil) == (req.Percent == nil) {
		return domain.TicketView{}, fmt.Errorf("%w: provide exactly one of fixed or percent", store.ErrValidation)
	}
	return s.withTicket(ctx, func(t *ticket.Ticket) error {
		if req.Fixed != nil {
			return t.SetFixedDiscount(*req.Fixed)
		}
		return t.SetPercentDiscount(*req.Percent)
	})
}

func (s *Service) SetTicketTendered(ctx context.Context, req domain.TicketTenderedRequest) (domain.TicketView, error) {
	if err := s.check(req); err != nil {
		return domain.TicketView{}, err
	}
	return s.withTicket(ctx, func(t *ticket.Ticket) error {
		return t.SetTendered(req.Amount)
	})
}

func (s *Service) RequestTicketPayment(ctx context.Context) (domain.TicketView, error) {
	return s.withTicket(ctx, func(t *ticket.Ticket) error {
		return t.RequestPayment()
	})
}

// ConfirmTicket settles the ticket and commits the sale atomically. The
// ticket is reset only once the commit succeeded; on any failure it is kept
// as is so the cashier can fix it and retry.
func (s *Service) ConfirmTicket(ctx context.Context) (domain.SaleReceipt, error) {
	actor, _ := ActorFromContext(ctx)

	var receipt domain.SaleReceipt
	err := s.tickets.With(ticketKey(ctx), func(t *ticket.Ticket) error {
		commit, err := t.Settle(s.now(), actor.UserID)
		if err != nil {
			return err
		}
		saved, err := s.repo.CommitSale(ctx, commit)
		if err != nil {
			return err
		}
		t.Reset()
		receipt = domain.SaleReceipt{Sale: saved.Sale, Lines: saved.Lines, Movements: saved.Movements}
		return nil
	})
	if err != nil {
		var storageErr *store.StorageError
		if errors.As(err, &storageErr) {
			s.logger.WithFields(logrus.Fields{"module": "ticket", "action": "confirm", "user_id": actor.UserID}).Errorf("sale commit failed: %v", err)
		}
		return domain.SaleReceipt{}, err
	}

	s.invalidateDashboard(ctx)
	s.logger.WithFields(logrus.Fields{
		"module":  "ticket",
		"action":  "confirm",
		"sale_id": receipt.Sale.ID,
		"kind":    receipt.Sale.Kind,
		"total":   receipt.Sale.Total,
		"lines":   len(receipt.Lines),
	}).Info("sale committed")
	s.logAudit(ctx, "sale_commit", "sale", receipt.Sale.ID, fmt.Sprintf("kind=%s,total=%.2f,lines=%d", receipt.Sale.Kind, receipt.Sale.Total, len(receipt.Lines)))
	return receipt, nil
}

func (s *Service) AbandonTicket(ctx context.Context) (domain.TicketView, error) {
	return s.withTicket(ctx, func(t *ticket.Ticket) error {
		t.Reset()
		return nil
	})
}
