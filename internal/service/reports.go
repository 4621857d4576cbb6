package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/report"
)

const dashboardCacheKey = "hielitos:dashboard"

func (s *Service) snapshot(ctx context.Context) (report.Snapshot, error) {
	var snap report.Snapshot
	var err error
	if snap.Users, err = s.repo.ListUsers(ctx); err != nil {
		return snap, err
	}
	if snap.Categories, err = s.repo.ListCategories(ctx); err != nil {
		return snap, err
	}
	if snap.Flavors, err = s.repo.ListFlavors(ctx); err != nil {
		return snap, err
	}
	if snap.Movements, err = s.repo.ListMovements(ctx); err != nil {
		return snap, err
	}
	if snap.Sales, err = s.repo.ListSales(ctx); err != nil {
		return snap, err
	}
	if snap.Lines, err = s.repo.ListAllSaleLines(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

// Dashboard returns summary and trends, served from cache until the next
// ledger mutation or TTL expiry. Cache failures fall through to a fresh
// computation.
func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	if cached, ok, err := s.dashboards.Get(ctx, dashboardCacheKey); err != nil {
		s.logger.WithFields(logrus.Fields{"module": "report", "action": "cache_get"}).Warnf("dashboard cache read failed: %v", err)
	} else if ok && cached != nil {
		return *cached, nil
	}

	s.dashMu.Lock()
	gen := s.dashGen
	s.dashMu.Unlock()

	snap, err := s.snapshot(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	dash := domain.Dashboard{
		Summary:     report.Summarize(snap),
		Trends:      report.Trends(snap, s.loc),
		GeneratedAt: s.now().UTC(),
	}

	s.dashMu.Lock()
	defer s.dashMu.Unlock()
	if s.dashGen != gen {
		return dash, nil
	}
	if err := s.dashboards.Set(ctx, dashboardCacheKey, &dash, s.dashboardTTL); err != nil {
		s.logger.WithFields(logrus.Fields{"module": "report", "action": "cache_set"}).Warnf("dashboard cache write failed: %v", err)
	}
	return dash, nil
}

func (s *Service) Summary(ctx context.Context) (domain.Summary, error) {
	dash, err := s.Dashboard(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	return dash.Summary, nil
}

func (s *Service) Trends(ctx context.Context) (domain.Trends, error) {
	dash, err := s.Dashboard(ctx)
	if err != nil {
		return domain.Trends{}, err
	}
	return dash.Trends, nil
}

func (s *Service) invalidateDashboard(ctx context.Context) {
	s.dashMu.Lock()
	defer s.dashMu.Unlock()
	s.dashGen++
	if err := s.dashboards.Delete(ctx, dashboardCacheKey); err != nil {
		s.logger.WithFields(logrus.Fields{"module": "report", "action": "cache_delete"}).Warnf("dashboard cache invalidation failed: %v", err)
	}
}
