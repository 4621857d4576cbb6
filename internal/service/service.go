package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"hielitos/backend/internal/cache"
	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/logging"
	"hielitos/backend/internal/store"
	"hielitos/backend/internal/ticket"
	"hielitos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	DashboardTTL time.Duration
	Location     *time.Location
	Logger       logrus.FieldLogger
	Now          func() time.Time
}

type Service struct {
	repo         store.Repository
	tickets      *ticket.Book
	dashboards   cache.DashboardCache
	dashboardTTL time.Duration
	// dashMu guards dashGen, which counts invalidations so a dashboard built
	// from a pre-mutation snapshot is never written back to the cache.
	dashMu       sync.Mutex
	dashGen      uint64
	loc          *time.Location
	logger       logrus.FieldLogger
	validate     *validator.Validate
	now          func() time.Time
}

func New(repo store.Repository, dashboards cache.DashboardCache, opts Options) *Service {
	if dashboards == nil {
		dashboards = cache.NoopDashboardCache{}
	}
	if opts.DashboardTTL <= 0 {
		opts.DashboardTTL = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:         repo,
		tickets:      ticket.NewBook(),
		dashboards:   dashboards,
		dashboardTTL: opts.DashboardTTL,
		loc:          opts.Location,
		logger:       opts.Logger,
		validate:     validator.New(),
		now:          opts.Now,
	}
}

// check runs struct tag validation and folds failures into ErrValidation.
func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: %s", store.ErrValidation, strings.Join(fields, ", "))
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Name: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New(),
		Actor:      actor.Name,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now(),
	}); err != nil {
		s.logger.WithFields(logrus.Fields{
			"module": "audit",
			"action": action,
			"entity": entityType + "/" + entityID,
		}).Warnf("failed to write audit log: %v", err)
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}
