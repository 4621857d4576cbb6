package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/inventory"
	"hielitos/backend/internal/logging"
	"hielitos/backend/internal/store"
	"hielitos/backend/internal/xid"
)

// Store is an in-memory Repository for development, demos and tests. Every
// method takes the single lock, so CommitSale is atomic with respect to all
// other writers.
type Store struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	categories map[string]domain.Category
	flavors    map[string]domain.Flavor
	movements  []domain.Movement
	salesByID  map[string]domain.Sale
	sales      []string
	saleLines  []domain.SaleLine
	auditLogs  []domain.AuditLog
}

func New() *Store {
	return &Store{
		users:      make(map[string]domain.User),
		categories: make(map[string]domain.Category),
		flavors:    make(map[string]domain.Flavor),
		movements:  make([]domain.Movement, 0, 128),
		salesByID:  make(map[string]domain.Sale),
		saleLines:  make([]domain.SaleLine, 0, 128),
		auditLogs:  make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded returns a store holding the bootstrap "admin" account. An empty
// password falls back to the dev default with a warning.
func NewSeeded(adminPassword string, logger logrus.FieldLogger) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if adminPassword == "" {
		adminPassword = "admin"
		logger.WithField("module", "memory-store").Warn("using default dev credentials for admin; set SEED_ADMIN_PASSWORD to override")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	s := New()
	admin := domain.User{
		ID:        xid.New(),
		Name:      "admin",
		Password:  string(hash),
		CreatedAt: xid.Millis(time.Now()),
	}
	s.users[admin.ID] = admin
	return s, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return users, nil
}

func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) GetUserByName(_ context.Context, name string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Name == name {
			found := u
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(user.Name) == "" || user.Password == "" {
		return nil, store.ErrValidation
	}
	if s.userNameTaken(user.Name, "") {
		return nil, fmt.Errorf("%w: user %q already exists", store.ErrValidation, user.Name)
	}
	if user.ID == "" {
		user.ID = xid.New()
	}
	if _, exists := s.users[user.ID]; exists {
		return nil, fmt.Errorf("%w: duplicate user id", store.ErrValidation)
	}
	user.CreatedAt = stamp(user.CreatedAt)
	s.users[user.ID] = user
	created := user
	return &created, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(user.Name) == "" || user.Password == "" {
		return nil, store.ErrValidation
	}
	if s.userNameTaken(user.Name, user.ID) {
		return nil, fmt.Errorf("%w: user %q already exists", store.ErrValidation, user.Name)
	}
	user.CreatedAt = existing.CreatedAt
	s.users[user.ID] = user
	updated := user
	return &updated, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) userNameTaken(name string, exceptID string) bool {
	for _, u := range s.users {
		if u.Name == name && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, cloneCategory(c))
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return categories, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, ok := s.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneCategory(category)
	return &found, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrValidation
	}
	if category.ID == "" {
		category.ID = xid.New()
	}
	if _, exists := s.categories[category.ID]; exists {
		return nil, fmt.Errorf("%w: duplicate category id", store.ErrValidation)
	}
	s.categories[category.ID] = cloneCategory(category)
	created := cloneCategory(category)
	return &created, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[category.ID]; !ok {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrValidation
	}
	s.categories[category.ID] = cloneCategory(category)
	updated := cloneCategory(category)
	return &updated, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	if s.countFlavorsByCategory(id) > 0 {
		return fmt.Errorf("%w: category has flavors", store.ErrInUse)
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) CountFlavorsByCategory(_ context.Context, categoryID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countFlavorsByCategory(categoryID), nil
}

func (s *Store) countFlavorsByCategory(categoryID string) int {
	count := 0
	for _, f := range s.flavors {
		if f.CategoryID == categoryID {
			count++
		}
	}
	return count
}

func (s *Store) ListFlavors(_ context.Context) ([]domain.Flavor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flavors := make([]domain.Flavor, 0, len(s.flavors))
	for _, f := range s.flavors {
		flavors = append(flavors, f)
	}
	slices.SortFunc(flavors, func(a, b domain.Flavor) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return flavors, nil
}

func (s *Store) GetFlavor(_ context.Context, id string) (*domain.Flavor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flavor, ok := s.flavors[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &flavor, nil
}

func (s *Store) CreateFlavor(_ context.Context, flavor domain.Flavor, opening *domain.Movement) (*domain.Flavor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateFlavor(flavor); err != nil {
		return nil, err
	}
	if flavor.ID == "" {
		flavor.ID = xid.New()
	}
	if _, exists := s.flavors[flavor.ID]; exists {
		return nil, fmt.Errorf("%w: duplicate flavor id", store.ErrValidation)
	}

	var first domain.Movement
	if opening != nil {
		first = *opening
		first.FlavorID = flavor.ID
		if !first.Kind.Valid() || first.Quantity == 0 {
			return nil, fmt.Errorf("%w: invalid opening movement", store.ErrValidation)
		}
		if first.ID == "" {
			first.ID = xid.New()
		}
		first.CreatedAt = stamp(first.CreatedAt)
	}

	s.flavors[flavor.ID] = flavor
	if opening != nil {
		s.movements = append(s.movements, first)
	}
	created := flavor
	return &created, nil
}

func (s *Store) UpdateFlavor(_ context.Context, flavor domain.Flavor) (*domain.Flavor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flavors[flavor.ID]; !ok {
		return nil, store.ErrNotFound
	}
	if err := s.validateFlavor(flavor); err != nil {
		return nil, err
	}
	s.flavors[flavor.ID] = flavor
	updated := flavor
	return &updated, nil
}

func (s *Store) validateFlavor(flavor domain.Flavor) error {
	if strings.TrimSpace(flavor.Name) == "" || flavor.Price < 0 {
		return store.ErrValidation
	}
	if _, ok := s.categories[flavor.CategoryID]; !ok {
		return fmt.Errorf("%w: unknown category %q", store.ErrValidation, flavor.CategoryID)
	}
	return nil
}

func (s *Store) DeleteFlavor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flavors[id]; !ok {
		return store.ErrNotFound
	}
	if s.countFlavorReferences(id) > 0 {
		return fmt.Errorf("%w: flavor has ledger history", store.ErrInUse)
	}
	delete(s.flavors, id)
	return nil
}

func (s *Store) CountFlavorReferences(_ context.Context, flavorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countFlavorReferences(flavorID), nil
}

func (s *Store) countFlavorReferences(flavorID string) int {
	count := 0
	for _, m := range s.movements {
		if m.FlavorID == flavorID {
			count++
		}
	}
	for _, line := range s.saleLines {
		if line.FlavorID == flavorID {
			count++
		}
	}
	return count
}

func (s *Store) ListMovements(_ context.Context) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestMovementsFirst(s.movements, ""), nil
}

func (s *Store) ListMovementsByFlavor(_ context.Context, flavorID string) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestMovementsFirst(s.movements, flavorID), nil
}

func (s *Store) CreateMovement(_ context.Context, movement domain.Movement) (*domain.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateMovement(movement); err != nil {
		return nil, err
	}
	if movement.ID == "" {
		movement.ID = xid.New()
	}
	movement.CreatedAt = stamp(movement.CreatedAt)
	s.movements = append(s.movements, movement)
	created := movement
	return &created, nil
}

func (s *Store) validateMovement(m domain.Movement) error {
	if !m.Kind.Valid() || m.Quantity == 0 {
		return store.ErrValidation
	}
	if _, ok := s.flavors[m.FlavorID]; !ok {
		return fmt.Errorf("%w: unknown flavor %q", store.ErrValidation, m.FlavorID)
	}
	return nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for i := len(s.sales) - 1; i >= 0; i-- {
		sales = append(sales, s.salesByID[s.sales[i]])
	}
	slices.SortStableFunc(sales, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sales, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sale, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateSale(sale); err != nil {
		return nil, err
	}
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	sale.CreatedAt = stamp(sale.CreatedAt)
	s.putSale(sale)
	created := sale
	return &created, nil
}

func (s *Store) validateSale(sale domain.Sale) error {
	if !sale.Kind.Valid() {
		return store.ErrValidation
	}
	if sale.ID != "" {
		if _, exists := s.salesByID[sale.ID]; exists {
			return fmt.Errorf("%w: duplicate sale id", store.ErrValidation)
		}
	}
	return nil
}

func (s *Store) putSale(sale domain.Sale) {
	s.salesByID[sale.ID] = sale
	s.sales = append(s.sales, sale.ID)
}

func (s *Store) AddSaleLine(_ context.Context, line domain.SaleLine) (*domain.SaleLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.salesByID[line.SaleID]; !ok {
		return nil, store.ErrNotFound
	}
	if err := s.validateSaleLine(line); err != nil {
		return nil, err
	}
	if line.ID == "" {
		line.ID = xid.New()
	}
	s.saleLines = append(s.saleLines, line)
	created := line
	return &created, nil
}

func (s *Store) validateSaleLine(line domain.SaleLine) error {
	if line.Quantity <= 0 {
		return store.ErrValidation
	}
	if _, ok := s.flavors[line.FlavorID]; !ok {
		return fmt.Errorf("%w: unknown flavor %q", store.ErrValidation, line.FlavorID)
	}
	return nil
}

func (s *Store) ListSaleLines(_ context.Context, saleID string) ([]domain.SaleLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]domain.SaleLine, 0, 8)
	for _, line := range s.saleLines {
		if line.SaleID == saleID {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (s *Store) ListAllSaleLines(_ context.Context) ([]domain.SaleLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.saleLines), nil
}

// CommitSale writes the header, lines and deduction movements under one lock
// hold. Stock is re-derived from the ledger first so a sale can never drive
// a flavor below zero.
func (s *Store) CommitSale(_ context.Context, commit store.SaleCommit) (*store.SaleCommit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(commit.Lines) == 0 {
		return nil, fmt.Errorf("%w: sale has no lines", store.ErrValidation)
	}
	if err := s.validateSale(commit.Sale); err != nil {
		return nil, err
	}
	for _, line := range commit.Lines {
		if err := s.validateSaleLine(line); err != nil {
			return nil, err
		}
	}
	for _, m := range commit.Movements {
		if err := s.validateMovement(m); err != nil {
			return nil, err
		}
	}

	levels := inventory.Project(s.movements)
	for _, m := range commit.Movements {
		levels[m.FlavorID] += inventory.Delta(m)
	}
	for _, line := range commit.Lines {
		if levels[line.FlavorID] < 0 {
			return nil, fmt.Errorf("%w: flavor %s", store.ErrInsufficientStock, line.FlavorID)
		}
	}

	sale := commit.Sale
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	sale.CreatedAt = stamp(sale.CreatedAt)

	out := store.SaleCommit{
		Sale:      sale,
		Lines:     make([]domain.SaleLine, 0, len(commit.Lines)),
		Movements: make([]domain.Movement, 0, len(commit.Movements)),
	}
	for _, line := range commit.Lines {
		line.SaleID = sale.ID
		if line.ID == "" {
			line.ID = xid.New()
		}
		out.Lines = append(out.Lines, line)
	}
	for _, m := range commit.Movements {
		if m.ID == "" {
			m.ID = xid.New()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = sale.CreatedAt
		}
		m.CreatedAt = xid.Millis(m.CreatedAt)
		out.Movements = append(out.Movements, m)
	}

	s.putSale(sale)
	s.saleLines = append(s.saleLines, out.Lines...)
	s.movements = append(s.movements, out.Movements...)
	return &out, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New()
	}
	entry.CreatedAt = stamp(entry.CreatedAt)
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, len(s.auditLogs))
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		result = append(result, s.auditLogs[i])
	}
	slices.SortStableFunc(result, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// newestMovementsFirst filters by flavor (all when empty) and orders by
// creation time, latest insert first among equal timestamps.
func newestMovementsFirst(all []domain.Movement, flavorID string) []domain.Movement {
	out := make([]domain.Movement, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if flavorID != "" && all[i].FlavorID != flavorID {
			continue
		}
		out = append(out, all[i])
	}
	slices.SortStableFunc(out, func(a, b domain.Movement) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return xid.Millis(t)
}

func cloneCategory(c domain.Category) domain.Category {
	if c.BasePrice != nil {
		price := *c.BasePrice
		c.BasePrice = &price
	}
	return c
}
