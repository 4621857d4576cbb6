package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"

	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/store"
	"hielitos/backend/internal/xid"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return store.Wrap("migrate", err)
	}
	return nil
}

// SeedAdmin creates the bootstrap "admin" account when no user exists yet.
func (s *Store) SeedAdmin(ctx context.Context, password string) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		return store.Wrap("seed admin", err)
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		password = "admin"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.CreateUser(ctx, domain.User{Name: "admin", Password: string(hash)})
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, password, created_ms
		FROM users
		ORDER BY name, id
	`)
	if err != nil {
		return nil, store.Wrap("list users", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		var u domain.User
		var createdMS int64
		if err := rows.Scan(&u.ID, &u.Name, &u.Password, &createdMS); err != nil {
			return nil, store.Wrap("list users", err)
		}
		u.CreatedAt = fromMillis(createdMS)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list users", err)
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) GetUserByName(ctx context.Context, name string) (*domain.User, error) {
	return s.getUser(ctx, "name", name)
}

func (s *Store) getUser(ctx context.Context, column string, value string) (*domain.User, error) {
	var u domain.User
	var createdMS int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, password, created_ms
		FROM users
		WHERE `+column+` = $1
	`, value).Scan(&u.ID, &u.Name, &u.Password, &createdMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Wrap("get user", err)
	}
	u.CreatedAt = fromMillis(createdMS)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if strings.TrimSpace(user.Name) == "" || user.Password == "" {
		return nil, store.ErrValidation
	}
	if user.ID == "" {
		user.ID = xid.New()
	}
	user.CreatedAt = stamp(user.CreatedAt)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, password, created_ms)
		VALUES ($1,$2,$3,$4)
	`, user.ID, user.Name, user.Password, user.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user %q already exists", store.ErrValidation, user.Name)
		}
		return nil, store.Wrap("create user", err)
	}
	created := user
	return &created, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if strings.TrimSpace(user.Name) == "" || user.Password == "" {
		return nil, store.ErrValidation
	}
	var createdMS int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET name = $2, password = $3
		WHERE id = $1
		RETURNING created_ms
	`, user.ID, user.Name, user.Password).Scan(&createdMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user %q already exists", store.ErrValidation, user.Name)
		}
		return nil, store.Wrap("update user", err)
	}
	user.CreatedAt = fromMillis(createdMS)
	updated := user
	return &updated, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, base_price, parent_id
		FROM categories
		ORDER BY name, id
	`)
	if err != nil {
		return nil, store.Wrap("list categories", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, store.Wrap("list categories", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list categories", err)
	}
	return categories, nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, base_price, parent_id
		FROM categories
		WHERE id = $1
	`, id)
	c, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Wrap("get category", err)
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrValidation
	}
	if category.ID == "" {
		category.ID = xid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, base_price, parent_id)
		VALUES ($1,$2,$3,$4)
	`, category.ID, category.Name, nullFloat(category.BasePrice), nullIfEmpty(category.ParentID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: duplicate category id", store.ErrValidation)
		}
		return nil, store.Wrap("create category", err)
	}
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrValidation
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = $2, base_price = $3, parent_id = $4
		WHERE id = $1
	`, category.ID, category.Name, nullFloat(category.BasePrice), nullIfEmpty(category.ParentID))
	if err != nil {
		return nil, store.Wrap("update category", err)
	}
	if err := expectOne(res, "update category"); err != nil {
		return nil, err
	}
	updated := category
	return &updated, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	count, err := s.CountFlavorsByCategory(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: category has flavors", store.ErrInUse)
	}
	return s.deleteByID(ctx, "delete category", `DELETE FROM categories WHERE id = $1`, id)
}

func (s *Store) CountFlavorsByCategory(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM flavors WHERE category_id = $1`, categoryID).Scan(&count)
	if err != nil {
		return 0, store.Wrap("count flavors", err)
	}
	return count, nil
}

func (s *Store) ListFlavors(ctx context.Context) ([]domain.Flavor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category_id, price, color, active, image_url
		FROM flavors
		ORDER BY name, id
	`)
	if err != nil {
		return nil, store.Wrap("list flavors", err)
	}
	defer rows.Close()

	flavors := make([]domain.Flavor, 0, 32)
	for rows.Next() {
		var f domain.Flavor
		if err := rows.Scan(&f.ID, &f.Name, &f.CategoryID, &f.Price, &f.Color, &f.Active, &f.ImageURL); err != nil {
			return nil, store.Wrap("list flavors", err)
		}
		flavors = append(flavors, f)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list flavors", err)
	}
	return flavors, nil
}

func (s *Store) GetFlavor(ctx context.Context, id string) (*domain.Flavor, error) {
	var f domain.Flavor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category_id, price, color, active, image_url
		FROM flavors
		WHERE id = $1
	`, id).Scan(&f.ID, &f.Name, &f.CategoryID, &f.Price, &f.Color, &f.Active, &f.ImageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Wrap("get flavor", err)
	}
	return &f, nil
}

func (s *Store) CreateFlavor(ctx context.Context, flavor domain.Flavor, opening *domain.Movement) (*domain.Flavor, error) {
	if strings.TrimSpace(flavor.Name) == "" || flavor.Price < 0 {
		return nil, store.ErrValidation
	}
	if flavor.ID == "" {
		flavor.ID = xid.New()
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.Wrap("create flavor", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flavors (id, name, category_id, price, color, active, image_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, flavor.ID, flavor.Name, flavor.CategoryID, flavor.Price, flavor.Color, flavor.Active, flavor.ImageURL)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: unknown category %q", store.ErrValidation, flavor.CategoryID)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: duplicate flavor id", store.ErrValidation)
		}
		return nil, store.Wrap("create flavor", err)
	}
	if opening != nil {
		if err := insertMovement(ctx, tx, first); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, store.Wrap("create flavor", err)
	}
	created := flavor
	return &created, nil
}

func (s *Store) UpdateFlavor(ctx context.Context, flavor domain.Flavor) (*domain.Flavor, error) {
	if strings.TrimSpace(flavor.Name) == "" || flavor.Price < 0 {
		return nil, store.ErrValidation
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE flavors
		SET name = $2, category_id = $3, price = $4, color = $5, active = $6, image_url = $7
		WHERE id = $1
	`, flavor.ID, flavor.Name, flavor.CategoryID, flavor.Price, flavor.Color, flavor.Active, flavor.ImageURL)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: unknown category %q", store.ErrValidation, flavor.CategoryID)
		}
		return nil, store.Wrap("update flavor", err)
	}
	if err := expectOne(res, "update flavor"); err != nil {
		return nil, err
	}
	updated := flavor
	return &updated, nil
}

func (s *Store) DeleteFlavor(ctx context.Context, id string) error {
	refs, err := s.CountFlavorReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: flavor has ledger history", store.ErrInUse)
	}
	return s.deleteByID(ctx, "delete flavor", `DELETE FROM flavors WHERE id = $1`, id)
}

func (s *Store) CountFlavorReferences(ctx context.Context, flavorID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT count(*) FROM movements WHERE flavor_id = $1)
		     + (SELECT count(*) FROM sale_lines WHERE flavor_id = $1)
	`, flavorID).Scan(&count)
	if err != nil {
		return 0, store.Wrap("count flavor references", err)
	}
	return count, nil
}

func (s *Store) deleteByID(ctx context.Context, op string, query string, id string) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrInUse, op)
		}
		return store.Wrap(op, err)
	}
	return expectOne(res, op)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (domain.Category, error) {
	var c domain.Category
	var basePrice sql.NullFloat64
	var parentID sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &basePrice, &parentID); err != nil {
		return domain.Category{}, err
	}
	if basePrice.Valid {
		price := basePrice.Float64
		c.BasePrice = &price
	}
	c.ParentID = parentID.String
	return c, nil
}

func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return store.Wrap(op, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return xid.Millis(t)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullFloat(val *float64) any {
	if val == nil {
		return nil
	}
	return *val
}
