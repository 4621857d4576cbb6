package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hielitos/backend/internal/domain"
	"hielitos/backend/internal/inventory"
	"hielitos/backend/internal/store"
	"hielitos/backend/internal/xid"
)

const movementColumns = `id, flavor_id, kind, quantity, note, created_ms`

func (s *Store) ListMovements(ctx context.Context) ([]domain.Movement, error) {
	return s.queryMovements(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		ORDER BY created_ms DESC, seq DESC
	`)
}

func (s *Store) ListMovementsByFlavor(ctx context.Context, flavorID string) ([]domain.Movement, error) {
	return s.queryMovements(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		WHERE flavor_id = $1
		ORDER BY created_ms DESC, seq DESC
	`, flavorID)
}

func (s *Store) queryMovements(ctx context.Context, query string, args ...any) ([]domain.Movement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap("list movements", err)
	}
	defer rows.Close()

	movements := make([]domain.Movement, 0, 128)
	for rows.Next() {
		var m domain.Movement
		var kind string
		var createdMS int64
		if err := rows.Scan(&m.ID, &m.FlavorID, &kind, &m.Quantity, &m.Note, &createdMS); err != nil {
			return nil, store.Wrap("list movements", err)
		}
		parsed, ok := domain.ParseMovementKind(kind)
		if !ok {
			return nil, store.Wrap("list movements", fmt.Errorf("unknown movement kind %q", kind))
		}
		m.Kind = parsed
		m.CreatedAt = fromMillis(createdMS)
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list movements", err)
	}
	return movements, nil
}

func (s *Store) CreateMovement(ctx context.Context, movement domain.Movement) (*domain.Movement, error) {
	if !movement.Kind.Valid() || movement.Quantity == 0 {
		return nil, store.ErrValidation
	}
	if movement.ID == "" {
		movement.ID = xid.New()
	}
	movement.CreatedAt = stamp(movement.CreatedAt)

	if err := insertMovement(ctx, s.db, movement); err != nil {
		return nil, err
	}
	created := movement
	return &created, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMovement(ctx context.Context, db execer, m domain.Movement) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO movements (id, flavor_id, kind, quantity, note, created_ms)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, m.ID, m.FlavorID, string(m.Kind), m.Quantity, m.Note, m.CreatedAt.UnixMilli())
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown flavor %q", store.ErrValidation, m.FlavorID)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate movement id", store.ErrValidation)
		}
		return store.Wrap("create movement", err)
	}
	return nil
}

const saleColumns = `id, kind, total, tendered, change, discount_percent, fixed_discount, user_id, created_ms`

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		ORDER BY created_ms DESC, seq DESC
	`)
	if err != nil {
		return nil, store.Wrap("list sales", err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, store.Wrap("list sales", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list sales", err)
	}
	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Wrap("get sale", err)
	}
	return &sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if !sale.Kind.Valid() {
		return nil, store.ErrValidation
	}
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	sale.CreatedAt = stamp(sale.CreatedAt)
	if err := insertSale(ctx, s.db, sale); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

func insertSale(ctx context.Context, db execer, sale domain.Sale) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sales (id, kind, total, tendered, change, discount_percent, fixed_discount, user_id, created_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sale.ID, string(sale.Kind), sale.Total, sale.Tendered, sale.Change, sale.DiscountPercent, sale.FixedDiscount,
		nullIfEmpty(sale.UserID), sale.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate sale id", store.ErrValidation)
		}
		return store.Wrap("create sale", err)
	}
	return nil
}

func (s *Store) AddSaleLine(ctx context.Context, line domain.SaleLine) (*domain.SaleLine, error) {
	if line.Quantity <= 0 {
		return nil, store.ErrValidation
	}
	if _, err := s.GetSale(ctx, line.SaleID); err != nil {
		return nil, err
	}
	if line.ID == "" {
		line.ID = xid.New()
	}
	if err := insertSaleLine(ctx, s.db, line); err != nil {
		return nil, err
	}
	created := line
	return &created, nil
}

func insertSaleLine(ctx context.Context, db execer, line domain.SaleLine) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sale_lines (id, sale_id, flavor_id, quantity, subtotal)
		VALUES ($1,$2,$3,$4,$5)
	`, line.ID, line.SaleID, line.FlavorID, line.Quantity, line.Subtotal)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown flavor %q", store.ErrValidation, line.FlavorID)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate sale line id", store.ErrValidation)
		}
		return store.Wrap("add sale line", err)
	}
	return nil
}

func (s *Store) ListSaleLines(ctx context.Context, saleID string) ([]domain.SaleLine, error) {
	return s.querySaleLines(ctx, `
		SELECT id, sale_id, flavor_id, quantity, subtotal
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY seq
	`, saleID)
}

func (s *Store) ListAllSaleLines(ctx context.Context) ([]domain.SaleLine, error) {
	return s.querySaleLines(ctx, `
		SELECT id, sale_id, flavor_id, quantity, subtotal
		FROM sale_lines
		ORDER BY seq
	`)
}

func (s *Store) querySaleLines(ctx context.Context, query string, args ...any) ([]domain.SaleLine, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap("list sale lines", err)
	}
	defer rows.Close()

	lines := make([]domain.SaleLine, 0, 64)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.FlavorID, &line.Quantity, &line.Subtotal); err != nil {
			return nil, store.Wrap("list sale lines", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list sale lines", err)
	}
	return lines, nil
}

// CommitSale writes the header, lines and deduction movements in one
// serializable transaction. The affected flavor rows are locked and their
// stock re-derived before anything is written.
func (s *Store) CommitSale(ctx context.Context, commit store.SaleCommit) (*store.SaleCommit, error) {
	if len(commit.Lines) == 0 || !commit.Sale.Kind.Valid() {
		return nil, store.ErrValidation
	}
	for _, m := range commit.Movements {
		if !m.Kind.Valid() || m.Quantity == 0 {
			return nil, store.ErrValidation
		}
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, store.Wrap("commit sale", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	flavorIDs := make([]string, 0, len(commit.Lines))
	seen := make(map[string]bool, len(commit.Lines))
	for _, line := range commit.Lines {
		if !seen[line.FlavorID] {
			seen[line.FlavorID] = true
			flavorIDs = append(flavorIDs, line.FlavorID)
		}
	}

	lockRows, err := pgTx.QueryContext(ctx, `
		SELECT id FROM flavors WHERE id = ANY($1) ORDER BY id FOR UPDATE
	`, flavorIDs)
	if err != nil {
		return nil, store.Wrap("commit sale", err)
	}
	locked := 0
	for lockRows.Next() {
		locked++
	}
	if err := lockRows.Err(); err != nil {
		_ = lockRows.Close()
		return nil, store.Wrap("commit sale", err)
	}
	_ = lockRows.Close()
	if locked != len(flavorIDs) {
		return nil, fmt.Errorf("%w: sale references an unknown flavor", store.ErrValidation)
	}

	moveRows, err := pgTx.QueryContext(ctx, `
		SELECT flavor_id, kind, quantity FROM movements WHERE flavor_id = ANY($1)
	`, flavorIDs)
	if err != nil {
		return nil, store.Wrap("commit sale", err)
	}
	existing := make([]domain.Movement, 0, 64)
	for moveRows.Next() {
		var m domain.Movement
		var kind string
		if err := moveRows.Scan(&m.FlavorID, &kind, &m.Quantity); err != nil {
			_ = moveRows.Close()
			return nil, store.Wrap("commit sale", err)
		}
		m.Kind, _ = domain.ParseMovementKind(kind)
		existing = append(existing, m)
	}
	if err := moveRows.Err(); err != nil {
		_ = moveRows.Close()
		return nil, store.Wrap("commit sale", err)
	}
	_ = moveRows.Close()

	levels := inventory.Project(existing)
	for _, m := range commit.Movements {
		levels[m.FlavorID] += inventory.Delta(m)
	}
	for _, id := range flavorIDs {
		if levels[id] < 0 {
			return nil, fmt.Errorf("%w: flavor %s", store.ErrInsufficientStock, id)
		}
	}

	sale := commit.Sale
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	sale.CreatedAt = stamp(sale.CreatedAt)
	if err := insertSale(ctx, pgTx, sale); err != nil {
		return nil, err
	}

	out := store.SaleCommit{
		Sale:      sale,
		Lines:     make([]domain.SaleLine, 0, len(commit.Lines)),
		Movements: make([]domain.Movement, 0, len(commit.Movements)),
	}
	for _, line := range commit.Lines {
		if line.Quantity <= 0 {
			return nil, store.ErrValidation
		}
		line.SaleID = sale.ID
		if line.ID == "" {
			line.ID = xid.New()
		}
		if err := insertSaleLine(ctx, pgTx, line); err != nil {
			return nil, err
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
		if err := insertMovement(ctx, pgTx, m); err != nil {
			return nil, err
		}
		out.Movements = append(out.Movements, m)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, store.Wrap("commit sale", err)
	}
	return &out, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New()
	}
	entry.CreatedAt = stamp(entry.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor, action, entity_type, entity_id, detail, created_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt.UnixMilli())
	if err != nil {
		return store.Wrap("create audit log", err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, action, entity_type, entity_id, detail, created_ms
		FROM audit_logs
		ORDER BY created_ms DESC, seq DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, store.Wrap("list audit logs", err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		var createdMS int64
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &createdMS); err != nil {
			return nil, store.Wrap("list audit logs", err)
		}
		entry.CreatedAt = fromMillis(createdMS)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list audit logs", err)
	}
	return logs, nil
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var kind string
	var userID sql.NullString
	var createdMS int64
	err := row.Scan(&sale.ID, &kind, &sale.Total, &sale.Tendered, &sale.Change,
		&sale.DiscountPercent, &sale.FixedDiscount, &userID, &createdMS)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.Kind = domain.SaleKind(kind)
	sale.UserID = userID.String
	sale.CreatedAt = fromMillis(createdMS)
	return sale, nil
}
