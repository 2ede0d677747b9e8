package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"bilancio/internal/core"
)

// Repository is the SQLite-backed implementation of the budget store ports.
type Repository struct {
	db *sql.DB
}

func NewRepository(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &Repository{db: db}
	if err := r.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isForeignKeyViolation(err error) bool {
	var se *sqlite3.Error
	return errors.As(err, &se) && se.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY
}

func (r *Repository) CreateCategory(ctx context.Context, c *core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, limit_cents, display_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Limit.Cents, c.DisplayOrder, now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *Repository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, limit_cents, display_order, created_at, updated_at
		FROM categories
		WHERE user_id = ?
		ORDER BY display_order, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Limit.Cents, &c.DisplayOrder, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.CreatedAt = time.Unix(created, 0)
		c.UpdatedAt = time.Unix(updated, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateBalanceIfAbsent inserts a balance row for the given period. A row
// already present for (user, category, year, month) is not an error: the
// insert is silently skipped and created is false.
func (r *Repository) CreateBalanceIfAbsent(ctx context.Context, b core.CategoryBalance) (bool, error) {
	id := b.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().Unix()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO category_balances (id, user_id, category_id, year, month, spent_cents, limit_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, category_id, year, month) DO NOTHING`,
		id, b.UserID, b.CategoryID, b.Period.Year, b.Period.Month, b.Spent.Cents, b.Limit.Cents, now, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, core.ErrCategoryMissing
		}
		return false, fmt.Errorf("failed to create balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) ListBalances(ctx context.Context, userID string, p core.Period) ([]core.EnrichedBalance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.category_id, b.year, b.month, b.spent_cents, b.limit_cents, b.created_at, b.updated_at, c.name
		FROM category_balances b
		JOIN categories c ON c.id = b.category_id
		WHERE b.user_id = ? AND b.year = ? AND b.month = ?
		ORDER BY c.display_order, c.id`,
		userID, p.Year, p.Month,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var out []core.EnrichedBalance
	for rows.Next() {
		var b core.CategoryBalance
		var name string
		var created, updated int64
		if err := rows.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Period.Year, &b.Period.Month, &b.Spent.Cents, &b.Limit.Cents, &created, &updated, &name); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.CreatedAt = time.Unix(created, 0)
		b.UpdatedAt = time.Unix(updated, 0)
		out = append(out, b.Enrich(name))
	}
	return out, rows.Err()
}

func (r *Repository) AddSpent(ctx context.Context, userID, categoryID string, p core.Period, amount core.Money) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE category_balances
		SET spent_cents = spent_cents + ?, updated_at = ?
		WHERE user_id = ? AND category_id = ? AND year = ? AND month = ?`,
		amount.Cents, time.Now().Unix(), userID, categoryID, p.Year, p.Month,
	)
	if err != nil {
		return fmt.Errorf("failed to add spending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrCategoryMissing
	}
	return nil
}

func (r *Repository) GetAllocation(ctx context.Context, userID string) (core.Allocation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id,
		       fixed_costs_type, fixed_costs_value, fixed_costs_cap_cents,
		       savings_type, savings_value, savings_cap_cents,
		       investment_type, investment_value, investment_cap_cents,
		       guilt_free_type, guilt_free_value, guilt_free_cap_cents,
		       created_at, updated_at
		FROM fund_allocations
		WHERE user_id = ?`,
		userID,
	)

	var a core.Allocation
	var caps [4]sql.NullInt64
	var created, updated int64
	err := row.Scan(&a.UserID,
		&a.FixedCosts.Type, &a.FixedCosts.Value, &caps[0],
		&a.Savings.Type, &a.Savings.Value, &caps[1],
		&a.Investment.Type, &a.Investment.Value, &caps[2],
		&a.GuiltFree.Type, &a.GuiltFree.Value, &caps[3],
		&created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Allocation{}, core.ErrAllocationNotFound
	}
	if err != nil {
		return core.Allocation{}, fmt.Errorf("failed to get allocation: %w", err)
	}

	for i, rule := range []*core.Rule{&a.FixedCosts, &a.Savings, &a.Investment, &a.GuiltFree} {
		if caps[i].Valid {
			rule.Cap = &core.Money{Cents: caps[i].Int64}
		}
	}
	a.CreatedAt = time.Unix(created, 0)
	a.UpdatedAt = time.Unix(updated, 0)
	return a, nil
}

// CreateAllocationIfAbsent inserts the allocation only when the user has none
// yet. Concurrent first reads race through the primary key and all observers
// see the same record.
func (r *Repository) CreateAllocationIfAbsent(ctx context.Context, a core.Allocation) error {
	now := time.Now().Unix()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fund_allocations (user_id,
			fixed_costs_type, fixed_costs_value, fixed_costs_cap_cents,
			savings_type, savings_value, savings_cap_cents,
			investment_type, investment_value, investment_cap_cents,
			guilt_free_type, guilt_free_value, guilt_free_cap_cents,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		allocationArgs(a, now, now)...,
	)
	if err != nil {
		return fmt.Errorf("failed to create allocation: %w", err)
	}
	return nil
}

// ReplaceAllocation stores the record as a whole and returns the persisted
// state. Partial updates are not supported at this layer; callers send the
// complete new record.
func (r *Repository) ReplaceAllocation(ctx context.Context, a core.Allocation) (core.Allocation, error) {
	now := time.Now().Unix()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fund_allocations (user_id,
			fixed_costs_type, fixed_costs_value, fixed_costs_cap_cents,
			savings_type, savings_value, savings_cap_cents,
			investment_type, investment_value, investment_cap_cents,
			guilt_free_type, guilt_free_value, guilt_free_cap_cents,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			fixed_costs_type = excluded.fixed_costs_type,
			fixed_costs_value = excluded.fixed_costs_value,
			fixed_costs_cap_cents = excluded.fixed_costs_cap_cents,
			savings_type = excluded.savings_type,
			savings_value = excluded.savings_value,
			savings_cap_cents = excluded.savings_cap_cents,
			investment_type = excluded.investment_type,
			investment_value = excluded.investment_value,
			investment_cap_cents = excluded.investment_cap_cents,
			guilt_free_type = excluded.guilt_free_type,
			guilt_free_value = excluded.guilt_free_value,
			guilt_free_cap_cents = excluded.guilt_free_cap_cents,
			updated_at = excluded.updated_at`,
		allocationArgs(a, now, now)...,
	)
	if err != nil {
		return core.Allocation{}, fmt.Errorf("failed to replace allocation: %w", err)
	}
	return r.GetAllocation(ctx, a.UserID)
}

func allocationArgs(a core.Allocation, created, updated int64) []any {
	capCents := func(r core.Rule) any {
		if r.Cap == nil {
			return nil
		}
		return r.Cap.Cents
	}
	return []any{a.UserID,
		string(a.FixedCosts.Type), a.FixedCosts.Value, capCents(a.FixedCosts),
		string(a.Savings.Type), a.Savings.Value, capCents(a.Savings),
		string(a.Investment.Type), a.Investment.Value, capCents(a.Investment),
		string(a.GuiltFree.Type), a.GuiltFree.Value, capCents(a.GuiltFree),
		created, updated,
	}
}
