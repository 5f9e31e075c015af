package ownership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/pixelclaim/internal/db"
	"github.com/onnwee/pixelclaim/internal/grid"
	"github.com/onnwee/pixelclaim/internal/tracing"
)

// SQLStore implements Store on PostgreSQL or SQLite. Allocation relies on the
// (x, y) primary key and purchase idempotency on the tx_signature unique
// constraint; no application locks are taken.
type SQLStore struct {
	db  *db.DB
	now func() time.Time
}

// NewSQLStore creates a store over an opened, bootstrapped database.
func NewSQLStore(conn *db.DB) *SQLStore {
	return &SQLStore{db: conn, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLStore) span(ctx context.Context, table string, op tracing.DBOperation) (context.Context, func(error)) {
	return tracing.StartDBSpanFor(ctx, s.db.System(), table, op)
}

// TryAcquire implements Store with a single INSERT ... ON CONFLICT DO NOTHING.
func (s *SQLStore) TryAcquire(ctx context.Context, c grid.Coord, wallet string) (acquired bool, err error) {
	ctx, endSpan := s.span(ctx, "cells", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := s.db.Rebind(`
		INSERT INTO cells (x, y, owner, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (x, y) DO NOTHING
		RETURNING x`)
	now := s.now()
	var x int
	err = s.db.QueryRowContext(ctx, query, c.X, c.Y, wallet, grid.White.Hex(), now, now).Scan(&x)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to acquire cell %s: %w", c, err)
	}
	return true, nil
}

// RecordPurchase implements Store.
func (s *SQLStore) RecordPurchase(ctx context.Context, p Purchase) (id string, err error) {
	ctx, endSpan := s.span(ctx, "purchases", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	amount := "0"
	if p.Amount != nil {
		amount = p.Amount.String()
	}

	query := s.db.Rebind(`
		INSERT INTO purchases (id, tx_signature, wallet, pixel_count, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tx_signature) DO NOTHING
		RETURNING id`)
	err = s.db.QueryRowContext(ctx, query, p.ID, p.Signature, p.Wallet, p.PixelCount, amount, p.CreatedAt).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows), db.IsUniqueViolation(err):
		return "", ErrSignatureUsed
	case err != nil:
		return "", fmt.Errorf("failed to record purchase: %w", err)
	}
	return id, nil
}

// LinkPurchaseCell implements Store.
func (s *SQLStore) LinkPurchaseCell(ctx context.Context, purchaseID string, c grid.Coord) (err error) {
	ctx, endSpan := s.span(ctx, "purchase_cells", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := s.db.Rebind(`
		INSERT INTO purchase_cells (purchase_id, x, y) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`)
	if _, err = s.db.ExecContext(ctx, query, purchaseID, c.X, c.Y); err != nil {
		return fmt.Errorf("failed to link cell %s to purchase: %w", c, err)
	}
	return nil
}

// SetColor implements Store. It is a no-op unless wallet owns the cell.
func (s *SQLStore) SetColor(ctx context.Context, c grid.Coord, wallet string, color grid.Color) (applied bool, err error) {
	ctx, endSpan := s.span(ctx, "cells", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	query := s.db.Rebind(`UPDATE cells SET color = ?, updated_at = ? WHERE x = ? AND y = ? AND owner = ?`)
	res, err := s.db.ExecContext(ctx, query, color.Hex(), s.now(), c.X, c.Y, wallet)
	if err != nil {
		return false, fmt.Errorf("failed to set color: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to set color: %w", err)
	}
	return n > 0, nil
}

// SetColors implements Store in one transaction.
func (s *SQLStore) SetColors(ctx context.Context, wallet string, changes []grid.ColorChange) (updated int, err error) {
	ctx, endSpan := s.span(ctx, "cells", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	if len(changes) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.db.Rebind(`UPDATE cells SET color = ?, updated_at = ? WHERE x = ? AND y = ? AND owner = ?`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare color update: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for _, ch := range changes {
		res, err := stmt.ExecContext(ctx, ch.Color.Hex(), now, ch.X, ch.Y, wallet)
		if err != nil {
			return 0, fmt.Errorf("failed to set color at %s: %w", ch.Coord(), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to set color at %s: %w", ch.Coord(), err)
		}
		updated += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit color update: %w", err)
	}
	return updated, nil
}

// ClearColors implements Store.
func (s *SQLStore) ClearColors(ctx context.Context, wallet string) (cleared int, err error) {
	ctx, endSpan := s.span(ctx, "cells", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	white := grid.White.Hex()
	query := s.db.Rebind(`UPDATE cells SET color = ?, updated_at = ? WHERE owner = ? AND color <> ?`)
	res, err := s.db.ExecContext(ctx, query, white, s.now(), wallet, white)
	if err != nil {
		return 0, fmt.Errorf("failed to clear colors: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to clear colors: %w", err)
	}
	return int(n), nil
}

// ListOwned implements Store. Cells are returned in row-major order.
func (s *SQLStore) ListOwned(ctx context.Context) (cells []grid.Cell, err error) {
	ctx, endSpan := s.span(ctx, "cells", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT x, y, owner, color FROM cells ORDER BY y, x`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cells: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c   grid.Cell
			hex string
		)
		if err := rows.Scan(&c.X, &c.Y, &c.Owner, &hex); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		color, err := grid.ParseColor(hex)
		if err != nil {
			color = grid.White
		}
		c.Color = color
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list cells: %w", err)
	}
	return cells, nil
}

// ListPurchases implements Store, newest first.
func (s *SQLStore) ListPurchases(ctx context.Context, wallet string, limit int) (purchases []Purchase, err error) {
	ctx, endSpan := s.span(ctx, "purchases", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	if limit <= 0 {
		limit = DefaultPurchaseLimit
	}
	query := s.db.Rebind(`
		SELECT id, tx_signature, wallet, pixel_count, amount, created_at
		FROM purchases
		WHERE wallet = ?
		ORDER BY created_at DESC
		LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p      Purchase
			amount string
		)
		if err := rows.Scan(&p.ID, &p.Signature, &p.Wallet, &p.PixelCount, &amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		v, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("invalid stored amount %q for purchase %s", amount, p.ID)
		}
		p.Amount = v
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, nil
}

// CountOwnedBy implements Store.
func (s *SQLStore) CountOwnedBy(ctx context.Context, wallet string) (n int, err error) {
	ctx, endSpan := s.span(ctx, "cells", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	if err = s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM cells WHERE owner = ?`), wallet).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cells: %w", err)
	}
	return n, nil
}
