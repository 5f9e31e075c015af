package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onnwee/pixelclaim/internal/db"
	"github.com/onnwee/pixelclaim/internal/tracing"
)

const mediaColumns = `id, wallet, x, y, width, height, content_type, blob_key, etag, size_bytes, created_at`

const linkButtonColumns = `id, wallet, x, y, width, height, text, url, created_at`

// SQLRepository implements Repository on PostgreSQL or SQLite.
type SQLRepository struct {
	db *db.DB
}

// NewSQLRepository creates a repository over an opened, bootstrapped database.
func NewSQLRepository(conn *db.DB) *SQLRepository {
	return &SQLRepository{db: conn}
}

func (r *SQLRepository) span(ctx context.Context, table string, op tracing.DBOperation) (context.Context, func(error)) {
	return tracing.StartDBSpanFor(ctx, r.db.System(), table, op)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (*Media, error) {
	var m Media
	err := row.Scan(&m.ID, &m.Wallet, &m.X, &m.Y, &m.Width, &m.Height,
		&m.ContentType, &m.BlobKey, &m.ETag, &m.SizeBytes, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func scanLinkButton(row rowScanner) (*LinkButton, error) {
	var b LinkButton
	err := row.Scan(&b.ID, &b.Wallet, &b.X, &b.Y, &b.Width, &b.Height, &b.Text, &b.URL, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return &b, nil
}

// CreateMedia implements Repository.
func (r *SQLRepository) CreateMedia(ctx context.Context, m Media) (err error) {
	ctx, endSpan := r.span(ctx, "media", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := r.db.Rebind(`INSERT INTO media (` + mediaColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, query, m.ID, m.Wallet, m.X, m.Y, m.Width, m.Height,
		m.ContentType, m.BlobKey, m.ETag, m.SizeBytes, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert media: %w", err)
	}
	return nil
}

// GetMedia implements Repository.
func (r *SQLRepository) GetMedia(ctx context.Context, id string) (m *Media, err error) {
	ctx, endSpan := r.span(ctx, "media", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := r.db.Rebind(`SELECT ` + mediaColumns + ` FROM media WHERE id = ?`)
	m, err = scanMedia(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return m, nil
}

// ListMedia implements Repository, oldest first.
func (r *SQLRepository) ListMedia(ctx context.Context) (out []Media, err error) {
	ctx, endSpan := r.span(ctx, "media", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+mediaColumns+` FROM media ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	out = []Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		out = append(out, *m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	return out, nil
}

// CountMediaBy implements Repository.
func (r *SQLRepository) CountMediaBy(ctx context.Context, wallet string) (n int, err error) {
	ctx, endSpan := r.span(ctx, "media", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := r.db.Rebind(`SELECT COUNT(*) FROM media WHERE wallet = ?`)
	if err = r.db.QueryRowContext(ctx, query, wallet).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count media: %w", err)
	}
	return n, nil
}

// DeleteMedia implements Repository.
func (r *SQLRepository) DeleteMedia(ctx context.Context, id, wallet string) (m *Media, err error) {
	ctx, endSpan := r.span(ctx, "media", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	query := r.db.Rebind(`DELETE FROM media WHERE id = ? AND wallet = ? RETURNING ` + mediaColumns)
	m, err = scanMedia(r.db.QueryRowContext(ctx, query, id, wallet))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete media: %w", err)
	}
	return m, nil
}

// CreateLinkButton implements Repository.
func (r *SQLRepository) CreateLinkButton(ctx context.Context, b LinkButton) (err error) {
	ctx, endSpan := r.span(ctx, "link_buttons", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := r.db.Rebind(`INSERT INTO link_buttons (` + linkButtonColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, query, b.ID, b.Wallet, b.X, b.Y, b.Width, b.Height, b.Text, b.URL, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert link button: %w", err)
	}
	return nil
}

// ListLinkButtons implements Repository, oldest first.
func (r *SQLRepository) ListLinkButtons(ctx context.Context) (out []LinkButton, err error) {
	ctx, endSpan := r.span(ctx, "link_buttons", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+linkButtonColumns+` FROM link_buttons ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list link buttons: %w", err)
	}
	defer rows.Close()

	out = []LinkButton{}
	for rows.Next() {
		b, err := scanLinkButton(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link button: %w", err)
		}
		out = append(out, *b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list link buttons: %w", err)
	}
	return out, nil
}

// DeleteLinkButton implements Repository.
func (r *SQLRepository) DeleteLinkButton(ctx context.Context, id, wallet string) (err error) {
	ctx, endSpan := r.span(ctx, "link_buttons", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	query := r.db.Rebind(`DELETE FROM link_buttons WHERE id = ? AND wallet = ?`)
	res, err := r.db.ExecContext(ctx, query, id, wallet)
	if err != nil {
		return fmt.Errorf("failed to delete link button: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete link button: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
