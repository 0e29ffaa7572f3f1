package content

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/searchsync/internal/models"
)

// SQLiteStore implements Store on top of the host's SQLite database.
// Reads only see rows of the store's tenant.
type SQLiteStore struct {
	db       *sql.DB
	tenantID int
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string, tenantID int) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, tenantID: tenantID}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		tenant_id INTEGER NOT NULL DEFAULT 1,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		excerpt TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL DEFAULT '',
		permalink TEXT NOT NULL DEFAULT '',
		revision_of TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		modified_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_items_tenant_type_status ON items(tenant_id, type, status);

	CREATE TABLE IF NOT EXISTS search_options (
		item_id TEXT PRIMARY KEY,
		exclude INTEGER NOT NULL DEFAULT 0,
		boost INTEGER NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS modules (
		item_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		type TEXT NOT NULL,
		hidden INTEGER NOT NULL DEFAULT 0,
		body TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (item_id, position),
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

const selectItem = `SELECT i.id, i.tenant_id, i.type, i.status, i.title, i.excerpt, i.body, i.slug,
	i.permalink, i.revision_of, i.created_at, i.modified_at,
	COALESCE(o.exclude, 0), COALESCE(o.boost, 0), COALESCE(o.tags, '')
	FROM items i LEFT JOIN search_options o ON o.item_id = i.id`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*models.ContentItem, error) {
	var item models.ContentItem
	err := row.Scan(&item.ID, &item.TenantID, &item.Type, &item.Status, &item.Title, &item.Excerpt,
		&item.Body, &item.Slug, &item.Permalink, &item.RevisionOf, &item.CreatedAt, &item.ModifiedAt,
		&item.Options.Exclude, &item.Options.Boost, &item.Options.Tags)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Get returns an item with its search options and modules.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.ContentItem, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, selectItem+` WHERE i.id = ? AND i.tenant_id = ?`, id, s.tenantID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if item.Modules, err = s.modules(ctx, id); err != nil {
		return nil, err
	}
	return item, nil
}

// List returns items matching typ and status.
func (s *SQLiteStore) List(ctx context.Context, typ, status string) ([]*models.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx,
		selectItem+` WHERE i.tenant_id = ? AND (? = '' OR i.type = ?) AND (? = '' OR i.status = ?)
		ORDER BY i.id`,
		s.tenantID, typ, typ, status, status,
	)
	if err != nil {
		return nil, err
	}
	var items []*models.ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for _, item := range items {
		if item.Modules, err = s.modules(ctx, item.ID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (s *SQLiteStore) modules(ctx context.Context, id string) ([]models.Module, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, hidden, body FROM modules WHERE item_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mods []models.Module
	for rows.Next() {
		var m models.Module
		if err := rows.Scan(&m.Type, &m.Hidden, &m.Body); err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, rows.Err()
}

// Put inserts or replaces an item together with its options and modules.
// An item without a tenant is stored under the store's tenant.
func (s *SQLiteStore) Put(ctx context.Context, item *models.ContentItem) error {
	tenantID := item.TenantID
	if tenantID == 0 {
		tenantID = s.tenantID
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (id, tenant_id, type, status, title, excerpt, body, slug, permalink,
		 revision_of, created_at, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET tenant_id = excluded.tenant_id, type = excluded.type,
		 status = excluded.status, title = excluded.title, excerpt = excluded.excerpt,
		 body = excluded.body, slug = excluded.slug, permalink = excluded.permalink,
		 revision_of = excluded.revision_of, created_at = excluded.created_at,
		 modified_at = excluded.modified_at`,
		item.ID, tenantID, item.Type, item.Status, item.Title, item.Excerpt, item.Body,
		item.Slug, item.Permalink, item.RevisionOf, item.CreatedAt.UTC(), item.ModifiedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write item: %w", err)
	}
	if err := upsertOptions(ctx, tx, item.ID, item.Options); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM modules WHERE item_id = ?`, item.ID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO modules (item_id, position, type, hidden, body) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, m := range item.Modules {
		if _, err := stmt.ExecContext(ctx, item.ID, i, m.Type, m.Hidden, m.Body); err != nil {
			return fmt.Errorf("failed to write module %d: %w", i, err)
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertOptions(ctx context.Context, db execer, id string, opts models.SearchOptions) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO search_options (item_id, exclude, boost, tags) VALUES (?, ?, ?, ?)
		 ON CONFLICT(item_id) DO UPDATE SET exclude = excluded.exclude, boost = excluded.boost,
		 tags = excluded.tags`,
		id, opts.Exclude, opts.Boost, opts.Tags,
	)
	if err != nil {
		return fmt.Errorf("failed to write search options: %w", err)
	}
	return nil
}

// SetOptions replaces the search options of an existing item.
func (s *SQLiteStore) SetOptions(ctx context.Context, id string, opts models.SearchOptions) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ? AND tenant_id = ?`, id, s.tenantID).
		Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return upsertOptions(ctx, s.db, id, opts)
}

// Delete removes an item; options and modules follow through the cascade.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	return err
}

// Count returns the number of items of the store's tenant.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE tenant_id = ?`, s.tenantID).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
