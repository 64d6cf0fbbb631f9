package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mikake/internal/models"
)

// SQLiteSource reads catalog entries from a SQLite products table.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource opens or creates a SQLite database at dbPath and initializes
// the products schema. Parent directories are created if they do not exist.
func NewSQLiteSource(dbPath string) (*SQLiteSource, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
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
	return &SQLiteSource{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price REAL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Entries returns all products ordered by insertion rowid, so catalog order
// is stable across rebuilds.
func (s *SQLiteSource) Entries(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, price FROM products ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var entries []models.CatalogEntry
	for rows.Next() {
		var e models.CatalogEntry
		var price sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.Name, &price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if price.Valid {
			p := price.Float64
			e.Price = &p
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return entries, nil
}

// AddProduct inserts or replaces a product row. Used by tests and seeding tools.
func (s *SQLiteSource) AddProduct(ctx context.Context, e *models.CatalogEntry) error {
	var price interface{}
	if e.Price != nil {
		price = *e.Price
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO products (id, name, price) VALUES (?, ?, ?)`,
		e.ProductID(), e.Name, price)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
