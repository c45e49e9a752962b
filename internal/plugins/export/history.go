package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryFile is the history database name inside a document's data dir.
const HistoryFile = "exports.db"

const schema = `
CREATE TABLE IF NOT EXISTS exports (
	id            TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL,
	document_name TEXT NOT NULL,
	path          TEXT NOT NULL,
	size          INTEGER NOT NULL,
	created_at    INTEGER NOT NULL
)`

// Record is one completed export.
type Record struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"documentId"`
	DocumentName string    `json:"documentName"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}

// History persists export records in SQLite.
type History struct {
	db *sql.DB
}

// OpenHistory opens or creates the history database at path.
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("export: history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("export: open history: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("export: init history: %w", err)
	}
	return &History{db: db}, nil
}

// Add stores rec.
func (h *History) Add(rec Record) error {
	_, err := h.db.Exec(
		`INSERT INTO exports (id, document_id, document_name, path, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocumentID, rec.DocumentName, rec.Path, rec.Size, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("export: record %s: %w", rec.ID, err)
	}
	return nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (h *History) List(limit int) ([]Record, error) {
	query := `SELECT id, document_id, document_name, path, size, created_at
		FROM exports ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("export: list history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var created int64
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.DocumentName, &rec.Path, &rec.Size, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(0, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (h *History) Count() (int, error) {
	var n int
	err := h.db.QueryRow("SELECT COUNT(*) FROM exports").Scan(&n)
	return n, err
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}
