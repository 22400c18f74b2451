package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/civicgo/kaiwa/internal/models"
)

// ExampleStore persists training examples and the intent response table in
// SQLite. It is the fixed source the training run reads from.
type ExampleStore struct {
	db *sql.DB
}

// NewExampleStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewExampleStore(dbPath string) (*ExampleStore, error) {
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

	return &ExampleStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS training_examples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pattern TEXT NOT NULL,
		intent TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(pattern, intent)
	);

	CREATE INDEX IF NOT EXISTS idx_examples_intent ON training_examples(intent);

	CREATE TABLE IF NOT EXISTS responses (
		intent TEXT NOT NULL,
		response TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (intent, position)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// AddExamples inserts examples, ignoring exact (pattern, intent) duplicates.
func (s *ExampleStore) AddExamples(ctx context.Context, examples []models.TrainingExample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO training_examples (pattern, intent) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, ex := range examples {
		if _, err := stmt.ExecContext(ctx, ex.Pattern, ex.Intent); err != nil {
			return fmt.Errorf("insert example: %w", err)
		}
	}
	return tx.Commit()
}

// ListExamples returns every training example in insertion order.
func (s *ExampleStore) ListExamples(ctx context.Context) ([]models.TrainingExample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pattern, intent FROM training_examples ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list examples: %w", err)
	}
	defer rows.Close()
	var out []models.TrainingExample
	for rows.Next() {
		var ex models.TrainingExample
		if err := rows.Scan(&ex.Pattern, &ex.Intent); err != nil {
			return nil, fmt.Errorf("scan example: %w", err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// SetResponses replaces the response list for an intent.
func (s *ExampleStore) SetResponses(ctx context.Context, intent string, responses []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM responses WHERE intent = ?`, intent); err != nil {
		return fmt.Errorf("clear responses: %w", err)
	}
	for i, r := range responses {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO responses (intent, response, position) VALUES (?, ?, ?)`,
			intent, r, i); err != nil {
			return fmt.Errorf("insert response: %w", err)
		}
	}
	return tx.Commit()
}

// Responses returns the full intent-to-responses table, lists ordered by position.
func (s *ExampleStore) Responses(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT intent, response FROM responses ORDER BY intent, position`)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var intent, response string
		if err := rows.Scan(&intent, &response); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		out[intent] = append(out[intent], response)
	}
	return out, rows.Err()
}

// CountExamples returns the number of stored training examples.
func (s *ExampleStore) CountExamples(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM training_examples`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count examples: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *ExampleStore) Close() error {
	return s.db.Close()
}
