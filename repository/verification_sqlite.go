package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/venadolabs/chanbind/domains/provider"
	"github.com/venadolabs/chanbind/domains/setup"
)

// VerificationSQLiteRepository keeps the verification history in a plain
// sqlite table so the last result survives restarts.
type VerificationSQLiteRepository struct {
	db *sql.DB
}

func NewVerificationSQLiteRepository(db *sql.DB) *VerificationSQLiteRepository {
	return &VerificationSQLiteRepository{db: db}
}

// OpenVerificationDB opens (or creates) the verification history database at
// the given path.
func OpenVerificationDB(path string) (*sql.DB, error) {
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", path)
	return sql.Open("sqlite3", connStr)
}

func (r *VerificationSQLiteRepository) InitSchema(ctx context.Context) error {
	createTable := `
		CREATE TABLE IF NOT EXISTS verification_results (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			ready INTEGER NOT NULL,
			blockers TEXT NOT NULL DEFAULT '[]',
			checked_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_verification_provider_checked
			ON verification_results (provider, checked_at DESC);
	`
	_, err := r.db.ExecContext(ctx, createTable)
	return err
}

func (r *VerificationSQLiteRepository) Append(ctx context.Context, p provider.Provider, result setup.VerificationResult) error {
	blockers, err := json.Marshal(result.Blockers)
	if err != nil {
		return err
	}

	ready := 0
	if result.Ready {
		ready = 1
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO verification_results (id, provider, ready, blockers, checked_at) VALUES (?, ?, ?, ?, ?)`,
		result.ID, string(p), ready, string(blockers), result.CheckedAt,
	)
	return err
}

func (r *VerificationSQLiteRepository) Latest(ctx context.Context, p provider.Provider) (*setup.VerificationResult, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, ready, blockers, checked_at FROM verification_results WHERE provider = ? ORDER BY checked_at DESC LIMIT 1`,
		string(p),
	)

	var result setup.VerificationResult
	var ready int
	var blockers string
	if err := row.Scan(&result.ID, &ready, &blockers, &result.CheckedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	result.Ready = ready == 1
	if err := json.Unmarshal([]byte(blockers), &result.Blockers); err != nil {
		return nil, err
	}
	return &result, nil
}
