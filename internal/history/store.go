// Package history keeps a sqlite log of finished liveness sessions and the
// face captures they produced
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MrCodeEU/LiveCheck/internal/liveness"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when an attempt does not exist
var ErrNotFound = errors.New("attempt not found")

// Attempt is one recorded session
type Attempt struct {
	ID             string        `json:"id"`
	Subject        string        `json:"subject"`
	Outcome        string        `json:"outcome"`
	ChallengeOrder []string      `json:"challenge_order"`
	Frames         int           `json:"frames"`
	Duration       time.Duration `json:"duration"`
	ArtifactPath   string        `json:"artifact_path,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Store records session outcomes. It implements liveness.OutcomeRecorder.
type Store struct {
	db          *sql.DB
	artifactDir string
}

// NewStore opens the attempt database. When artifactDir is empty captured
// faces are not written to disk.
func NewStore(dbPath, artifactDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if artifactDir != "" {
		if err := os.MkdirAll(artifactDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:          db,
		artifactDir: artifactDir,
	}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		outcome TEXT NOT NULL,
		challenge_order BLOB NOT NULL,
		frames INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		artifact_path TEXT,
		started_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_subject ON attempts(subject);
	CREATE INDEX IF NOT EXISTS idx_attempts_created_at ON attempts(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordOutcome stores a finished session and writes its capture, if any
func (s *Store) RecordOutcome(o liveness.Outcome) error {
	order := make([]string, len(o.ChallengeOrder))
	for i, c := range o.ChallengeOrder {
		order[i] = string(c)
	}
	orderJSON, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to serialize challenge order: %w", err)
	}

	var artifactPath sql.NullString
	if s.artifactDir != "" && o.Artifact != nil && len(o.Artifact.JPEG) > 0 {
		path := filepath.Join(s.artifactDir, o.SessionID+".jpg")
		if err := os.WriteFile(path, o.Artifact.JPEG, 0640); err != nil {
			return fmt.Errorf("failed to write artifact: %w", err)
		}
		artifactPath = sql.NullString{String: path, Valid: true}
	}

	_, err = s.db.Exec(
		`INSERT INTO attempts (id, subject, outcome, challenge_order, frames, duration_ms, artifact_path, started_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.SessionID, o.Subject, string(o.Status), orderJSON, o.Frames,
		o.Duration.Milliseconds(), artifactPath, o.StartedAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	return nil
}

const selectAttempt = `SELECT id, subject, outcome, challenge_order, frames, duration_ms, artifact_path, started_at, created_at FROM attempts`

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (*Attempt, error) {
	var a Attempt
	var orderJSON []byte
	var durationMs int64
	var artifactPath sql.NullString
	var startedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.Subject, &a.Outcome, &orderJSON, &a.Frames,
		&durationMs, &artifactPath, &startedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Duration = time.Duration(durationMs) * time.Millisecond
	if artifactPath.Valid {
		a.ArtifactPath = artifactPath.String
	}
	if startedAt.Valid {
		a.StartedAt = startedAt.Time
	}

	if err := json.Unmarshal(orderJSON, &a.ChallengeOrder); err != nil {
		return nil, fmt.Errorf("failed to deserialize challenge order: %w", err)
	}

	return &a, nil
}

// GetAttempt retrieves an attempt by session ID
func (s *Store) GetAttempt(id string) (*Attempt, error) {
	a, err := scanAttempt(s.db.QueryRow(selectAttempt+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return a, nil
}

// ListAttempts returns the newest attempts first. An empty subject lists
// every subject.
func (s *Store) ListAttempts(subject string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}

	query := selectAttempt + ` ORDER BY created_at DESC LIMIT ?`
	args := []any{limit}
	if subject != "" {
		query = selectAttempt + ` WHERE subject = ? ORDER BY created_at DESC LIMIT ?`
		args = []any{subject, limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, *a)
	}

	return attempts, rows.Err()
}

// CountOutcomes returns the number of attempts per outcome
func (s *Store) CountOutcomes(subject string) (map[string]int, error) {
	query := `SELECT outcome, COUNT(*) FROM attempts GROUP BY outcome`
	var args []any
	if subject != "" {
		query = `SELECT outcome, COUNT(*) FROM attempts WHERE subject = ? GROUP BY outcome`
		args = append(args, subject)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[outcome] = n
	}

	return counts, rows.Err()
}

// Prune deletes attempts recorded before cutoff along with their captures
func (s *Store) Prune(cutoff time.Time) (int, error) {
	rows, err := s.db.Query(`SELECT artifact_path FROM attempts WHERE created_at < ? AND artifact_path IS NOT NULL`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to query old attempts: %w", err)
	}
	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan artifact path: %w", err)
		}
		paths = append(paths, path)
	}
	_ = rows.Close()

	result, err := s.db.Exec(`DELETE FROM attempts WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune attempts: %w", err)
	}

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("failed to remove artifact: %w", err)
		}
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
