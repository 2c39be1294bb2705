package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pavelanni/assessor/internal/model"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRevisionConflict is returned by UpdateResult when the result changed
	// since the caller read it.
	ErrRevisionConflict = errors.New("revision conflict")
	// ErrInvalid is returned for records that fail structural validation.
	ErrInvalid = errors.New("invalid record")
)

// AssessmentRepository reads assessments.
type AssessmentRepository interface {
	GetAssessment(ctx context.Context, id string) (model.Assessment, error)
	ListAssessments(ctx context.Context, includeArchived bool) ([]model.Assessment, error)
}

// ResultRepository persists results.
type ResultRepository interface {
	CreateResult(ctx context.Context, r model.Result) (model.Result, error)
	UpdateResult(ctx context.Context, id string, patch ResultPatch) (model.Result, error)
	GetResult(ctx context.Context, id string) (model.Result, error)
	ListResultsByAssessment(ctx context.Context, assessmentID string) ([]model.Result, error)
}

// Repository is the read/write surface the review service depends on.
type Repository interface {
	AssessmentRepository
	ResultRepository
}

var _ Repository = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers anyway; a single connection also keeps
	// ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		time_limit INTEGER NOT NULL DEFAULT 0,
		scoring_mode TEXT NOT NULL DEFAULT 'weighted',
		created_at DATETIME NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		archived INTEGER NOT NULL DEFAULT 0,
		last_modified DATETIME
	);

	CREATE TABLE IF NOT EXISTS questions (
		assessment_id TEXT NOT NULL,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		type TEXT NOT NULL,
		text TEXT NOT NULL,
		options TEXT NOT NULL DEFAULT '[]',
		max_score REAL NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (assessment_id, id),
		FOREIGN KEY (assessment_id) REFERENCES assessments(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		assessment_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		user_name TEXT NOT NULL DEFAULT '',
		user_email TEXT NOT NULL DEFAULT '',
		answers TEXT NOT NULL DEFAULT '[]',
		score REAL,
		feedback TEXT NOT NULL DEFAULT '',
		submitted_at DATETIME NOT NULL,
		graded_at DATETIME,
		graded_by TEXT NOT NULL DEFAULT '',
		analytics TEXT,
		revision INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (assessment_id) REFERENCES assessments(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_results_assessment ON results(assessment_id, submitted_at);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS share_links (
		id TEXT PRIMARY KEY,
		assessment_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		expires_at DATETIME,
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (assessment_id) REFERENCES assessments(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		imported_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
