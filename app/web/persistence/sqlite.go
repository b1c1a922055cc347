package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/umputun/jobboard/app/web/enums"
)

// ErrNotFound returned when requested posting doesn't exist
var ErrNotFound = errors.New("not found")

// Posting represents a single job posting
type Posting struct {
	ID           int64
	Title        string
	Company      string
	Location     string
	JobType      enums.JobType
	Description  string
	Requirements string
	SalaryRange  string
	HowToApply   string
	PostedDate   time.Time
}

// Filter defines listing constraints, zero value lists everything
type Filter struct {
	Query   string        // case-insensitive substring of title or company
	JobType enums.JobType // exact job type, zero value means any
}

// postingRow is the db representation of Posting, time stored as unix seconds
type postingRow struct {
	ID           int64         `db:"id"`
	Title        string        `db:"title"`
	Company      string        `db:"company"`
	Location     string        `db:"location"`
	JobType      enums.JobType `db:"job_type"`
	Description  string        `db:"description"`
	Requirements string        `db:"requirements"`
	SalaryRange  string        `db:"salary_range"`
	HowToApply   string        `db:"how_to_apply"`
	PostedDate   int64         `db:"posted_date"`
}

func (r postingRow) posting() Posting {
	return Posting{
		ID:           r.ID,
		Title:        r.Title,
		Company:      r.Company,
		Location:     r.Location,
		JobType:      r.JobType,
		Description:  r.Description,
		Requirements: r.Requirements,
		SalaryRange:  r.SalaryRange,
		HowToApply:   r.HowToApply,
		PostedDate:   time.Unix(r.PostedDate, 0).UTC(),
	}
}

func newPostingRow(p Posting) postingRow {
	posted := p.PostedDate
	if posted.IsZero() {
		posted = time.Now()
	}
	return postingRow{
		Title:        p.Title,
		Company:      p.Company,
		Location:     p.Location,
		JobType:      p.JobType,
		Description:  p.Description,
		Requirements: p.Requirements,
		SalaryRange:  p.SalaryRange,
		HowToApply:   p.HowToApply,
		PostedDate:   posted.Unix(),
	}
}

const (
	selectPostings = `SELECT id, title, company, location, job_type, description, requirements,
		salary_range, how_to_apply, posted_date FROM postings`

	insertPosting = `INSERT INTO postings
		(title, company, location, job_type, description, requirements, salary_range, how_to_apply, posted_date)
		VALUES (:title, :company, :location, :job_type, :description, :requirements, :salary_range, :how_to_apply, :posted_date)`
)

// SQLiteStore implements persistence using SQLite
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and initializes the schema
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single connection serializes writers, pragmas below are per-connection
	db.SetMaxOpenConns(1)

	closeWith := func(err error) error {
		if closeErr := db.Close(); closeErr != nil {
			return fmt.Errorf("%w (also failed to close db: %v)", err, closeErr)
		}
		return err
	}

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, closeWith(fmt.Errorf("failed to set WAL mode: %w", err))
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, closeWith(fmt.Errorf("failed to set busy timeout: %w", err))
	}

	s := &SQLiteStore{db: db}
	if err := s.Initialize(); err != nil {
		return nil, closeWith(err)
	}
	return s, nil
}

// Initialize creates the database schema
func (s *SQLiteStore) Initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS postings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL CHECK (title <> ''),
			company TEXT NOT NULL CHECK (company <> ''),
			location TEXT NOT NULL CHECK (location <> ''),
			job_type TEXT NOT NULL CHECK (job_type <> ''),
			description TEXT NOT NULL CHECK (description <> ''),
			requirements TEXT NOT NULL CHECK (requirements <> ''),
			salary_range TEXT NOT NULL CHECK (salary_range <> ''),
			how_to_apply TEXT NOT NULL CHECK (how_to_apply <> ''),
			posted_date INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_posted_date ON postings(posted_date)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_job_type ON postings(job_type)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// List returns postings matching the filter, newest first
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Posting, error) {
	var where []string
	var args []any

	if q := strings.TrimSpace(f.Query); q != "" {
		// sqlite LIKE is case-insensitive for ASCII
		pattern := "%" + escapeLike(q) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR company LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if !f.JobType.IsZero() {
		where = append(where, "job_type = ?")
		args = append(args, f.JobType.String())
	}

	query := selectPostings
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY posted_date DESC, id DESC"

	rows := []postingRow{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query postings: %w", err)
	}

	res := make([]Posting, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.posting())
	}
	return res, nil
}

// Get returns a single posting by id
func (s *SQLiteStore) Get(ctx context.Context, id int64) (Posting, error) {
	var row postingRow
	err := s.db.GetContext(ctx, &row, selectPostings+" WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Posting{}, fmt.Errorf("posting %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Posting{}, fmt.Errorf("failed to get posting %d: %w", id, err)
	}
	return row.posting(), nil
}

// Create inserts a new posting in a transaction and returns it with id and posted date set.
// PostedDate defaults to the current time if not set.
func (s *SQLiteStore) Create(ctx context.Context, p Posting) (Posting, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Posting{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	row := newPostingRow(p)
	res, err := tx.NamedExecContext(ctx, insertPosting, row)
	if err != nil {
		return Posting{}, fmt.Errorf("failed to insert posting %q: %w", p.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Posting{}, fmt.Errorf("failed to get posting id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Posting{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	row.ID = id
	return row.posting(), nil
}

// SeedIfEmpty inserts all postings in a single transaction if the table has no rows.
// Returns the number of inserted postings, 0 if the store wasn't empty.
// Any failure rolls back the whole batch.
func (s *SQLiteStore) SeedIfEmpty(ctx context.Context, postings []Posting) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var count int
	if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM postings"); err != nil {
		return 0, fmt.Errorf("failed to count postings: %w", err)
	}
	if count > 0 {
		log.Printf("[DEBUG] store has %d postings, seeding skipped", count)
		return 0, nil
	}

	for idx, p := range postings {
		if _, err := tx.NamedExecContext(ctx, insertPosting, newPostingRow(p)); err != nil {
			return 0, fmt.Errorf("failed to seed posting %d (%q): %w", idx+1, p.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(postings), nil
}

// Count returns the number of stored postings
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM postings"); err != nil {
		return 0, fmt.Errorf("failed to count postings: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// escapeLike escapes LIKE wildcards so the value matches literally with ESCAPE '\'
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
