// Package sqlite provides a quote store backed by SQLite.
//
// The default DSN is a private in-memory database, so contents still reset
// on restart. The connection pool is pinned to a single connection: every
// connection to ":memory:" would otherwise see its own empty database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/ports"
	"github.com/jsamuelsen/quotes-api/migrations"
)

// Name identifies the store in health check results.
const Name = "quote-store"

// DefaultDSN opens a fresh in-memory database.
const DefaultDSN = ":memory:"

const quoteColumns = "id, author, text, secret"

var _ ports.QuoteRepository = (*Store)(nil)

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

// Store is the SQLite-backed quote repository.
type Store struct {
	db *sql.DB
}

// New opens the database at dsn, applies pragmas and runs migrations.
func New(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// RunMigrations applies all pending schema migrations.
func RunMigrations(db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// Insert adds a quote. AUTOINCREMENT keeps deleted ids from coming back.
func (s *Store) Insert(ctx context.Context, author, text string) (*domain.Quote, error) {
	row := s.db.QueryRowContext(ctx,
		"INSERT INTO quotes (author, text) VALUES (?, ?) RETURNING "+quoteColumns,
		author, text)

	q, err := scanQuote(row)
	if err != nil {
		return nil, fmt.Errorf("insert quote: %w", err)
	}

	return q, nil
}

// GetByID returns the quote with the given id.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Quote, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+quoteColumns+" FROM quotes WHERE id = ?", id)

	return oneOrNotFound(row, id, "get quote")
}

// List returns all quotes ordered by id, which is insertion order.
func (s *Store) List(ctx context.Context) ([]*domain.Quote, error) {
	return s.query(ctx, func(*domain.Quote) bool { return true })
}

// FindByAuthor scans all quotes and keeps those whose author contains
// fragment. Matching happens in Go so case folding covers non-ASCII letters,
// which SQLite's lower() does not.
func (s *Store) FindByAuthor(ctx context.Context, fragment string) ([]*domain.Quote, error) {
	return s.query(ctx, func(q *domain.Quote) bool { return q.MatchesAuthor(fragment) })
}

func (s *Store) query(ctx context.Context, keep func(*domain.Quote) bool) ([]*domain.Quote, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+quoteColumns+" FROM quotes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.Quote, 0)

	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}

		if keep(q) {
			result = append(result, q)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}

	return result, nil
}

// Update overwrites author and text, leaving id and secret alone.
func (s *Store) Update(ctx context.Context, id int64, author, text string) (*domain.Quote, error) {
	row := s.db.QueryRowContext(ctx,
		"UPDATE quotes SET author = ?, text = ? WHERE id = ? RETURNING "+quoteColumns,
		author, text, id)

	return oneOrNotFound(row, id, "update quote")
}

// Delete removes the quote and returns the removed row.
func (s *Store) Delete(ctx context.Context, id int64) (*domain.Quote, error) {
	row := s.db.QueryRowContext(ctx,
		"DELETE FROM quotes WHERE id = ? RETURNING "+quoteColumns, id)

	return oneOrNotFound(row, id, "delete quote")
}

// Count returns the number of rows in the quotes table.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM quotes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count quotes: %w", err)
	}

	return n, nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return Name
}

// Check pings the database.
func (s *Store) Check(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return domain.NewUnavailableError(Name, err.Error())
	}

	return nil
}

// Close closes the database. An in-memory database is discarded.
func (s *Store) Close() error {
	return s.db.Close()
}

func oneOrNotFound(row *sql.Row, id int64, op string) (*domain.Quote, error) {
	q, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.QuoteNotFound(id)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return q, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuote(sc scanner) (*domain.Quote, error) {
	var q domain.Quote
	if err := sc.Scan(&q.ID, &q.Author, &q.Text, &q.Secret); err != nil {
		return nil, err
	}

	return &q, nil
}
