// Package storage keeps library snapshots in a SQLite database, as an
// alternative to the JSON data folder.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"biblioteca/internal/core"
	"biblioteca/internal/log"
	"biblioteca/internal/services"
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Default()
	}
	return &SQLiteRepository{db: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveSnapshot replaces every stored row with snap in a single transaction.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap services.Snapshot) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"loans", "users", "books"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, b := range snap.Books {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO books (id, title, category, author, code, copies, position) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.Title, b.Category, b.Author, b.Code, b.Copies, i); err != nil {
			return fmt.Errorf("insert book %s: %w", b.ID, err)
		}
	}
	for i, u := range snap.Users {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, name, email, is_active, position) VALUES (?, ?, ?, ?, ?)`,
			u.ID, u.Name, u.Email, u.IsActive, i); err != nil {
			return fmt.Errorf("insert user %s: %w", u.ID, err)
		}
	}
	for i, l := range snap.Loans {
		var returned sql.NullString
		if l.ReturnDate != nil {
			returned = sql.NullString{String: formatTime(*l.ReturnDate), Valid: true}
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO loans (id, user_id, book_id, loan_date, return_date, position) VALUES (?, ?, ?, ?, ?, ?)`,
			l.ID, l.UserID, l.BookID, formatTime(l.LoanDate), returned, i); err != nil {
			return fmt.Errorf("insert loan %s: %w", l.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	r.logger.InfoContext(ctx, "Snapshot saved to SQLite",
		"books", len(snap.Books),
		"users", len(snap.Users),
		"loans", len(snap.Loans))
	return nil
}

// LoadSnapshot reads every row back in the order it was saved.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (services.Snapshot, error) {
	var snap services.Snapshot

	books, err := r.db.QueryContext(ctx,
		`SELECT id, title, category, author, code, copies FROM books ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("query books: %w", err)
	}
	defer books.Close()
	for books.Next() {
		var b core.Book
		if err := books.Scan(&b.ID, &b.Title, &b.Category, &b.Author, &b.Code, &b.Copies); err != nil {
			return snap, fmt.Errorf("scan book: %w", err)
		}
		snap.Books = append(snap.Books, b)
	}
	if err := books.Err(); err != nil {
		return snap, fmt.Errorf("read books: %w", err)
	}

	users, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, is_active FROM users ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("query users: %w", err)
	}
	defer users.Close()
	for users.Next() {
		var u core.User
		if err := users.Scan(&u.ID, &u.Name, &u.Email, &u.IsActive); err != nil {
			return snap, fmt.Errorf("scan user: %w", err)
		}
		snap.Users = append(snap.Users, u)
	}
	if err := users.Err(); err != nil {
		return snap, fmt.Errorf("read users: %w", err)
	}

	loans, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, book_id, loan_date, return_date FROM loans ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("query loans: %w", err)
	}
	defer loans.Close()
	for loans.Next() {
		var (
			l        core.Loan
			loanDate string
			returned sql.NullString
		)
		if err := loans.Scan(&l.ID, &l.UserID, &l.BookID, &loanDate, &returned); err != nil {
			return snap, fmt.Errorf("scan loan: %w", err)
		}
		if l.LoanDate, err = parseTime(loanDate); err != nil {
			return snap, fmt.Errorf("loan %s date: %w", l.ID, err)
		}
		if returned.Valid {
			t, err := parseTime(returned.String)
			if err != nil {
				return snap, fmt.Errorf("loan %s return date: %w", l.ID, err)
			}
			l.ReturnDate = &t
		}
		snap.Loans = append(snap.Loans, l)
	}
	if err := loans.Err(); err != nil {
		return snap, fmt.Errorf("read loans: %w", err)
	}

	return snap, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
