// Package people is a small SQLite-backed address book exposed as tools.
// Every operation opens the database file, does its work and closes it.
package people

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Neruzzz/toolchat/internal/errorsx"
)

const schema = `CREATE TABLE IF NOT EXISTS people (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	age INTEGER,
	email TEXT
)`

var (
	ErrNoUpdates = errors.New("no updates provided")
	ErrNotFound  = errors.New("person not found")
)

type Person struct {
	ID    int64
	Name  string
	Age   sql.NullInt64
	Email sql.NullString
}

// Update lists the fields to change. Nil fields are left alone.
type Update struct {
	Name  *string
	Age   *int
	Email *string
}

// Rows is a generic query result.
type Rows struct {
	Columns []string
	Values  [][]any
}

type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

func (s *Store) dsn(readOnly bool) string {
	mode := "rwc"
	if readOnly {
		mode = "ro"
	}
	return fmt.Sprintf("file:%s?mode=%s&_pragma=busy_timeout(5000)", s.path, mode)
}

// with opens the database, runs fn and always closes it again.
func (s *Store) with(ctx context.Context, readOnly bool, fn func(db *sql.DB) error) error {
	db, err := sql.Open("sqlite", s.dsn(readOnly))
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("open %s: %w", s.path, err), errorsx.ReasonStore)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return errorsx.Wrap(fmt.Errorf("open %s: %w", s.path, err), errorsx.ReasonStore)
	}
	return fn(db)
}

// Init creates the people table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	return s.with(ctx, false, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, schema)
		return err
	})
}

// Exec runs a data-modifying statement and reports the affected rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := s.with(ctx, false, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// Query runs a statement on a read-only connection.
func (s *Store) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	var out Rows
	err := s.with(ctx, true, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out.Columns, err = rows.Columns()
		if err != nil {
			return err
		}
		for rows.Next() {
			vals := make([]any, len(out.Columns))
			ptrs := make([]any, len(vals))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}
			for i, v := range vals {
				if b, ok := v.([]byte); ok {
					vals[i] = string(b)
				}
			}
			out.Values = append(out.Values, vals)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) AddPerson(ctx context.Context, name string, age int, email string) (int64, error) {
	var id int64
	err := s.with(ctx, false, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, "INSERT INTO people (name, age, email) VALUES (?, ?, ?)", name, age, email)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// UpdatePerson applies u to the person with id. Empty names and emails
// count as "no change".
func (s *Store) UpdatePerson(ctx context.Context, id int64, u Update) error {
	var sets []string
	var params []any
	if u.Name != nil && *u.Name != "" {
		sets = append(sets, "name = ?")
		params = append(params, *u.Name)
	}
	if u.Age != nil {
		sets = append(sets, "age = ?")
		params = append(params, *u.Age)
	}
	if u.Email != nil && *u.Email != "" {
		sets = append(sets, "email = ?")
		params = append(params, *u.Email)
	}
	if len(sets) == 0 {
		return ErrNoUpdates
	}
	params = append(params, id)

	n, err := s.Exec(ctx, "UPDATE people SET "+strings.Join(sets, ", ")+" WHERE id = ?", params...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeletePerson(ctx context.Context, id int64) error {
	n, err := s.Exec(ctx, "DELETE FROM people WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.with(ctx, true, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM people").Scan(&n)
	})
	return n, err
}

func (s *Store) Get(ctx context.Context, id int64) (Person, error) {
	var p Person
	err := s.with(ctx, true, func(db *sql.DB) error {
		err := db.QueryRowContext(ctx, "SELECT id, name, age, email FROM people WHERE id = ?", id).
			Scan(&p.ID, &p.Name, &p.Age, &p.Email)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	return p, err
}
