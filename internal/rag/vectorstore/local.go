package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/Neruzzz/toolchat/internal/rag/embed"
)

// Local keeps collections in SQLite files under a directory, one file per
// collection. Each call opens the file and closes it before returning.
type Local struct {
	dir string
}

func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

const localSchema = `
CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS points (
	id INTEGER PRIMARY KEY,
	vector TEXT NOT NULL,
	payload TEXT NOT NULL
);`

// Path returns the file backing collection.
func (l *Local) Path(collection string) string {
	return filepath.Join(l.dir, collection+".db")
}

func (l *Local) with(ctx context.Context, collection string, fn func(db *sql.DB) error) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", l.Path(collection))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	return fn(db)
}

func (l *Local) EnsureCollection(ctx context.Context, name string, dim int) (bool, error) {
	created := false
	err := l.with(ctx, name, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, localSchema); err != nil {
			return err
		}
		var stored int
		err := db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'dim'").Scan(&stored)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = true
			_, err = db.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES ('dim', ?)", dim)
			return err
		case err != nil:
			return err
		case stored != dim:
			return fmt.Errorf("%w: collection %s has %d, want %d", ErrDimension, name, stored, dim)
		}
		return nil
	})
	return created, err
}

func (l *Local) Upsert(ctx context.Context, collection string, points []Point) error {
	return l.with(ctx, collection, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, p := range points {
			vec, err := json.Marshal(p.Vector)
			if err != nil {
				return err
			}
			payload, err := json.Marshal(p.Payload)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO points (id, vector, payload) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET vector = excluded.vector, payload = excluded.payload",
				p.ID, string(vec), string(payload)); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (l *Local) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := l.with(ctx, collection, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, localSchema); err != nil {
			return err
		}
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM points").Scan(&n)
	})
	return n, err
}

// Search scores every point by cosine similarity and returns the best
// limit hits, highest first.
func (l *Local) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	var hits []Hit
	err := l.with(ctx, collection, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, "SELECT id, vector, payload FROM points")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id             int64
				rawVec, rawPay string
				vec            []float32
				payload        map[string]any
			)
			if err := rows.Scan(&id, &rawVec, &rawPay); err != nil {
				return err
			}
			if err := json.Unmarshal([]byte(rawVec), &vec); err != nil {
				return fmt.Errorf("point %d: %w", id, err)
			}
			if len(vec) != len(vector) {
				return fmt.Errorf("%w: point %d has %d, query has %d", ErrDimension, id, len(vec), len(vector))
			}
			_ = json.Unmarshal([]byte(rawPay), &payload)
			hits = append(hits, Hit{ID: id, Score: embed.Cosine(vector, vec), Payload: payload})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (l *Local) Close() error { return nil }
