// Package vectorstore holds embedded documents and answers nearest-neighbor
// queries over them.
package vectorstore

import (
	"context"
	"errors"
)

var ErrDimension = errors.New("vector dimension mismatch")

type Point struct {
	ID      int64
	Vector  []float32
	Payload map[string]any
}

type Hit struct {
	ID      int64
	Score   float64
	Payload map[string]any
}

// Text returns the hit's "text" payload field.
func (h Hit) Text() string {
	s, _ := h.Payload["text"].(string)
	return s
}

type Store interface {
	// EnsureCollection creates the collection if it is missing and reports
	// whether it did.
	EnsureCollection(ctx context.Context, name string, dim int) (created bool, err error)
	Upsert(ctx context.Context, collection string, points []Point) error
	// Count returns the number of points stored in collection.
	Count(ctx context.Context, collection string) (int, error)
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error)
	Close() error
}
