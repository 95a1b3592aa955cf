// Package embed turns text into fixed-size vectors.
package embed

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Dim is the vector size of the FAQ collection.
const Dim = 384

var ErrFastEmbedMissing = errors.New("fastembed support not included; rebuild with -tags fastembed")

type Embedder interface {
	Dim() int
	// Embed embeds a single query string.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedPassages embeds a batch of documents.
	EmbedPassages(ctx context.Context, docs []string) ([][]float32, error)
	Close() error
}

const (
	KindHash      = "hash"
	KindFastEmbed = "fastembed"
)

// Options configures the fastembed model.
type Options struct {
	CacheDir  string
	MaxLength int
	BatchSize int
}

// New returns the embedder named by kind.
func New(ctx context.Context, kind, cacheDir string) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindHash:
		return NewHash(Dim), nil
	case KindFastEmbed:
		return NewFastEmbed(ctx, &Options{CacheDir: cacheDir})
	default:
		return nil, fmt.Errorf("unknown embedder %q", kind)
	}
}

// LexicalNotice is logged at startup when retrieval runs on the hashing
// embedder.
const LexicalNotice = "Retrieval is lexical (hashing embedder); set rag.embedder=fastembed and build with -tags fastembed for all-MiniLM-L6-v2 semantic search"

// Lexical reports whether e ranks by word overlap rather than meaning.
func Lexical(e Embedder) bool {
	_, ok := e.(*Hash)
	return ok
}

// Hash embeds text by feature hashing lowercased words and word bigrams
// into a unit vector. It needs no model files and is deterministic.
type Hash struct {
	dim int
}

func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = Dim
	}
	return &Hash{dim: dim}
}

func (h *Hash) Dim() int     { return h.dim }
func (h *Hash) Close() error { return nil }

func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *Hash) EmbedPassages(_ context.Context, docs []string) ([][]float32, error) {
	out := make([][]float32, len(docs))
	for i, d := range docs {
		out[i] = h.vector(d)
	}
	return out, nil
}

func (h *Hash) vector(text string) []float32 {
	v := make([]float32, h.dim)
	words := Tokens(text)
	for i, w := range words {
		h.add(v, w, 1)
		if i > 0 {
			h.add(v, words[i-1]+" "+w, 0.5)
		}
	}
	Normalize(v)
	return v
}

func (h *Hash) add(v []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dim))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "for": true, "how": true, "in": true, "is": true,
	"of": true, "on": true, "or": true, "the": true, "to": true, "what": true, "which": true, "with": true,
}

// Tokens splits text into lowercased words, dropping stopwords.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

// Normalize scales v to unit length in place. Zero vectors are left alone.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
