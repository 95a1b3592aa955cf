// Package rag answers machine-learning questions from a small FAQ collection
// stored in a vector database.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Neruzzz/toolchat/internal/errorsx"
	"github.com/Neruzzz/toolchat/internal/rag/embed"
	"github.com/Neruzzz/toolchat/internal/rag/vectorstore"
)

const (
	DefaultCollection = "ml_faq_collection"
	DefaultLimit      = 5

	NoDocuments = "No relevant documents found."
)

// FAQs seed a collection that is new or empty.
var FAQs = []string{
	"What is Machine Learning? Machine learning is a branch of artificial intelligence (AI) and computer science which focuses on the use of data and algorithms to imitate the way that humans learn, gradually improving its accuracy.",
	"What is Supervised Learning? Supervised learning uses labeled datasets to train algorithms to classify data or predict outcomes accurately.",
	"What is Unsupervised Learning? Unsupervised learning uses machine learning algorithms to analyze and cluster unlabeled datasets.",
	"What is Reinforcement Learning? Reinforcement learning is an area of machine learning concerned with how intelligent agents ought to take actions in an environment in order to maximize the notion of cumulative reward.",
	"What is Deep Learning? Deep learning is a subset of machine learning that uses neural networks with three or more layers.",
}

type Options struct {
	Collection   string
	Backend      string // local or qdrant
	LocalPath    string
	QdrantURL    string
	QdrantAPIKey string
	Embedder     string // hash or fastembed
	CacheDir     string
	Limit        int
}

type Retriever struct {
	store      vectorstore.Store
	embedder   embed.Embedder
	collection string
	limit      int
}

func NewRetriever(store vectorstore.Store, embedder embed.Embedder, collection string, limit int) *Retriever {
	if collection == "" {
		collection = DefaultCollection
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Retriever{store: store, embedder: embedder, collection: collection, limit: limit}
}

// Open builds the store and embedder described by opts, creates the
// collection if needed and seeds it with FAQs when it holds no points.
func Open(ctx context.Context, opts Options) (*Retriever, error) {
	var store vectorstore.Store
	switch strings.ToLower(opts.Backend) {
	case "", "local":
		path := opts.LocalPath
		if path == "" {
			path = filepath.Join(".", "qdrant_db_new")
		}
		store = vectorstore.NewLocal(path)
	case "qdrant":
		store = vectorstore.NewQdrant(opts.QdrantURL, opts.QdrantAPIKey)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", opts.Backend)
	}

	embedder, err := embed.New(ctx, opts.Embedder, opts.CacheDir)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("init embedder: %w", err), errorsx.ReasonUnavailable)
	}
	if embed.Lexical(embedder) {
		slog.InfoContext(ctx, embed.LexicalNotice, "dim", embedder.Dim())
	}

	r := NewRetriever(store, embedder, opts.Collection, opts.Limit)
	if err := r.Init(ctx); err != nil {
		_ = r.Close()
		return nil, errorsx.Wrap(err, errorsx.ReasonUnavailable)
	}
	return r, nil
}

// Init ensures the collection exists and seeds it when it is new or empty,
// so a seed that failed on an earlier start is retried.
func (r *Retriever) Init(ctx context.Context) error {
	created, err := r.store.EnsureCollection(ctx, r.collection, r.embedder.Dim())
	if err != nil {
		return fmt.Errorf("ensure collection %s: %w", r.collection, err)
	}
	if !created {
		n, err := r.store.Count(ctx, r.collection)
		if err != nil {
			return fmt.Errorf("count collection %s: %w", r.collection, err)
		}
		if n > 0 {
			return nil
		}
	}
	if err := r.Seed(ctx, FAQs); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Seeded collection", "collection", r.collection, "documents", len(FAQs))
	return nil
}

// Seed embeds docs and stores them under ids 0..len(docs)-1.
func (r *Retriever) Seed(ctx context.Context, docs []string) error {
	vecs, err := r.embedder.EmbedPassages(ctx, docs)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	points := make([]vectorstore.Point, len(docs))
	for i, d := range docs {
		points[i] = vectorstore.Point{ID: int64(i), Vector: vecs[i], Payload: map[string]any{"text": d}}
	}
	if err := r.store.Upsert(ctx, r.collection, points); err != nil {
		return fmt.Errorf("upsert documents: %w", err)
	}
	return nil
}

// Search returns the nearest documents as numbered blocks.
func (r *Retriever) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("query is empty")
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.store.Search(ctx, r.collection, vec, r.limit)
	if err != nil {
		return "", fmt.Errorf("search %s: %w", r.collection, err)
	}
	slog.InfoContext(ctx, "Retrieved documents", "collection", r.collection, "hits", len(hits))
	return FormatHits(hits), nil
}

// FormatHits renders hits as "Document i:" blocks separated by blank lines.
func FormatHits(hits []vectorstore.Hit) string {
	if len(hits) == 0 {
		return NoDocuments
	}
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("Document %d:\n%s", i+1, h.Text())
	}
	return strings.Join(blocks, "\n\n")
}

func (r *Retriever) Close() error {
	return errors.Join(r.embedder.Close(), r.store.Close())
}
