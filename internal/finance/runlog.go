package finance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Neruzzz/toolchat/internal/mongox"
)

// Run is the audit record of one analysis.
type Run struct {
	ID        string        `bson:"_id" json:"id"`
	Query     string        `bson:"query" json:"query"`
	Code      string        `bson:"code,omitempty" json:"code,omitempty"`
	Mode      string        `bson:"mode" json:"mode"`
	Outcome   string        `bson:"outcome" json:"outcome"`
	ExitCode  int           `bson:"exit_code" json:"exit_code"`
	Stderr    string        `bson:"stderr,omitempty" json:"stderr,omitempty"`
	Duration  time.Duration `bson:"duration" json:"duration"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
}

const (
	OutcomeSuccess   = "success"
	OutcomeNoCode    = "no_code"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeNoPlot    = "no_plot"
	OutcomeModelFail = "model_error"
)

// RunLog stores analysis runs.
type RunLog interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, n int) ([]Run, error)
}

// MemoryRunLog keeps the latest runs in memory.
type MemoryRunLog struct {
	mu   sync.Mutex
	runs []Run
	max  int
}

func NewMemoryRunLog(max int) *MemoryRunLog {
	if max <= 0 {
		max = 100
	}
	return &MemoryRunLog{max: max}
}

func (m *MemoryRunLog) Record(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	if len(m.runs) > m.max {
		m.runs = m.runs[len(m.runs)-m.max:]
	}
	return nil
}

// Recent returns up to n runs, newest first.
func (m *MemoryRunLog) Recent(_ context.Context, n int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Run, 0, n)
	for i := len(m.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// MongoRunLog stores runs in the analysis_runs collection.
type MongoRunLog struct {
	coll *mongo.Collection
}

func NewMongoRunLog(client *mongo.Client, database string) *MongoRunLog {
	return &MongoRunLog{coll: client.Database(database).Collection("analysis_runs")}
}

func (m *MongoRunLog) Record(ctx context.Context, run Run) error {
	_, err := m.coll.InsertOne(ctx, run)
	return err
}

func (m *MongoRunLog) Recent(ctx context.Context, n int) ([]Run, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(n))
	cur, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var runs []Run
	if err := cur.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// OpenRunLog returns a Mongo-backed log when uri is set and an in-memory one
// keeping the last 50 runs otherwise. The returned func releases the client.
func OpenRunLog(ctx context.Context, uri, database string) (RunLog, func() error, error) {
	if uri == "" {
		slog.InfoContext(ctx, "Recording analysis runs in memory")
		return NewMemoryRunLog(50), func() error { return nil }, nil
	}
	client, err := mongox.Connect(ctx, uri)
	if err != nil {
		return nil, nil, err
	}
	return NewMongoRunLog(client, database), func() error { return mongox.Disconnect(client) }, nil
}
