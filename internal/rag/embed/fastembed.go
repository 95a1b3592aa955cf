//go:build fastembed

package embed

import (
	"context"
	"fmt"
	"runtime"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbed runs the all-MiniLM-L6-v2 ONNX model locally.
type FastEmbed struct {
	m  *fastembed.FlagEmbedding
	bs int
}

func NewFastEmbed(_ context.Context, opt *Options) (Embedder, error) {
	if opt == nil {
		opt = &Options{}
	}
	m, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:     fastembed.AllMiniLML6V2,
		CacheDir:  opt.CacheDir,
		MaxLength: opt.MaxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("load fastembed model: %w", err)
	}
	bs := 64
	if opt.BatchSize > 0 {
		bs = opt.BatchSize
	}
	if bs > 4*runtime.GOMAXPROCS(0) {
		bs = 4 * runtime.GOMAXPROCS(0)
	}
	return &FastEmbed{m: m, bs: bs}, nil
}

func (e *FastEmbed) Dim() int { return Dim }

func (e *FastEmbed) Close() error {
	if e.m != nil {
		e.m.Destroy()
	}
	return nil
}

func (e *FastEmbed) Embed(_ context.Context, text string) ([]float32, error) {
	return e.m.QueryEmbed(text)
}

func (e *FastEmbed) EmbedPassages(_ context.Context, docs []string) ([][]float32, error) {
	out, err := e.m.PassageEmbed(docs, e.bs)
	if err != nil {
		return nil, fmt.Errorf("passage embed: %w", err)
	}
	return out, nil
}
