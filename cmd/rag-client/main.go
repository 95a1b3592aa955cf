package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Neruzzz/toolchat/internal/chat"
	"github.com/Neruzzz/toolchat/internal/chat/assistant"
	"github.com/Neruzzz/toolchat/internal/config"
	"github.com/Neruzzz/toolchat/internal/httpx"
	"github.com/Neruzzz/toolchat/internal/llm"
	"github.com/Neruzzz/toolchat/internal/rag"
	"github.com/Neruzzz/toolchat/internal/repl"
	"github.com/Neruzzz/toolchat/internal/tools"
	"github.com/Neruzzz/toolchat/internal/websearch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("TOOLCHAT_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	cfg.SetupLogging(os.Stderr)

	shutdown := httpx.Setup(ctx, cfg.Telemetry)
	defer func() { _ = shutdown(context.Background()) }()

	m, err := llm.New(ctx, cfg.Model)
	if err != nil {
		log.Fatalf("model error: %v", err)
	}
	defer func() { _ = llm.Close(m) }()

	retriever, err := rag.Open(ctx, rag.Options{
		Collection:   cfg.RAG.Collection,
		Backend:      cfg.RAG.Backend,
		LocalPath:    cfg.RAG.LocalPath,
		QdrantURL:    cfg.RAG.QdrantURL,
		QdrantAPIKey: cfg.RAG.QdrantAPIKey,
		Embedder:     cfg.RAG.Embedder,
		CacheDir:     cfg.RAG.CacheDir,
		Limit:        cfg.RAG.Limit,
	})
	if err != nil {
		slog.Warn("Failed to initialize RAG components", "error", err)
	}

	search := websearch.New(websearch.Config{
		APIKey:   cfg.Search.APIKey,
		Endpoint: cfg.Search.Endpoint,
		Num:      cfg.Search.Num,
		Timeout:  cfg.Search.Timeout,
	})
	reg, err := tools.NewRegistry(rag.RetrievalTool(retriever), websearch.Tool(search))
	if err != nil {
		log.Fatalf("tool registry error: %v", err)
	}

	var closers []func() error
	if retriever != nil {
		closers = append(closers, retriever.Close)
	}
	session := chat.NewSession(reg, closers...)
	defer func() { _ = session.Close() }()

	a := assistant.New(m,
		assistant.WithSystemPrompt(cfg.Assistant.SystemPrompt),
		assistant.WithMaxToolCalls(cfg.Assistant.MaxToolCalls),
		assistant.WithTemperature(cfg.Model.Temperature),
		assistant.WithObserver(repl.Printer{W: os.Stdout}),
	)

	fmt.Println("RAG client started. Type 'exit' to quit.")
	r := repl.New(a, session, os.Stdin, os.Stdout, repl.Options{})
	if err := r.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("repl error: %v", err)
	}
}
