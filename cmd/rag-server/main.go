package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Neruzzz/toolchat/internal/config"
	"github.com/Neruzzz/toolchat/internal/httpx"
	"github.com/Neruzzz/toolchat/internal/mcpx"
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
	// stdout carries the protocol on the stdio transport.
	cfg.SetupLogging(os.Stderr)

	shutdown := httpx.Setup(ctx, cfg.Telemetry)
	defer func() { _ = shutdown(context.Background()) }()

	slog.Info("Initializing RAG components...")
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
	} else {
		slog.Info("RAG components initialized.")
		defer func() { _ = retriever.Close() }()
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
	server := mcpx.NewServer("rag", reg)

	fmt.Fprintln(os.Stderr, "Available tools:")
	repl.ListTools(os.Stderr, reg.All())

	switch cfg.RAG.Transport {
	case "http":
		slog.Info("Starting MCP Server over HTTP", "addr", cfg.RAG.Addr, "endpoint", mcpx.Endpoint)
		err = httpx.Serve(ctx, cfg.RAG.Addr, mcpx.Handler(server))
	default:
		slog.Info("Starting MCP Server on stdio...")
		err = mcpx.ServeStdio(ctx, server)
	}
	if err != nil && ctx.Err() == nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
