package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Neruzzz/toolchat/internal/config"
	"github.com/Neruzzz/toolchat/internal/finance"
	"github.com/Neruzzz/toolchat/internal/httpx"
	"github.com/Neruzzz/toolchat/internal/llm"
	"github.com/Neruzzz/toolchat/internal/sandbox"
	"github.com/Neruzzz/toolchat/internal/web"
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

	runner, err := sandbox.New(cfg.Finance.Sandbox, sandbox.PythonPlotPolicy())
	if err != nil {
		log.Fatalf("sandbox error: %v", err)
	}
	runs, closeRuns, err := finance.OpenRunLog(ctx, cfg.Finance.MongoURI, cfg.Finance.MongoDatabase)
	if err != nil {
		log.Fatalf("run log error: %v", err)
	}
	defer func() { _ = closeRuns() }()

	var (
		gen     finance.CodeGenerator
		stories *finance.Storyteller
		opts    []web.Option
	)
	m, err := llm.New(ctx, cfg.Model)
	if err != nil {
		slog.Error("Model unavailable", "error", err)
		opts = append(opts, web.WithConfigError(err.Error()+". Please set it to use the agent."))
	} else {
		defer func() { _ = llm.Close(m) }()
		gen = finance.NewCrew(m)
		stories = finance.NewStoryteller(m)
	}

	analyst := finance.NewAnalyst(gen, runner, cfg.Finance.ArtifactsDir, runs)
	srv := web.NewServer(analyst, stories, opts...)

	if err := httpx.Serve(ctx, cfg.Finance.WebAddr, srv.Handler()); err != nil {
		log.Fatalf("http server error: %v", err)
	}
}
