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
	"github.com/Neruzzz/toolchat/internal/finance"
	"github.com/Neruzzz/toolchat/internal/httpx"
	"github.com/Neruzzz/toolchat/internal/llm"
	"github.com/Neruzzz/toolchat/internal/mcpx"
	"github.com/Neruzzz/toolchat/internal/repl"
	"github.com/Neruzzz/toolchat/internal/sandbox"
	"github.com/Neruzzz/toolchat/internal/tools"
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

	svc := finance.Services{
		Market:   finance.NewMarket(cfg.Finance.ChartURL),
		Holidays: finance.NewHolidays(cfg.Finance.HolidaysURL),
		FX:       finance.NewFX(""),
	}

	m, err := llm.New(ctx, cfg.Model)
	if err != nil {
		slog.Warn("Failed to initialize financial analyst, analyze_stock_and_plot is a stub", "error", err)
	} else {
		defer func() { _ = llm.Close(m) }()
		svc.Analyst = finance.NewAnalyst(finance.NewCrew(m), runner, cfg.Finance.ArtifactsDir, runs)
	}

	reg, err := tools.NewRegistry(finance.Tools(svc)...)
	if err != nil {
		log.Fatalf("tool registry error: %v", err)
	}
	server := mcpx.NewServer("finance", reg)

	fmt.Fprintln(os.Stderr, "Available tools:")
	repl.ListTools(os.Stderr, reg.All())
	slog.Info("Starting Financial Analyst MCP Server...", "transport", cfg.Finance.Transport, "sandbox", runner.Mode())

	switch cfg.Finance.Transport {
	case "http":
		err = httpx.Serve(ctx, cfg.Finance.Addr, mcpx.Handler(server))
	default:
		err = mcpx.ServeStdio(ctx, server)
	}
	if err != nil && ctx.Err() == nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
