package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Neruzzz/toolchat/internal/config"
	"github.com/Neruzzz/toolchat/internal/httpx"
	"github.com/Neruzzz/toolchat/internal/mcpx"
	"github.com/Neruzzz/toolchat/internal/people"
	"github.com/Neruzzz/toolchat/internal/repl"
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

	store := people.NewStore(cfg.People.DBPath)
	if err := store.Init(ctx); err != nil {
		log.Fatalf("database init error: %v", err)
	}
	slog.Info("✅ Database initialized", "path", store.Path())

	reg, err := tools.NewRegistry(people.Tools(store)...)
	if err != nil {
		log.Fatalf("tool registry error: %v", err)
	}
	server := mcpx.NewServer("people", reg)

	line := strings.Repeat("=", 70)
	fmt.Println(line)
	fmt.Printf("🚀 Starting MCP Tools Server on http://%s%s\n", cfg.People.Addr, mcpx.Endpoint)
	fmt.Println(line)
	fmt.Println("\nAvailable tools:")
	repl.ListTools(os.Stdout, reg.All())
	fmt.Println("\nPress Ctrl+C to stop")
	fmt.Println(line)

	if err := httpx.Serve(ctx, cfg.People.Addr, mcpx.Handler(server)); err != nil {
		log.Fatalf("http server error: %v", err)
	}
}
