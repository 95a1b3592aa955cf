package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Neruzzz/toolchat/internal/chat"
	"github.com/Neruzzz/toolchat/internal/chat/assistant"
	"github.com/Neruzzz/toolchat/internal/config"
	"github.com/Neruzzz/toolchat/internal/httpx"
	"github.com/Neruzzz/toolchat/internal/llm"
	"github.com/Neruzzz/toolchat/internal/mcpx"
	"github.com/Neruzzz/toolchat/internal/people"
	"github.com/Neruzzz/toolchat/internal/repl"
	"github.com/Neruzzz/toolchat/internal/tools"
)

var examples = []string{
	"Show me all people in the database",
	"Add a person named John, age 30, email john@example.com",
	"How many people are in the database?",
	"Find people older than 25",
	"Update person with ID 1, set age to 35",
	"Delete person with ID 2",
}

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("TOOLCHAT_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	cfg.SetupLogging(os.Stderr)

	shutdown := httpx.Setup(ctx, cfg.Telemetry)
	defer func() { _ = shutdown(context.Background()) }()

	line := strings.Repeat("=", 70)
	repl.Banner(os.Stdout, "toolchat", line, "🚀 Database Assistant with MCP", line)

	m, err := llm.New(ctx, cfg.Model)
	if err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
		fmt.Println("💡 Set the key as an environment variable, for example:")
		fmt.Println("   export GOOGLE_API_KEY='your-api-key-here'")
		return err
	}
	defer func() { _ = llm.Close(m) }()

	fmt.Printf("🔌 Connecting to MCP server at %s...\n", cfg.People.ServerURL)
	client, err := mcpx.Dial(ctx, "people-client", cfg.People.ServerURL)
	if err == nil {
		fmt.Println("📥 Fetching tools from server...")
	}
	var remote []tools.Tool
	if err == nil {
		remote, err = client.Tools(ctx)
	}
	if err != nil {
		fmt.Println("\n❌ Failed to connect to MCP server!")
		fmt.Printf("   Error: %v\n", err)
		fmt.Println("\n💡 Make sure your server is running:")
		fmt.Println("   Terminal 1: go run ./cmd/people-server")
		fmt.Println("   Terminal 2: go run ./cmd/people-client")
		if client != nil {
			_ = client.Close()
		}
		return err
	}

	reg, err := tools.NewRegistry(remote...)
	if err != nil {
		_ = client.Close()
		return err
	}
	fmt.Printf("\n✅ Connected! Loaded %d tools:\n", reg.Len())
	repl.ListTools(os.Stdout, reg.All())
	fmt.Println()

	session := chat.NewSession(reg, client.Close)
	defer func() { _ = session.Close() }()

	a := assistant.New(m,
		assistant.WithSystemPrompt(people.SystemPrompt),
		assistant.WithSystemPrompt(cfg.Assistant.SystemPrompt),
		assistant.WithMaxToolCalls(cfg.People.MaxToolCalls),
		assistant.WithTemperature(cfg.Model.Temperature),
		assistant.WithObserver(repl.Printer{W: os.Stdout}),
	)

	fmt.Println("\n📡 Testing model connection...")
	ready, err := a.Probe(ctx)
	if err != nil {
		fmt.Printf("❌ Model error: %v\n", err)
		fmt.Println("💡 Check your API key and internet connection")
		return err
	}
	fmt.Printf("✅ Model ready: %s\n\n", ready)

	fmt.Println(line)
	fmt.Println("✅ Ready! Ask me anything about the database.")
	fmt.Println(line)
	fmt.Println("\n💡 Example queries:")
	for _, e := range examples {
		fmt.Printf("   • %s\n", e)
	}
	fmt.Print("\n💬 Type 'exit' to quit\n\n")

	r := repl.New(a, session, os.Stdin, os.Stdout, repl.Options{ReplyPrefix: "🤖 Agent: ", Separator: true})
	if err := r.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
