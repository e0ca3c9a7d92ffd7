package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"invoice-agent/internal/app"
	"invoice-agent/internal/bootstrap"
	"invoice-agent/internal/config"
	"invoice-agent/internal/logging"
	"invoice-agent/internal/memory"
	"invoice-agent/internal/store"

	"go.uber.org/zap"
)

// verify-agent runs one classification and one chat turn against the live
// model with an in-memory gateway, so nothing is written to the database.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.OpenAIAPIKey == "" {
		fmt.Fprintln(os.Stderr, "OPENAI_API_KEY not set")
		os.Exit(1)
	}
	log, err := logging.New("verify-agent", cfg.LogLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	message := "Create an invoice for Acme Ltd: 3 hours of design at 80 each, due in 14 days."
	if len(os.Args) > 1 {
		message = strings.Join(os.Args[1:], " ")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg.NATSURL = ""
	a, err := bootstrap.New(ctx, cfg, log, bootstrap.Overrides{
		Gateway: store.NewMemory(),
		Memory:  memory.NewInProcess(cfg.MemoryTTL, nil),
	})
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	fmt.Printf("MESSAGE: %s\n\n", message)

	cls, err := a.Service.Classify(ctx, app.ClassifyRequest{Message: message, UserID: "verify-agent"})
	if err != nil {
		log.Fatal("classify failed", zap.Error(err))
	}
	dump("CLASSIFICATION", cls)

	start := time.Now()
	resp, err := a.Service.HandleMessage(ctx, app.ChatRequest{Message: message, UserID: "verify-agent"})
	if err != nil {
		log.Fatal("chat turn failed", zap.Error(err))
	}
	dump("RESPONSE", resp)
	fmt.Printf("elapsed: %s\n", time.Since(start).Round(time.Millisecond))

	if !resp.Success {
		os.Exit(1)
	}
}

func dump(title string, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%s: %v\n", title, err)
		return
	}
	fmt.Printf("%s:\n%s\n\n", title, b)
}
