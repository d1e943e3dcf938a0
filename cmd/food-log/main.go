// cmd/food-log/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mcp-food-log/internal/analysis"
	"mcp-food-log/internal/server"
)

var (
	transport = flag.String("transport", server.TransportHTTP, "Transport mode: http (MCP over SSE plus JSON tool calls) or stdio")
	port      = flag.Int("port", 8012, "Port for HTTP transport")
	host      = flag.String("host", "0.0.0.0", "Host address")
	address   = flag.String("address", "", "Address (alias for host)")
	baseURL   = flag.String("base-url", "", "Public URL advertised to MCP clients (defaults to http://host:port)")
	dbPath    = flag.String("db-path", "", "SQLite database path (empty keeps the log in memory)")
	envFile   = flag.String("env-file", ".env", "Optional .env file to load")
	version   = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("mcp-food-log version 1.0.0")
		os.Exit(0)
	}

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load %s: %v", *envFile, err)
	}

	hostAddr := *host
	if *address != "" {
		hostAddr = *address
	}

	goals, err := goalsFromEnv()
	if err != nil {
		log.Fatalf("Invalid goal configuration: %v", err)
	}

	analysisCfg, err := analysisConfigFromEnv()
	if err != nil {
		log.Fatalf("Invalid analysis configuration: %v", err)
	}

	foodLog, closeStore, err := openFoodLog(*dbPath)
	if err != nil {
		log.Fatalf("Failed to load food log: %v", err)
	}
	defer closeStore()
	log.Printf("Food log ready with %d entries", foodLog.Len())

	config := &server.Config{
		Transport: *transport,
		Host:      hostAddr,
		Port:      *port,
		BaseURL:   *baseURL,
		Goals:     goals,
	}

	srv, err := server.NewFoodLogServer(config, foodLog, analysis.NewClient(analysisCfg))
	if err != nil {
		_ = closeStore()
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting food log server (%s transport)", *transport)
		errCh <- srv.Start(ctx)
	}()

	select {
	case <-sigCh:
		log.Println("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			log.Printf("Server error: %v", err)
		}
	}

	log.Println("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
