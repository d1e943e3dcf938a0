// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/ThinkInAIXYZ/go-mcp/server"
	"github.com/ThinkInAIXYZ/go-mcp/transport"

	"mcp-food-log/internal/analysis"
	"mcp-food-log/internal/foodlog"
	"mcp-food-log/internal/models"
)

const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

type Config struct {
	// Transport is TransportHTTP (default) or TransportStdio.
	Transport string
	Host      string
	Port      int
	// BaseURL is the address MCP clients are told to post messages to.
	// Defaults to http://Host:Port.
	BaseURL string
	Goals   models.DailyGoals
}

// Analyzer turns an encoded photo into a nutrition estimate.
type Analyzer interface {
	AnalyzeJPEG(ctx context.Context, jpegData []byte) (*models.NutritionEstimate, error)
}

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type FoodLogServer struct {
	server     *server.Server
	sse        *transport.SSEHandler
	httpServer *http.Server
	foodLog    *foodlog.Log
	analyzer   Analyzer
	hub        *Hub
	tools      map[string]toolHandler
	config     *Config

	// ctx bounds tool calls arriving over MCP, which carry no context of
	// their own. Cancelled by Stop.
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

var errInvalidParams = errors.New("invalid parameters")

func NewFoodLogServer(cfg *Config, foodLog *foodlog.Log, analyzer Analyzer) (*FoodLogServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if foodLog == nil {
		return nil, fmt.Errorf("food log is required")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}

	s := &FoodLogServer{
		foodLog:  foodLog,
		analyzer: analyzer,
		hub:      NewHub(),
		config:   cfg,
	}

	var t transport.ServerTransport
	switch cfg.Transport {
	case TransportStdio:
		t = transport.NewStdioServerTransport()
	case "", TransportHTTP:
		var err error
		t, s.sse, err = transport.NewSSEServerTransportAndHandler(messageURL(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to create SSE transport: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	mcpServer, err := server.NewServer(t,
		server.WithServerInfo(protocol.Implementation{
			Name:    "food-log",
			Version: "1.0.0",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}
	s.server = mcpServer
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.registerTools()
	s.hub.Attach(foodLog)

	if s.sse != nil {
		s.httpServer = &http.Server{
			Addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler: s.Handler(),
		}
	}

	return s, nil
}

// messageURL is where SSE clients post their JSON-RPC messages.
func messageURL(cfg *Config) string {
	base := cfg.BaseURL
	if base == "" {
		host := cfg.Host
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "localhost"
		}
		base = "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	}
	return strings.TrimRight(base, "/") + "/message"
}

// Handler serves plain JSON tool calls on "/", MCP over SSE on /sse and
// /message, and change events on /events.
func (s *FoodLogServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHTTP)
	if s.sse != nil {
		mux.Handle("/sse", s.sse.HandleSSE())
		mux.Handle("/message", s.sse.HandleMessage())
	}
	mux.HandleFunc("/events", s.hub.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *FoodLogServer) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	handler, ok := s.tools[request.Name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown tool: %s", request.Name), http.StatusNotFound)
		return
	}

	result, err := handler(r.Context(), &request)
	if err != nil {
		log.Printf("[server] %s failed: %v", request.Name, err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("[server] failed to encode response: %v", err)
	}
}

// mcpHandler adapts h to go-mcp. Tool failures are reported in the result
// with IsError set so the calling model can see the reason.
func (s *FoodLogServer) mcpHandler(name string, h toolHandler) server.ToolHandlerFunc {
	return func(req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
		result, err := h(s.ctx, req)
		if err != nil {
			log.Printf("[server] %s failed: %v", name, err)
			return protocol.NewCallToolResult([]protocol.Content{
				protocol.TextContent{Type: "text", Text: err.Error()},
			}, true), nil
		}
		return result, nil
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidParams), errors.Is(err, analysis.ErrEncoding):
		return http.StatusBadRequest
	case errors.Is(err, foodlog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, analysis.ErrNoFoodDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrTransport),
		errors.Is(err, analysis.ErrHTTP),
		errors.Is(err, analysis.ErrEmptyResponse),
		errors.Is(err, analysis.ErrMalformedResponse),
		errors.Is(err, analysis.ErrSchema):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Start serves until Stop is called. With the stdio transport it serves
// stdin/stdout until stdin closes.
func (s *FoodLogServer) Start(ctx context.Context) error {
	if s.httpServer == nil {
		log.Printf("[server] serving MCP over stdio")
		return s.server.Run()
	}

	log.Printf("[server] listening on %s (MCP endpoint %s)", s.httpServer.Addr, messageURL(s.config))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *FoodLogServer) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.hub.Close()
		s.cancel()

		// The stdio transport cannot be shut down; the process exits instead.
		if s.httpServer == nil {
			return
		}
		// SSE streams stay open until the MCP server closes them, so this
		// must precede the HTTP shutdown.
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("failed to shut down MCP server: %w", shutdownErr)
		}
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	})
	return err
}

func (s *FoodLogServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
