package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/ironsheep/easy-token-mcp/internal/assets"
	"github.com/ironsheep/easy-token-mcp/internal/editor"
	"github.com/ironsheep/easy-token-mcp/internal/settings"
)

// Server handles MCP protocol communication
type Server struct {
	registry *editor.Registry
	settings *settings.Store
	assets   *assets.Resolver
	logger   *log.Logger

	// button is the sheet header entry point installed by the registry.
	button *editor.HeaderButton

	// outMu serializes writes: save notifications arrive from other
	// goroutines while responses are written.
	outMu   sync.Mutex
	encoder *json.Encoder
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// LogMessageParams is the payload of a notifications/message notification.
type LogMessageParams struct {
	Level  string      `json:"level"`
	Logger string      `json:"logger"`
	Data   interface{} `json:"data"`
}

// New creates a new MCP server instance. deps supply the editor sessions'
// collaborators; the settings store and asset resolver are also exposed
// through their own tools. Save notifications are forwarded to the client.
func New(deps editor.Deps, store *settings.Store, res *assets.Resolver) *Server {
	s := &Server{
		settings: store,
		assets:   res,
		logger:   deps.Logger,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	deps.Settings = store
	deps.Assets = res
	deps.Notifier = editor.NotifierFunc(s.notify)

	s.registry = editor.NewRegistry(deps)
	s.registry.Install(s)
	return s
}

// AddSheetHeaderButton records the editor entry point. token_editor_open
// acts as a click on it.
func (s *Server) AddSheetHeaderButton(b editor.HeaderButton) {
	s.button = &b
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from in and writes responses
// and notifications to out. Open sessions are closed when in ends.
func (s *Server) Serve(in io.Reader, out io.Writer) error {
	defer s.registry.CloseAll()

	scanner := bufio.NewScanner(in)
	// Dropped images arrive base64-encoded, so lines can be large.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	s.outMu.Lock()
	s.encoder = json.NewEncoder(out)
	s.outMu.Unlock()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Printf("Failed to parse request: %v", err)
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			s.write(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// write encodes one message. Messages are dropped before Serve starts.
func (s *Server) write(v interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.encoder == nil {
		return
	}
	if err := s.encoder.Encode(v); err != nil {
		s.logger.Printf("Failed to encode message: %v", err)
	}
}

// notify forwards a save notification to the client as a log message.
func (s *Server) notify(n editor.Notification) {
	s.logger.Printf("editor %s: %s", n.SessionID, n.Message)
	s.write(&MCPNotification{
		JSONRPC: "2.0",
		Method:  "notifications/message",
		Params: LogMessageParams{
			Level:  "info",
			Logger: "easy-token",
			Data:   n,
		},
	})
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools":   map[string]interface{}{},
				"logging": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "easy-token-mcp",
				"version": "0.1.0",
			},
		},
	}
}
