package server

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"strings"
	"testing"

	"github.com/ironsheep/easy-token-mcp/internal/editor"
)

func TestNew(t *testing.T) {
	env := newTestServer(t)
	s := env.server
	if s.registry == nil {
		t.Fatal("New() did not create the session registry")
	}
	if s.button == nil {
		t.Fatal("New() did not install the sheet header button")
	}
	if s.button.Label != "Easy-Token" || s.button.Class != "lvk-easy-token" {
		t.Errorf("button: got %+v", *s.button)
	}
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"no id",
			`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			nil,
			"notifications/initialized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestHandleRequest_Initialize(t *testing.T) {
	s := newTestServer(t).server
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: "init-1", Method: "initialize"})

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if resp.ID != "init-1" {
		t.Errorf("ID: got %v, want init-1", resp.ID)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}

	caps, ok := result["capabilities"].(map[string]interface{})
	if !ok {
		t.Fatal("capabilities should be a map")
	}
	if _, ok := caps["logging"]; !ok {
		t.Error("server should advertise logging for save notifications")
	}

	serverInfo, ok := result["serverInfo"].(map[string]interface{})
	if !ok {
		t.Fatal("serverInfo should be a map")
	}
	if serverInfo["name"] != "easy-token-mcp" {
		t.Errorf("serverInfo.name: got %v", serverInfo["name"])
	}
}

func TestHandleRequest_Routing(t *testing.T) {
	s := newTestServer(t).server

	tests := []struct {
		name     string
		method   string
		wantNil  bool
		wantCode int
	}{
		{"ping", "ping", false, 0},
		{"tools list", "tools/list", false, 0},
		{"initialized notification", "notifications/initialized", true, 0},
		{"unknown method", "nonexistent/method", false, -32601},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 7, Method: tt.method})
			if tt.wantNil {
				if resp != nil {
					t.Errorf("%s should not get a response", tt.method)
				}
				return
			}
			if resp == nil {
				t.Fatal("handleRequest returned nil")
			}
			if tt.wantCode == 0 && resp.Error != nil {
				t.Fatalf("Unexpected error: %v", resp.Error)
			}
			if tt.wantCode != 0 && (resp.Error == nil || resp.Error.Code != tt.wantCode) {
				t.Errorf("Error: got %+v, want code %d", resp.Error, tt.wantCode)
			}
			if resp.ID != 7 {
				t.Errorf("ID: got %v, want 7", resp.ID)
			}
		})
	}
}

// readMessages splits Serve output into decoded JSON objects.
func readMessages(t *testing.T, out *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var msgs []map[string]interface{}
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("output line is not JSON: %v", err)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func toolCallLine(t *testing.T, id int, name string, args map[string]interface{}) string {
	t.Helper()
	line, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params":  map[string]interface{}{"name": name, "arguments": args},
	})
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	return string(line)
}

func TestServe_RespondsAndClosesSessions(t *testing.T) {
	env := newTestServer(t)

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`not json`,
		``,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		toolCallLine(t, 2, "token_editor_open", map[string]interface{}{"ref": "a1"}),
	}, "\n")

	var out bytes.Buffer
	if err := env.server.Serve(strings.NewReader(in), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	msgs := readMessages(t, &out)
	if len(msgs) != 2 {
		t.Fatalf("messages: got %d, want 2", len(msgs))
	}
	if msgs[0]["id"] != float64(1) || msgs[1]["id"] != float64(2) {
		t.Errorf("response ids: got %v and %v", msgs[0]["id"], msgs[1]["id"])
	}
	if _, ok := msgs[1]["error"]; ok {
		t.Errorf("open failed: %v", msgs[1]["error"])
	}

	if ids := env.server.registry.IDs(); len(ids) != 0 {
		t.Errorf("sessions left open after input ended: %v", ids)
	}
}

func TestServe_SaveSendsNotification(t *testing.T) {
	env := newTestServer(t)
	data := base64.StdEncoding.EncodeToString(createTestImage(t, 64, 64, color.RGBA{255, 0, 0, 255}))
	id := "easy-token-editor-a1"

	in := strings.Join([]string{
		toolCallLine(t, 1, "token_editor_open", map[string]interface{}{"ref": "a1"}),
		toolCallLine(t, 2, "token_editor_load_image", map[string]interface{}{"session_id": id, "data": data}),
		toolCallLine(t, 3, "token_editor_save", map[string]interface{}{"session_id": id, "what": "avatar"}),
	}, "\n")

	var out bytes.Buffer
	if err := env.server.Serve(strings.NewReader(in), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	var notes []map[string]interface{}
	responses := 0
	for _, m := range readMessages(t, &out) {
		if m["method"] == "notifications/message" {
			notes = append(notes, m)
			continue
		}
		responses++
		if e, ok := m["error"]; ok {
			t.Errorf("response %v failed: %v", m["id"], e)
		}
	}
	if responses != 3 {
		t.Errorf("responses: got %d, want 3", responses)
	}
	if len(notes) != 1 {
		t.Fatalf("notifications: got %d, want 1", len(notes))
	}

	params, ok := notes[0]["params"].(map[string]interface{})
	if !ok {
		t.Fatal("notification params should be an object")
	}
	payload, ok := params["data"].(map[string]interface{})
	if !ok {
		t.Fatal("notification data should be an object")
	}
	if payload["file"] != "goblin.avatar.webp" {
		t.Errorf("notification file: got %v, want goblin.avatar.webp", payload["file"])
	}
	if payload["session_id"] != id {
		t.Errorf("notification session: got %v, want %s", payload["session_id"], id)
	}
}

func TestNotify_BeforeServeIsDropped(t *testing.T) {
	s := newTestServer(t).server
	// Must not panic without an encoder.
	s.notify(editor.Notification{SessionID: "x", File: "f.png", Message: "saved"})
}

func TestMCPNotification_Marshal(t *testing.T) {
	n := MCPNotification{
		JSONRPC: "2.0",
		Method:  "notifications/message",
		Params: LogMessageParams{
			Level:  "info",
			Logger: "easy-token",
			Data:   editor.Notification{File: "goblin.token.png"},
		},
	}

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if bytes.Contains(data, []byte(`"id"`)) {
		t.Error("notifications must not carry an id")
	}
	if !bytes.Contains(data, []byte(`"file":"goblin.token.png"`)) {
		t.Errorf("payload missing file: %s", data)
	}
}
