package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ironsheep/easy-token-mcp/internal/assets"
	"github.com/ironsheep/easy-token-mcp/internal/editor"
	"github.com/ironsheep/easy-token-mcp/internal/entity"
	"github.com/ironsheep/easy-token-mcp/internal/settings"
	"github.com/ironsheep/easy-token-mcp/internal/storage"
	"github.com/ironsheep/easy-token-mcp/internal/throttle"
	"github.com/ironsheep/easy-token-mcp/internal/viewport"
)

var testNow = time.UnixMilli(1700000000000)

// createTestImage creates a solid PNG and returns its bytes.
func createTestImage(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

// queuedClock holds deferred colour changes until fire is called.
type queuedClock struct {
	mu    sync.Mutex
	queue []func()
}

type queuedTimer struct{}

func (queuedTimer) Stop() bool { return true }

func (c *queuedClock) after(d time.Duration, f func()) throttle.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, f)
	return queuedTimer{}
}

func (c *queuedClock) fire() {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.mu.Unlock()
	for _, f := range queue {
		f()
	}
}

type testEnv struct {
	server   *Server
	root     string
	entities *entity.Store
	clock    *queuedClock
}

// newTestServer builds a server over a temporary data directory holding
// uploads/goblin.png, with actor a1 (Goblin, npc) whose avatar is that
// file and a scene s1 with a linked token t1 and an unlinked token t2.
func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "uploads"), 0o755); err != nil {
		t.Fatalf("failed to create uploads: %v", err)
	}
	goblin := createTestImage(t, 120, 80, color.RGBA{0, 128, 0, 255})
	if err := os.WriteFile(filepath.Join(root, "uploads", "goblin.png"), goblin, 0o644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}

	store, err := settings.Open(filepath.Join(root, "settings.json"))
	if err != nil {
		t.Fatalf("settings.Open failed: %v", err)
	}

	ents := entity.NewStore(
		[]entity.Actor{{ID: "a1", Name: "Goblin", Type: "npc", Img: "uploads/goblin.png"}},
		[]entity.Scene{{ID: "s1", Tokens: []entity.Token{
			{ID: "t1", Name: "Goblin", ActorID: "a1", ActorLink: true},
			{ID: "t2", Name: "Goblin Scout", ActorID: "a1"},
		}}},
	)

	disk := storage.NewDisk(root)
	clock := &queuedClock{}
	srv := New(editor.Deps{
		Entities: ents,
		Uploader: disk,
		Textures: viewport.NewTextureLoader(disk.FS()),
		Now:      func() time.Time { return testNow },
		After:    clock.after,
		Logger:   log.New(io.Discard, "", 0),
	}, store, assets.NewResolver(nil))

	return &testEnv{server: srv, root: root, entities: ents, clock: clock}
}

// callTool runs a tools/call request through handleRequest.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// mustCall runs a tool, fails on an error response and decodes the text
// content into v.
func mustCall(t *testing.T, s *Server, name string, args map[string]interface{}, v interface{}) {
	t.Helper()

	resp := callTool(t, s, name, args)
	if resp.Error != nil {
		t.Fatalf("%s: unexpected error: %s: %v", name, resp.Error.Message, resp.Error.Data)
	}
	if v == nil {
		return
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("%s: result should be a map", name)
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("%s: result should have one content item", name)
	}
	text, ok := content[0]["text"].(string)
	if !ok {
		t.Fatalf("%s: content text should be a string", name)
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("%s: failed to decode result: %v", name, err)
	}
}

// openSession opens the editor for ref and returns the session id.
func openSession(t *testing.T, s *Server, ref string) string {
	t.Helper()
	var res EditorOpenResult
	mustCall(t, s, "token_editor_open", map[string]interface{}{"ref": ref}, &res)
	return res.SessionID
}
