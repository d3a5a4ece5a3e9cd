package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ironsheep/easy-token-mcp/internal/assets"
	"github.com/ironsheep/easy-token-mcp/internal/editor"
	"github.com/ironsheep/easy-token-mcp/internal/export"
	"github.com/ironsheep/easy-token-mcp/internal/settings"
	"github.com/ironsheep/easy-token-mcp/internal/vec"
)

// Timeouts for calls that wait on background work.
const (
	loadTimeout = 30 * time.Second
	saveTimeout = 60 * time.Second
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "token_editor_open").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Looks up the editor session by id
//  4. Runs the session command, waiting for background work if asked
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Session lifecycle
	case "token_editor_open":
		return s.handleEditorOpen(args)
	case "token_editor_close":
		return s.handleEditorClose(args)
	case "token_editor_list":
		return s.handleEditorList(args)

	// Image input
	case "token_editor_load_image":
		return s.handleEditorLoadImage(args)

	// Interaction
	case "token_editor_pointer":
		return s.handleEditorPointer(args)
	case "token_editor_wheel":
		return s.handleEditorWheel(args)
	case "token_editor_set_zoom":
		return s.handleEditorSetZoom(args)

	// Appearance
	case "token_editor_set_border":
		return s.handleEditorSetBorder(args)
	case "token_editor_border_color":
		return s.handleEditorColor(args, (*editor.Session).BorderColor)
	case "token_editor_background_color":
		return s.handleEditorColor(args, (*editor.Session).BackgroundColor)
	case "token_editor_palette":
		return s.handleEditorPalette(args)
	case "token_editor_sample_color":
		return s.handleEditorSampleColor(args)

	// Output
	case "token_editor_state":
		return s.handleEditorState(args)
	case "token_editor_render":
		return s.handleEditorRender(args)
	case "token_editor_save":
		return s.handleEditorSave(args)

	// Assets and settings
	case "token_assets_list":
		return s.handleAssetsList(args)
	case "token_settings_get":
		return s.handleSettingsGet(args)
	case "token_settings_set":
		return s.handleSettingsSet(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

// session looks up the session named by the arguments.
func (s *Server) session(id string) (*editor.Session, error) {
	if id == "" {
		return nil, errors.New("session_id is required")
	}
	return s.registry.Get(id)
}

// stateResult is returned by commands that change the session.
func stateResult(sess *editor.Session) (interface{}, error) {
	return sess.State()
}

// === Session Lifecycle Handlers ===

type editorOpenArgs struct {
	Ref        string `json:"ref"`
	LoadAvatar bool   `json:"load_avatar"`
}

// EditorOpenResult describes an opened or focused editor.
type EditorOpenResult struct {
	SessionID string       `json:"session_id"`
	Focused   bool         `json:"focused"`
	AvatarErr string       `json:"avatar_error,omitempty"`
	State     editor.State `json:"state"`
}

func (s *Server) handleEditorOpen(args json.RawMessage) (interface{}, error) {
	var a editorOpenArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Ref == "" {
		return nil, errors.New("ref is required")
	}
	if s.button == nil {
		return nil, errors.New("editor is not installed")
	}

	sess, focused, err := s.button.OnClick(context.Background(), a.Ref)
	if err != nil {
		return nil, err
	}

	res := EditorOpenResult{SessionID: sess.ID(), Focused: focused}
	if a.LoadAvatar && !focused {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		if err := waitLoad(ctx, sess.LoadAvatar(ctx)); err != nil {
			res.AvatarErr = err.Error()
		}
	}

	st, err := sess.State()
	if err != nil {
		return nil, err
	}
	res.State = st
	return res, nil
}

func (s *Server) handleEditorClose(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := s.registry.Close(a.SessionID); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"session_id": a.SessionID,
		"closed":     true,
	}, nil
}

func (s *Server) handleEditorList(args json.RawMessage) (interface{}, error) {
	return map[string]interface{}{
		"sessions": s.registry.IDs(),
	}, nil
}

// === Image Input Handlers ===

type editorLoadImageArgs struct {
	SessionID string `json:"session_id"`
	Ref       string `json:"ref"`
	Data      string `json:"data"`
	Name      string `json:"name"`
}

func (s *Server) handleEditorLoadImage(args json.RawMessage) (interface{}, error) {
	var a editorLoadImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}

	src := editor.Source{Ref: a.Ref, Name: a.Name}
	if a.Data != "" {
		if a.Ref != "" {
			return nil, errors.New("give either ref or data, not both")
		}
		data, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image data: %w", err)
		}
		src.Data = data
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	if err := waitLoad(ctx, sess.LoadImage(ctx, src)); err != nil {
		return nil, err
	}
	return stateResult(sess)
}

// waitLoad waits for a load started by the session.
func waitLoad(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// === Interaction Handlers ===

type editorPointerArgs struct {
	SessionID string  `json:"session_id"`
	Action    string  `json:"action"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// PointerResult reports the drag state after a pointer event.
type PointerResult struct {
	SessionID string   `json:"session_id"`
	Action    string   `json:"action"`
	Hit       bool     `json:"hit,omitempty"`
	Dragging  bool     `json:"dragging"`
	Editor    vec.Vec2 `json:"editor_position"`
	Preview   vec.Vec2 `json:"preview_position"`
	Zoom      float64  `json:"zoom"`
}

func (s *Server) handleEditorPointer(args json.RawMessage) (interface{}, error) {
	var a editorPointerArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}

	p := vec.Vec2{X: a.X, Y: a.Y}
	res := PointerResult{SessionID: sess.ID(), Action: a.Action}
	switch a.Action {
	case "down":
		res.Hit, err = sess.PointerDown(p)
	case "move":
		err = sess.PointerMove(p)
	case "up":
		err = sess.PointerUp(p)
	default:
		return nil, fmt.Errorf("invalid action: %q (use down, move or up)", a.Action)
	}
	if err != nil {
		return nil, err
	}

	st, err := sess.State()
	if err != nil {
		return nil, err
	}
	res.Dragging = st.Dragging
	res.Editor = st.Editor.Position
	res.Preview = st.Preview.Position
	res.Zoom = st.Zoom
	return res, nil
}

type editorWheelArgs struct {
	SessionID string  `json:"session_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	DeltaY    float64 `json:"delta_y"`
}

func (s *Server) handleEditorWheel(args json.RawMessage) (interface{}, error) {
	var a editorWheelArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	zoom, err := sess.Wheel(vec.Vec2{X: a.X, Y: a.Y}, a.DeltaY)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"zoom": zoom}, nil
}

type editorSetZoomArgs struct {
	SessionID string   `json:"session_id"`
	Zoom      *float64 `json:"zoom"`
}

func (s *Server) handleEditorSetZoom(args json.RawMessage) (interface{}, error) {
	var a editorSetZoomArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Zoom == nil {
		return nil, errors.New("zoom is required")
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	zoom, err := sess.SetZoom(*a.Zoom)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"zoom": zoom}, nil
}

// === Appearance Handlers ===

type editorSetBorderArgs struct {
	SessionID string `json:"session_id"`
	Border    string `json:"border"`
}

func (s *Server) handleEditorSetBorder(args json.RawMessage) (interface{}, error) {
	var a editorSetBorderArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.SetBorder(a.Border); err != nil {
		return nil, err
	}
	return stateResult(sess)
}

type editorColorArgs struct {
	SessionID string `json:"session_id"`
	Color     string `json:"color"`
}

func (s *Server) handleEditorColor(args json.RawMessage, apply func(*editor.Session, string) error) (interface{}, error) {
	var a editorColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := apply(sess, a.Color); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"color":     strings.ToLower(a.Color),
		"scheduled": true,
	}, nil
}

type editorPaletteArgs struct {
	SessionID string `json:"session_id"`
	Count     int    `json:"count"`
}

func (s *Server) handleEditorPalette(args json.RawMessage) (interface{}, error) {
	var a editorPaletteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Count == 0 {
		a.Count = 5
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	colors, err := sess.Palette(a.Count)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"colors": colors}, nil
}

type editorSampleColorArgs struct {
	SessionID string  `json:"session_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

func (s *Server) handleEditorSampleColor(args json.RawMessage) (interface{}, error) {
	var a editorSampleColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.SampleColor(vec.Vec2{X: a.X, Y: a.Y})
}

// === Output Handlers ===

func (s *Server) handleEditorState(args json.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return stateResult(sess)
}

type editorRenderArgs struct {
	SessionID string `json:"session_id"`
	View      string `json:"view"`
	Grid      int    `json:"grid"`
}

// RenderResult carries a rendered view as base64-encoded image data.
type RenderResult struct {
	View     string `json:"view"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

func (s *Server) handleEditorRender(args json.RawMessage) (interface{}, error) {
	var a editorRenderArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.View == "" {
		a.View = string(editor.ViewStage)
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	enc, err := sess.Render(editor.View(a.View), a.Grid)
	if err != nil {
		return nil, err
	}
	return RenderResult{
		View:     a.View,
		Width:    enc.Width,
		Height:   enc.Height,
		MimeType: enc.MimeType,
		Data:     enc.Base64(),
	}, nil
}

type editorSaveArgs struct {
	SessionID string `json:"session_id"`
	What      string `json:"what"`
	Wait      *bool  `json:"wait"`
}

// SaveResponse lists the outcome of each started save.
type SaveResponse struct {
	SessionID string              `json:"session_id"`
	Started   int                 `json:"started"`
	Closed    bool                `json:"closed"`
	Saved     []editor.SaveResult `json:"saved,omitempty"`
	Errors    []string            `json:"errors,omitempty"`
	Skipped   bool                `json:"skipped,omitempty"`
}

func (s *Server) handleEditorSave(args json.RawMessage) (interface{}, error) {
	var a editorSaveArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.What == "" {
		a.What = "all"
	}
	wait := a.Wait == nil || *a.Wait

	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}

	// Saves outlive the request.
	ctx := context.Background()
	var jobs []*editor.SaveJob
	switch a.What {
	case string(settings.Avatar):
		if j := sess.SaveAvatar(ctx); j != nil {
			jobs = append(jobs, j)
		}
	case string(settings.Token):
		if j := sess.SaveToken(ctx); j != nil {
			jobs = append(jobs, j)
		}
	case "all":
		jobs = sess.SaveAll(ctx)
	default:
		return nil, fmt.Errorf("invalid what: %q (use avatar, token or all)", a.What)
	}

	res := SaveResponse{
		SessionID: sess.ID(),
		Started:   len(jobs),
		Closed:    sess.Closed(),
		Skipped:   len(jobs) == 0,
	}
	if !wait {
		return res, nil
	}

	wctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	for _, j := range jobs {
		saved, err := j.Wait(wctx)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.Saved = append(res.Saved, saved)
	}
	if len(jobs) > 0 && len(res.Saved) == 0 {
		return nil, fmt.Errorf("save failed: %s", strings.Join(res.Errors, "; "))
	}
	return res, nil
}

// === Asset and Settings Handlers ===

func (s *Server) handleAssetsList(args json.RawMessage) (interface{}, error) {
	return map[string]interface{}{
		"borders":        s.assets.Borders(),
		"assets":         s.assets.Names(),
		"default_border": assets.DefaultBorder,
		"formats":        export.Formats,
	}, nil
}

// SettingsResult is the settings with the resolved directory table.
type SettingsResult struct {
	Settings    settings.Settings    `json:"settings"`
	Directories []settings.Directory `json:"directories"`
	Path        string               `json:"path"`
}

func (s *Server) settingsResult(st settings.Settings) SettingsResult {
	return SettingsResult{
		Settings:    st,
		Directories: st.Directories(),
		Path:        s.settings.Path(),
	}
}

func (s *Server) handleSettingsGet(args json.RawMessage) (interface{}, error) {
	return s.settingsResult(s.settings.Get()), nil
}

type settingsSetArgs struct {
	Source       *string                           `json:"source"`
	Buckets      []string                          `json:"buckets"`
	World        *string                           `json:"world"`
	ActorTypes   []string                          `json:"actor_types"`
	AvatarFormat *string                           `json:"avatar_format"`
	TokenFormat  *string                           `json:"token_format"`
	JPEGQuality  *int                              `json:"jpeg_quality"`
	WebPQuality  *int                              `json:"webp_quality"`
	Paths        map[string]settings.CategoryPaths `json:"paths"`
}

func (s *Server) handleSettingsSet(args json.RawMessage) (interface{}, error) {
	var a settingsSetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	for _, f := range []*string{a.AvatarFormat, a.TokenFormat} {
		if f == nil {
			continue
		}
		if _, err := export.ParseFormat(*f); err != nil {
			return nil, err
		}
	}

	st, err := s.settings.Update(func(st *settings.Settings) {
		if a.Source != nil {
			st.Source = settings.Source(*a.Source)
		}
		if a.Buckets != nil {
			st.Buckets = a.Buckets
		}
		if a.World != nil {
			st.World = *a.World
		}
		if a.ActorTypes != nil {
			st.ActorTypes = a.ActorTypes
		}
		if a.AvatarFormat != nil {
			st.AvatarFormat = *a.AvatarFormat
		}
		if a.TokenFormat != nil {
			st.TokenFormat = *a.TokenFormat
		}
		if a.JPEGQuality != nil {
			st.JPEGQuality = *a.JPEGQuality
		}
		if a.WebPQuality != nil {
			st.WebPQuality = *a.WebPQuality
		}
	})
	if err != nil {
		return nil, err
	}

	if a.Paths != nil {
		st, err = s.settings.SetDirectories(st.Source, a.Paths)
		if err != nil {
			return nil, err
		}
	}
	return s.settingsResult(st), nil
}
