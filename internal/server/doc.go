// Package server implements the MCP (Model Context Protocol) server for the
// token editor.
//
// This package provides a JSON-RPC 2.0 server that exposes editor sessions
// through the MCP protocol. A client opens an editor for an actor or placed
// token, feeds it an image and pointer input, and saves the cropped avatar
// and the bordered token image to storage.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Session lifecycle:
//   - token_editor_open: Open or focus the editor for an actor or token
//   - token_editor_close: Discard an editor
//   - token_editor_list: List open editors
//
// Image input and interaction:
//   - token_editor_load_image: Load a dropped file, path, URL or data URI
//   - token_editor_pointer: Drag the image
//   - token_editor_wheel: Zoom one step at the pointer
//   - token_editor_set_zoom: Zoom to a value
//
// Appearance:
//   - token_editor_set_border: Swap the border asset
//   - token_editor_border_color: Tint the border
//   - token_editor_background_color: Tint the background
//   - token_editor_palette: Dominant colours of the image
//   - token_editor_sample_color: Eyedropper on the stage
//
// Output:
//   - token_editor_state: Inspect the editor
//   - token_editor_render: Render the stage or token as PNG, optionally gridded
//   - token_editor_save: Upload the avatar, the token or both
//
// Assets and settings:
//   - token_assets_list: List borders and overlays
//   - token_settings_get: Read upload settings
//   - token_settings_set: Change upload settings
//
// # Notifications
//
// Every successful upload emits one notifications/message notification
// whose data names the session and the saved file. Notifications come from
// save goroutines, so all output goes through one mutex-guarded encoder.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(deps, settingsStore, assetResolver)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
