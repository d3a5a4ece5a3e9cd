package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// sessionIDProperty is shared by every tool that acts on an open editor.
var sessionIDProperty = map[string]interface{}{
	"type":        "string",
	"description": "Editor session id returned by token_editor_open (e.g. easy-token-editor-<actorId>)",
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Session lifecycle
		{
			Name:        "token_editor_open",
			Description: "Open the token editor for an actor or placed token, as the Easy-Token sheet button does. If an editor for the same target is already open it is focused and returned instead.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ref": map[string]interface{}{
						"type":        "string",
						"description": "Actor id, or Scene.<sceneId>.Token.<tokenId> for a placed token. Linked tokens open their actor.",
					},
					"load_avatar": map[string]interface{}{
						"type":        "boolean",
						"description": "Load the actor's current avatar into a newly opened editor. Default false",
						"default":     false,
					},
				},
				"required": []string{"ref"},
			},
		},
		{
			Name:        "token_editor_close",
			Description: "Close an editor session without saving. Pending colour changes are discarded; saves already started still finish.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "token_editor_list",
			Description: "List the ids of all open editor sessions.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Image input
		{
			Name:        "token_editor_load_image",
			Description: "Load the image to crop, as if it was dropped on the editor. Give a storage path, URL or data URI in ref, or base64 file bytes in data. The image resets to zoom 1 at the centre. A decode failure leaves the previous image in place.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"ref": map[string]interface{}{
						"type":        "string",
						"description": "Storage-relative path, http(s) URL or data: URI",
					},
					"data": map[string]interface{}{
						"type":        "string",
						"description": "Base64-encoded image file (PNG, JPEG, GIF, BMP, TIFF or WebP)",
					},
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Optional file name of the dropped image",
					},
				},
				"required": []string{"session_id"},
			},
		},

		// Interaction
		{
			Name:        "token_editor_pointer",
			Description: "Send a pointer event in stage pixels (1024x768 by default). A down on the image starts a drag, move pans the editor and preview images together, up anywhere ends the drag.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"action": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"down", "move", "up"},
						"description": "Pointer event type",
					},
					"x": map[string]interface{}{
						"type":        "number",
						"description": "Stage X coordinate",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Stage Y coordinate",
					},
				},
				"required": []string{"session_id", "action", "x", "y"},
			},
		},
		{
			Name:        "token_editor_wheel",
			Description: "Zoom one step (0.05) at a stage point, keeping the image point under it fixed. Negative delta_y zooms in; zero or positive zooms out. Zoom never drops below 0.1.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"x": map[string]interface{}{
						"type":        "number",
						"description": "Stage X coordinate of the pointer",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Stage Y coordinate of the pointer",
					},
					"delta_y": map[string]interface{}{
						"type":        "number",
						"description": "Wheel delta; only the sign is used",
					},
				},
				"required": []string{"session_id", "x", "y", "delta_y"},
			},
		},
		{
			Name:        "token_editor_set_zoom",
			Description: "Set the zoom directly, anchored at the last pointer position or the editor centre. Values below 0.1 are clamped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"zoom": map[string]interface{}{
						"type":        "number",
						"description": "Zoom factor, 1 = native size",
					},
				},
				"required": []string{"session_id", "zoom"},
			},
		},

		// Appearance
		{
			Name:        "token_editor_set_border",
			Description: "Swap the token border. Use token_assets_list for the available names.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"border": map[string]interface{}{
						"type":        "string",
						"description": "Border asset name (e.g. token_002) or file name",
					},
				},
				"required": []string{"session_id", "border"},
			},
		},
		{
			Name:        "token_editor_border_color",
			Description: "Tint the token border. The change applies 50ms after the call, like a colour picker being dragged.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Hex colour, #rrggbb or #rgb",
					},
				},
				"required": []string{"session_id", "color"},
			},
		},
		{
			Name:        "token_editor_background_color",
			Description: "Tint the token background. The change applies 50ms after the call.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Hex colour, #rrggbb or #rgb",
					},
				},
				"required": []string{"session_id", "color"},
			},
		},

		{
			Name:        "token_editor_palette",
			Description: "List the dominant colours of the loaded image, most common first, to choose matching border and background tints.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"count": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of colours to return. Default 5",
						"default":     5,
					},
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "token_editor_sample_color",
			Description: "Pick the colour displayed at a stage point, like an eyedropper.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"x": map[string]interface{}{
						"type":        "number",
						"description": "Stage X coordinate",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Stage Y coordinate",
					},
				},
				"required": []string{"session_id", "x", "y"},
			},
		},

		// Output
		{
			Name:        "token_editor_state",
			Description: "Get the editor state: target, image, zoom, image positions, border, colours and layout.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "token_editor_render",
			Description: "Render the editor as a base64-encoded PNG: the whole stage with its preview, or the token composite at 256x256. A grid overlay helps choose pointer coordinates.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"view": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"stage", "token"},
						"description": "View to render. Default stage",
						"default":     "stage",
					},
					"grid": map[string]interface{}{
						"type":        "integer",
						"description": "Draw a labelled coordinate grid with this spacing in pixels (e.g. 100). Default 0, no grid",
						"default":     0,
					},
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "token_editor_save",
			Description: "Export and upload the avatar (full image), the token (256x256 composite) or both. Saving both closes the editor. Each successful upload updates the actor or token image and sends a notification. With no image loaded nothing is saved.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"what": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"avatar", "token", "all"},
						"description": "What to save. Default all",
						"default":     "all",
					},
					"wait": map[string]interface{}{
						"type":        "boolean",
						"description": "Wait for the uploads to finish. Default true",
						"default":     true,
					},
				},
				"required": []string{"session_id"},
			},
		},

		// Assets and settings
		{
			Name:        "token_assets_list",
			Description: "List the border and overlay assets and the supported export formats.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "token_settings_get",
			Description: "Get the upload settings and the resolved upload directory for each actor type.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "token_settings_set",
			Description: "Change upload settings. Only the given fields change; paths replaces the whole directory table and empty entries fall back to the defaults.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"data", "s3"},
						"description": "Storage source",
					},
					"buckets": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "S3 buckets; the first is used",
					},
					"world": map[string]interface{}{
						"type":        "string",
						"description": "World id used in default data paths",
					},
					"actor_types": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Actor types shown in the directory table",
					},
					"avatar_format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"webp", "jpeg", "png"},
						"description": "Avatar export format. Default webp",
					},
					"token_format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"webp", "jpeg", "png"},
						"description": "Token export format. Default webp",
					},
					"jpeg_quality": map[string]interface{}{
						"type":        "integer",
						"description": "JPEG quality 1-100",
					},
					"webp_quality": map[string]interface{}{
						"type":        "integer",
						"description": "WebP quality 1-100",
					},
					"paths": map[string]interface{}{
						"type":        "object",
						"description": "Per actor type upload directories: {\"npc\": {\"avatar\": \"...\", \"token\": \"...\"}}",
						"additionalProperties": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"avatar": map[string]interface{}{"type": "string"},
								"token":  map[string]interface{}{"type": "string"},
							},
						},
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
