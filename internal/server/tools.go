package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func noArgs() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Session
		{
			Name:        "editor_upload",
			Description: "Upload an image file for text detection and open it in the editor. Every detected region starts marked for blurring. Replaces any current session on success; on failure the current session is kept.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "editor_load",
			Description: "Open an image with regions that were already detected, skipping the upload service. Boxes are in natural image pixels.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_base64": map[string]interface{}{
						"type":        "string",
						"description": "Base64 image payload; a data: URL prefix is accepted",
					},
					"boxes": map[string]interface{}{
						"type":        "array",
						"description": "Detected regions in detection order",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"id": map[string]interface{}{"type": "integer", "description": "Detection id; defaults to the box position"},
								"x":  map[string]interface{}{"type": "integer", "description": "Left edge (>= 0)"},
								"y":  map[string]interface{}{"type": "integer", "description": "Top edge (>= 0)"},
								"w":  map[string]interface{}{"type": "integer", "description": "Width (> 0)"},
								"h":  map[string]interface{}{"type": "integer", "description": "Height (> 0)"},
							},
							"required": []string{"x", "y", "w", "h"},
						},
					},
				},
				"required": []string{"image_base64", "boxes"},
			},
		},
		{
			Name:        "editor_reset",
			Description: "Discard the current session and return to the upload screen.",
			InputSchema: noArgs(),
		},

		// Selection
		{
			Name:        "editor_toggle",
			Description: "Toggle one region between blur and keep, by its position in detection order.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"index": map[string]interface{}{
						"type":        "integer",
						"description": "Region index (0-based)",
					},
				},
				"required": []string{"index"},
			},
		},
		{
			Name:        "editor_click",
			Description: "Click the displayed image at a screen position. Toggles the topmost region under the point, if any.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x": map[string]interface{}{
						"type":        "number",
						"description": "X in displayed (screen) pixels",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Y in displayed (screen) pixels",
					},
				},
				"required": []string{"x", "y"},
			},
		},
		{
			Name:        "editor_select_all",
			Description: "Mark every region for blurring, or clear every mark.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"active": map[string]interface{}{
						"type":        "boolean",
						"description": "true to blur all regions, false to keep all",
					},
				},
				"required": []string{"active"},
			},
		},

		// Display
		{
			Name:        "editor_resize",
			Description: "Change the viewport the image is laid out in. The image shrinks to fit and never grows past its natural size; boxes are redrawn at the new scale.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"width": map[string]interface{}{
						"type":        "number",
						"description": "Viewport width in pixels (0 = unbounded)",
					},
					"height": map[string]interface{}{
						"type":        "number",
						"description": "Viewport height in pixels (0 = unbounded)",
					},
				},
				"required": []string{"width", "height"},
			},
		},
		{
			Name:        "editor_state",
			Description: "Report the editor state, the regions with their screen positions, and how many are marked for blurring.",
			InputSchema: noArgs(),
		},
		{
			Name:        "editor_preview",
			Description: "Render the displayed image with the region overlay and return it as base64-encoded PNG.",
			InputSchema: noArgs(),
		},

		// Export
		{
			Name:        "editor_export",
			Description: "Send the image and the regions marked for blurring to the redaction service and save the result as privacy-protected-image.jpg.",
			InputSchema: noArgs(),
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
