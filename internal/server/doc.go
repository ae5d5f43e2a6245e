// Package server implements the MCP (Model Context Protocol) surface of the
// redaction region editor.
//
// The server owns one editor.Controller and exposes it as tools, so an MCP
// client can upload an image, review the detected text regions, choose which
// to keep, and export a redacted copy.
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
// Session:
//   - editor_upload: Detect text in an image file and open it
//   - editor_load: Open an image with regions detected elsewhere
//   - editor_reset: Return to the upload screen
//
// Selection:
//   - editor_toggle: Flip one region between blur and keep
//   - editor_click: Toggle the region under a screen point
//   - editor_select_all: Blur or keep every region
//
// Display:
//   - editor_resize: Lay the image out in a new viewport
//   - editor_state: Regions, screen boxes and counts
//   - editor_preview: PNG of the image with the overlay drawn on it
//
// Export:
//   - editor_export: Redact the marked regions and save the result
//
// # Notifications
//
// Failures the user must see (upload, display and export errors) are sent
// as notifications/message with level "error", in addition to the tool
// error response.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
package server
