// Package server implements the MCP (Model Context Protocol) server for
// whole-slide images and their DeepZoom tile pyramids.
//
// The server exposes slide access and DeepZoom tiling as MCP tools so that
// an MCP client can inspect a slide, fetch individual tiles, or write a
// complete pyramid to disk for a viewer such as OpenSeadragon.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Serve accepts any reader and writer in place of stdio.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Slide Access:
//   - slide_open: Open a slide and describe its levels
//   - slide_properties: List metadata properties
//   - slide_associated_image: Fetch the label, macro or other associated image
//   - slide_thumbnail: Render a bounded thumbnail
//   - slide_read_region: Read pixels from one discrete level
//   - slide_close: Release a slide
//   - slide_label_text: OCR the label image
//
// DeepZoom Pyramid:
//   - deepzoom_info: Levels, tile grids and the slide level behind each
//   - deepzoom_descriptor: The .dzi descriptor as XML or JSON
//   - deepzoom_tile: One encoded tile
//   - deepzoom_tile_coordinates: The region read behind a tile
//   - deepzoom_tile_grid: A stitched level with tile boundaries drawn on it
//   - deepzoom_export: Write the whole pyramid to a directory
//
// Every deepzoom_* tool accepts tile_size, overlap and limit_bounds. Values
// left out come from the configuration passed to New.
//
// # Slide Caching
//
// Slides are opened once and kept in a slide.Cache keyed by path until
// slide_close or Close. Generators are cheap and are rebuilt per call; no
// tiles are cached.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32602 for missing or malformed arguments, -32000 for any other
//     tool failure, -32601 for unknown methods
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(cfg, version)
//	defer srv.Close()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
