package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/slide-tiles-mcp/internal/config"
	"github.com/ironsheep/slide-tiles-mcp/internal/ocr"
)

// createTestSlide writes a solid PNG slide into a temp dir and returns its
// path. A non-empty sidecar is written next to it, along with a 120x40
// label.png it may refer to.
func createTestSlide(t *testing.T, width, height int, c color.Color, sidecar string) string {
	t.Helper()
	dir := t.TempDir()

	writePNG := func(name string, w, h int, c color.Color) string {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Set(x, y, c)
			}
		}
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		defer f.Close()
		if err := png.Encode(f, img); err != nil {
			t.Fatalf("failed to encode %s: %v", name, err)
		}
		return path
	}

	path := writePNG("slide.png", width, height, c)
	if sidecar != "" {
		writePNG("label.png", 120, 40, color.White)
		if err := os.WriteFile(path+".yaml", []byte(sidecar), 0o644); err != nil {
			t.Fatalf("failed to write sidecar: %v", err)
		}
	}
	return path
}

const boundedSidecar = `properties:
  openslide.bounds-x: "100"
  openslide.bounds-y: "50"
  openslide.bounds-width: "400"
  openslide.bounds-height: "300"
  openslide.background-color: "F0E0D0"
associated:
  label: label.png
`

// callTool sends a tools/call request and returns the response.
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
	resp := s.handleToolsCall(&MCPRequest{JSONRPC: "2.0", ID: 1, Params: paramsJSON})
	if resp == nil {
		t.Fatal("handleToolsCall returned nil")
	}
	return resp
}

// decodeResult unmarshals the text content of a successful response into v.
func decodeResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content: got %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("failed to decode result %q: %v", text, err)
	}
}

func wantErrorCode(t *testing.T, resp *MCPResponse, code int) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("expected error code %d, got result", code)
	}
	if resp.Error.Code != code {
		t.Errorf("error code: got %d, want %d (%v)", resp.Error.Code, code, resp.Error.Data)
	}
}

func decodeImage(t *testing.T, b64 string) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode image: %v", err)
	}
	return img
}

type encodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// === Slide Access ===

func TestHandleToolsCall_SlideOpen(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.RGBA{128, 64, 32, 255}, "")

	var info SlideInfo
	decodeResult(t, callTool(t, s, "slide_open", map[string]interface{}{"path": path}), &info)

	if info.Vendor != "generic-png" {
		t.Errorf("vendor: got %q, want generic-png", info.Vendor)
	}
	if info.LevelCount != 3 {
		t.Fatalf("level_count: got %d, want 3", info.LevelCount)
	}
	wantDims := []Size{{600, 400}, {300, 200}, {150, 100}}
	for i, want := range wantDims {
		if info.Dimensions[i] != want {
			t.Errorf("level %d: got %+v, want %+v", i, info.Dimensions[i], want)
		}
	}
	if info.Downsamples[1] != 2 || info.Downsamples[2] != 4 {
		t.Errorf("downsamples: got %v", info.Downsamples)
	}
	if info.Background != "#ffffff" {
		t.Errorf("background: got %s, want #ffffff", info.Background)
	}
	if len(info.AssociatedImages) != 0 {
		t.Errorf("associated images: got %v, want none", info.AssociatedImages)
	}
	if s.cache.Len() != 1 {
		t.Errorf("cache: got %d slides, want 1", s.cache.Len())
	}
}

func TestHandleToolsCall_SlideOpen_Sidecar(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.White, boundedSidecar)

	var info SlideInfo
	decodeResult(t, callTool(t, s, "slide_open", map[string]interface{}{"path": path}), &info)

	if len(info.AssociatedImages) != 1 || info.AssociatedImages[0] != "label" {
		t.Errorf("associated images: got %v, want [label]", info.AssociatedImages)
	}
	if info.Background != "#f0e0d0" {
		t.Errorf("background: got %s, want #f0e0d0", info.Background)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := New(nil, "")

	resp := callTool(t, s, "slide_open", map[string]interface{}{"path": "/nonexistent/slide.png"})
	wantErrorCode(t, resp, -32000)
	if resp.Error.Message != "Tool execution failed" {
		t.Errorf("message: got %q", resp.Error.Message)
	}
}

func TestHandleToolsCall_SlideProperties(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.White, boundedSidecar)

	var all map[string]string
	decodeResult(t, callTool(t, s, "slide_properties", map[string]interface{}{"path": path}), &all)
	if all["openslide.vendor"] != "generic-png" {
		t.Errorf("openslide.vendor: got %q", all["openslide.vendor"])
	}
	if all["openslide.level-count"] != "3" {
		t.Errorf("openslide.level-count: got %q", all["openslide.level-count"])
	}

	var bounds map[string]string
	decodeResult(t, callTool(t, s, "slide_properties", map[string]interface{}{
		"path":   path,
		"prefix": "openslide.bounds-",
	}), &bounds)
	want := map[string]string{
		"openslide.bounds-x":      "100",
		"openslide.bounds-y":      "50",
		"openslide.bounds-width":  "400",
		"openslide.bounds-height": "300",
	}
	if len(bounds) != len(want) {
		t.Errorf("got %d bounds properties, want %d: %v", len(bounds), len(want), bounds)
	}
	for k, v := range want {
		if bounds[k] != v {
			t.Errorf("%s: got %q, want %q", k, bounds[k], v)
		}
	}
}

func TestHandleToolsCall_SlideAssociatedImage(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.White, boundedSidecar)

	var enc encodedImage
	decodeResult(t, callTool(t, s, "slide_associated_image", map[string]interface{}{
		"path": path,
		"name": "label",
	}), &enc)

	if enc.MimeType != "image/png" {
		t.Errorf("mime type: got %s, want image/png", enc.MimeType)
	}
	img := decodeImage(t, enc.ImageBase64)
	if got := img.Bounds().Size(); got != image.Pt(120, 40) {
		t.Errorf("size: got %v, want (120,40)", got)
	}

	// Unknown names and a missing name fail differently.
	resp := callTool(t, s, "slide_associated_image", map[string]interface{}{"path": path, "name": "macro"})
	wantErrorCode(t, resp, -32000)
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, "label") {
		t.Errorf("error should list available images: %v", resp.Error.Data)
	}
	wantErrorCode(t, callTool(t, s, "slide_associated_image", map[string]interface{}{"path": path}), -32602)
}

func TestHandleToolsCall_SlideThumbnail(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.RGBA{200, 0, 0, 255}, "")

	var enc encodedImage
	decodeResult(t, callTool(t, s, "slide_thumbnail", map[string]interface{}{
		"path":       path,
		"max_width":  120,
		"max_height": 120,
		"format":     "jpeg",
	}), &enc)

	if enc.MimeType != "image/jpeg" {
		t.Errorf("mime type: got %s, want image/jpeg", enc.MimeType)
	}
	if enc.Width > 120 || enc.Height > 120 || enc.Width <= enc.Height {
		t.Errorf("thumbnail size: got %dx%d, want landscape within 120x120", enc.Width, enc.Height)
	}
	img := decodeImage(t, enc.ImageBase64)
	if got := img.Bounds().Size(); got != image.Pt(enc.Width, enc.Height) {
		t.Errorf("decoded size %v disagrees with %dx%d", got, enc.Width, enc.Height)
	}
}

func TestHandleToolsCall_SlideThumbnail_Limits(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 100, 100, color.White, "")

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"width too large", map[string]interface{}{"path": path, "max_width": MaxRegionSide + 1}},
		{"height too large", map[string]interface{}{"path": path, "max_height": MaxRegionSide + 1}},
		{"negative", map[string]interface{}{"path": path, "max_width": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantErrorCode(t, callTool(t, s, "slide_thumbnail", tt.args), -32602)
		})
	}

	var enc encodedImage
	decodeResult(t, callTool(t, s, "slide_thumbnail", map[string]interface{}{
		"path":       path,
		"max_width":  MaxRegionSide,
		"max_height": MaxRegionSide,
	}), &enc)
	if enc.Width != 100 || enc.Height != 100 {
		t.Errorf("thumbnail size: got %dx%d, want 100x100", enc.Width, enc.Height)
	}
}

func TestHandleToolsCall_SlideReadRegion(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.RGBA{10, 20, 30, 255}, "")

	var enc encodedImage
	decodeResult(t, callTool(t, s, "slide_read_region", map[string]interface{}{
		"path":   path,
		"x":      580,
		"y":      0,
		"level":  0,
		"width":  40,
		"height": 30,
	}), &enc)

	img := decodeImage(t, enc.ImageBase64)
	if got := img.Bounds().Size(); got != image.Pt(40, 30) {
		t.Fatalf("size: got %v, want (40,30)", got)
	}
	// Inside the slide the pixels are the slide color; past the right edge
	// they are flattened onto the white background.
	if r, g, b, _ := img.At(5, 5).RGBA(); r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Errorf("inside pixel: got (%d,%d,%d), want (10,20,30)", r>>8, g>>8, b>>8)
	}
	if r, g, b, _ := img.At(35, 5).RGBA(); r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("outside pixel: got (%d,%d,%d), want white", r>>8, g>>8, b>>8)
	}
}

func TestHandleToolsCall_SlideReadRegion_Errors(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 100, 100, color.White, "")

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"zero size", map[string]interface{}{"path": path, "x": 0, "y": 0, "width": 0, "height": 10}, -32602},
		{"too large", map[string]interface{}{"path": path, "x": 0, "y": 0, "width": MaxRegionSide + 1, "height": 10}, -32602},
		{"bad format", map[string]interface{}{"path": path, "x": 0, "y": 0, "width": 10, "height": 10, "format": "gif"}, -32602},
		{"bad level", map[string]interface{}{"path": path, "x": 0, "y": 0, "width": 10, "height": 10, "level": 7}, -32000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantErrorCode(t, callTool(t, s, "slide_read_region", tt.args), tt.code)
		})
	}

	// Argument errors do not poison the cached slide.
	resp := callTool(t, s, "slide_read_region", map[string]interface{}{"path": path, "x": 0, "y": 0, "width": 10, "height": 10})
	if resp.Error != nil {
		t.Errorf("slide unusable after argument errors: %+v", resp.Error)
	}
}

func TestHandleToolsCall_SlideClose(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 100, 100, color.White, "")

	decodeResult(t, callTool(t, s, "slide_open", map[string]interface{}{"path": path}), &SlideInfo{})

	var result struct {
		Closed    bool `json:"closed"`
		OpenCount int  `json:"open_count"`
	}
	decodeResult(t, callTool(t, s, "slide_close", map[string]interface{}{"path": path}), &result)
	if !result.Closed || result.OpenCount != 0 {
		t.Errorf("got %+v, want closed with no open slides", result)
	}

	// Closing an unknown path succeeds; the slide reopens on next use.
	decodeResult(t, callTool(t, s, "slide_close", map[string]interface{}{"path": path}), &result)
	decodeResult(t, callTool(t, s, "slide_open", map[string]interface{}{"path": path}), &SlideInfo{})
}

func TestHandleToolsCall_SlideLabelText(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 100, 100, color.White, boundedSidecar)

	resp := callTool(t, s, "slide_label_text", map[string]interface{}{"path": path})
	if !ocr.Available() {
		wantErrorCode(t, resp, -32000)
		return
	}
	if resp.Error != nil {
		// Tesseract language data might not be installed
		t.Skipf("Tesseract not usable: %v", resp.Error.Data)
	}
	var result ocr.OCRResult
	decodeResult(t, resp, &result)
}

func TestHandleToolsCall_SlideLabelText_NoLabel(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 100, 100, color.White, "")

	resp := callTool(t, s, "slide_label_text", map[string]interface{}{"path": path})
	wantErrorCode(t, resp, -32000)
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, `"label"`) {
		t.Errorf("error should name the missing image: %v", resp.Error.Data)
	}
}

// === DeepZoom Pyramid ===

func TestHandleToolsCall_DeepZoomInfo(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.White, "")

	var info PyramidInfo
	decodeResult(t, callTool(t, s, "deepzoom_info", map[string]interface{}{"path": path}), &info)

	if info.TileSize != 254 || info.Overlap != 1 {
		t.Errorf("defaults: got tile_size %d overlap %d, want 254 and 1", info.TileSize, info.Overlap)
	}
	if info.LevelCount != 11 || len(info.Levels) != 11 {
		t.Fatalf("level_count: got %d (%d levels), want 11", info.LevelCount, len(info.Levels))
	}
	if info.TileCount != 17 {
		t.Errorf("tile_count: got %d, want 17", info.TileCount)
	}

	tests := []struct {
		level int
		want  LevelInfo
	}{
		{10, LevelInfo{Level: 10, Width: 600, Height: 400, Columns: 3, Rows: 2, SlideLevel: 0, ResizeFactor: 1}},
		{9, LevelInfo{Level: 9, Width: 300, Height: 200, Columns: 2, Rows: 1, SlideLevel: 1, ResizeFactor: 1}},
		{8, LevelInfo{Level: 8, Width: 150, Height: 100, Columns: 1, Rows: 1, SlideLevel: 2, ResizeFactor: 1}},
		{7, LevelInfo{Level: 7, Width: 75, Height: 50, Columns: 1, Rows: 1, SlideLevel: 2, ResizeFactor: 2}},
		{0, LevelInfo{Level: 0, Width: 1, Height: 1, Columns: 1, Rows: 1, SlideLevel: 2, ResizeFactor: 256}},
	}
	for _, tt := range tests {
		if got := info.Levels[tt.level]; got != tt.want {
			t.Errorf("level %d: got %+v, want %+v", tt.level, got, tt.want)
		}
	}
}

func TestHandleToolsCall_DeepZoomInfo_Overrides(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.White, boundedSidecar)

	var bounded PyramidInfo
	decodeResult(t, callTool(t, s, "deepzoom_info", map[string]interface{}{"path": path}), &bounded)
	if top := bounded.Levels[len(bounded.Levels)-1]; top.Width != 400 || top.Height != 300 {
		t.Errorf("bounded top level: got %dx%d, want 400x300", top.Width, top.Height)
	}
	if bounded.Background != "#f0e0d0" {
		t.Errorf("background: got %s, want #f0e0d0", bounded.Background)
	}

	var full PyramidInfo
	decodeResult(t, callTool(t, s, "deepzoom_info", map[string]interface{}{
		"path":         path,
		"limit_bounds": false,
		"tile_size":    128,
		"overlap":      0,
	}), &full)
	top := full.Levels[len(full.Levels)-1]
	if top.Width != 600 || top.Height != 400 {
		t.Errorf("full top level: got %dx%d, want 600x400", top.Width, top.Height)
	}
	if top.Columns != 5 || top.Rows != 4 {
		t.Errorf("tile grid: got %dx%d, want 5x4", top.Columns, top.Rows)
	}
	if full.TileSize != 128 || full.Overlap != 0 {
		t.Errorf("explicit zero overlap not honored: %+v", full)
	}
}

func TestHandleToolsCall_DeepZoomInfo_ConfigDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DeepZoom.TileSize = 512
	cfg.DeepZoom.Overlap = 0
	s := New(cfg, "")
	path := createTestSlide(t, 600, 400, color.White, "")

	var info PyramidInfo
	decodeResult(t, callTool(t, s, "deepzoom_info", map[string]interface{}{"path": path}), &info)
	if info.TileSize != 512 || info.Overlap != 0 {
		t.Errorf("got tile_size %d overlap %d, want configured 512 and 0", info.TileSize, info.Overlap)
	}
}

func TestHandleToolsCall_DeepZoomInfo_InvalidConfig(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 100, 100, color.White, "")

	wantErrorCode(t, callTool(t, s, "deepzoom_info", map[string]interface{}{"path": path, "tile_size": 0}), -32602)
	wantErrorCode(t, callTool(t, s, "deepzoom_info", map[string]interface{}{"path": path, "overlap": -1}), -32602)
}

func TestHandleToolsCall_DeepZoomDescriptor(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.White, "")

	var result struct {
		Format string `json:"format"`
		DZI    string `json:"dzi"`
	}
	decodeResult(t, callTool(t, s, "deepzoom_descriptor", map[string]interface{}{"path": path, "format": "jpg"}), &result)
	if result.Format != "jpeg" {
		t.Errorf("format: got %s, want jpeg", result.Format)
	}
	for _, want := range []string{`Format="jpeg"`, `Overlap="1"`, `TileSize="254"`, `Width="600"`, `Height="400"`} {
		if !strings.Contains(result.DZI, want) {
			t.Errorf("DZI missing %s:\n%s", want, result.DZI)
		}
	}

	var doc struct {
		Image struct {
			Format   string
			TileSize int
			Size     struct{ Width, Height int }
		}
	}
	decodeResult(t, callTool(t, s, "deepzoom_descriptor", map[string]interface{}{
		"path":   path,
		"format": "png",
		"json":   true,
	}), &doc)
	if doc.Image.Format != "png" || doc.Image.TileSize != 254 || doc.Image.Size.Width != 600 || doc.Image.Size.Height != 400 {
		t.Errorf("JSON descriptor: got %+v", doc.Image)
	}
}

func TestHandleToolsCall_DeepZoomTile(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.RGBA{0, 0, 255, 255}, "")

	var tile TileResult
	decodeResult(t, callTool(t, s, "deepzoom_tile", map[string]interface{}{
		"path":  path,
		"level": 10,
		"col":   2,
		"row":   1,
	}), &tile)

	if tile.EncodeResult == nil {
		t.Fatal("missing encoded image")
	}
	if tile.MimeType != "image/jpeg" {
		t.Errorf("mime type: got %s, want image/jpeg", tile.MimeType)
	}
	if tile.Width != 93 || tile.Height != 147 {
		t.Errorf("tile size: got %dx%d, want 93x147", tile.Width, tile.Height)
	}
	want := Region{X: 507, Y: 253, Level: 0, Size: Size{93, 147}}
	if tile.Region != want {
		t.Errorf("region: got %+v, want %+v", tile.Region, want)
	}
	img := decodeImage(t, tile.ImageBase64)
	if got := img.Bounds().Size(); got != image.Pt(93, 147) {
		t.Errorf("decoded size: got %v, want (93,147)", got)
	}
}

func TestHandleToolsCall_DeepZoomTile_PNG(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.RGBA{0, 255, 0, 255}, "")

	var tile TileResult
	decodeResult(t, callTool(t, s, "deepzoom_tile", map[string]interface{}{
		"path":      path,
		"level":     9,
		"col":       0,
		"row":       0,
		"tile_size": 128,
		"overlap":   2,
		"format":    "png",
	}), &tile)

	// 300x200 level, first tile: 128 plus the right and bottom overlap.
	if tile.Width != 130 || tile.Height != 130 {
		t.Errorf("tile size: got %dx%d, want 130x130", tile.Width, tile.Height)
	}
	img := decodeImage(t, tile.ImageBase64)
	if r, g, b, _ := img.At(64, 64).RGBA(); r>>8 != 0 || g>>8 != 255 || b>>8 != 0 {
		t.Errorf("pixel: got (%d,%d,%d), want green", r>>8, g>>8, b>>8)
	}
}

func TestHandleToolsCall_DeepZoomTile_OutOfRange(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.White, "")

	tests := []struct {
		name            string
		level, col, row int
	}{
		{"level too high", 11, 0, 0},
		{"negative level", -1, 0, 0},
		{"column past edge", 10, 3, 0},
		{"row past edge", 10, 0, 2},
		{"negative column", 10, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]interface{}{"path": path, "level": tt.level, "col": tt.col, "row": tt.row}
			wantErrorCode(t, callTool(t, s, "deepzoom_tile", args), -32602)
			wantErrorCode(t, callTool(t, s, "deepzoom_tile_coordinates", args), -32602)
		})
	}
}

func TestHandleToolsCall_DeepZoomTileCoordinates(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.White, boundedSidecar)

	var result struct {
		Region   Region `json:"region"`
		TileSize Size   `json:"tile_size"`
	}
	decodeResult(t, callTool(t, s, "deepzoom_tile_coordinates", map[string]interface{}{
		"path":  path,
		"level": 9,
		"col":   1,
		"row":   0,
	}), &result)

	// The bounds origin (100,50) is added to the level 0 location.
	wantRegion := Region{X: 353, Y: 50, Level: 0, Size: Size{147, 255}}
	if result.Region != wantRegion {
		t.Errorf("region: got %+v, want %+v", result.Region, wantRegion)
	}
	if result.TileSize != (Size{147, 255}) {
		t.Errorf("tile size: got %+v, want 147x255", result.TileSize)
	}
}

func TestHandleToolsCall_DeepZoomTileGrid(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.White, "")

	var result struct {
		encodedImage
		Columns int `json:"columns"`
		Rows    int `json:"rows"`
	}
	decodeResult(t, callTool(t, s, "deepzoom_tile_grid", map[string]interface{}{
		"path":       path,
		"level":      10,
		"labels":     false,
		"grid_color": "#0000FF",
	}), &result)

	if result.Width != 600 || result.Height != 400 || result.Columns != 3 || result.Rows != 2 {
		t.Errorf("got %dx%d with %dx%d tiles, want 600x400 with 3x2", result.Width, result.Height, result.Columns, result.Rows)
	}
	if result.MimeType != "image/png" {
		t.Errorf("mime type: got %s, want image/png", result.MimeType)
	}

	img := decodeImage(t, result.ImageBase64)
	if r, g, b, _ := img.At(254, 100).RGBA(); r>>8 != 0 || g>>8 != 0 || b>>8 != 255 {
		t.Errorf("grid line: got (%d,%d,%d), want blue", r>>8, g>>8, b>>8)
	}
	if r, g, b, _ := img.At(100, 100).RGBA(); r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("tile interior: got (%d,%d,%d), want white", r>>8, g>>8, b>>8)
	}
}

func TestHandleToolsCall_DeepZoomTileGrid_Errors(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 100, 100, color.White, "")

	wantErrorCode(t, callTool(t, s, "deepzoom_tile_grid", map[string]interface{}{"path": path, "level": 99}), -32602)
	wantErrorCode(t, callTool(t, s, "deepzoom_tile_grid", map[string]interface{}{"path": path, "level": 1, "grid_color": "red"}), -32602)
}

func TestHandleToolsCall_DeepZoomExport(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 600, 400, color.White, "")
	out := filepath.Join(t.TempDir(), "pyramid")

	var result struct {
		Descriptor string `json:"descriptor"`
		Levels     int    `json:"levels"`
		Tiles      int    `json:"tiles"`
		Bytes      int64  `json:"bytes"`
	}
	decodeResult(t, callTool(t, s, "deepzoom_export", map[string]interface{}{
		"path":       path,
		"output_dir": out,
		"format":     "png",
		"workers":    2,
	}), &result)

	if result.Levels != 11 || result.Tiles != 17 {
		t.Errorf("got %d levels and %d tiles, want 11 and 17", result.Levels, result.Tiles)
	}
	if result.Descriptor != filepath.Join(out, "slide.dzi") {
		t.Errorf("descriptor: got %s, want slide.dzi in %s", result.Descriptor, out)
	}
	if result.Bytes <= 0 {
		t.Errorf("bytes: got %d", result.Bytes)
	}
	for _, p := range []string{
		filepath.Join(out, "slide.dzi"),
		filepath.Join(out, "slide_files", "0", "0_0.png"),
		filepath.Join(out, "slide_files", "10", "2_1.png"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}

	wantErrorCode(t, callTool(t, s, "deepzoom_export", map[string]interface{}{"path": path}), -32602)
}

// === Argument Handling ===

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := New(nil, "")

	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{})
	wantErrorCode(t, resp, -32000)
}

func TestHandleToolsCall_MissingArguments(t *testing.T) {
	s := New(nil, "")

	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			paramsJSON, _ := json.Marshal(map[string]interface{}{"name": tool.Name})
			resp := s.handleToolsCall(&MCPRequest{JSONRPC: "2.0", ID: 1, Params: paramsJSON})
			wantErrorCode(t, resp, -32602)

			wantErrorCode(t, callTool(t, s, tool.Name, map[string]interface{}{}), -32602)
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(nil, "")

	resp := s.handleToolsCall(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`{invalid json`),
	})
	wantErrorCode(t, resp, -32602)
}

func TestExecuteTool_AllTools(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 300, 200, color.RGBA{128, 128, 128, 255}, boundedSidecar)
	out := t.TempDir()

	// Test each tool to ensure executeTool correctly dispatches
	toolTests := []struct {
		name string
		args map[string]interface{}
	}{
		{"slide_open", map[string]interface{}{"path": path}},
		{"slide_properties", map[string]interface{}{"path": path}},
		{"slide_associated_image", map[string]interface{}{"path": path, "name": "label"}},
		{"slide_thumbnail", map[string]interface{}{"path": path}},
		{"slide_read_region", map[string]interface{}{"path": path, "x": 0, "y": 0, "width": 16, "height": 16}},
		{"deepzoom_info", map[string]interface{}{"path": path, "limit_bounds": false}},
		{"deepzoom_descriptor", map[string]interface{}{"path": path, "limit_bounds": false}},
		{"deepzoom_tile", map[string]interface{}{"path": path, "limit_bounds": false, "level": 0, "col": 0, "row": 0}},
		{"deepzoom_tile_coordinates", map[string]interface{}{"path": path, "limit_bounds": false, "level": 0, "col": 0, "row": 0}},
		{"deepzoom_tile_grid", map[string]interface{}{"path": path, "limit_bounds": false, "level": 5}},
		{"deepzoom_export", map[string]interface{}{"path": path, "limit_bounds": false, "output_dir": out}},
		{"slide_close", map[string]interface{}{"path": path}},
	}

	for _, tt := range toolTests {
		t.Run(tt.name, func(t *testing.T) {
			argsJSON, _ := json.Marshal(tt.args)
			result, err := s.executeTool(tt.name, argsJSON)
			if err != nil {
				t.Fatalf("executeTool(%s) failed: %v", tt.name, err)
			}
			if result == nil {
				t.Errorf("executeTool(%s) returned nil result", tt.name)
			}
		})
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := New(nil, "")

	_, err := s.executeTool("unknown_tool", json.RawMessage(`{}`))
	if err == nil {
		t.Error("executeTool should fail for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := New(nil, "")

	_, err := s.executeTool("slide_open", json.RawMessage(`{invalid`))
	if err == nil {
		t.Error("executeTool should fail for invalid JSON")
	}
}

func TestClose(t *testing.T) {
	s := New(nil, "")
	path := createTestSlide(t, 100, 100, color.White, "")

	decodeResult(t, callTool(t, s, "slide_open", map[string]interface{}{"path": path}), &SlideInfo{})
	s.Close()
	if s.cache.Len() != 0 {
		t.Errorf("cache: got %d slides after Close, want 0", s.cache.Len())
	}
}
