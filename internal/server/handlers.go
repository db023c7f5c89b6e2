package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/ironsheep/slide-tiles-mcp/internal/deepzoom"
	"github.com/ironsheep/slide-tiles-mcp/internal/export"
	"github.com/ironsheep/slide-tiles-mcp/internal/imaging"
	"github.com/ironsheep/slide-tiles-mcp/internal/ocr"
	"github.com/ironsheep/slide-tiles-mcp/internal/slide"
)

// errInvalidArgs marks tool failures caused by the caller's arguments.
var errInvalidArgs = errors.New("invalid arguments")

// MaxRegionSide bounds the width and height of slide_read_region and
// slide_thumbnail results.
const MaxRegionSide = 4096

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "slide_open", "deepzoom_tile").
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
// Malformed or missing arguments return code -32602. Other tool errors
// return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if errors.Is(err, errInvalidArgs) {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
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
//  3. Loads the slide from cache
//  4. Calls the appropriate slide/deepzoom/export/ocr function
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Slide Access
	case "slide_open":
		return s.handleSlideOpen(args)
	case "slide_properties":
		return s.handleSlideProperties(args)
	case "slide_associated_image":
		return s.handleSlideAssociatedImage(args)
	case "slide_thumbnail":
		return s.handleSlideThumbnail(args)
	case "slide_read_region":
		return s.handleSlideReadRegion(args)
	case "slide_close":
		return s.handleSlideClose(args)
	case "slide_label_text":
		return s.handleSlideLabelText(args)

	// DeepZoom Pyramid
	case "deepzoom_info":
		return s.handleDeepZoomInfo(args)
	case "deepzoom_descriptor":
		return s.handleDeepZoomDescriptor(args)
	case "deepzoom_tile":
		return s.handleDeepZoomTile(args)
	case "deepzoom_tile_coordinates":
		return s.handleDeepZoomTileCoordinates(args)
	case "deepzoom_tile_grid":
		return s.handleDeepZoomTileGrid(args)
	case "deepzoom_export":
		return s.handleDeepZoomExport(args)

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

// decodeArgs unmarshals tool arguments into v. Every tool needs a path, so
// an empty one is rejected here.
func decodeArgs(args json.RawMessage, v interface{ slidePath() string }) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing arguments", errInvalidArgs)
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %w", errInvalidArgs, err)
	}
	if v.slidePath() == "" {
		return fmt.Errorf("%w: path is required", errInvalidArgs)
	}
	return nil
}

type pathArgs struct {
	Path string `json:"path"`
}

func (a *pathArgs) slidePath() string { return a.Path }

// outputFormat normalizes an optional format argument.
func outputFormat(format, def string) (string, error) {
	if format == "" {
		format = def
	}
	f, err := imaging.NormalizeFormat(format)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidArgs, err)
	}
	return f, nil
}

// === Slide Access Handlers ===

// Size is a width and height pair.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func sizeOf(p image.Point) Size { return Size{Width: p.X, Height: p.Y} }

func sizesOf(ps []image.Point) []Size {
	out := make([]Size, len(ps))
	for i, p := range ps {
		out[i] = sizeOf(p)
	}
	return out
}

// SlideInfo describes an opened slide.
type SlideInfo struct {
	Path             string    `json:"path"`
	Vendor           string    `json:"vendor"`
	LevelCount       int       `json:"level_count"`
	Dimensions       []Size    `json:"level_dimensions"`
	Downsamples      []float64 `json:"level_downsamples"`
	PropertyCount    int       `json:"property_count"`
	AssociatedImages []string  `json:"associated_images"`
	Background       string    `json:"background_color"`
}

func (s *Server) handleSlideOpen(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sl, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	vendor, err := sl.Vendor()
	if err != nil {
		return nil, err
	}
	dims, err := sl.AllLevelDimensions()
	if err != nil {
		return nil, err
	}
	downsamples, err := sl.LevelDownsamples()
	if err != nil {
		return nil, err
	}
	props, err := sl.Properties()
	if err != nil {
		return nil, err
	}
	assoc, err := sl.AssociatedImages()
	if err != nil {
		return nil, err
	}
	bg, err := sl.Background()
	if err != nil {
		return nil, err
	}

	return &SlideInfo{
		Path:             a.Path,
		Vendor:           vendor,
		LevelCount:       len(dims),
		Dimensions:       sizesOf(dims),
		Downsamples:      downsamples,
		PropertyCount:    props.Len(),
		AssociatedImages: assoc.Keys(),
		Background:       imaging.HexColor(bg),
	}, nil
}

type slidePropertiesArgs struct {
	pathArgs
	Prefix string `json:"prefix"`
}

func (s *Server) handleSlideProperties(args json.RawMessage) (interface{}, error) {
	var a slidePropertiesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sl, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	props, err := sl.Properties()
	if err != nil {
		return nil, err
	}
	all, err := props.Map()
	if err != nil {
		return nil, err
	}
	if a.Prefix == "" {
		return all, nil
	}
	filtered := make(map[string]string)
	for k, v := range all {
		if strings.HasPrefix(k, a.Prefix) {
			filtered[k] = v
		}
	}
	return filtered, nil
}

type slideAssociatedImageArgs struct {
	pathArgs
	Name   string `json:"name"`
	Format string `json:"format"`
}

func (s *Server) handleSlideAssociatedImage(args json.RawMessage) (interface{}, error) {
	var a slideAssociatedImageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Name == "" {
		return nil, fmt.Errorf("%w: name is required", errInvalidArgs)
	}
	format, err := outputFormat(a.Format, imaging.FormatPNG)
	if err != nil {
		return nil, err
	}
	sl, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	img, err := s.associatedImage(sl, a.Name)
	if err != nil {
		return nil, err
	}
	return imaging.EncodeBase64(img, format, s.cfg.DeepZoom.Quality, imaging.DefaultBackground)
}

func (s *Server) associatedImage(sl *slide.Slide, name string) (*image.NRGBA, error) {
	assoc, err := sl.AssociatedImages()
	if err != nil {
		return nil, err
	}
	img, ok, err := assoc.Get(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("slide has no associated image %q (available: %s)", name, strings.Join(assoc.Keys(), ", "))
	}
	return img, nil
}

type slideThumbnailArgs struct {
	pathArgs
	MaxWidth  int    `json:"max_width"`
	MaxHeight int    `json:"max_height"`
	Format    string `json:"format"`
}

func (s *Server) handleSlideThumbnail(args json.RawMessage) (interface{}, error) {
	var a slideThumbnailArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.MaxWidth == 0 {
		a.MaxWidth = 512
	}
	if a.MaxHeight == 0 {
		a.MaxHeight = 512
	}
	if a.MaxWidth < 0 || a.MaxHeight < 0 || a.MaxWidth > MaxRegionSide || a.MaxHeight > MaxRegionSide {
		return nil, fmt.Errorf("%w: thumbnail limit %dx%d not in [1, %d]", errInvalidArgs, a.MaxWidth, a.MaxHeight, MaxRegionSide)
	}
	format, err := outputFormat(a.Format, imaging.FormatPNG)
	if err != nil {
		return nil, err
	}
	sl, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	thumb, err := sl.Thumbnail(image.Pt(a.MaxWidth, a.MaxHeight))
	if err != nil {
		return nil, err
	}
	return imaging.EncodeBase64(thumb, format, s.cfg.DeepZoom.Quality, imaging.DefaultBackground)
}

type slideReadRegionArgs struct {
	pathArgs
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Level  int    `json:"level"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

func (s *Server) handleSlideReadRegion(args json.RawMessage) (interface{}, error) {
	var a slideReadRegionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Width <= 0 || a.Height <= 0 {
		return nil, fmt.Errorf("%w: region size %dx%d must be positive", errInvalidArgs, a.Width, a.Height)
	}
	if a.Width > MaxRegionSide || a.Height > MaxRegionSide {
		return nil, fmt.Errorf("%w: region size %dx%d exceeds %d", errInvalidArgs, a.Width, a.Height, MaxRegionSide)
	}
	format, err := outputFormat(a.Format, imaging.FormatPNG)
	if err != nil {
		return nil, err
	}
	sl, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	region, err := sl.ReadRegion(image.Pt(a.X, a.Y), a.Level, image.Pt(a.Width, a.Height))
	if err != nil {
		return nil, err
	}
	bg, err := sl.Background()
	if err != nil {
		return nil, err
	}
	return imaging.EncodeBase64(region, format, s.cfg.DeepZoom.Quality, bg)
}

func (s *Server) handleSlideClose(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.cache.Evict(a.Path); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"path":       a.Path,
		"closed":     true,
		"open_count": s.cache.Len(),
	}, nil
}

type slideLabelTextArgs struct {
	pathArgs
	Name     string `json:"name"`
	Language string `json:"language"`
}

func (s *Server) handleSlideLabelText(args json.RawMessage) (interface{}, error) {
	var a slideLabelTextArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Name == "" {
		a.Name = "label"
	}
	if a.Language == "" {
		a.Language = s.cfg.OCR.Language
	}
	sl, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	img, err := s.associatedImage(sl, a.Name)
	if err != nil {
		return nil, err
	}
	return ocr.ReadLabel(img, a.Language)
}

// === DeepZoom Pyramid Handlers ===

// deepzoomArgs are the pyramid parameters shared by the deepzoom_* tools.
// Unset values fall back to the configuration.
type deepzoomArgs struct {
	pathArgs
	TileSize    *int  `json:"tile_size"`
	Overlap     *int  `json:"overlap"`
	LimitBounds *bool `json:"limit_bounds"`
}

// generator opens the slide and builds a Generator over it.
func (s *Server) generator(a deepzoomArgs) (*deepzoom.Generator, error) {
	opts := deepzoom.Options{
		TileSize:    s.cfg.DeepZoom.TileSize,
		Overlap:     s.cfg.DeepZoom.Overlap,
		LimitBounds: s.cfg.DeepZoom.LimitBounds,
	}
	if a.TileSize != nil {
		opts.TileSize = *a.TileSize
	}
	if a.Overlap != nil {
		opts.Overlap = *a.Overlap
	}
	if a.LimitBounds != nil {
		opts.LimitBounds = *a.LimitBounds
	}

	sl, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	gen, err := deepzoom.New(sl, opts)
	if errors.Is(err, deepzoom.ErrInvalidConfig) {
		return nil, fmt.Errorf("%w: %w", errInvalidArgs, err)
	}
	return gen, err
}

// pyramidError marks level and address errors as caller errors.
func pyramidError(err error) error {
	if errors.Is(err, deepzoom.ErrOutOfRange) {
		return fmt.Errorf("%w: %w", errInvalidArgs, err)
	}
	return err
}

// LevelInfo describes one pyramid level.
type LevelInfo struct {
	Level        int     `json:"level"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Columns      int     `json:"columns"`
	Rows         int     `json:"rows"`
	SlideLevel   int     `json:"slide_level"`
	ResizeFactor float64 `json:"resize_factor"`
}

// PyramidInfo describes a DeepZoom pyramid.
type PyramidInfo struct {
	Generator  string      `json:"generator"`
	TileSize   int         `json:"tile_size"`
	Overlap    int         `json:"overlap"`
	LevelCount int         `json:"level_count"`
	TileCount  int         `json:"tile_count"`
	Background string      `json:"background_color"`
	Levels     []LevelInfo `json:"levels"`
}

func (s *Server) handleDeepZoomInfo(args json.RawMessage) (interface{}, error) {
	var a deepzoomArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	gen, err := s.generator(a)
	if err != nil {
		return nil, err
	}

	dims := gen.LevelDimensions()
	tiles := gen.LevelTiles()
	levels := make([]LevelInfo, len(dims))
	for i := range dims {
		sl, factor, err := gen.SlideLevel(i)
		if err != nil {
			return nil, err
		}
		levels[i] = LevelInfo{
			Level:        i,
			Width:        dims[i].X,
			Height:       dims[i].Y,
			Columns:      tiles[i].X,
			Rows:         tiles[i].Y,
			SlideLevel:   sl,
			ResizeFactor: factor,
		}
	}

	opts := gen.Options()
	return &PyramidInfo{
		Generator:  gen.String(),
		TileSize:   opts.TileSize,
		Overlap:    opts.Overlap,
		LevelCount: gen.LevelCount(),
		TileCount:  gen.TileCount(),
		Background: imaging.HexColor(gen.Background()),
		Levels:     levels,
	}, nil
}

type deepzoomDescriptorArgs struct {
	deepzoomArgs
	Format string `json:"format"`
	JSON   bool   `json:"json"`
}

func (s *Server) handleDeepZoomDescriptor(args json.RawMessage) (interface{}, error) {
	var a deepzoomDescriptorArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	format, err := outputFormat(a.Format, s.cfg.DeepZoom.Format)
	if err != nil {
		return nil, err
	}
	gen, err := s.generator(a.deepzoomArgs)
	if err != nil {
		return nil, err
	}
	d, err := gen.Descriptor(format)
	if err != nil {
		return nil, err
	}
	if a.JSON {
		b, err := d.JSON()
		if err != nil {
			return nil, err
		}
		return json.RawMessage(b), nil
	}
	b, err := d.XML()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"format": format,
		"dzi":    string(b),
	}, nil
}

type deepzoomTileArgs struct {
	deepzoomArgs
	Level   int    `json:"level"`
	Col     int    `json:"col"`
	Row     int    `json:"row"`
	Format  string `json:"format"`
	Quality int    `json:"quality"`
}

// Region describes the slide read behind a tile.
type Region struct {
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Level int  `json:"level"`
	Size  Size `json:"size"`
}

func regionOf(r deepzoom.Region) Region {
	return Region{X: r.Location.X, Y: r.Location.Y, Level: r.Level, Size: sizeOf(r.Size)}
}

// TileResult is an encoded tile along with where it came from.
type TileResult struct {
	*imaging.EncodeResult
	Level  int    `json:"level"`
	Col    int    `json:"col"`
	Row    int    `json:"row"`
	Region Region `json:"region"`
}

func (s *Server) handleDeepZoomTile(args json.RawMessage) (interface{}, error) {
	var a deepzoomTileArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Quality == 0 {
		a.Quality = s.cfg.DeepZoom.Quality
	}
	format, err := outputFormat(a.Format, s.cfg.DeepZoom.Format)
	if err != nil {
		return nil, err
	}
	gen, err := s.generator(a.deepzoomArgs)
	if err != nil {
		return nil, err
	}

	address := image.Pt(a.Col, a.Row)
	region, err := gen.TileCoordinates(a.Level, address)
	if err != nil {
		return nil, pyramidError(err)
	}
	tile, err := gen.Tile(a.Level, address)
	if err != nil {
		return nil, err
	}
	enc, err := imaging.EncodeBase64(tile, format, a.Quality, gen.Background())
	if err != nil {
		return nil, err
	}
	return &TileResult{
		EncodeResult: enc,
		Level:        a.Level,
		Col:          a.Col,
		Row:          a.Row,
		Region:       regionOf(region),
	}, nil
}

type deepzoomTileCoordinatesArgs struct {
	deepzoomArgs
	Level int `json:"level"`
	Col   int `json:"col"`
	Row   int `json:"row"`
}

func (s *Server) handleDeepZoomTileCoordinates(args json.RawMessage) (interface{}, error) {
	var a deepzoomTileCoordinatesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	gen, err := s.generator(a.deepzoomArgs)
	if err != nil {
		return nil, err
	}

	address := image.Pt(a.Col, a.Row)
	region, err := gen.TileCoordinates(a.Level, address)
	if err != nil {
		return nil, pyramidError(err)
	}
	size, err := gen.TileDimensions(a.Level, address)
	if err != nil {
		return nil, pyramidError(err)
	}
	return map[string]interface{}{
		"region":    regionOf(region),
		"tile_size": sizeOf(size),
	}, nil
}

type deepzoomTileGridArgs struct {
	deepzoomArgs
	Level     int    `json:"level"`
	Labels    *bool  `json:"labels"`
	GridColor string `json:"grid_color"`
}

func (s *Server) handleDeepZoomTileGrid(args json.RawMessage) (interface{}, error) {
	var a deepzoomTileGridArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	labels := true
	if a.Labels != nil {
		labels = *a.Labels
	}
	lineColor := imaging.DefaultGridColor
	if a.GridColor != "" {
		c, err := imaging.ParseBackground(a.GridColor)
		if err != nil {
			return nil, fmt.Errorf("%w: grid_color: %w", errInvalidArgs, err)
		}
		lineColor = c
	}
	gen, err := s.generator(a.deepzoomArgs)
	if err != nil {
		return nil, err
	}

	img, err := gen.LevelImage(a.Level)
	if err != nil {
		return nil, pyramidError(err)
	}
	grid, err := imaging.DrawTileGrid(img, gen.Options().TileSize, labels, lineColor)
	if err != nil {
		return nil, err
	}
	enc, err := imaging.EncodeBase64(grid, imaging.FormatPNG, 0, gen.Background())
	if err != nil {
		return nil, err
	}
	tiles := gen.LevelTiles()[a.Level]
	return map[string]interface{}{
		"width":        enc.Width,
		"height":       enc.Height,
		"image_base64": enc.ImageBase64,
		"mime_type":    enc.MimeType,
		"columns":      tiles.X,
		"rows":         tiles.Y,
	}, nil
}

type deepzoomExportArgs struct {
	deepzoomArgs
	OutputDir string `json:"output_dir"`
	Name      string `json:"name"`
	Format    string `json:"format"`
	Quality   int    `json:"quality"`
	Workers   int    `json:"workers"`
}

func (s *Server) handleDeepZoomExport(args json.RawMessage) (interface{}, error) {
	var a deepzoomExportArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.OutputDir == "" {
		return nil, fmt.Errorf("%w: output_dir is required", errInvalidArgs)
	}
	if a.Name == "" {
		a.Name = strings.TrimSuffix(filepath.Base(a.Path), filepath.Ext(a.Path))
	}
	if a.Quality == 0 {
		a.Quality = s.cfg.DeepZoom.Quality
	}
	if a.Workers == 0 {
		a.Workers = s.cfg.Export.Workers
	}
	format, err := outputFormat(a.Format, s.cfg.DeepZoom.Format)
	if err != nil {
		return nil, err
	}
	gen, err := s.generator(a.deepzoomArgs)
	if err != nil {
		return nil, err
	}

	return export.Export(context.Background(), gen, a.OutputDir, a.Name, export.Options{
		Format:  format,
		Quality: a.Quality,
		Workers: a.Workers,
	})
}

