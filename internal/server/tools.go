package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the slide file",
}

func formatProperty(def string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"jpeg", "png", "bmp"},
		"description": "Output image format. Default " + def,
	}
}

var qualityProperty = map[string]interface{}{
	"type":        "integer",
	"description": "JPEG quality 1-100. Defaults to the configured quality",
}

// deepzoomSchema builds the input schema of a deepzoom_* tool. Every such
// tool accepts the pyramid parameters; extra holds the tool's own
// properties.
func deepzoomSchema(extra map[string]interface{}, required ...string) map[string]interface{} {
	props := map[string]interface{}{
		"path": pathProperty,
		"tile_size": map[string]interface{}{
			"type":        "integer",
			"description": "Tile edge length in pixels, excluding overlap. Defaults to the configured tile size (254)",
		},
		"overlap": map[string]interface{}{
			"type":        "integer",
			"description": "Extra pixels on each interior tile edge. Defaults to the configured overlap (1)",
		},
		"limit_bounds": map[string]interface{}{
			"type":        "boolean",
			"description": "Restrict the pyramid to the slide's non-empty bounds. Defaults to the configured value (true)",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   append([]string{"path"}, required...),
	}
}

var tileAddressProperties = map[string]interface{}{
	"level": map[string]interface{}{
		"type":        "integer",
		"description": "Pyramid level; 0 is the 1x1 level, level_count-1 is full resolution",
	},
	"col": map[string]interface{}{
		"type":        "integer",
		"description": "Tile column (0-based, from left)",
	},
	"row": map[string]interface{}{
		"type":        "integer",
		"description": "Tile row (0-based, from top)",
	},
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Slide Access
		{
			Name:        "slide_open",
			Description: "Open a whole-slide image and return its vendor, discrete levels, downsamples and associated image names. The slide stays open for subsequent calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "slide_properties",
			Description: "List the slide's metadata properties (openslide.vendor, openslide.mpp-x, openslide.bounds-*, ...).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"prefix": map[string]interface{}{
						"type":        "string",
						"description": "Only return properties whose name starts with this prefix",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "slide_associated_image",
			Description: "Return an associated image of the slide, such as the label or macro photograph, as base64.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Associated image name, e.g. \"label\" or \"macro\"",
					},
					"format": formatProperty("png"),
				},
				"required": []string{"path", "name"},
			},
		},
		{
			Name:        "slide_thumbnail",
			Description: "Render a thumbnail of the whole slide that fits within the given size, preserving aspect ratio.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"max_width": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum thumbnail width, at most 4096. Default 512",
						"default":     512,
					},
					"max_height": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum thumbnail height, at most 4096. Default 512",
						"default":     512,
					},
					"format": formatProperty("png"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "slide_read_region",
			Description: "Read a rectangle of pixels from one discrete slide level. The location is in level 0 coordinates; the size is in pixels of the level read. Pixels outside the slide show the background color.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"x": map[string]interface{}{
						"type":        "integer",
						"description": "Left edge in level 0 pixels",
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": "Top edge in level 0 pixels",
					},
					"level": map[string]interface{}{
						"type":        "integer",
						"description": "Discrete level to read. Default 0",
					},
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Region width in level pixels",
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Region height in level pixels",
					},
					"format": formatProperty("png"),
				},
				"required": []string{"path", "x", "y", "width", "height"},
			},
		},
		{
			Name:        "slide_close",
			Description: "Close a slide opened by an earlier call and release its memory.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "slide_label_text",
			Description: "Read the text printed on the slide label using OCR (Tesseract).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Associated image to read. Default \"label\"",
						"default":     "label",
					},
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language code. Defaults to the configured language (eng)",
					},
				},
				"required": []string{"path"},
			},
		},

		// DeepZoom Pyramid
		{
			Name:        "deepzoom_info",
			Description: "Describe the DeepZoom pyramid of a slide: level count, tile count, and per level the size, tile grid and the discrete slide level it is read from.",
			InputSchema: deepzoomSchema(nil),
		},
		{
			Name:        "deepzoom_descriptor",
			Description: "Return the DeepZoom descriptor (.dzi) of a slide as XML, or in the JSON form accepted by OpenSeadragon.",
			InputSchema: deepzoomSchema(map[string]interface{}{
				"format": formatProperty("the configured format"),
				"json": map[string]interface{}{
					"type":        "boolean",
					"description": "Return the JSON form instead of XML. Default false",
					"default":     false,
				},
			}),
		},
		{
			Name:        "deepzoom_tile",
			Description: "Render one DeepZoom tile as base64, including its overlap.",
			InputSchema: deepzoomSchema(merge(tileAddressProperties, map[string]interface{}{
				"format":  formatProperty("the configured format"),
				"quality": qualityProperty,
			}), "level", "col", "row"),
		},
		{
			Name:        "deepzoom_tile_coordinates",
			Description: "Return the slide region read behind a DeepZoom tile (level 0 location, discrete level, read size) and the final tile size, without reading pixels.",
			InputSchema: deepzoomSchema(tileAddressProperties, "level", "col", "row"),
		},
		{
			Name:        "deepzoom_tile_grid",
			Description: "Render a whole pyramid level stitched from its tiles with the tile boundaries drawn over it. Useful for checking seams and tile addressing.",
			InputSchema: deepzoomSchema(map[string]interface{}{
				"level": tileAddressProperties["level"],
				"labels": map[string]interface{}{
					"type":        "boolean",
					"description": "Write the col,row address into each tile. Default true",
					"default":     true,
				},
				"grid_color": map[string]interface{}{
					"type":        "string",
					"description": "Grid line color as hex. Default #FF0000",
					"default":     "#FF0000",
				},
			}, "level"),
		},
		{
			Name:        "deepzoom_export",
			Description: "Write the complete DeepZoom pyramid of a slide to disk as <name>.dzi plus <name>_files/<level>/<col>_<row>.<format>.",
			InputSchema: deepzoomSchema(map[string]interface{}{
				"output_dir": map[string]interface{}{
					"type":        "string",
					"description": "Directory to write into; created if missing",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Base name of the descriptor. Defaults to the slide file name without extension",
				},
				"format":  formatProperty("the configured format"),
				"quality": qualityProperty,
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Tiles encoded in parallel. Defaults to the configured worker count",
				},
			}, "output_dir"),
		},
	}
}

func merge(maps ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
