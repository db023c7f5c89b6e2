// Package deepzoom serves a whole-slide image as a DeepZoom tile pyramid.
//
// A DeepZoom pyramid is synthetic: its levels come from repeatedly halving
// the full resolution size (rounding up) until a single pixel remains, no
// matter which discrete levels the slide stores. Level 0 is the 1x1 level
// and the last level is full resolution. Each level is cut into a grid of
// TileSize tiles addressed by (column, row); the last column and row are
// truncated to the remaining pixels, and tiles overlap their neighbours by
// Overlap pixels on interior edges only.
//
// # Level Selection
//
// A pyramid level with downsample D = 2^(LevelCount-1-level) is read from
// the lowest resolution discrete level whose own downsample does not exceed
// D. Reads are therefore never upscaled. When the discrete level is finer
// than D the read region is resampled to the tile size.
//
// # Bounds
//
// With LimitBounds set, the pyramid covers only the rectangle declared by
// the openslide.bounds-* properties. Missing properties default to the full
// image.
//
// # Thread Safety
//
// A Generator is immutable after New. Concurrent Tile calls are safe when
// the Source is; *slide.Slide serializes its reads internally. Nothing is
// cached: every Tile call performs one region read.
package deepzoom
