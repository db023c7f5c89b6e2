package deepzoom

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	imgutil "github.com/ironsheep/slide-tiles-mcp/internal/imaging"
	"github.com/ironsheep/slide-tiles-mcp/internal/slide"
)

var (
	// ErrInvalidConfig reports bad construction parameters or unusable
	// slide geometry. It is only returned by New.
	ErrInvalidConfig = errors.New("deepzoom: invalid configuration")

	// ErrOutOfRange reports a level or tile address outside the pyramid.
	ErrOutOfRange = errors.New("deepzoom: out of range")
)

// Source is the slide a Generator reads from. *slide.Slide satisfies it.
type Source interface {
	LevelCount() (int, error)
	LevelDimensions(level int) (image.Point, error)
	LevelDownsample(level int) (float64, error)
	Property(name string) (string, bool, error)
	ReadRegion(location image.Point, level int, size image.Point) (*image.NRGBA, error)
}

// Options configures a Generator.
type Options struct {
	// TileSize is the width and height of a tile, excluding overlap. For
	// best viewer performance TileSize + 2*Overlap should be a power of two.
	TileSize int

	// Overlap is the number of extra pixels added to each interior edge.
	Overlap int

	// LimitBounds restricts the pyramid to the slide's declared bounds
	// rectangle instead of the full image.
	LimitBounds bool
}

// Region holds the arguments of the single region read behind a tile.
type Region struct {
	// Location is the top-left pixel in level 0 coordinates, bounds
	// offset included.
	Location image.Point

	// Level is the discrete slide level read.
	Level int

	// Size is the read size in pixels of Level.
	Size image.Point
}

// Generator serves a slide as a DeepZoom tile pyramid.
//
// Geometry is derived once in New and never changes, so a Generator is safe
// for concurrent use whenever its Source is. The Generator does not own the
// Source; the caller must keep it open for the Generator's lifetime and
// close it afterwards.
type Generator struct {
	src  Source
	opts Options
	bg   color.NRGBA

	// l0Offset is the bounds origin in level 0 pixels.
	l0Offset image.Point
	// lDimensions are the discrete level sizes, scaled to the bounds.
	lDimensions []image.Point
	// l0LDownsamples are the discrete levels' downsample factors.
	l0LDownsamples []float64

	zDimensions    []image.Point
	tDimensions    []image.Point
	l0ZDownsamples []float64
	slideFromZ     []int
	lZDownsamples  []float64
}

// New derives the pyramid geometry for src.
//
// # Errors
//
//   - ErrInvalidConfig if TileSize <= 0 or Overlap < 0
//   - ErrInvalidConfig if the slide reports no levels, a non-positive level
//     size, or malformed bounds properties
//   - Any error returned by src, unchanged
func New(src Source, opts Options) (*Generator, error) {
	if opts.TileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size %d must be positive", ErrInvalidConfig, opts.TileSize)
	}
	if opts.Overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %d must not be negative", ErrInvalidConfig, opts.Overlap)
	}

	count, err := src.LevelCount()
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: slide has %d levels", ErrInvalidConfig, count)
	}

	g := &Generator{
		src:            src,
		opts:           opts,
		lDimensions:    make([]image.Point, count),
		l0LDownsamples: make([]float64, count),
	}

	dims := make([]image.Point, count)
	for l := 0; l < count; l++ {
		if dims[l], err = src.LevelDimensions(l); err != nil {
			return nil, err
		}
		if dims[l].X <= 0 || dims[l].Y <= 0 {
			return nil, fmt.Errorf("%w: slide level %d has size %dx%d", ErrInvalidConfig, l, dims[l].X, dims[l].Y)
		}
		if g.l0LDownsamples[l], err = src.LevelDownsample(l); err != nil {
			return nil, err
		}
	}

	if opts.LimitBounds {
		origin, size, err := readBounds(src, dims[0])
		if err != nil {
			return nil, err
		}
		g.l0Offset = origin
		sx := float64(size.X) / float64(dims[0].X)
		sy := float64(size.Y) / float64(dims[0].Y)
		for l, d := range dims {
			g.lDimensions[l] = image.Pt(
				int(math.Ceil(float64(d.X)*sx)),
				int(math.Ceil(float64(d.Y)*sy)),
			)
		}
		// Scaling level 0 by its own ratio must give the bounds size exactly.
		g.lDimensions[0] = size
	} else {
		copy(g.lDimensions, dims)
	}

	z := g.lDimensions[0]
	zDims := []image.Point{z}
	for z.X > 1 || z.Y > 1 {
		z = image.Pt(max(1, (z.X+1)/2), max(1, (z.Y+1)/2))
		zDims = append(zDims, z)
	}
	for i, j := 0, len(zDims)-1; i < j; i, j = i+1, j-1 {
		zDims[i], zDims[j] = zDims[j], zDims[i]
	}
	g.zDimensions = zDims

	n := len(zDims)
	g.tDimensions = make([]image.Point, n)
	g.l0ZDownsamples = make([]float64, n)
	g.slideFromZ = make([]int, n)
	g.lZDownsamples = make([]float64, n)
	for i, zd := range zDims {
		g.tDimensions[i] = image.Pt(ceilDiv(zd.X, opts.TileSize), ceilDiv(zd.Y, opts.TileSize))
		g.l0ZDownsamples[i] = math.Ldexp(1, n-1-i)
		g.slideFromZ[i] = slide.BestLevel(g.l0LDownsamples, g.l0ZDownsamples[i])
		g.lZDownsamples[i] = g.l0ZDownsamples[i] / g.l0LDownsamples[g.slideFromZ[i]]
	}

	g.bg = imgutil.DefaultBackground
	if v, ok, err := src.Property(slide.PropertyBackgroundColor); err != nil {
		return nil, err
	} else if ok {
		if c, err := imgutil.ParseBackground(v); err == nil {
			g.bg = c
		}
	}

	return g, nil
}

// readBounds resolves the bounds rectangle. Missing properties default to
// the full image.
func readBounds(src Source, full image.Point) (origin, size image.Point, err error) {
	props := []struct {
		name string
		def  int
		dst  *int
	}{
		{slide.PropertyBoundsX, 0, &origin.X},
		{slide.PropertyBoundsY, 0, &origin.Y},
		{slide.PropertyBoundsWidth, full.X, &size.X},
		{slide.PropertyBoundsHeight, full.Y, &size.Y},
	}
	for _, p := range props {
		v, ok, err := src.Property(p.name)
		if err != nil {
			return image.Point{}, image.Point{}, err
		}
		if !ok {
			*p.dst = p.def
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return image.Point{}, image.Point{}, fmt.Errorf("%w: property %s=%q is not a non-negative integer", ErrInvalidConfig, p.name, v)
		}
		*p.dst = n
	}
	if size.X == 0 || size.Y == 0 {
		return image.Point{}, image.Point{}, fmt.Errorf("%w: empty bounds %dx%d", ErrInvalidConfig, size.X, size.Y)
	}
	return origin, size, nil
}

func ceilDiv(a, b int) int {
	n := a / b
	if a%b != 0 {
		n++
	}
	return n
}

// tileBounds returns a tile's own rectangle in level pixels and the same
// rectangle grown by the overlap on interior edges. Both are clipped to the
// level.
func (g *Generator) tileBounds(level int, address image.Point) (tile, outer image.Rectangle) {
	ts, ov := g.opts.TileSize, g.opts.Overlap
	zDim := g.zDimensions[level]
	tiles := g.tDimensions[level]

	tile.Min = image.Pt(address.X*ts, address.Y*ts)
	tile.Max = tile.Min.Add(image.Pt(min(ts, zDim.X-tile.Min.X), min(ts, zDim.Y-tile.Min.Y)))

	outer = tile
	if address.X > 0 {
		outer.Min.X -= min(ov, tile.Min.X)
	}
	if address.Y > 0 {
		outer.Min.Y -= min(ov, tile.Min.Y)
	}
	if address.X < tiles.X-1 {
		outer.Max.X += min(ov, zDim.X-tile.Max.X)
	}
	if address.Y < tiles.Y-1 {
		outer.Max.Y += min(ov, zDim.Y-tile.Max.Y)
	}
	return tile, outer
}

// String describes the generator and its configuration.
func (g *Generator) String() string {
	return fmt.Sprintf("DeepZoomGenerator(%v, tile_size=%d, overlap=%d, limit_bounds=%t)",
		g.src, g.opts.TileSize, g.opts.Overlap, g.opts.LimitBounds)
}

// Options returns the construction parameters.
func (g *Generator) Options() Options { return g.opts }

// Background returns the slide background color used when flattening tiles.
func (g *Generator) Background() color.NRGBA { return g.bg }

// LevelCount returns the number of pyramid levels.
func (g *Generator) LevelCount() int { return len(g.zDimensions) }

// LevelTiles returns the (columns, rows) tile grid of every level, smallest
// level first.
func (g *Generator) LevelTiles() []image.Point {
	return append([]image.Point(nil), g.tDimensions...)
}

// LevelDimensions returns the pixel size of every level, smallest level
// first. The last entry is the (bounds limited) full resolution size.
func (g *Generator) LevelDimensions() []image.Point {
	return append([]image.Point(nil), g.zDimensions...)
}

// TileCount returns the total number of tiles across all levels.
func (g *Generator) TileCount() int {
	n := 0
	for _, t := range g.tDimensions {
		n += t.X * t.Y
	}
	return n
}

// SlideLevel returns the discrete slide level that supplies a pyramid level
// and the factor by which reads from it are scaled down. The factor is
// always at least 1.
func (g *Generator) SlideLevel(level int) (int, float64, error) {
	if err := g.checkLevel(level); err != nil {
		return 0, 0, err
	}
	return g.slideFromZ[level], g.lZDownsamples[level], nil
}

func (g *Generator) checkLevel(level int) error {
	if level < 0 || level >= len(g.zDimensions) {
		return fmt.Errorf("%w: level %d not in [0, %d)", ErrOutOfRange, level, len(g.zDimensions))
	}
	return nil
}

// tileInfo computes the read region and final size of one tile.
func (g *Generator) tileInfo(level int, address image.Point) (Region, image.Point, error) {
	if err := g.checkLevel(level); err != nil {
		return Region{}, image.Point{}, err
	}
	tiles := g.tDimensions[level]
	if address.X < 0 || address.X >= tiles.X || address.Y < 0 || address.Y >= tiles.Y {
		return Region{}, image.Point{}, fmt.Errorf("%w: address (%d, %d) not in %dx%d grid of level %d",
			ErrOutOfRange, address.X, address.Y, tiles.X, tiles.Y, level)
	}

	slideLevel := g.slideFromZ[level]
	_, outer := g.tileBounds(level, address)
	zSize := outer.Size()
	zLoc := outer.Min

	lz := g.lZDownsamples[level]
	lDim := g.lDimensions[slideLevel]
	lx := math.Ceil(lz * float64(zLoc.X))
	ly := math.Ceil(lz * float64(zLoc.Y))

	zds := g.l0ZDownsamples[level]
	region := Region{
		Location: image.Pt(
			int(zds*float64(zLoc.X))+g.l0Offset.X,
			int(zds*float64(zLoc.Y))+g.l0Offset.Y,
		),
		Level: slideLevel,
		Size: image.Pt(
			max(1, min(int(math.Ceil(lz*float64(zSize.X))), lDim.X-int(lx))),
			max(1, min(int(math.Ceil(lz*float64(zSize.Y))), lDim.Y-int(ly))),
		),
	}
	return region, zSize, nil
}

// TileCoordinates returns the region read that backs a tile, for callers
// that perform the read themselves.
func (g *Generator) TileCoordinates(level int, address image.Point) (Region, error) {
	r, _, err := g.tileInfo(level, address)
	return r, err
}

// TileDimensions returns a tile's final pixel size, overlap included,
// without reading it.
func (g *Generator) TileDimensions(level int, address image.Point) (image.Point, error) {
	_, size, err := g.tileInfo(level, address)
	return size, err
}

// Tile reads one tile.
//
// Exactly one region is read from the source. When the read size differs
// from the tile size (the discrete level is finer than the pyramid level,
// or the read was clipped at the slide edge) the region is resampled with
// a Lanczos filter. The result is not flattened; transparent pixels outside
// the slide remain transparent.
//
// # Errors
//
//   - ErrOutOfRange for an invalid level or address; nothing is read
//   - Any error returned by the source's ReadRegion, unchanged
func (g *Generator) Tile(level int, address image.Point) (*image.NRGBA, error) {
	region, size, err := g.tileInfo(level, address)
	if err != nil {
		return nil, err
	}
	tile, err := g.src.ReadRegion(region.Location, region.Level, region.Size)
	if err != nil {
		return nil, err
	}
	if tile.Bounds().Size() != size {
		tile = imaging.Resize(tile, size.X, size.Y, imaging.Lanczos)
	}
	return tile, nil
}
