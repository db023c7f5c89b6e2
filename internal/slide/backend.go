package slide

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// Backend is the native decoder behind a Slide.
//
// A Backend reports the discrete levels stored in the file and reads pixel
// rectangles from them. Implementations need not be safe for concurrent use;
// Slide serializes every call.
type Backend interface {
	// Vendor identifies the file format, e.g. "generic-tiff".
	Vendor() string

	// LevelDimensions returns the pixel size of every discrete level,
	// index 0 being full resolution.
	LevelDimensions() []image.Point

	// LevelDownsamples returns each level's downsample relative to level 0.
	LevelDownsamples() []float64

	// PropertyNames lists the metadata keys in a stable order.
	PropertyNames() []string

	// PropertyValue returns the value of one metadata key.
	PropertyValue(name string) (string, bool, error)

	// AssociatedImageNames lists the auxiliary images (label, macro, ...).
	AssociatedImageNames() []string

	// AssociatedImage decodes one auxiliary image.
	AssociatedImage(name string) (*image.NRGBA, bool, error)

	// ReadRegion reads a size.X by size.Y rectangle from level, with
	// location given in level 0 coordinates. Pixels outside the image are
	// transparent.
	ReadRegion(location image.Point, level int, size image.Point) (*image.NRGBA, error)

	// Close releases decoder resources.
	Close() error
}

// ImageOptions configures an ImageBackend.
type ImageOptions struct {
	// Vendor reported by the backend. Defaults to "generic-image".
	Vendor string

	// Levels caps the number of discrete levels. Zero means no cap.
	Levels int

	// MinLevelSize stops level generation once both dimensions of a level
	// are at most this many pixels. Defaults to 256.
	MinLevelSize int

	// Properties are extra metadata merged over the generated keys.
	Properties map[string]string

	// Associated are auxiliary images keyed by name.
	Associated map[string]image.Image
}

// ImageBackend serves a decoded raster as a multi-level slide.
//
// Level 0 is the raster itself; each further level halves the previous one
// (rounding up) until the size limit is reached, the way pyramidal TIFF
// scanners store their overviews.
type ImageBackend struct {
	vendor      string
	levels      []*image.NRGBA
	dims        []image.Point
	downsamples []float64
	props       map[string]string
	propNames   []string
	associated  map[string]image.Image
	assocNames  []string
}

// NewImageBackend builds the discrete pyramid for img.
func NewImageBackend(img image.Image, opts ImageOptions) (*ImageBackend, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("image has invalid dimensions %dx%d", b.Dx(), b.Dy())
	}
	if opts.Vendor == "" {
		opts.Vendor = "generic-image"
	}
	if opts.MinLevelSize <= 0 {
		opts.MinLevelSize = 256
	}

	base := imaging.Clone(img)
	levels := []*image.NRGBA{base}
	w, h := b.Dx(), b.Dy()
	for (w > opts.MinLevelSize || h > opts.MinLevelSize) && (w > 1 || h > 1) {
		if opts.Levels > 0 && len(levels) >= opts.Levels {
			break
		}
		w, h = (w+1)/2, (h+1)/2
		levels = append(levels, imaging.Resize(levels[len(levels)-1], w, h, imaging.Box))
	}

	be := &ImageBackend{
		vendor:     opts.Vendor,
		levels:     levels,
		props:      make(map[string]string),
		associated: make(map[string]image.Image),
	}

	w0, h0 := float64(b.Dx()), float64(b.Dy())
	for i, l := range levels {
		d := l.Bounds().Size()
		be.dims = append(be.dims, d)
		ds := (w0/float64(d.X) + h0/float64(d.Y)) / 2
		if i == 0 {
			ds = 1
		}
		be.downsamples = append(be.downsamples, ds)

		be.props[fmt.Sprintf("openslide.level[%d].width", i)] = fmt.Sprint(d.X)
		be.props[fmt.Sprintf("openslide.level[%d].height", i)] = fmt.Sprint(d.Y)
		be.props[fmt.Sprintf("openslide.level[%d].downsample", i)] = fmt.Sprint(ds)
	}
	be.props[PropertyVendor] = opts.Vendor
	be.props[PropertyLevelCount] = fmt.Sprint(len(levels))
	for k, v := range opts.Properties {
		be.props[k] = v
	}
	for k := range be.props {
		be.propNames = append(be.propNames, k)
	}
	sort.Strings(be.propNames)

	for k, v := range opts.Associated {
		be.associated[k] = v
		be.assocNames = append(be.assocNames, k)
	}
	sort.Strings(be.assocNames)

	return be, nil
}

func (b *ImageBackend) Vendor() string { return b.vendor }

func (b *ImageBackend) LevelDimensions() []image.Point { return b.dims }

func (b *ImageBackend) LevelDownsamples() []float64 { return b.downsamples }

func (b *ImageBackend) PropertyNames() []string { return b.propNames }

func (b *ImageBackend) AssociatedImageNames() []string { return b.assocNames }

func (b *ImageBackend) Close() error { return nil }

func (b *ImageBackend) PropertyValue(name string) (string, bool, error) {
	v, ok := b.props[name]
	return v, ok, nil
}

func (b *ImageBackend) AssociatedImage(name string) (*image.NRGBA, bool, error) {
	img, ok := b.associated[name]
	if !ok {
		return nil, false, nil
	}
	return imaging.Clone(img), true, nil
}

func (b *ImageBackend) ReadRegion(location image.Point, level int, size image.Point) (*image.NRGBA, error) {
	if level < 0 || level >= len(b.levels) {
		return nil, fmt.Errorf("%w: %d", ErrLevel, level)
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid region size %dx%d", size.X, size.Y)
	}

	ds := b.downsamples[level]
	origin := image.Pt(
		int(math.Floor(float64(location.X)/ds)),
		int(math.Floor(float64(location.Y)/ds)),
	)

	dst := imaging.New(size.X, size.Y, color.NRGBA{})
	src := b.levels[level]
	want := image.Rectangle{Min: origin, Max: origin.Add(size)}
	have := want.Intersect(src.Bounds())
	if have.Empty() {
		return dst, nil
	}
	return imaging.Paste(dst, imaging.Crop(src, have), have.Min.Sub(origin)), nil
}
