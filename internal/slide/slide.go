package slide

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	imgutil "github.com/ironsheep/slide-tiles-mcp/internal/imaging"
)

// Well-known property names.
const (
	PropertyComment         = "openslide.comment"
	PropertyVendor          = "openslide.vendor"
	PropertyQuickHash1      = "openslide.quickhash-1"
	PropertyBackgroundColor = "openslide.background-color"
	PropertyObjectivePower  = "openslide.objective-power"
	PropertyMPPX            = "openslide.mpp-x"
	PropertyMPPY            = "openslide.mpp-y"
	PropertyBoundsX         = "openslide.bounds-x"
	PropertyBoundsY         = "openslide.bounds-y"
	PropertyBoundsWidth     = "openslide.bounds-width"
	PropertyBoundsHeight    = "openslide.bounds-height"
	PropertyLevelCount      = "openslide.level-count"
)

var (
	// ErrUnusable is wrapped by every error returned from a handle that can
	// no longer serve requests.
	ErrUnusable = errors.New("slide: handle unusable")

	// ErrClosed is returned after Close has been called.
	ErrClosed = fmt.Errorf("%w: closed", ErrUnusable)

	// ErrUnsupportedFormat is returned when a file is not a recognized slide.
	ErrUnsupportedFormat = errors.New("slide: unsupported format")

	// ErrLevel is returned for a discrete level outside [0, LevelCount).
	ErrLevel = errors.New("slide: level out of range")
)

type state int

const (
	stateOpen state = iota
	stateClosed
	stateFailed
)

// Slide is an open whole-slide image.
//
// A Slide is safe for concurrent use: a single mutex guards every call into
// the Backend, since decoders are not assumed to be thread-safe.
//
// Errors latch. Once a backend call fails, the handle moves to a failed
// state and every later operation other than Close returns an error that
// wraps both ErrUnusable and the original failure. Open a new Slide to
// recover.
type Slide struct {
	mu      sync.Mutex
	name    string
	backend Backend
	state   state
	err     error

	dims        []image.Point
	downsamples []float64
	props       *Properties
	associated  *AssociatedImages
}

// New wraps an already opened backend. The slide takes ownership of the
// backend and closes it on Close.
func New(name string, backend Backend) (*Slide, error) {
	dims := backend.LevelDimensions()
	downsamples := backend.LevelDownsamples()
	if len(dims) == 0 {
		return nil, fmt.Errorf("slide %s reports no levels", name)
	}
	if len(downsamples) != len(dims) {
		return nil, fmt.Errorf("slide %s reports %d downsamples for %d levels", name, len(downsamples), len(dims))
	}

	s := &Slide{
		name:        name,
		backend:     backend,
		dims:        append([]image.Point(nil), dims...),
		downsamples: append([]float64(nil), downsamples...),
	}
	s.props = &Properties{
		keys: append([]string(nil), backend.PropertyNames()...),
		get:  s.propertyValue,
	}
	s.associated = &AssociatedImages{
		keys: append([]string(nil), backend.AssociatedImageNames()...),
		get:  s.associatedImage,
	}
	return s, nil
}

// String returns a short description of the slide.
func (s *Slide) String() string {
	return fmt.Sprintf("Slide(%s)", s.name)
}

// Name returns the name or path the slide was opened with.
func (s *Slide) Name() string { return s.name }

// check must be called with s.mu held.
func (s *Slide) check() error {
	switch s.state {
	case stateClosed:
		return ErrClosed
	case stateFailed:
		return fmt.Errorf("%w: %w", ErrUnusable, s.err)
	}
	return nil
}

// fail latches err. Must be called with s.mu held.
func (s *Slide) fail(err error) error {
	s.state = stateFailed
	s.err = err
	return err
}

// Err returns the latched error, ErrClosed for a closed handle, or nil.
func (s *Slide) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check()
}

// Close releases the backend. Calling Close more than once is harmless.
func (s *Slide) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	return s.backend.Close()
}

// Vendor returns the backend's format identifier.
func (s *Slide) Vendor() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return "", err
	}
	return s.backend.Vendor(), nil
}

// LevelCount returns the number of discrete levels.
func (s *Slide) LevelCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	return len(s.dims), nil
}

// Dimensions returns the size of level 0.
func (s *Slide) Dimensions() (image.Point, error) {
	return s.LevelDimensions(0)
}

// LevelDimensions returns the pixel size of a discrete level.
func (s *Slide) LevelDimensions(level int) (image.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return image.Point{}, err
	}
	if level < 0 || level >= len(s.dims) {
		return image.Point{}, fmt.Errorf("%w: %d", ErrLevel, level)
	}
	return s.dims[level], nil
}

// LevelDownsample returns the downsample factor of a discrete level.
func (s *Slide) LevelDownsample(level int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	if level < 0 || level >= len(s.downsamples) {
		return 0, fmt.Errorf("%w: %d", ErrLevel, level)
	}
	return s.downsamples[level], nil
}

// LevelDownsamples returns a copy of every level's downsample factor.
func (s *Slide) LevelDownsamples() ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	return append([]float64(nil), s.downsamples...), nil
}

// AllLevelDimensions returns a copy of every level's size.
func (s *Slide) AllLevelDimensions() ([]image.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	return append([]image.Point(nil), s.dims...), nil
}

// BestLevelForDownsample returns the lowest resolution level whose
// downsample does not exceed downsample. Among levels with equal factors
// the lowest index wins. Downsamples finer than level 0 map to level 0.
func (s *Slide) BestLevelForDownsample(downsample float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	return BestLevel(s.downsamples, downsample), nil
}

// BestLevel applies the BestLevelForDownsample rule to a downsample table.
func BestLevel(downsamples []float64, downsample float64) int {
	best := 0
	for i, d := range downsamples {
		if d <= downsample && d > downsamples[best] {
			best = i
		}
	}
	return best
}

// Property looks up one metadata value.
func (s *Slide) Property(name string) (string, bool, error) {
	return s.propertyValue(name)
}

func (s *Slide) propertyValue(name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return "", false, err
	}
	v, ok, err := s.backend.PropertyValue(name)
	if err != nil {
		return "", false, s.fail(fmt.Errorf("read property %s: %w", name, err))
	}
	return v, ok, nil
}

// Properties returns the slide's metadata map.
func (s *Slide) Properties() (*Properties, error) {
	if err := s.Err(); err != nil {
		return nil, err
	}
	return s.props, nil
}

// AssociatedImages returns the slide's auxiliary image map.
func (s *Slide) AssociatedImages() (*AssociatedImages, error) {
	if err := s.Err(); err != nil {
		return nil, err
	}
	return s.associated, nil
}

func (s *Slide) associatedImage(name string) (*image.NRGBA, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, false, err
	}
	img, ok, err := s.backend.AssociatedImage(name)
	if err != nil {
		return nil, false, s.fail(fmt.Errorf("read associated image %s: %w", name, err))
	}
	return img, ok, nil
}

// ReadRegion reads a rectangle of pixels from a discrete level.
//
// Parameters:
//   - location: Top-left pixel in the level 0 reference frame.
//   - level: Discrete level to read from.
//   - size: Width and height of the region in level pixels.
//
// The returned image is not premultiplied. Pixels outside the slide are
// fully transparent.
func (s *Slide) ReadRegion(location image.Point, level int, size image.Point) (*image.NRGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if level < 0 || level >= len(s.dims) {
		return nil, fmt.Errorf("%w: %d", ErrLevel, level)
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid region size %dx%d", size.X, size.Y)
	}

	img, err := s.backend.ReadRegion(location, level, size)
	if err != nil {
		return nil, s.fail(fmt.Errorf("read region %v level %d size %v: %w", location, level, size, err))
	}
	return img, nil
}

// Background returns the declared background color, or white.
func (s *Slide) Background() (color.NRGBA, error) {
	v, ok, err := s.Property(PropertyBackgroundColor)
	if err != nil {
		return color.NRGBA{}, err
	}
	if !ok {
		return imgutil.DefaultBackground, nil
	}
	c, err := imgutil.ParseBackground(v)
	if err != nil {
		return imgutil.DefaultBackground, nil
	}
	return c, nil
}

// Thumbnail returns an opaque image of the whole slide that fits within limit,
// preserving aspect ratio.
//
// The smallest level that is still at least as detailed as the thumbnail
// scale is read in full, flattened onto the background color, then shrunk.
func (s *Slide) Thumbnail(limit image.Point) (*image.NRGBA, error) {
	if limit.X <= 0 || limit.Y <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size %dx%d", limit.X, limit.Y)
	}
	dims, err := s.Dimensions()
	if err != nil {
		return nil, err
	}

	downsample := float64(dims.X) / float64(limit.X)
	if d := float64(dims.Y) / float64(limit.Y); d > downsample {
		downsample = d
	}
	level, err := s.BestLevelForDownsample(downsample)
	if err != nil {
		return nil, err
	}
	size, err := s.LevelDimensions(level)
	if err != nil {
		return nil, err
	}
	tile, err := s.ReadRegion(image.Point{}, level, size)
	if err != nil {
		return nil, err
	}

	bg, err := s.Background()
	if err != nil {
		return nil, err
	}
	flat := imgutil.Flatten(tile, bg)
	if size.X <= limit.X && size.Y <= limit.Y {
		return flat, nil
	}
	return imaging.Clone(resize.Thumbnail(uint(limit.X), uint(limit.Y), flat, resize.Lanczos3)), nil
}
