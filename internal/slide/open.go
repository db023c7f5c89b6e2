package slide

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io/fs"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
	"gopkg.in/yaml.v3"
)

// SidecarSuffix is appended to a slide path to find its optional metadata
// file.
const SidecarSuffix = ".yaml"

// Sidecar holds metadata that plain raster formats cannot carry.
//
// A sidecar lives next to the slide as "<slide path>.yaml":
//
//	levels: 4
//	properties:
//	  openslide.bounds-x: "10"
//	  openslide.bounds-y: "20"
//	  openslide.background-color: "F0F0F0"
//	associated:
//	  label: label.png
//
// Associated image paths are relative to the slide's directory.
type Sidecar struct {
	Levels       int               `yaml:"levels"`
	MinLevelSize int               `yaml:"minLevelSize"`
	Properties   map[string]string `yaml:"properties"`
	Associated   map[string]string `yaml:"associated"`
}

// DetectFormat returns the vendor string for a file, e.g. "generic-tiff".
//
// # Errors
//
//   - Returns an error wrapping fs.ErrNotExist if the file does not exist
//   - Returns ErrUnsupportedFormat if no registered decoder recognizes it
func DetectFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open slide: %w", err)
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return "generic-" + format, nil
}

// Open opens a slide file and builds its discrete levels.
//
// If "<path>.yaml" exists it is read as a Sidecar and its properties and
// associated images are attached to the slide.
func Open(path string) (*Slide, error) {
	vendor, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	sc, err := LoadSidecar(path + SidecarSuffix)
	if err != nil {
		return nil, err
	}

	opts := ImageOptions{
		Vendor:       vendor,
		Levels:       sc.Levels,
		MinLevelSize: sc.MinLevelSize,
		Properties:   sc.Properties,
		Associated:   make(map[string]image.Image, len(sc.Associated)),
	}
	dir := filepath.Dir(path)
	for name, rel := range sc.Associated {
		p := rel
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, rel)
		}
		a, err := decodeFile(p)
		if err != nil {
			return nil, fmt.Errorf("associated image %s: %w", name, err)
		}
		opts.Associated[name] = a
	}

	backend, err := NewImageBackend(img, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build slide levels: %w", err)
	}
	return New(path, backend)
}

// LoadSidecar reads a sidecar file. A missing file yields an empty Sidecar.
func LoadSidecar(path string) (*Sidecar, error) {
	sc := &Sidecar{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return sc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("failed to parse sidecar %s: %w", path, err)
	}
	return sc, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
