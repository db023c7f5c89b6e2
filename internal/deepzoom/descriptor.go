package deepzoom

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
)

// Namespace is the DeepZoom schema namespace.
const Namespace = "http://schemas.microsoft.com/deepzoom/2008"

// Descriptor is a DeepZoom image descriptor (.dzi).
//
// It carries only the full resolution size and tile parameters; viewers
// derive the per-level geometry themselves by halving with ceiling rounding.
type Descriptor struct {
	XMLName  xml.Name       `xml:"Image" json:"-"`
	Xmlns    string         `xml:"xmlns,attr" json:"xmlns"`
	Format   string         `xml:"Format,attr" json:"Format"`
	Overlap  int            `xml:"Overlap,attr" json:"Overlap"`
	TileSize int            `xml:"TileSize,attr" json:"TileSize"`
	Size     DescriptorSize `xml:"Size" json:"Size"`
}

// DescriptorSize is the full resolution image size.
type DescriptorSize struct {
	Width  int `xml:"Width,attr" json:"Width"`
	Height int `xml:"Height,attr" json:"Height"`
}

// Descriptor returns the descriptor for tiles stored with the given format
// extension (e.g. "jpeg").
func (g *Generator) Descriptor(format string) (*Descriptor, error) {
	format = strings.TrimSpace(format)
	if format == "" {
		return nil, fmt.Errorf("deepzoom: empty tile format")
	}
	full := g.zDimensions[len(g.zDimensions)-1]
	return &Descriptor{
		Xmlns:    Namespace,
		Format:   format,
		Overlap:  g.opts.Overlap,
		TileSize: g.opts.TileSize,
		Size:     DescriptorSize{Width: full.X, Height: full.Y},
	}, nil
}

// DZI returns the XML descriptor document for format.
func (g *Generator) DZI(format string) (string, error) {
	d, err := g.Descriptor(format)
	if err != nil {
		return "", err
	}
	b, err := d.XML()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// XML encodes the descriptor as a .dzi document.
func (d *Descriptor) XML() ([]byte, error) {
	b, err := xml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return append([]byte(xml.Header), b...), nil
}

// JSON encodes the descriptor in the JSON form accepted by OpenSeadragon:
// {"Image": {...}}.
func (d *Descriptor) JSON() ([]byte, error) {
	b, err := json.Marshal(struct {
		Image *Descriptor `json:"Image"`
	}{d})
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return b, nil
}
