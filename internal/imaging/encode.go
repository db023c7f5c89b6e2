package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
)

// Supported tile container formats.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatBMP  = "bmp"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 75

// EncodeResult contains an encoded image ready to be returned to MCP clients.
type EncodeResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// NormalizeFormat maps a user supplied format name to one of the Format
// constants. "jpg" is accepted as an alias for "jpeg".
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "bmp":
		return FormatBMP, nil
	}
	return "", fmt.Errorf("unsupported image format: %q", format)
}

// MimeType returns the MIME type of a normalized format.
func MimeType(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatBMP:
		return "image/bmp"
	}
	return "application/octet-stream"
}

// Encode flattens img onto bg and writes it to w in the given format.
//
// Quality applies to JPEG only; values outside 1-100 fall back to
// DefaultQuality.
func Encode(w io.Writer, img image.Image, format string, quality int, bg color.NRGBA) error {
	f, err := NormalizeFormat(format)
	if err != nil {
		return err
	}

	var enc imgio.Encoder
	switch f {
	case FormatJPEG:
		if quality < 1 || quality > 100 {
			quality = DefaultQuality
		}
		enc = imgio.JPEGEncoder(quality)
	case FormatPNG:
		enc = imgio.PNGEncoder()
	case FormatBMP:
		enc = imgio.BMPEncoder()
	}

	if err := enc(w, Flatten(img, bg)); err != nil {
		return fmt.Errorf("failed to encode %s image: %w", f, err)
	}
	return nil
}

// EncodeBase64 encodes img like Encode and wraps the bytes for a JSON response.
func EncodeBase64(img image.Image, format string, quality int, bg color.NRGBA) (*EncodeResult, error) {
	f, err := NormalizeFormat(format)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, img, f, quality, bg); err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &EncodeResult{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    MimeType(f),
	}, nil
}
