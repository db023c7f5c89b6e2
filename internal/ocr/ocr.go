package ocr

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"

	imgutil "github.com/ironsheep/slide-tiles-mcp/internal/imaging"
)

// ErrUnavailable is returned by ReadLabel when the binary was built without
// Tesseract support.
var ErrUnavailable = errors.New("ocr: tesseract support not built in")

// MinLabelSide is the shorter side, in pixels, that labels are upscaled to
// before recognition.
const MinLabelSide = 600

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// TextRegion represents a recognized word with its location and confidence.
type TextRegion struct {
	// Text is the recognized text content.
	Text string `json:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Bounds is the bounding box around this word in the original label
	// image, before any upscaling.
	Bounds Bounds `json:"bounds"`
}

// OCRResult contains the text read from a label.
type OCRResult struct {
	// FullText is all recognized text with original spacing and newlines.
	FullText string `json:"full_text"`

	// Regions contains individual words. May be empty if bounding box
	// extraction fails; the text is still in FullText.
	Regions []TextRegion `json:"regions"`
}

// prepareLabel flattens, desaturates and upscales a label image. It returns
// the prepared image and the factor it was scaled by.
func prepareLabel(img image.Image) (*image.NRGBA, float64) {
	flat := imgutil.Flatten(img, imgutil.DefaultBackground)
	gray := imaging.Grayscale(flat)

	b := gray.Bounds()
	short := min(b.Dx(), b.Dy())
	if short == 0 || short >= MinLabelSide {
		return gray, 1
	}
	scale := float64(MinLabelSide) / float64(short)
	w := int(float64(b.Dx())*scale + 0.5)
	h := int(float64(b.Dy())*scale + 0.5)
	return imaging.Resize(gray, w, h, imaging.Lanczos), scale
}

// unscale maps a box on the prepared image back to the original label.
func unscale(r image.Rectangle, scale float64) Bounds {
	return Bounds{
		X1: int(float64(r.Min.X) / scale),
		Y1: int(float64(r.Min.Y) / scale),
		X2: int(float64(r.Max.X)/scale + 0.5),
		Y2: int(float64(r.Max.Y)/scale + 0.5),
	}
}
