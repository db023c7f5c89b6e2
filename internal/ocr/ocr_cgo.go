//go:build cgo && linux

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Available reports whether Tesseract support is built in.
func Available() bool { return true }

// ReadLabel performs OCR on a label image and returns the recognized text.
//
// Parameters:
//   - img: The label image, usually the slide's "label" associated image.
//   - language: Tesseract language code (e.g., "eng"). The corresponding
//     language data must be installed on the system.
//
// Word bounding boxes are reported in the coordinates of img. If word-level
// extraction fails the full text is still returned with no regions.
func ReadLabel(img image.Image, language string) (*OCRResult, error) {
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("label image is empty")
	}
	prepared, scale := prepareLabel(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, prepared); err != nil {
		return nil, fmt.Errorf("failed to encode label: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return &OCRResult{FullText: text, Regions: []TextRegion{}}, nil
	}

	regions := make([]TextRegion, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		regions = append(regions, TextRegion{
			Text:       box.Word,
			Confidence: box.Confidence / 100.0,
			Bounds:     unscale(box.Box, scale),
		})
	}

	return &OCRResult{FullText: text, Regions: regions}, nil
}
