//go:build !(cgo && linux)

package ocr

import "image"

// Available reports whether Tesseract support is built in.
func Available() bool { return false }

// ReadLabel always returns ErrUnavailable in builds without Tesseract.
func ReadLabel(img image.Image, language string) (*OCRResult, error) {
	return nil, ErrUnavailable
}
