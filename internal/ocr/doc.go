// Package ocr reads the text printed on slide labels using Tesseract.
//
// Most scanners photograph the slide label and store it as the "label"
// associated image. This package wraps the Tesseract OCR engine (via
// gosseract/v2) to turn that photograph into text, typically a case number,
// stain name or barcode caption.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr libtesseract-dev
//   - macOS: brew install tesseract
//
// Language data files are required for each language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr-eng (for English)
//   - Other languages: tesseract-ocr-<lang> packages
//
// # Build Constraints
//
// The Tesseract bindings need cgo and are only built on Linux. Other builds
// compile a stub whose ReadLabel returns ErrUnavailable; Available reports
// which variant is linked.
//
// # Preprocessing
//
// Label photographs are small and often tinted. Before recognition the
// image is flattened onto white, converted to grayscale and, when smaller
// than MinLabelSide, upscaled so that printed characters are large enough
// for the engine.
package ocr
