// Package imaging provides the pixel helpers shared by the slide and tile
// packages.
//
// This package implements background color parsing, compositing of
// transparent slide regions onto an opaque background, tile encoding
// (JPEG, PNG, BMP) and tile grid overlays. All operations work with standard
// Go image.Image types and use a coordinate system where (0,0) is at the
// top-left corner, X increases rightward, and Y increases downward.
//
// # Transparency
//
// Slide reads return non-premultiplied RGBA with fully transparent pixels
// outside the scanned area. Every encoder here flattens onto a background
// first, since JPEG and BMP cannot carry alpha and viewers expect the slide
// background rather than black.
//
// # Color Representation
//
// Background colors are written as six hex digits, with or without a
// leading '#' (e.g. "FFFFFF" as stored by scanners, or "#f0f0f0"). The three
// digit shorthand is also accepted.
//
// # Thread Safety
//
// All functions are stateless and can be called concurrently. Inputs are
// never modified.
package imaging
