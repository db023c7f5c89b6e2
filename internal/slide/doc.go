// Package slide provides access to whole-slide images.
//
// A whole-slide image is a multi-resolution pyramid: level 0 holds the full
// resolution scan and each further discrete level a downsampled copy. This
// package exposes those levels, the slide's metadata properties and its
// associated images (label, macro) through the Slide handle.
//
// # Coordinate System
//
// Region reads take their top-left location in the level 0 reference frame,
// regardless of which level is read; the size is given in pixels of the
// level being read. Pixels outside the slide are transparent.
//
// # Handle Lifecycle
//
// A Slide is Open until Close is called or a backend call fails. Failures
// latch: every later call returns an error wrapping ErrUnusable, and the
// caller must open a new handle. Close is always allowed and idempotent.
//
// # Thread Safety
//
// Slide and Cache are safe for concurrent use. Every backend call runs
// under the handle's mutex, so concurrent region reads on one slide are
// serialized.
//
// # Formats
//
// Open accepts any raster with a registered decoder (TIFF, BMP, WebP, PNG,
// JPEG, GIF) and builds the discrete levels in memory. Metadata that such
// files cannot carry, such as bounds or a background color, is read from an
// optional YAML sidecar next to the file.
package slide
