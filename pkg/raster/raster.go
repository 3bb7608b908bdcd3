// Package raster defines the narrow image interface the container layer
// needs from whatever produced the pixels: read mode, convert to RGB,
// convert to luminance, resize with a high-quality filter. pkg/pattern's
// rasterizer is the only producer in this repo, but the container packages
// (pq, png16, gainmap, export) only ever see this interface.
package raster

import "image"

// Image is the narrow surface the container layer consumes. A bilevel
// test-pattern raster produced by pkg/pattern satisfies it, as would any
// other source that can answer these four questions.
type Image interface {
	// Mode reports the underlying pixel layout ("RGB", "RGBA", "L").
	Mode() string
	// Bounds reports the pixel rectangle, always starting at (0,0).
	Bounds() image.Rectangle
	// ToRGB drops any alpha channel and returns 8-bit RGB samples.
	ToRGB() *image.RGBA
	// ToGray converts to single-channel luminance.
	ToGray() *image.Gray
	// Resize returns a new Image scaled to w x h using a high-quality
	// resampling filter (Lanczos-equivalent).
	Resize(w, h int) Image
}
