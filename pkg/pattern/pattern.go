// Package pattern generates APL (Average Picture Level) test-pattern
// rasters: a black background with a white rectangle or circle whose area
// is approximately apl_percent of the frame.
package pattern

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nfnt/resize"

	"github.com/c0lormem/apltestgen/pkg/raster"
)

// Shape selects which figure is drawn.
type Shape string

const (
	Rectangle Shape = "rectangle"
	Circle    Shape = "circle"
)

// CalcRectangle returns the top-left corner and dimensions of the white
// rectangle for the given frame size and APL percentage.
//
//	scale = sqrt(apl/100), rect_w/h = round(dim * scale), centered.
func CalcRectangle(width, height, aplPercent int) (x, y, rectW, rectH int) {
	scale := math.Sqrt(float64(aplPercent) / 100.0)
	rectW = int(math.Round(float64(width) * scale))
	rectH = int(math.Round(float64(height) * scale))
	x = (width - rectW) / 2
	y = (height - rectH) / 2
	return x, y, rectW, rectH
}

// CalcCircle returns the center and radius of the white circle for the
// given frame size and APL percentage: radius = sqrt(apl*w*h/(100*pi)).
func CalcCircle(width, height, aplPercent int) (cx, cy int, radius float64) {
	radius = math.Sqrt(float64(aplPercent) * float64(width) * float64(height) / (100.0 * math.Pi))
	cx = width / 2
	cy = height / 2
	return cx, cy, radius
}

// Raster wraps a stdlib image and satisfies raster.Image.
type Raster struct {
	mode string
	img  image.Image
}

func (r *Raster) Mode() string            { return r.mode }
func (r *Raster) Bounds() image.Rectangle { return r.img.Bounds() }

func (r *Raster) ToRGB() *image.RGBA {
	b := r.img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, r.img, b.Min, draw.Src)
	// Force alpha to opaque: JPEG has no alpha channel and the bilevel
	// invariant is only about R,G,B.
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := out.RGBAAt(x, y)
			c.A = 255
			out.SetRGBA(x, y, c)
		}
	}
	return out
}

func (r *Raster) ToGray() *image.Gray {
	b := r.img.Bounds()
	out := image.NewGray(b)
	draw.Draw(out, b, r.img, b.Min, draw.Src)
	return out
}

func (r *Raster) Resize(w, h int) raster.Image {
	resized := resize.Resize(uint(w), uint(h), r.img, resize.Lanczos3)
	return &Raster{mode: r.mode, img: resized}
}

var _ raster.Image = (*Raster)(nil)

func validateDims(width, height, aplPercent int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("pattern: width and height must be positive, got %dx%d", width, height)
	}
	if aplPercent < 1 || aplPercent > 100 {
		return fmt.Errorf("pattern: apl_percent must be in [1,100], got %d", aplPercent)
	}
	return nil
}

// drawShape paints the requested shape in white onto a black mode-typed image.
func drawShape(img draw.Image, width, height, aplPercent int, shape Shape, fill color.Color) {
	switch shape {
	case Circle:
		cx, cy, radius := CalcCircle(width, height, aplPercent)
		r := int(math.Round(radius))
		r2 := r * r
		for y := cy - r; y <= cy+r; y++ {
			if y < 0 || y >= height {
				continue
			}
			dy := y - cy
			for x := cx - r; x <= cx+r; x++ {
				if x < 0 || x >= width {
					continue
				}
				dx := x - cx
				if dx*dx+dy*dy <= r2 {
					img.Set(x, y, fill)
				}
			}
		}
	default: // Rectangle
		x, y, rw, rh := CalcRectangle(width, height, aplPercent)
		for yy := y; yy < y+rh; yy++ {
			if yy < 0 || yy >= height {
				continue
			}
			for xx := x; xx < x+rw; xx++ {
				if xx < 0 || xx >= width {
					continue
				}
				img.Set(xx, yy, fill)
			}
		}
	}
}

// RasterizeGray draws the pattern in 8-bit grayscale ("L" mode).
func RasterizeGray(width, height, aplPercent int, shape Shape) (raster.Image, error) {
	if err := validateDims(width, height, aplPercent); err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	drawShape(img, width, height, aplPercent, shape, color.Gray{Y: 255})
	return &Raster{mode: "L", img: img}, nil
}

// Rasterize draws the bilevel pattern in RGB. Every pixel is exactly
// (0,0,0) or (255,255,255); the gain-map derivation depends on this.
func Rasterize(width, height, aplPercent int, shape Shape) (raster.Image, error) {
	if err := validateDims(width, height, aplPercent); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	drawShape(img, width, height, aplPercent, shape, color.White)
	return &Raster{mode: "RGB", img: img}, nil
}

// RasterizeRGBA is an alias kept for the HDR export path, which requests an
// RGBA source separately from the SDR RGB path; the bilevel invariant makes
// the two identical once alpha is forced opaque.
func RasterizeRGBA(width, height, aplPercent int, shape Shape) (raster.Image, error) {
	return Rasterize(width, height, aplPercent, shape)
}
