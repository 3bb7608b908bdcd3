// Package gainmap assembles Apple and Ultra HDR gain-map JPEGs from a
// raster source: encode the SDR base, derive a grayscale gain map from its
// luminance, encode that as a second JPEG with its own XMP, and stitch both
// through an MPF APP2 segment. The baseline JPEG encoder is stdlib
// image/jpeg, treated as an opaque byte producer.
package gainmap

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/nfnt/resize"

	"github.com/c0lormem/apltestgen/pkg/errs"
	"github.com/c0lormem/apltestgen/pkg/jpegmarker"
	"github.com/c0lormem/apltestgen/pkg/makerapple"
	"github.com/c0lormem/apltestgen/pkg/mpf"
	"github.com/c0lormem/apltestgen/pkg/raster"
	"github.com/c0lormem/apltestgen/pkg/xmp"
)

// GainMapScale is the per-axis downsample factor Ultra HDR applies to the
// gain map.
const GainMapScale = 4

const (
	sdrJPEGQuality     = 98
	gainMapJPEGQuality = 90
)

// Variant selects which HDR convention's XMP/EXIF rules apply.
type Variant int

const (
	Apple Variant = iota
	UltraHDR
)

// Request carries everything the compositor needs to produce one MPF JPEG.
type Request struct {
	Variant      Variant
	SDR          raster.Image // bilevel RGB source
	ICCProfile   []byte       // may be nil
	PeakNits     int
	SDRWhiteNits float64
}

// Assemble runs the full pipeline and returns the final MPF JPEG bytes.
func Assemble(req Request) ([]byte, error) {
	sdrRGBA := req.SDR.ToRGB()

	grayLuma := luminanceGainMap(sdrRGBA)

	var gainMapSource image.Image = grayLuma
	if req.Variant == UltraHDR {
		w := grayLuma.Bounds().Dx() / GainMapScale
		h := grayLuma.Bounds().Dy() / GainMapScale
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		gainMapSource = resize.Resize(uint(w), uint(h), grayLuma, resize.Lanczos3)
	}

	sdrJPEG, err := encodeBaselineJPEG(sdrRGBA, sdrJPEGQuality, req.ICCProfile)
	if err != nil {
		return nil, err
	}

	gainMapJPEG, err := encodeBaselineJPEG(gainMapSource, gainMapJPEGQuality, nil)
	if err != nil {
		return nil, err
	}

	headroom := headroomStops(req.PeakNits, req.SDRWhiteNits)

	var gainXMP []byte
	switch req.Variant {
	case UltraHDR:
		gainXMP, err = xmp.UltraHDRGainMap(headroom)
	default:
		gainXMP, err = xmp.AppleGainMap(headroom)
	}
	if err != nil {
		return nil, err
	}
	gainMapJPEG, err = jpegmarker.InjectAPP1AfterSOI(gainMapJPEG, xmp.WrapAPP1Payload(gainXMP))
	if err != nil {
		return nil, errs.Wrap(errs.AssertionViolation, "gainmap.Assemble", err)
	}

	var primaryXMP []byte
	switch req.Variant {
	case UltraHDR:
		primaryXMP, err = xmp.UltraHDRPrimary(len(gainMapJPEG))
	default:
		primaryXMP, err = xmp.ApplePrimary(headroom)
	}
	if err != nil {
		return nil, err
	}
	xmpSegment := jpegmarker.BuildAppSegment(jpegmarker.APP1, xmp.WrapAPP1Payload(primaryXMP))

	var exifSegment []byte
	if req.Variant == Apple {
		hasExif, err := jpegmarker.HasExifAPP1(sdrJPEG)
		if err != nil {
			return nil, err
		}
		if !hasExif {
			// Only inject MakerApple if the baseline encoder did not
			// already emit an EXIF APP1; never splice into an existing one.
			// stdlib image/jpeg never writes EXIF, so with this encoder the
			// skip branch is dead code, kept for substitute encoders.
			exifSegment = jpegmarker.BuildAppSegment(jpegmarker.APP1, makerapple.BuildAPP1Payload())
		}
	}

	if err := jpegmarker.CheckSOI(sdrJPEG); err != nil {
		return nil, err
	}
	primaryFrom2 := sdrJPEG[2:]

	builder := mpf.NewBuilder(len(gainMapJPEG))
	assembled, err := builder.Patch(exifSegment, xmpSegment, primaryFrom2, gainMapJPEG)
	if err != nil {
		return nil, err
	}
	return assembled.Bytes(), nil
}

// encodeBaselineJPEG wraps stdlib image/jpeg at the given quality, with an
// optional ICC profile injected as an APP2 segment per the ICC.1:2010
// convention.
func encodeBaselineJPEG(img image.Image, quality int, iccProfile []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errs.Wrap(errs.AssertionViolation, "gainmap.encodeBaselineJPEG", err)
	}
	out := buf.Bytes()
	if len(iccProfile) == 0 {
		return out, nil
	}
	injected, err := jpegmarker.InjectAPP2AfterSOI(out, iccAPP2Payload(iccProfile))
	if err != nil {
		return nil, errs.Wrap(errs.AssertionViolation, "gainmap.encodeBaselineJPEG", err)
	}
	return injected, nil
}

const iccAPP2Marker = "ICC_PROFILE\x00"

// iccAPP2Payload wraps an ICC profile in the single-segment ICC.1:2010 APP2
// convention: marker string, sequence number 1, total chunks 1, then the
// raw profile. Multi-segment splitting is unnecessary here since these
// profiles are well under the 64KB APP2 limit.
func iccAPP2Payload(profile []byte) []byte {
	out := make([]byte, 0, len(iccAPP2Marker)+2+len(profile))
	out = append(out, []byte(iccAPP2Marker)...)
	out = append(out, 1, 1)
	out = append(out, profile...)
	return out
}

// luminanceGainMap derives a grayscale gain map by Rec. 601 luminance
// conversion of the SDR raster. The raster is bilevel, so luminance alone
// is the gain map; no tone mapping is involved.
func luminanceGainMap(img *image.RGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			out.Set(x, y, color.Gray{Y: luma(c.R, c.G, c.B)})
		}
	}
	return out
}

func luma(r, g, b uint8) uint8 {
	y := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	return uint8(math.Round(clamp(y, 0, 255)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// headroomStops computes log2(peak/sdrWhite), clamped to a non-negative
// floor.
func headroomStops(peakNits int, sdrWhiteNits float64) float64 {
	if sdrWhiteNits <= 0 {
		sdrWhiteNits = 203.0
	}
	h := math.Log2(float64(peakNits) / sdrWhiteNits)
	if h < 0 {
		return 0
	}
	return h
}
