// Package export is the dispatch layer that turns one generate request into
// bytes on disk: it wraps the pattern rasterizer, the color space registry,
// and the container builders behind a single Export call dispatching on
// (Format, HdrMode).
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/c0lormem/apltestgen/pkg/colorspace"
	"github.com/c0lormem/apltestgen/pkg/errs"
	"github.com/c0lormem/apltestgen/pkg/gainmap"
	"github.com/c0lormem/apltestgen/pkg/jpegmarker"
	"github.com/c0lormem/apltestgen/pkg/pattern"
	"github.com/c0lormem/apltestgen/pkg/png16"
	"github.com/c0lormem/apltestgen/pkg/pq"
)

// HdrMode selects how (and whether) HDR metadata is attached to the output.
type HdrMode string

const (
	HdrNone         HdrMode = "none"
	HdrAppleGainMap HdrMode = "apple_gainmap"
	HdrUltraHDR     HdrMode = "ultra_hdr"
	HdrHDR10PQ      HdrMode = "hdr10_pq"
)

// Format is the set of export containers this repository supports. HEIF is
// absent: no usable Go HEIF encoder exists. Neither request validation nor
// Export checks a Format against this set, so a request naming HEIF (or any
// other unknown value) is not rejected; Export dispatches it as it would png.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatH264 Format = "h264"
	FormatH265 Format = "h265"
)

const sdrJPEGQuality = 98

// Request mirrors export_service.py's GenerateRequest fields relevant to
// dispatch.
type Request struct {
	OutputDirectory string
	Width, Height   int
	APLPercent      int
	Shape           pattern.Shape
	ColorSpace      colorspace.Tag
	Format          Format
	HdrMode         HdrMode
	HdrPeakNits     int
	SDRWhiteNits    float64
}

// Response reports where bytes landed and how many there were.
type Response struct {
	OutputPath string
	FileSize   int64
}

// BuildFilename produces
// "APL_{pct:03d}pct_{w}x{h}_{shape}_{colorspace}[_{hdrmode}_{peak}nits]",
// with no extension. Batch output directories rely on this never colliding
// across the parameters of one sweep.
func BuildFilename(req Request) string {
	name := fmt.Sprintf("APL_%03dpct_%dx%d_%s_%s", req.APLPercent, req.Width, req.Height, req.Shape, req.ColorSpace)
	if req.HdrMode != HdrNone {
		name += fmt.Sprintf("_%s_%dnits", req.HdrMode, req.HdrPeakNits)
	}
	return name
}

// cache is the process-wide memoized ICC profile cache.
var cache = colorspace.NewCache()

// Export runs the appropriate pipeline for req and writes the result under
// req.OutputDirectory.
func Export(req Request) (Response, error) {
	if err := os.MkdirAll(req.OutputDirectory, 0o755); err != nil {
		return Response{}, errs.Wrap(errs.WriteFailed, "export.Export", err)
	}

	iccProfile, err := cache.Profile(req.ColorSpace)
	if err != nil {
		return Response{}, err
	}

	filename := BuildFilename(req)

	switch {
	case req.Format == FormatH264 || req.Format == FormatH265:
		return Response{}, errs.New(errs.AssertionViolation, "export.Export", "video export is handled by internal/videoenc, not pkg/export")

	case req.HdrMode == HdrHDR10PQ:
		return exportHDR10PQ(req, filename, iccProfile)

	case req.HdrMode == HdrAppleGainMap || req.HdrMode == HdrUltraHDR:
		return exportGainMapJPEG(req, filename, iccProfile)

	case req.Format == FormatJPEG:
		return exportSDRJPEG(req, filename, iccProfile)

	default: // FormatPNG, HdrNone
		return exportSDRPNG(req, filename, iccProfile)
	}
}

func writeFile(dir, filename, ext string, data []byte) (Response, error) {
	path := filepath.Join(dir, filename+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Response{}, errs.Wrap(errs.WriteFailed, "export.writeFile", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Response{}, errs.Wrap(errs.WriteFailed, "export.writeFile", err)
	}
	return Response{OutputPath: path, FileSize: info.Size()}, nil
}

func exportSDRPNG(req Request, filename string, iccProfile []byte) (Response, error) {
	img, err := pattern.Rasterize(req.Width, req.Height, req.APLPercent, req.Shape)
	if err != nil {
		return Response{}, err
	}
	data, err := encodeSDRPNG(img.ToRGB(), iccProfile)
	if err != nil {
		return Response{}, err
	}
	return writeFile(req.OutputDirectory, filename, ".png", data)
}

// encodeSDRPNG uses stdlib image/png for the 8-bit SDR path; image/png has
// no way to embed an ICC profile, so the profile is spliced in as an iCCP
// chunk afterward — same technique pkg/png16 uses natively for the 16-bit
// PQ path.
func encodeSDRPNG(img image.Image, iccProfile []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errs.Wrap(errs.AssertionViolation, "export.encodeSDRPNG", err)
	}
	if len(iccProfile) == 0 {
		return buf.Bytes(), nil
	}
	return png16.InjectICCPChunk(buf.Bytes(), iccProfile)
}

func exportSDRJPEG(req Request, filename string, iccProfile []byte) (Response, error) {
	img, err := pattern.Rasterize(req.Width, req.Height, req.APLPercent, req.Shape)
	if err != nil {
		return Response{}, err
	}
	data, err := encodeBaselineJPEG(img.ToRGB(), sdrJPEGQuality, iccProfile)
	if err != nil {
		return Response{}, err
	}
	return writeFile(req.OutputDirectory, filename, ".jpg", data)
}

func exportHDR10PQ(req Request, filename string, iccProfile []byte) (Response, error) {
	img, err := pattern.Rasterize(req.Width, req.Height, req.APLPercent, req.Shape)
	if err != nil {
		return Response{}, err
	}
	rgba := img.ToRGB()
	b := rgba.Bounds()
	width, height := b.Dx(), b.Dy()

	rgb8 := make([]byte, 0, width*height*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := rgba.RGBAAt(x, y)
			rgb8 = append(rgb8, c.R, c.G, c.B)
		}
	}

	frame := png16.FrameFromRGB8(width, height, rgb8, req.HdrPeakNits, pq.EncodeChannel)
	data, err := png16.Encode(frame, iccProfile)
	if err != nil {
		return Response{}, err
	}
	return writeFile(req.OutputDirectory, filename, ".png", data)
}

func exportGainMapJPEG(req Request, filename string, iccProfile []byte) (Response, error) {
	img, err := pattern.RasterizeRGBA(req.Width, req.Height, req.APLPercent, req.Shape)
	if err != nil {
		return Response{}, err
	}
	variant := gainmap.Apple
	if req.HdrMode == HdrUltraHDR {
		variant = gainmap.UltraHDR
	}
	sdrWhite := req.SDRWhiteNits
	if sdrWhite <= 0 {
		sdrWhite = 203.0
	}
	data, err := gainmap.Assemble(gainmap.Request{
		Variant:      variant,
		SDR:          img,
		ICCProfile:   iccProfile,
		PeakNits:     req.HdrPeakNits,
		SDRWhiteNits: sdrWhite,
	})
	if err != nil {
		return Response{}, err
	}
	return writeFile(req.OutputDirectory, filename, ".jpg", data)
}

// encodeBaselineJPEG mirrors the encoder pkg/gainmap binds, so a plain SDR
// JPEG export carries the same ICC convention as the gain-map path.
func encodeBaselineJPEG(img image.Image, quality int, iccProfile []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errs.Wrap(errs.AssertionViolation, "export.encodeBaselineJPEG", err)
	}
	out := buf.Bytes()
	if len(iccProfile) == 0 {
		return out, nil
	}
	const iccAPP2Marker = "ICC_PROFILE\x00"
	payload := make([]byte, 0, len(iccAPP2Marker)+2+len(iccProfile))
	payload = append(payload, []byte(iccAPP2Marker)...)
	payload = append(payload, 1, 1)
	payload = append(payload, iccProfile...)
	injected, err := jpegmarker.InjectAPP2AfterSOI(out, payload)
	if err != nil {
		return nil, errs.Wrap(errs.AssertionViolation, "export.encodeBaselineJPEG", err)
	}
	return injected, nil
}
