package gainmap

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"regexp"
	"strconv"
	"testing"

	"github.com/c0lormem/apltestgen/pkg/pattern"
	"github.com/c0lormem/apltestgen/pkg/raster"
)

func sdrSource(t *testing.T) raster.Image {
	t.Helper()
	img, err := pattern.Rasterize(64, 48, 25, pattern.Rectangle)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	return img
}

func TestAssembleAppleProducesValidMPFJPEG(t *testing.T) {
	out, err := Assemble(Request{Variant: Apple, SDR: sdrSource(t), PeakNits: 1000, SDRWhiteNits: 203})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if out[0] != 0xFF || out[1] != 0xD8 {
		t.Fatal("assembled file does not start with SOI")
	}
	if bytes.Count(out, []byte("http://ns.adobe.com/xap/1.0/\x00")) != 2 {
		t.Error("expected exactly two XMP APP1 payloads")
	}
	if bytes.Count(out, []byte(mpfSigConst())) != 1 {
		t.Error("expected exactly one MPF signature")
	}
	verifySecondaryReachable(t, out)
}

func TestAssembleUltraHDRDownsamplesGainMap(t *testing.T) {
	out, err := Assemble(Request{Variant: UltraHDR, SDR: sdrSource(t), PeakNits: 1000, SDRWhiteNits: 203})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Contains(out, []byte("hdrgm:Version='1.0'")) {
		t.Error("Ultra HDR gain map XMP missing expected namespace marker")
	}
	if !bytes.Contains(out, []byte("Item:Semantic='GainMap'")) {
		t.Error("Ultra HDR primary XMP missing GainMap container item")
	}
	verifySecondaryReachable(t, out)

	// Item:Length in the primary XMP must equal the MPF entry-2 size field:
	// both describe the same secondary JPEG byte count.
	m := regexp.MustCompile(`Item:Length='(\d+)'`).FindSubmatch(out)
	if m == nil {
		t.Fatal("Item:Length not found in Ultra HDR primary XMP")
	}
	declared, err := strconv.Atoi(string(m[1]))
	if err != nil {
		t.Fatalf("parsing Item:Length: %v", err)
	}
	idx := bytes.Index(out, []byte("MPF\x00"))
	bomPos := idx + 4
	entry2Size := int(binary.BigEndian.Uint32(out[bomPos+50+16+4 : bomPos+50+16+8]))
	if declared != entry2Size {
		t.Errorf("Item:Length = %d, MPF entry-2 size = %d; both must equal the gain-map JPEG length", declared, entry2Size)
	}
	secondaryStart := len(out) - entry2Size
	if out[secondaryStart] != 0xFF || out[secondaryStart+1] != 0xD8 {
		t.Errorf("secondary length %d does not align the trailing bytes on an SOI", entry2Size)
	}

	// The 64x48 source must yield a gain map downsampled by GainMapScale per axis.
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out[secondaryStart:]))
	if err != nil {
		t.Fatalf("decoding gain map JPEG config: %v", err)
	}
	if cfg.Width != 64/GainMapScale || cfg.Height != 48/GainMapScale {
		t.Errorf("gain map = %dx%d, want %dx%d", cfg.Width, cfg.Height, 64/GainMapScale, 48/GainMapScale)
	}
}

// verifySecondaryReachable re-locates the MPF signature independently and
// confirms seeking to bo_pos+entry2.offset lands on the secondary JPEG's SOI.
func verifySecondaryReachable(t *testing.T, out []byte) {
	t.Helper()
	idx := bytes.Index(out, []byte("MPF\x00"))
	if idx < 0 {
		t.Fatal("MPF signature not found")
	}
	bomPos := idx + 4
	if !bytes.Equal(out[bomPos:bomPos+2], []byte("MM")) {
		t.Fatalf("byte-order mark not immediately after MPF\\0 signature")
	}
	entry2Start := bomPos + 50 + 16 // IFD block(50) + entry1(16)
	offset := binary.BigEndian.Uint32(out[entry2Start+8 : entry2Start+12])
	secondaryStart := bomPos + int(offset)
	if secondaryStart+1 >= len(out) {
		t.Fatalf("secondary offset %d points past end of file (len %d)", secondaryStart, len(out))
	}
	if out[secondaryStart] != 0xFF || out[secondaryStart+1] != 0xD8 {
		t.Errorf("seeking to secondary offset does not land on SOI, got % x", out[secondaryStart:secondaryStart+2])
	}
}

// mpfSigConst avoids importing the unexported mpf package constant directly;
// this repeats the literal mpf.NewBuilder's payload begins with.
func mpfSigConst() string { return "MPF\x00" }

func TestLuminanceGainMapKnownPixels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 0, G: 0, B: 0, A: 255})

	gray := luminanceGainMap(img)
	if gray.GrayAt(0, 0).Y != 255 {
		t.Errorf("white pixel luma = %d, want 255", gray.GrayAt(0, 0).Y)
	}
	if gray.GrayAt(1, 0).Y != 0 {
		t.Errorf("black pixel luma = %d, want 0", gray.GrayAt(1, 0).Y)
	}
}

func TestLumaRec601Weighting(t *testing.T) {
	got := luma(255, 0, 0)
	want := uint8(math.Round(0.299 * 255))
	if got != want {
		t.Errorf("luma(255,0,0) = %d, want %d", got, want)
	}
}

func TestHeadroomStopsKnownValue(t *testing.T) {
	got := headroomStops(1000, 203)
	want := math.Log2(1000.0 / 203.0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("headroomStops(1000,203) = %v, want %v", got, want)
	}
}

func TestHeadroomStopsClampsNonNegative(t *testing.T) {
	if got := headroomStops(100, 203); got != 0 {
		t.Errorf("headroomStops below SDR white = %v, want 0", got)
	}
}

func TestHeadroomStopsDefaultsSDRWhite(t *testing.T) {
	got := headroomStops(1000, 0)
	want := math.Log2(1000.0 / 203.0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("headroomStops with sdrWhite<=0 = %v, want default-203 result %v", got, want)
	}
}
