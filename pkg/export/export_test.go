package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/c0lormem/apltestgen/pkg/colorspace"
	"github.com/c0lormem/apltestgen/pkg/pattern"
)

func baseRequest(t *testing.T, format Format, hdr HdrMode) Request {
	t.Helper()
	return Request{
		OutputDirectory: t.TempDir(),
		Width:           64,
		Height:          64,
		APLPercent:      20,
		Shape:           pattern.Rectangle,
		ColorSpace:      colorspace.Rec709,
		Format:          format,
		HdrMode:         hdr,
		HdrPeakNits:     1000,
	}
}

func TestBuildFilenameSDR(t *testing.T) {
	req := Request{Width: 1920, Height: 1080, APLPercent: 20, Shape: pattern.Rectangle, ColorSpace: colorspace.Rec709, HdrMode: HdrNone}
	got := BuildFilename(req)
	want := "APL_020pct_1920x1080_rectangle_rec709"
	if got != want {
		t.Errorf("BuildFilename = %q, want %q", got, want)
	}
}

func TestBuildFilenameHDR(t *testing.T) {
	req := Request{Width: 1920, Height: 1080, APLPercent: 5, Shape: pattern.Circle, ColorSpace: colorspace.Rec2020, HdrMode: HdrAppleGainMap, HdrPeakNits: 1000}
	got := BuildFilename(req)
	want := "APL_005pct_1920x1080_circle_rec2020_apple_gainmap_1000nits"
	if got != want {
		t.Errorf("BuildFilename = %q, want %q", got, want)
	}
}

func TestExportSDRPNG(t *testing.T) {
	req := baseRequest(t, FormatPNG, HdrNone)
	resp, err := Export(req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if resp.FileSize == 0 {
		t.Fatal("exported file reported zero size")
	}
	data, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}) {
		t.Error("exported PNG is missing its signature")
	}
}

func TestExportSDRPNGEmbedsICCP(t *testing.T) {
	req := baseRequest(t, FormatPNG, HdrNone)
	resp, err := Export(req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.Contains(data, []byte("iCCP")) {
		t.Error("exported PNG should carry an iCCP chunk for a known color space")
	}
}

func TestExportSDRJPEG(t *testing.T) {
	req := baseRequest(t, FormatJPEG, HdrNone)
	resp, err := Export(req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("exported JPEG does not start with SOI")
	}
}

func TestExportHDR10PQPNG(t *testing.T) {
	req := baseRequest(t, FormatPNG, HdrHDR10PQ)
	resp, err := Export(req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	idx := bytes.Index(data, []byte("cICP"))
	if idx < 0 {
		t.Fatal("cICP chunk not found")
	}
	payload := data[idx+4 : idx+8]
	if !bytes.Equal(payload, []byte{9, 16, 0, 1}) {
		t.Errorf("cICP payload = % x, want 09 10 00 01", payload)
	}
	idHdrIdx := bytes.Index(data, []byte("IHDR"))
	bitDepth := data[idHdrIdx+4+8]
	colorType := data[idHdrIdx+4+9]
	if bitDepth != 16 {
		t.Errorf("bit depth = %d, want 16", bitDepth)
	}
	if colorType != 2 {
		t.Errorf("color type = %d, want 2", colorType)
	}
}

func TestExportAppleGainMapJPEG(t *testing.T) {
	req := baseRequest(t, FormatJPEG, HdrAppleGainMap)
	req.APLPercent = 20
	req.HdrPeakNits = 1000
	resp, err := Export(req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatal("Apple HDR JPEG does not start with SOI")
	}
	if bytes.Count(data, []byte("http://ns.adobe.com/xap/1.0/\x00")) != 2 {
		t.Error("expected exactly two XMP APP1 payloads (primary + gain map)")
	}
	// log2(1000/203) formatted to six decimals.
	if !bytes.Contains(data, []byte("HDRGainMap:HDRGainMapHeadroom='2.300448'")) {
		t.Error("missing expected headroom for peak=1000")
	}
	if bytes.Count(data, []byte("MPF\x00")) != 1 {
		t.Error("expected exactly one MPF signature")
	}
}

func TestExportUltraHDRJPEG(t *testing.T) {
	req := baseRequest(t, FormatJPEG, HdrUltraHDR)
	resp, err := Export(req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.Contains(data, []byte("Item:Semantic='Primary'")) || !bytes.Contains(data, []byte("Item:Semantic='GainMap'")) {
		t.Error("Ultra HDR primary XMP missing Container:Directory items")
	}
	if !bytes.Contains(data, []byte("hdrgm:GainMapMax='2.300448'")) {
		t.Error("Ultra HDR secondary XMP missing GainMapMax")
	}
}

func TestExportRejectsUnsupportedColorSpace(t *testing.T) {
	req := baseRequest(t, FormatPNG, HdrNone)
	req.ColorSpace = colorspace.Tag("nonsense")
	if _, err := Export(req); err == nil {
		t.Error("Export should reject an unknown color space")
	}
}

func TestExportCreatesOutputDirectory(t *testing.T) {
	req := baseRequest(t, FormatPNG, HdrNone)
	req.OutputDirectory = filepath.Join(req.OutputDirectory, "nested", "dir")
	resp, err := Export(req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := os.Stat(resp.OutputPath); err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}
}
