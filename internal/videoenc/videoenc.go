// Package videoenc exports still-frame test-pattern videos by shelling out
// to ffmpeg: SDR 8-bit YUV420P, or HDR10 10-bit PQ with SMPTE ST 2086
// mastering-display and MaxCLL/MaxFALL SEI metadata for H.265.
package videoenc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/c0lormem/apltestgen/internal/models"
	"github.com/c0lormem/apltestgen/pkg/colorspace"
	"github.com/c0lormem/apltestgen/pkg/export"
	"github.com/c0lormem/apltestgen/pkg/png16"
	"github.com/c0lormem/apltestgen/pkg/pq"
)

const (
	outputFPS     = 30
	durationSecs  = 5
	hdrInputFPS   = 1
	ffmpegTimeout = 300 * time.Second
)

// FindFFmpeg locates the ffmpeg binary on PATH.
func FindFFmpeg() (string, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("videoenc: ffmpeg not found on PATH: %w", err)
	}
	return path, nil
}

type masteringPrimaries struct {
	R, G, B, WP [2]int
}

var masteringPrimariesTable = map[colorspace.Tag]masteringPrimaries{
	colorspace.Rec2020:   {R: [2]int{35400, 14600}, G: [2]int{8500, 39850}, B: [2]int{6550, 2300}, WP: [2]int{15635, 16450}},
	colorspace.DisplayP3: {R: [2]int{34000, 16000}, G: [2]int{13250, 34500}, B: [2]int{7500, 3000}, WP: [2]int{15635, 16450}},
}

// masteringDisplayString builds the x265 master-display SEI parameter
// (SMPTE ST 2086): G(..)B(..)R(..)WP(..)L(maxLum,minLum), chromaticity in
// units of 0.00002, luminance in units of 0.0001 cd/m^2.
func masteringDisplayString(cs colorspace.Tag, peakNits int) string {
	p, ok := masteringPrimariesTable[cs]
	if !ok {
		p = masteringPrimariesTable[colorspace.Rec2020]
	}
	maxLum := peakNits * 10000
	const minLum = 50
	return fmt.Sprintf("G(%d,%d)B(%d,%d)R(%d,%d)WP(%d,%d)L(%d,%d)",
		p.G[0], p.G[1], p.B[0], p.B[1], p.R[0], p.R[1], p.WP[0], p.WP[1], maxLum, minLum)
}

// colorParams returns the FFmpeg VUI colour-metadata flags for req.
func colorParams(req models.GenerateRequest) map[string]string {
	if req.HdrMode != export.HdrNone {
		return map[string]string{"colorspace": "bt2020nc", "color_primaries": "bt2020", "color_trc": "smpte2084"}
	}
	switch req.ColorSpace {
	case colorspace.Rec2020:
		return map[string]string{"colorspace": "bt2020nc", "color_primaries": "bt2020", "color_trc": "bt709"}
	case colorspace.DisplayP3:
		return map[string]string{"colorspace": "bt709", "color_primaries": "smpte432", "color_trc": "bt709"}
	default:
		return map[string]string{"colorspace": "bt709", "color_primaries": "bt709", "color_trc": "bt709"}
	}
}

func codecFor(format export.Format) string {
	if format == export.FormatH265 {
		return "libx265"
	}
	return "libx264"
}

// BuildFilename differs from export.BuildFilename only in using the video
// peak luminance, appending the bare codec name, and adding the .mp4
// extension.
func BuildFilename(req models.GenerateRequest, videoPeakNits int) string {
	name := fmt.Sprintf("APL_%03dpct_%dx%d_%s_%s", req.APLPercent, req.Width, req.Height, req.Shape, req.ColorSpace)
	if req.HdrMode != export.HdrNone {
		name += fmt.Sprintf("_%s_%dnits", req.HdrMode, videoPeakNits)
	}
	codec := codecFor(req.ExportFormat)
	name += "_" + codec[len("lib"):]
	return name + ".mp4"
}

// Export produces a 5-second still-frame video from sdrImage, dispatching
// to the SDR or HDR10 pipeline per req.HdrMode.
func Export(ctx context.Context, req models.GenerateRequest, sdrImage image.Image, videoPeakNits int) (string, error) {
	ffmpegPath, err := FindFFmpeg()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(req.OutputDirectory, 0o755); err != nil {
		return "", fmt.Errorf("videoenc: creating output directory: %w", err)
	}

	outputPath := filepath.Join(req.OutputDirectory, BuildFilename(req, videoPeakNits))
	codec := codecFor(req.ExportFormat)
	params := colorParams(req)

	if req.HdrMode != export.HdrNone {
		if err := exportHDR(ctx, ffmpegPath, codec, params, req, sdrImage, videoPeakNits, outputPath); err != nil {
			return "", err
		}
	} else {
		if err := exportSDR(ctx, ffmpegPath, codec, params, sdrImage, outputPath); err != nil {
			return "", err
		}
	}
	return outputPath, nil
}

func exportSDR(ctx context.Context, ffmpegPath, codec string, params map[string]string, img image.Image, outputPath string) error {
	tmp, err := os.CreateTemp("", "apltestgen-*.png")
	if err != nil {
		return fmt.Errorf("videoenc: creating temp frame: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("videoenc: encoding temp frame: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("videoenc: closing temp frame: %w", err)
	}

	args := []string{
		"-y", "-loop", "1", "-i", tmpPath,
		"-c:v", codec, "-t", fmt.Sprint(durationSecs), "-r", fmt.Sprint(outputFPS),
		"-pix_fmt", "yuv420p",
	}
	args = append(args, colorFlagArgs(params)...)
	if codec == "libx264" {
		args = append(args, "-preset", "medium", "-crf", "18")
	} else {
		args = append(args, "-preset", "medium", "-crf", "20")
	}
	args = append(args, outputPath)

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("videoenc: ffmpeg failed: %s", tail(stderr.String(), 500))
	}
	return nil
}

func exportHDR(ctx context.Context, ffmpegPath, codec string, params map[string]string, req models.GenerateRequest, sdrImage image.Image, peakNits int, outputPath string) error {
	b := sdrImage.Bounds()
	width, height := b.Dx(), b.Dy()
	rgb8 := make([]byte, 0, width*height*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := sdrImage.At(x, y).RGBA()
			rgb8 = append(rgb8, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}
	frame := png16.FrameFromRGB8(width, height, rgb8, peakNits, pq.EncodeChannel)
	frameBytes := make([]byte, 0, len(frame.Samples)*2)
	for _, s := range frame.Samples {
		frameBytes = append(frameBytes, byte(s), byte(s>>8)) // rgb48le: little-endian per sample
	}

	numInputFrames := durationSecs * hdrInputFPS

	args := []string{
		"-y", "-f", "rawvideo", "-pix_fmt", "rgb48le",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprint(hdrInputFPS), "-i", "pipe:0",
		"-t", fmt.Sprint(durationSecs), "-r", fmt.Sprint(outputFPS),
		"-c:v", codec, "-pix_fmt", "yuv420p10le",
	}
	args = append(args, colorFlagArgs(params)...)

	maxFALL := int(float64(req.APLPercent) / 100.0 * float64(peakNits))
	if maxFALL < 1 {
		maxFALL = 1
	}

	if codec == "libx265" {
		masterDisplay := masteringDisplayString(req.ColorSpace, peakNits)
		x265Params := fmt.Sprintf(
			"colorprim=bt2020:transfer=smpte2084:colormatrix=bt2020nc:master-display=%s:max-cll=%d,%d:hdr10-opt=1:repeat-headers=1",
			masterDisplay, peakNits, maxFALL,
		)
		args = append(args, "-preset", "medium", "-crf", "20", "-x265-params", x265Params)
	} else {
		args = append(args, "-preset", "medium", "-crf", "18")
	}
	args = append(args, outputPath)

	runCtx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, ffmpegPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("videoenc: opening ffmpeg stdin: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("videoenc: starting ffmpeg: %w", err)
	}

	for i := 0; i < numInputFrames; i++ {
		if _, err := stdin.Write(frameBytes); err != nil {
			cmd.Process.Kill()
			return fmt.Errorf("videoenc: writing frame to ffmpeg: %w", err)
		}
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("videoenc: ffmpeg failed: %s", tail(stderr.String(), 500))
	}
	return nil
}

func colorFlagArgs(params map[string]string) []string {
	keys := []string{"colorspace", "color_primaries", "color_trc"}
	var args []string
	for _, k := range keys {
		if v, ok := params[k]; ok {
			args = append(args, "-"+k, v)
		}
	}
	return args
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
