// Package png16 hand-builds 16-bit RGB PNG files carrying a cICP chunk (and
// optionally an embedded ICC profile) for HDR10 PQ still-image export.
// stdlib image/png cannot emit cICP or 16-bit RGB with an iCCP chunk, so the
// chunks are framed directly.
package png16

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"

	"github.com/c0lormem/apltestgen/pkg/errs"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// chunk builds a PNG chunk: length(4 BE) + type(4) + data + CRC32(4 BE) over
// type||data.
func chunk(chunkType string, data []byte) []byte {
	out := make([]byte, 0, 12+len(data))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	out = append(out, lenBuf[:]...)
	out = append(out, []byte(chunkType)...)
	out = append(out, data...)

	crc := crc32.ChecksumIEEE(append([]byte(chunkType), data...))
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc)
	out = append(out, crcBuf[:]...)
	return out
}

// CICP is the 4-byte cICP payload: colour_primaries, transfer_function,
// matrix_coefficients, video_full_range_flag.
type CICP struct {
	ColourPrimaries    uint8
	TransferFunction   uint8
	MatrixCoefficients uint8
	FullRange          uint8
}

// BT2020PQFullRange is the cICP value this repository always emits for
// HDR10 PQ PNGs: BT.2020 primaries, PQ transfer, identity matrix, full range.
var BT2020PQFullRange = CICP{ColourPrimaries: 9, TransferFunction: 16, MatrixCoefficients: 0, FullRange: 1}

func cicpChunk(c CICP) []byte {
	data := []byte{c.ColourPrimaries, c.TransferFunction, c.MatrixCoefficients, c.FullRange}
	return chunk("cICP", data)
}

func iccpChunk(iccProfile []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("ICC Profile")
	buf.WriteByte(0) // null terminator
	buf.WriteByte(0) // compression method: deflate

	w := zlib.NewWriter(&buf)
	if _, err := w.Write(iccProfile); err != nil {
		return nil, errs.Wrap(errs.AssertionViolation, "png16.iccpChunk", err)
	}
	if err := w.Close(); err != nil {
		return nil, errs.Wrap(errs.AssertionViolation, "png16.iccpChunk", err)
	}
	return chunk("iCCP", buf.Bytes()), nil
}

// Frame is an H x W x 3 uint16 PQ-encoded raster, row-major.
type Frame struct {
	Width, Height int
	// Samples holds Width*Height*3 values in row-major (R,G,B) order.
	Samples []uint16
}

// Encode builds a complete 16-bit RGB PNG file: signature, IHDR, cICP,
// optional iCCP, IDAT, IEND, in that order.
func Encode(f Frame, iccProfile []byte) ([]byte, error) {
	if len(f.Samples) != f.Width*f.Height*3 {
		return nil, errs.New(errs.AssertionViolation, "png16.Encode", "sample count does not match width*height*3")
	}

	ihdrData := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdrData[0:4], uint32(f.Width))
	binary.BigEndian.PutUint32(ihdrData[4:8], uint32(f.Height))
	ihdrData[8] = 16  // bit depth
	ihdrData[9] = 2   // color type: RGB
	ihdrData[10] = 0  // compression
	ihdrData[11] = 0  // filter
	ihdrData[12] = 0  // interlace
	ihdrChunk := chunk("IHDR", ihdrData)

	cicp := cicpChunk(BT2020PQFullRange)

	var iccp []byte
	if len(iccProfile) > 0 {
		var err error
		iccp, err = iccpChunk(iccProfile)
		if err != nil {
			return nil, err
		}
	}

	rawRows := make([]byte, 0, f.Height*(1+f.Width*6))
	idx := 0
	for y := 0; y < f.Height; y++ {
		rawRows = append(rawRows, 0) // filter byte: None
		for x := 0; x < f.Width; x++ {
			for c := 0; c < 3; c++ {
				var sample [2]byte
				binary.BigEndian.PutUint16(sample[:], f.Samples[idx])
				rawRows = append(rawRows, sample[:]...)
				idx++
			}
		}
	}

	var compressed bytes.Buffer
	w, err := zlib.NewWriterLevel(&compressed, zlib.BestCompression)
	if err != nil {
		return nil, errs.Wrap(errs.AssertionViolation, "png16.Encode", err)
	}
	if _, err := w.Write(rawRows); err != nil {
		return nil, errs.Wrap(errs.AssertionViolation, "png16.Encode", err)
	}
	if err := w.Close(); err != nil {
		return nil, errs.Wrap(errs.AssertionViolation, "png16.Encode", err)
	}
	idatChunk := chunk("IDAT", compressed.Bytes())

	iendChunk := chunk("IEND", nil)

	out := make([]byte, 0, len(pngSignature)+len(ihdrChunk)+len(cicp)+len(iccp)+len(idatChunk)+len(iendChunk))
	out = append(out, pngSignature...)
	out = append(out, ihdrChunk...)
	out = append(out, cicp...)
	out = append(out, iccp...)
	out = append(out, idatChunk...)
	out = append(out, iendChunk...)
	return out, nil
}

// InjectICCPChunk splices an iCCP chunk into an already-encoded PNG file
// (e.g. stdlib image/png's output), placed immediately after IHDR as the
// PNG chunk-ordering rules require. Used for 8-bit SDR PNG export, where
// stdlib image/png has no way to embed an ICC profile itself.
func InjectICCPChunk(pngBytes []byte, iccProfile []byte) ([]byte, error) {
	if len(pngBytes) < len(pngSignature)+8 || !bytes.Equal(pngBytes[:len(pngSignature)], pngSignature) {
		return nil, errs.New(errs.AssertionViolation, "png16.InjectICCPChunk", "input is not a PNG file")
	}
	pos := len(pngSignature)
	length := binary.BigEndian.Uint32(pngBytes[pos : pos+4])
	chunkType := string(pngBytes[pos+4 : pos+8])
	if chunkType != "IHDR" {
		return nil, errs.New(errs.AssertionViolation, "png16.InjectICCPChunk", "first chunk after signature is not IHDR")
	}
	ihdrEnd := pos + 8 + int(length) + 4 // length+type+data+crc

	iccp, err := iccpChunk(iccProfile)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(pngBytes)+len(iccp))
	out = append(out, pngBytes[:ihdrEnd]...)
	out = append(out, iccp...)
	out = append(out, pngBytes[ihdrEnd:]...)
	return out, nil
}

// FrameFromRGB8 builds a PQ Frame from an 8-bit sRGB raster using pkg/pq's
// per-channel transfer pipeline.
func FrameFromRGB8(width, height int, rgb8 []byte, peakNits int, encodeChannel func(uint8, int) uint16) Frame {
	samples := make([]uint16, width*height*3)
	for i := range samples {
		samples[i] = encodeChannel(rgb8[i], peakNits)
	}
	return Frame{Width: width, Height: height, Samples: samples}
}
