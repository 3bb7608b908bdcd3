// Package makerapple builds the minimal MakerApple TIFF IFD that drives
// iOS to honor an HDR gain map regardless of its APL ("type II" mode).
package makerapple

import (
	"encoding/binary"
	"math"
)

// APP1Prefix is the mandatory EXIF APP1 payload prefix.
const APP1Prefix = "Exif\x00\x00"

const (
	tagMakerNote  = 0x927C
	typeUndefined = 7
	typeFloat     = 11

	tagHDRGain  = 0x0021
	tagHDRGain2 = 0x0030

	hdrGainValue1 = float32(1.01)
	hdrGainValue2 = float32(0.009986)
)

func put16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func put32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }

// Build returns the complete TIFF block (without the "Exif\0\0" prefix):
// "MM" + magic 0x002A + IFD0-offset 8, IFD0 with one MakerNote entry
// pointing at the MakerApple IFD, and the MakerApple IFD itself.
func Build() []byte {
	// MakerApple IFD: "Apple\0\0\0" signature + two FLOAT entries +
	// next-IFD-offset 0.
	appleIFD := make([]byte, 0, 8+12+12+4)
	appleIFD = append(appleIFD, []byte("Apple\x00\x00\x00")...)
	appleIFD = append(appleIFD, buildFloatEntry(tagHDRGain, hdrGainValue1)...)
	appleIFD = append(appleIFD, buildFloatEntry(tagHDRGain2, hdrGainValue2)...)
	appleIFD = append(appleIFD, 0, 0, 0, 0) // next-IFD offset

	// IFD0 value-offset = immediately after IFD0 itself: 8 (TIFF header)
	// + 2 (entry count) + 12 (one entry) + 4 (next-IFD offset) = 26.
	const ifd0ValueOffset = 8 + 2 + 12 + 4

	ifd0 := make([]byte, 0, 2+12+4)
	var count [2]byte
	put16(count[:], 1)
	ifd0 = append(ifd0, count[:]...)

	entry := make([]byte, 12)
	put16(entry[0:2], tagMakerNote)
	put16(entry[2:4], typeUndefined)
	put32(entry[4:8], uint32(len(appleIFD)))
	put32(entry[8:12], ifd0ValueOffset)
	ifd0 = append(ifd0, entry...)
	ifd0 = append(ifd0, 0, 0, 0, 0) // next-IFD offset

	tiff := make([]byte, 0, 8+len(ifd0)+len(appleIFD))
	tiff = append(tiff, []byte("MM")...)
	tiff = append(tiff, 0x00, 0x2A)
	var ifd0Off [4]byte
	put32(ifd0Off[:], 8)
	tiff = append(tiff, ifd0Off[:]...)
	tiff = append(tiff, ifd0...)
	tiff = append(tiff, appleIFD...)
	return tiff
}

func buildFloatEntry(tag uint16, value float32) []byte {
	e := make([]byte, 12)
	put16(e[0:2], tag)
	put16(e[2:4], typeFloat)
	put32(e[4:8], 1)
	put32(e[8:12], math.Float32bits(value))
	return e
}

// BuildAPP1Payload returns the full "Exif\0\0"-prefixed payload ready for
// pkg/jpegmarker.InjectAPP1AfterSOI.
func BuildAPP1Payload() []byte {
	tiff := Build()
	out := make([]byte, 0, len(APP1Prefix)+len(tiff))
	out = append(out, []byte(APP1Prefix)...)
	out = append(out, tiff...)
	return out
}
