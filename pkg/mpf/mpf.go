// Package mpf assembles the Multi-Picture Format (CIPA DC-007) APP2 segment
// that glues a primary (SDR) JPEG and a secondary (gain-map) JPEG into one
// file. The primary-size and secondary-offset fields are only known after
// full layout, so the lifecycle is two-phase — placeholders written, then
// patched — and that is modeled as a type: Builder only ever yields an
// Assembled value through Patch; an unpatched buffer cannot be read.
package mpf

import (
	"encoding/binary"

	"github.com/c0lormem/apltestgen/pkg/errs"
)

const (
	mpfSignature  = "MPF\x00"
	typeUndefined = 7
	typeLong      = 4

	tagMPFVersion     = 0xB000
	tagNumberOfImages = 0xB001
	tagMPEntry        = 0xB002

	mpEntryBlockOffset = 8 + 2 + 3*12 + 4 // 50: BOM + count + 3 entries + next-IFD
	mpEntrySize        = 16

	attrPrimary   = 0x20030000
	attrSecondary = 0x00000000
)

func put16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func put32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }

// Builder holds the unpatched MPF APP2 payload: placeholders for the two
// backpatched u32 fields (entry-1 size, entry-2 offset) are present but not
// yet meaningful. Reading Builder's bytes directly is not exposed; only
// Patch produces output.
type Builder struct {
	payload []byte // full APP2 payload: "MPF\0" + TIFF block
	// byte offsets (within payload) of the two fields Patch must fill in.
	entry1SizeOff   int
	entry2OffsetOff int
	secondarySize   uint32
}

// NewBuilder lays out the MPF IFD: signature, BOM, magic,
// IFD0 offset 8, three entries (MPFVersion, NumberOfImages=2, MPEntry),
// next-IFD 0, followed by the two 16-byte MP-entry records with zeroed
// backpatch fields.
func NewBuilder(secondaryJPEGSize int) *Builder {
	tiff := make([]byte, 0, 2+2+4+2+3*12+4+2*mpEntrySize)
	tiff = append(tiff, []byte("MM")...)
	tiff = append(tiff, 0x00, 0x2A)
	var ifd0Off [4]byte
	put32(ifd0Off[:], 8)
	tiff = append(tiff, ifd0Off[:]...)

	var count [2]byte
	put16(count[:], 3)
	tiff = append(tiff, count[:]...)

	// 0xB000 MPFVersion: UNDEFINED(7), count 4, ASCII "0100" inline.
	e1 := make([]byte, 12)
	put16(e1[0:2], tagMPFVersion)
	put16(e1[2:4], typeUndefined)
	put32(e1[4:8], 4)
	copy(e1[8:12], "0100")
	tiff = append(tiff, e1...)

	// 0xB001 NumberOfImages: LONG(4), count 1, value 2.
	e2 := make([]byte, 12)
	put16(e2[0:2], tagNumberOfImages)
	put16(e2[2:4], typeLong)
	put32(e2[4:8], 1)
	put32(e2[8:12], 2)
	tiff = append(tiff, e2...)

	// 0xB002 MPEntry: UNDEFINED(7), count 32 (2x16-byte entries), offset
	// to the MP-entry block.
	e3 := make([]byte, 12)
	put16(e3[0:2], tagMPEntry)
	put16(e3[2:4], typeUndefined)
	put32(e3[4:8], 2*mpEntrySize)
	put32(e3[8:12], mpEntryBlockOffset)
	tiff = append(tiff, e3...)

	tiff = append(tiff, 0, 0, 0, 0) // next-IFD offset

	if len(tiff) != mpEntryBlockOffset {
		panic("mpf: IFD layout drifted from the fixed 50-byte offset")
	}

	// Entry 1 (primary): attribute 0x20030000, size placeholder, offset 0,
	// two zero u16 dependent-image fields.
	entry1 := make([]byte, mpEntrySize)
	put32(entry1[0:4], attrPrimary)
	entry1SizeOff := len(tiff) + 4
	// entry1[4:8] size placeholder left zero
	// entry1[8:12] offset: 0 for the primary image
	tiff = append(tiff, entry1...)

	// Entry 2 (secondary): attribute 0, size = len(secondary jpeg),
	// offset placeholder, zero dependent-image fields.
	entry2 := make([]byte, mpEntrySize)
	put32(entry2[0:4], attrSecondary)
	put32(entry2[4:8], uint32(secondaryJPEGSize))
	entry2OffsetOff := len(tiff) + 8
	tiff = append(tiff, entry2...)

	payload := make([]byte, 0, len(mpfSignature)+len(tiff))
	payload = append(payload, []byte(mpfSignature)...)
	payload = append(payload, tiff...)

	sigLen := len(mpfSignature)
	return &Builder{
		payload:         payload,
		entry1SizeOff:   sigLen + entry1SizeOff,
		entry2OffsetOff: sigLen + entry2OffsetOff,
		secondarySize:   uint32(secondaryJPEGSize),
	}
}

// Assembled is the final, immutable container byte stream. It is only
// obtainable through Builder.Patch; there is no exported way to observe an
// unpatched buffer.
type Assembled struct {
	bytes []byte
}

// Bytes returns the complete assembled file.
func (a Assembled) Bytes() []byte { return a.bytes }

// Patch lays out the fixed byte sequence: SOI, optional EXIF APP1, XMP
// APP1 (primary), MPF APP2 (this builder's payload), the remainder of the
// primary JPEG (from byte 2 onward), then the secondary JPEG — back-patches
// the two placeholder fields, and returns the immutable result.
// exifAPP1 and xmpAPP1Primary must be complete
// marker segments (FF E1 + length + payload), e.g. from
// pkg/jpegmarker.BuildAppSegment; exifAPP1 may be nil.
func (b *Builder) Patch(exifAPP1, xmpAPP1Primary, primaryJPEGFrom2 []byte, secondaryJPEG []byte) (Assembled, error) {
	if uint32(len(secondaryJPEG)) != b.secondarySize {
		return Assembled{}, errs.New(errs.AssertionViolation, "mpf.Patch", "secondary JPEG size does not match the size recorded at NewBuilder time")
	}

	app2Len := len(b.payload) + 2 // +2 for the length field itself
	app2Header := make([]byte, 4)
	app2Header[0], app2Header[1] = 0xFF, 0xE2
	put16(app2Header[2:4], uint16(app2Len))

	const soiLen = 2
	app2PayloadStart := soiLen + len(exifAPP1) + len(xmpAPP1Primary) + len(app2Header)
	bomPos := app2PayloadStart + len(mpfSignature) // position of "MM" inside the payload

	primaryTotal := app2PayloadStart + len(b.payload) + len(primaryJPEGFrom2)

	patched := make([]byte, len(b.payload))
	copy(patched, b.payload)
	put32(patched[b.entry1SizeOff:b.entry1SizeOff+4], uint32(primaryTotal))
	put32(patched[b.entry2OffsetOff:b.entry2OffsetOff+4], uint32(primaryTotal-bomPos))

	out := make([]byte, 0, primaryTotal+len(secondaryJPEG))
	out = append(out, 0xFF, 0xD8) // SOI
	out = append(out, exifAPP1...)
	out = append(out, xmpAPP1Primary...)
	out = append(out, app2Header...)
	out = append(out, patched...)
	out = append(out, primaryJPEGFrom2...)
	out = append(out, secondaryJPEG...)

	if len(out) != primaryTotal+len(secondaryJPEG) {
		return Assembled{}, errs.New(errs.AssertionViolation, "mpf.Patch", "assembled length does not match computed primary_total + secondary size")
	}
	secondaryOffset := primaryTotal - bomPos
	secondaryStart := bomPos + secondaryOffset
	if secondaryStart+1 >= len(out) || out[secondaryStart] != 0xFF || out[secondaryStart+1] != 0xD8 {
		return Assembled{}, errs.New(errs.AssertionViolation, "mpf.Patch", "patched secondary offset does not land on the secondary JPEG's SOI")
	}

	return Assembled{bytes: out}, nil
}
