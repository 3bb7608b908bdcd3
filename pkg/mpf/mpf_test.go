package mpf

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func fakeJPEG(n int) []byte {
	out := make([]byte, n)
	out[0], out[1] = 0xFF, 0xD8
	for i := 2; i < n-2; i++ {
		out[i] = byte(i)
	}
	out[n-2], out[n-1] = 0xFF, 0xD9
	return out
}

func TestNewBuilderLayout(t *testing.T) {
	b := NewBuilder(100)
	if !bytes.HasPrefix(b.payload, []byte(mpfSignature)) {
		t.Fatalf("payload missing MPF\\0 signature: % x", b.payload[:4])
	}
	tiff := b.payload[4:]
	if !bytes.Equal(tiff[0:2], []byte("MM")) {
		t.Fatalf("BOM = %q, want MM", tiff[0:2])
	}
	if tiff[2] != 0x00 || tiff[3] != 0x2A {
		t.Fatalf("magic = % x, want 00 2A", tiff[2:4])
	}
	ifdOff := binary.BigEndian.Uint32(tiff[4:8])
	if ifdOff != 8 {
		t.Fatalf("IFD offset = %d, want 8", ifdOff)
	}
	count := binary.BigEndian.Uint16(tiff[8:10])
	if count != 3 {
		t.Fatalf("IFD entry count = %d, want 3", count)
	}
}

func TestPatchBackfillsOffsets(t *testing.T) {
	primary := fakeJPEG(40)
	secondary := fakeJPEG(30)

	builder := NewBuilder(len(secondary))
	assembled, err := builder.Patch(nil, nil, primary[2:], secondary)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	out := assembled.Bytes()

	if out[0] != 0xFF || out[1] != 0xD8 {
		t.Fatalf("assembled file does not start with SOI")
	}

	// Locate "MPF\0" then the BOM that follows it, the way an independent
	// reader would, rather than reusing the builder's internal offsets.
	idx := bytes.Index(out, []byte(mpfSignature))
	if idx < 0 {
		t.Fatal("MPF\\0 signature not found in assembled output")
	}
	if !bytes.Equal(out[idx+4:idx+6], []byte("MM")) {
		t.Fatalf("byte-order mark not immediately after MPF\\0 signature")
	}
	bomPos := idx + 4

	entry2Offset := binary.BigEndian.Uint32(out[idx+4+mpEntryBlockOffset+mpEntrySize+8 : idx+4+mpEntryBlockOffset+mpEntrySize+12])
	secondaryStart := bomPos + int(entry2Offset)
	if secondaryStart+1 >= len(out) {
		t.Fatalf("secondary offset %d points past end of file (len %d)", secondaryStart, len(out))
	}
	if out[secondaryStart] != 0xFF || out[secondaryStart+1] != 0xD8 {
		t.Errorf("seeking to bo_pos+entry2.offset = %d does not land on FF D8, got % x", secondaryStart, out[secondaryStart:secondaryStart+2])
	}

	entry1Size := binary.BigEndian.Uint32(out[idx+4+mpEntryBlockOffset+4 : idx+4+mpEntryBlockOffset+8])
	if int(entry1Size) != secondaryStart {
		t.Errorf("entry1 size = %d, want %d (byte offset where secondary begins)", entry1Size, secondaryStart)
	}

	if !bytes.Equal(out[len(out)-len(secondary):], secondary) {
		t.Error("secondary JPEG bytes not preserved verbatim at the end of the file")
	}
}

func TestPatchWithExifAndXMP(t *testing.T) {
	exif := []byte{0xFF, 0xE1, 0x00, 0x04, 0xAA, 0xBB}
	xmpSeg := []byte{0xFF, 0xE1, 0x00, 0x05, 0xCC, 0xDD, 0xEE}
	primary := fakeJPEG(20)
	secondary := fakeJPEG(16)

	builder := NewBuilder(len(secondary))
	assembled, err := builder.Patch(exif, xmpSeg, primary[2:], secondary)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	out := assembled.Bytes()

	if !bytes.Equal(out[2:2+len(exif)], exif) {
		t.Error("EXIF APP1 segment not placed immediately after SOI")
	}
	if !bytes.Equal(out[2+len(exif):2+len(exif)+len(xmpSeg)], xmpSeg) {
		t.Error("XMP APP1 segment not placed immediately after the EXIF segment")
	}
}

func TestPatchRejectsSecondarySizeMismatch(t *testing.T) {
	builder := NewBuilder(10)
	_, err := builder.Patch(nil, nil, fakeJPEG(20)[2:], fakeJPEG(99))
	if err == nil {
		t.Error("Patch should reject a secondary JPEG whose size differs from NewBuilder's recorded size")
	}
}
