// Package jpegmarker provides the minimal JPEG marker-walk and APP-segment
// injection primitives the container layer needs — nothing else. It does
// not decode pixels; it only understands enough of the marker stream to
// insert bytes at the right place.
package jpegmarker

import (
	"encoding/binary"

	"github.com/c0lormem/apltestgen/pkg/errs"
)

const (
	markerPrefix = 0xFF
	soi          = 0xD8
	eoi          = 0xD9
	sos          = 0xDA
	app0         = 0xE0
	app1         = 0xE1
	app2         = 0xE2
	appF         = 0xEF
	rst0         = 0xD0
	rst7         = 0xD7
)

// APP1 and APP2 are exported marker bytes for callers building standalone
// segments via BuildAppSegment.
const (
	APP1 = app1
	APP2 = app2
)

func checkSOI(jpeg []byte) error {
	if len(jpeg) < 2 || jpeg[0] != markerPrefix || jpeg[1] != soi {
		return errs.New(errs.InvalidSourceJPEG, "jpegmarker", "input does not begin with SOI (FF D8)")
	}
	return nil
}

// CheckSOI reports whether jpeg begins with a valid SOI marker (FF D8).
func CheckSOI(jpeg []byte) error {
	return checkSOI(jpeg)
}

// InjectAPP1AfterSOI returns FF D8 || FF E1 || u16_be(len(payload)+2) ||
// payload || jpeg[2:].
func InjectAPP1AfterSOI(jpeg, payload []byte) ([]byte, error) {
	return injectAppAfterSOI(jpeg, app1, payload)
}

// InjectAPP2AfterSOI is the APP2 analog, used to splice in the ICC_PROFILE
// segment.
func InjectAPP2AfterSOI(jpeg, payload []byte) ([]byte, error) {
	return injectAppAfterSOI(jpeg, app2, payload)
}

func injectAppAfterSOI(jpeg []byte, marker byte, payload []byte) ([]byte, error) {
	if err := checkSOI(jpeg); err != nil {
		return nil, err
	}
	seg := BuildAppSegment(marker, payload)
	out := make([]byte, 0, 2+len(seg)+len(jpeg)-2)
	out = append(out, markerPrefix, soi)
	out = append(out, seg...)
	out = append(out, jpeg[2:]...)
	return out, nil
}

// BuildAppSegment returns a standalone marker segment: FF, marker,
// u16_be(len(payload)+2), payload — used by pkg/gainmap to build the EXIF
// and XMP segments it hands to pkg/mpf, without injecting into a full file.
func BuildAppSegment(marker byte, payload []byte) []byte {
	out := make([]byte, 0, 4+len(payload))
	out = append(out, markerPrefix, marker)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)+2))
	out = append(out, lenBuf[:]...)
	out = append(out, payload...)
	return out
}

// Segment describes one marker segment found by Walk.
type Segment struct {
	Marker     byte
	PayloadPos int // index of the first payload byte (after the 2-byte length), or -1 for zero-length markers
	Length     int // payload length, excluding the 2 length bytes themselves; 0 for zero-length markers
}

// Walk iterates markers starting at offset 2, stopping at EOI or SOS
// (inclusive of the stopping marker in the returned slice). RSTn markers
// are zero-length. All other markers carry a big-endian u16 length that
// includes the length field itself.
func Walk(jpeg []byte) ([]Segment, error) {
	if err := checkSOI(jpeg); err != nil {
		return nil, err
	}
	var segs []Segment
	pos := 2
	for pos+1 < len(jpeg) {
		if jpeg[pos] != markerPrefix {
			return nil, errs.New(errs.InvalidSourceJPEG, "jpegmarker.Walk", "expected marker prefix 0xFF")
		}
		for pos < len(jpeg) && jpeg[pos] == markerPrefix {
			pos++
		}
		if pos >= len(jpeg) {
			break
		}
		marker := jpeg[pos]
		pos++

		if marker >= rst0 && marker <= rst7 {
			segs = append(segs, Segment{Marker: marker, PayloadPos: -1, Length: 0})
			continue
		}
		if marker == sos || marker == eoi {
			segs = append(segs, Segment{Marker: marker, PayloadPos: -1, Length: 0})
			break
		}
		if pos+2 > len(jpeg) {
			return nil, errs.New(errs.InvalidSourceJPEG, "jpegmarker.Walk", "truncated segment length")
		}
		segLen := int(binary.BigEndian.Uint16(jpeg[pos : pos+2]))
		if segLen < 2 || pos+segLen > len(jpeg) {
			return nil, errs.New(errs.InvalidSourceJPEG, "jpegmarker.Walk", "invalid segment length")
		}
		segs = append(segs, Segment{Marker: marker, PayloadPos: pos + 2, Length: segLen - 2})
		pos += segLen
	}
	return segs, nil
}

// ExifAPP1Prefix is the TIFF-block prefix identifying an EXIF APP1 segment.
var ExifAPP1Prefix = []byte("Exif\x00\x00")

// HasExifAPP1 reports whether jpeg already carries an EXIF APP1 segment —
// used to decide whether MakerApple injection would collide with an
// encoder-emitted EXIF block.
func HasExifAPP1(jpeg []byte) (bool, error) {
	segs, err := Walk(jpeg)
	if err != nil {
		return false, err
	}
	for _, s := range segs {
		if s.Marker != app1 || s.PayloadPos < 0 {
			continue
		}
		end := s.PayloadPos + len(ExifAPP1Prefix)
		if end > len(jpeg) {
			continue
		}
		if string(jpeg[s.PayloadPos:end]) == string(ExifAPP1Prefix) {
			return true, nil
		}
	}
	return false, nil
}
