package colorspace

import (
	"encoding/binary"
	"time"

	"github.com/c0lormem/apltestgen/pkg/errs"
)

// nowFunc is swappable in tests so the ICC creation timestamp is
// deterministic and profile bytes are reproducible.
var nowFunc = time.Now

func s15f16(v float64) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(int32(round(v*65536))))
	return b
}

func round(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}

func pad4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// xyzTag builds an ICC 'XYZ ' type tag payload.
func xyzTag(v XYZ) []byte {
	out := make([]byte, 0, 20)
	out = append(out, []byte("XYZ ")...)
	out = append(out, 0, 0, 0, 0)
	out = append(out, s15f16(v.X)...)
	out = append(out, s15f16(v.Y)...)
	out = append(out, s15f16(v.Z)...)
	return out
}

// descTag builds an ICC 'desc' textDescription tag: ASCII label,
// Unicode-count=0, and a 67-byte ScriptCode block, padded to 4.
func descTag(label string) []byte {
	asciiBytes := append([]byte(label), 0) // NUL-terminated, count includes it
	out := make([]byte, 0, 128)
	out = append(out, []byte("desc")...)
	out = append(out, 0, 0, 0, 0)
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(asciiBytes)))
	out = append(out, countBuf[:]...)
	out = append(out, asciiBytes...)
	out = append(out, 0, 0, 0, 0) // Unicode language code
	out = append(out, 0, 0, 0, 0) // Unicode count
	out = append(out, 0, 0)       // ScriptCode code
	out = append(out, 0)          // ScriptCode macCount
	out = append(out, make([]byte, 67)...)
	return pad4(out)
}

// curveTag builds an ICC 'curv' type tag carrying a single u8.8 gamma value.
func curveTag(gamma float64) []byte {
	out := make([]byte, 0, 12)
	out = append(out, []byte("curv")...)
	out = append(out, 0, 0, 0, 0)
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], 1)
	out = append(out, countBuf[:]...)
	var gammaBuf [2]byte
	binary.BigEndian.PutUint16(gammaBuf[:], uint16(round(gamma*256)))
	out = append(out, gammaBuf[:]...)
	out = append(out, 0, 0) // pad
	return out
}

type tagEntry struct {
	sig    string
	offset uint32
	size   uint32
}

// BuildProfile synthesizes an ICC v2 RGB monitor profile from d. Primaries
// are adapted to the D50 PCS illuminant via Bradford adaptation before being
// stored.
func BuildProfile(d Descriptor) ([]byte, error) {
	whiteXYZ := xyToXYZ(d.White)
	redXYZ := xyToXYZ(d.Red)
	greenXYZ := xyToXYZ(d.Green)
	blueXYZ := xyToXYZ(d.Blue)

	// Solve [R G B] . S = W for the per-colorant scale vector (step 2).
	m := mat3{
		{redXYZ.X, greenXYZ.X, blueXYZ.X},
		{redXYZ.Y, greenXYZ.Y, blueXYZ.Y},
		{redXYZ.Z, greenXYZ.Z, blueXYZ.Z},
	}
	s := solve3(m, vec3{whiteXYZ.X, whiteXYZ.Y, whiteXYZ.Z})

	scaledRed := XYZ{X: redXYZ.X * s[0], Y: redXYZ.Y * s[0], Z: redXYZ.Z * s[0]}
	scaledGreen := XYZ{X: greenXYZ.X * s[1], Y: greenXYZ.Y * s[1], Z: greenXYZ.Z * s[1]}
	scaledBlue := XYZ{X: blueXYZ.X * s[2], Y: blueXYZ.Y * s[2], Z: blueXYZ.Z * s[2]}

	// Chromatic-adapt colorants (and white) from the space's native white
	// point to the D50 PCS illuminant the header will declare.
	adaptedRed := bradfordAdapt(scaledRed, whiteXYZ, D50White)
	adaptedGreen := bradfordAdapt(scaledGreen, whiteXYZ, D50White)
	adaptedBlue := bradfordAdapt(scaledBlue, whiteXYZ, D50White)
	adaptedWhite := bradfordAdapt(whiteXYZ, whiteXYZ, D50White)

	descData := descTag(d.Label)
	wtptData := xyzTag(adaptedWhite)
	rXYZData := xyzTag(adaptedRed)
	gXYZData := xyzTag(adaptedGreen)
	bXYZData := xyzTag(adaptedBlue)
	curvData := curveTag(d.Gamma)

	// Tag table, in declaration order; rTRC/gTRC/bTRC and cprt reuse an
	// earlier payload's offset so identical payloads are stored once.
	type namedPayload struct {
		sig     string
		payload []byte
		aliasOf string // sig of another entry whose offset to reuse, or ""
	}
	named := []namedPayload{
		{sig: "desc", payload: descData},
		{sig: "wtpt", payload: wtptData},
		{sig: "rXYZ", payload: rXYZData},
		{sig: "gXYZ", payload: gXYZData},
		{sig: "bXYZ", payload: bXYZData},
		{sig: "rTRC", payload: curvData},
		{sig: "gTRC", aliasOf: "rTRC"},
		{sig: "bTRC", aliasOf: "rTRC"},
		{sig: "cprt", aliasOf: "desc"},
	}

	const headerSize = 128
	tagCount := len(named)
	tagTableSize := 4 + tagCount*12
	dataOffset := uint32(headerSize + tagTableSize)

	offsetBySig := map[string]uint32{}
	sizeBySig := map[string]uint32{}
	var tagData []byte
	entries := make([]tagEntry, 0, tagCount)

	for _, np := range named {
		if np.aliasOf != "" {
			entries = append(entries, tagEntry{sig: np.sig, offset: offsetBySig[np.aliasOf], size: sizeBySig[np.aliasOf]})
			continue
		}
		offset := dataOffset + uint32(len(tagData))
		offsetBySig[np.sig] = offset
		sizeBySig[np.sig] = uint32(len(np.payload))
		entries = append(entries, tagEntry{sig: np.sig, offset: offset, size: uint32(len(np.payload))})
		tagData = append(tagData, pad4(np.payload)...)
	}

	profileSize := dataOffset + uint32(len(tagData))

	header, err := buildHeader(profileSize)
	if err != nil {
		return nil, err
	}
	if len(header) != headerSize {
		return nil, errs.New(errs.AssertionViolation, "colorspace.BuildProfile", "header length != 128")
	}

	table := make([]byte, 0, tagTableSize)
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(tagCount))
	table = append(table, countBuf[:]...)
	for _, e := range entries {
		table = append(table, []byte(e.sig)...)
		var ob, sb [4]byte
		binary.BigEndian.PutUint32(ob[:], e.offset)
		binary.BigEndian.PutUint32(sb[:], e.size)
		table = append(table, ob[:]...)
		table = append(table, sb[:]...)
	}

	profile := make([]byte, 0, profileSize)
	profile = append(profile, header...)
	profile = append(profile, table...)
	profile = append(profile, tagData...)

	if uint32(len(profile)) != profileSize {
		return nil, errs.New(errs.AssertionViolation, "colorspace.BuildProfile", "final buffer length != profile-size header field")
	}
	minOffset := uint32(headerSize + 4 + 12*tagCount)
	for _, e := range entries {
		if e.offset < minOffset || e.offset%4 != 0 {
			return nil, errs.New(errs.AssertionViolation, "colorspace.BuildProfile", "tag offset out of range or misaligned")
		}
	}

	return profile, nil
}

// buildHeader writes the 128-byte ICC v2 header.
func buildHeader(profileSize uint32) ([]byte, error) {
	h := make([]byte, 0, 128)

	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], profileSize)
	h = append(h, sizeBuf[:]...)       // 0: profile size
	h = append(h, []byte("none")...)   // 4: preferred CMM
	h = append(h, 0x02, 0x40, 0x00, 0x00) // 8: version 2.4.0.0
	h = append(h, []byte("mntr")...)   // 12: device class: monitor
	h = append(h, []byte("RGB ")...)   // 16: color space
	h = append(h, []byte("XYZ ")...)   // 20: PCS

	now := nowFunc().UTC()
	var dt [12]byte
	binary.BigEndian.PutUint16(dt[0:2], uint16(now.Year()))
	binary.BigEndian.PutUint16(dt[2:4], uint16(now.Month()))
	binary.BigEndian.PutUint16(dt[4:6], uint16(now.Day()))
	binary.BigEndian.PutUint16(dt[6:8], uint16(now.Hour()))
	binary.BigEndian.PutUint16(dt[8:10], uint16(now.Minute()))
	binary.BigEndian.PutUint16(dt[10:12], uint16(now.Second()))
	h = append(h, dt[:]...) // 24: creation date-time

	h = append(h, []byte("acsp")...) // 36: profile file signature
	h = append(h, []byte("MSFT")...) // 40: primary platform

	h = append(h, make([]byte, 4)...) // 44: profile flags
	h = append(h, make([]byte, 4)...) // 48: device manufacturer
	h = append(h, make([]byte, 4)...) // 52: device model
	h = append(h, make([]byte, 8)...) // 56: device attributes

	var intentBuf [4]byte
	binary.BigEndian.PutUint32(intentBuf[:], 0) // 64: rendering intent: perceptual
	h = append(h, intentBuf[:]...)

	h = append(h, s15f16(D50White.X)...) // 68: PCS illuminant D50
	h = append(h, s15f16(D50White.Y)...)
	h = append(h, s15f16(D50White.Z)...)

	h = append(h, make([]byte, 4)...)  // 80: profile creator
	h = append(h, make([]byte, 16)...) // 84: profile ID
	h = append(h, make([]byte, 28)...) // 100: reserved

	if len(h) != 128 {
		return nil, errs.New(errs.AssertionViolation, "colorspace.buildHeader", "header did not assemble to 128 bytes")
	}
	return h, nil
}
