package colorspace

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func fixedNow() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

func buildDeterministic(t *testing.T, tag Tag) []byte {
	t.Helper()
	old := nowFunc
	nowFunc = fixedNow
	defer func() { nowFunc = old }()

	desc, err := Describe(tag)
	if err != nil {
		t.Fatalf("Describe(%v): %v", tag, err)
	}
	profile, err := BuildProfile(desc)
	if err != nil {
		t.Fatalf("BuildProfile(%v): %v", tag, err)
	}
	return profile
}

func TestBuildProfileHeaderInvariants(t *testing.T) {
	for _, tag := range []Tag{Rec709, DisplayP3, Rec2020} {
		t.Run(string(tag), func(t *testing.T) {
			profile := buildDeterministic(t, tag)

			declaredSize := binary.BigEndian.Uint32(profile[0:4])
			if int(declaredSize) != len(profile) {
				t.Errorf("declared profile size %d != buffer length %d", declaredSize, len(profile))
			}

			if !bytes.Equal(profile[12:16], []byte("mntr")) {
				t.Errorf("device class = %q, want mntr", profile[12:16])
			}
			if !bytes.Equal(profile[16:20], []byte("RGB ")) {
				t.Errorf("color space = %q, want RGB ", profile[16:20])
			}
			if !bytes.Equal(profile[20:24], []byte("XYZ ")) {
				t.Errorf("PCS = %q, want XYZ ", profile[20:24])
			}
			if !bytes.Equal(profile[36:40], []byte("acsp")) {
				t.Errorf("signature = %q, want acsp", profile[36:40])
			}
			if !bytes.Equal(profile[8:12], []byte{0x02, 0x40, 0x00, 0x00}) {
				t.Errorf("version = % x, want 02 40 00 00", profile[8:12])
			}

			tagCount := binary.BigEndian.Uint32(profile[128:132])
			minOffset := uint32(128 + 4 + 12*tagCount)
			for i := uint32(0); i < tagCount; i++ {
				base := 132 + i*12
				offset := binary.BigEndian.Uint32(profile[base+4 : base+8])
				if offset < minOffset {
					t.Errorf("tag %d offset %d below minimum %d", i, offset, minOffset)
				}
				if offset%4 != 0 {
					t.Errorf("tag %d offset %d not 4-byte aligned", i, offset)
				}
			}
		})
	}
}

func TestBuildProfileDedupesTRCOffsets(t *testing.T) {
	profile := buildDeterministic(t, Rec709)
	tagCount := binary.BigEndian.Uint32(profile[128:132])

	offsets := map[string]uint32{}
	for i := uint32(0); i < tagCount; i++ {
		base := 132 + i*12
		sig := string(profile[base : base+4])
		offsets[sig] = binary.BigEndian.Uint32(profile[base+4 : base+8])
	}
	if offsets["rTRC"] != offsets["gTRC"] || offsets["gTRC"] != offsets["bTRC"] {
		t.Errorf("rTRC/gTRC/bTRC offsets not deduplicated: %d/%d/%d", offsets["rTRC"], offsets["gTRC"], offsets["bTRC"])
	}
	if offsets["cprt"] != offsets["desc"] {
		t.Errorf("cprt/desc offsets not deduplicated: %d/%d", offsets["cprt"], offsets["desc"])
	}
}

func TestBuildProfileDisplayP3Label(t *testing.T) {
	profile := buildDeterministic(t, DisplayP3)
	if !bytes.Contains(profile, []byte("Display P3")) {
		t.Errorf("profile does not contain the ASCII label %q", "Display P3")
	}
}

func TestBuildProfileUnsupportedColorSpace(t *testing.T) {
	if _, err := Describe(Tag("unknown")); err == nil {
		t.Error("Describe(unknown) should return an error")
	}
}

func TestBuildProfileDeterministic(t *testing.T) {
	a := buildDeterministic(t, Rec2020)
	b := buildDeterministic(t, Rec2020)
	if !bytes.Equal(a, b) {
		t.Error("BuildProfile not deterministic with a fixed clock")
	}
}

func TestCacheComputeOnce(t *testing.T) {
	c := NewCache()
	a, err := c.Profile(Rec709)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	b, err := c.Profile(Rec709)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("cached profile differs across calls")
	}
	// Defensive copy: mutating a returned slice must not corrupt the cache.
	a[0] = 0xFF
	c2, _ := c.Profile(Rec709)
	if c2[0] == 0xFF {
		t.Error("Cache.Profile leaked its internal buffer to the caller")
	}
}

func TestCacheUnsupportedTag(t *testing.T) {
	c := NewCache()
	if _, err := c.Profile(Tag("bogus")); err == nil {
		t.Error("Profile(bogus) should return an error")
	}
}
