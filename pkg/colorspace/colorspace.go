// Package colorspace describes the three supported color spaces, builds
// ICC v2 profiles for them, and owns the memoized profile cache.
package colorspace

import (
	"fmt"
	"sync"

	"github.com/c0lormem/apltestgen/pkg/errs"
)

// ChromaticityXY is a CIE 1931 xy chromaticity coordinate.
type ChromaticityXY struct {
	X, Y float64
}

// Tag identifies one of the three supported color spaces.
type Tag string

const (
	Rec709    Tag = "rec709"
	DisplayP3 Tag = "displayP3"
	Rec2020   Tag = "rec2020"
)

// Descriptor is the immutable color space description: four CIE xy pairs
// plus a scalar gamma and a human label.
type Descriptor struct {
	Tag                Tag
	Red, Green, Blue   ChromaticityXY
	White              ChromaticityXY
	Gamma              float64
	Label              string
}

// D50White is the ICC PCS illuminant as s15Fixed16-encodable XYZ.
var D50White = XYZ{X: 0.9642, Y: 1.0000, Z: 0.8249}

var descriptors = map[Tag]Descriptor{
	Rec709: {
		Tag:   Rec709,
		Red:   ChromaticityXY{0.640, 0.330},
		Green: ChromaticityXY{0.300, 0.600},
		Blue:  ChromaticityXY{0.150, 0.060},
		White: ChromaticityXY{0.3127, 0.3290},
		Gamma: 2.4,
		Label: "sRGB IEC61966-2.1",
	},
	DisplayP3: {
		Tag:   DisplayP3,
		Red:   ChromaticityXY{0.680, 0.320},
		Green: ChromaticityXY{0.265, 0.690},
		Blue:  ChromaticityXY{0.150, 0.060},
		White: ChromaticityXY{0.3127, 0.3290},
		Gamma: 2.2,
		Label: "Display P3",
	},
	Rec2020: {
		Tag:   Rec2020,
		Red:   ChromaticityXY{0.708, 0.292},
		Green: ChromaticityXY{0.170, 0.797},
		Blue:  ChromaticityXY{0.131, 0.046},
		White: ChromaticityXY{0.3127, 0.3290},
		Gamma: 2.2,
		Label: "Rec. 2020",
	},
}

// Describe returns the descriptor for tag, or an UnsupportedColorSpace error.
func Describe(tag Tag) (Descriptor, error) {
	d, ok := descriptors[tag]
	if !ok {
		return Descriptor{}, errs.New(errs.UnsupportedColorSpace, "colorspace.Describe", fmt.Sprintf("unknown color space tag %q", tag))
	}
	return d, nil
}

// Cache is a single-slot-per-tag memoized ICC profile cache, safe for
// concurrent readers: each profile is computed once per tag, and callers
// always get a defensive copy so the cached slice can never be mutated out
// from under another reader.
type Cache struct {
	once    sync.Map // Tag -> *sync.Once
	entries sync.Map // Tag -> []byte
}

// NewCache constructs an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Profile returns the ICC profile bytes for tag, building and memoizing them
// on first request.
func (c *Cache) Profile(tag Tag) ([]byte, error) {
	desc, err := Describe(tag)
	if err != nil {
		return nil, err
	}

	onceIface, _ := c.once.LoadOrStore(tag, &sync.Once{})
	once := onceIface.(*sync.Once)

	var buildErr error
	once.Do(func() {
		profile, err := BuildProfile(desc)
		if err != nil {
			buildErr = err
			return
		}
		c.entries.Store(tag, profile)
	})
	if buildErr != nil {
		return nil, buildErr
	}

	v, ok := c.entries.Load(tag)
	if !ok {
		// Another goroutine's Once.Do failed before storing; retry the
		// build directly rather than returning a cached failure forever.
		return BuildProfile(desc)
	}
	cached := v.([]byte)
	out := make([]byte, len(cached))
	copy(out, cached)
	return out, nil
}
