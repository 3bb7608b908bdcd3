// Package pq implements the sRGB→PQ transfer pipeline used to feed the
// HDR10 PNG writer and the raw-video pipe handed to an external video
// encoder. The SMPTE ST 2084 constants are kept as exact fractions rather
// than decimal literals so the derivation is traceable.
package pq

import "math"

// PQ OETF constants (SMPTE ST 2084).
const (
	m1 = 2610.0 / 16384.0
	m2 = 2523.0 / 32.0
	c1 = 3424.0 / 4096.0
	c2 = 2413.0 / 128.0
	c3 = 2392.0 / 128.0
)

// SRGBEOTF maps an electrical signal in [0,1] to linear light in [0,1].
func SRGBEOTF(x float64) float64 {
	if x <= 0.04045 {
		return x / 12.92
	}
	return math.Pow((x+0.055)/1.055, 2.4)
}

// OETF maps linear light in [0,1] (1.0 == 10000 nits) to a PQ signal in [0,1].
func OETF(l float64) float64 {
	if l <= 0 {
		return 0
	} else if l > 1 {
		l = 1
	}
	lm1 := math.Pow(l, m1)
	return math.Pow((c1+c2*lm1)/(1+c3*lm1), m2)
}

// clamp01 restricts x to [0,1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// EncodeChannel runs the full per-channel pipeline on one sRGB uint8 sample:
// srgb_u8 -> float [0,1] -> EOTF -> scale by peak/10000 -> clamp -> OETF ->
// round(*65535) -> uint16. peakNits is the mastering peak luminance, 200 to
// 10000 in the caller-validated range.
func EncodeChannel(srgbByte uint8, peakNits int) uint16 {
	x := float64(srgbByte) / 255.0
	linear := SRGBEOTF(x)
	l := clamp01(linear * (float64(peakNits) / 10000.0))
	signal := OETF(l)
	v := math.Round(clamp01(signal) * 65535.0)
	return uint16(v)
}

// Headroom computes log2(peakNits/sdrWhiteNits), the number of stops of
// boost the gain map can express over SDR white.
func Headroom(peakNits int, sdrWhiteNits float64) float64 {
	return math.Log2(float64(peakNits) / sdrWhiteNits)
}
