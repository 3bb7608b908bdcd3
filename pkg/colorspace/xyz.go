package colorspace

// XYZ is a CIE 1931 tristimulus value.
type XYZ struct {
	X, Y, Z float64
}

// xyToXYZ converts a CIE xy chromaticity to XYZ with Y=1.
func xyToXYZ(c ChromaticityXY) XYZ {
	return XYZ{
		X: c.X / c.Y,
		Y: 1.0,
		Z: (1.0 - c.X - c.Y) / c.Y,
	}
}

type vec3 = [3]float64
type mat3 = [3]vec3

func solve3(m mat3, b vec3) vec3 {
	// Cramer's rule; the 3x3 primary matrices here are always invertible
	// for physically sane chromaticities.
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])

	replace := func(col int) mat3 {
		m2 := m
		for r := 0; r < 3; r++ {
			m2[r][col] = b[r]
		}
		return m2
	}
	det3 := func(m mat3) float64 {
		return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
			m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
			m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	}

	var s vec3
	for i := 0; i < 3; i++ {
		s[i] = det3(replace(i)) / det
	}
	return s
}

func matVec(m mat3, v vec3) vec3 {
	var out vec3
	for r := 0; r < 3; r++ {
		out[r] = m[r][0]*v[0] + m[r][1]*v[1] + m[r][2]*v[2]
	}
	return out
}

func matMul(a, b mat3) mat3 {
	var out mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += a[r][k] * b[k][c]
			}
			out[r][c] = sum
		}
	}
	return out
}

func diag(v vec3) mat3 {
	return mat3{
		{v[0], 0, 0},
		{0, v[1], 0},
		{0, 0, v[2]},
	}
}

// Bradford cone-response matrix and its inverse (standard published values).
var bradfordM = mat3{
	{0.8951000, 0.2664000, -0.1614000},
	{-0.7502000, 1.7135000, 0.0367000},
	{0.0389000, -0.0685000, 1.0296000},
}

var bradfordMInv = mat3{
	{0.9869929, -0.1470543, 0.1599627},
	{0.4323053, 0.5183603, 0.0492912},
	{-0.0085287, 0.0400428, 0.9684867},
}

// bradfordAdapt builds the 3x3 chromatic adaptation matrix from srcWhite to
// dstWhite using the Bradford transform, and applies it to v. Colorants are
// adapted so the stored XYZ values agree with the D50 PCS illuminant the
// profile header declares.
func bradfordAdapt(v XYZ, srcWhite, dstWhite XYZ) XYZ {
	srcCone := matVec(bradfordM, vec3{srcWhite.X, srcWhite.Y, srcWhite.Z})
	dstCone := matVec(bradfordM, vec3{dstWhite.X, dstWhite.Y, dstWhite.Z})

	scale := vec3{dstCone[0] / srcCone[0], dstCone[1] / srcCone[1], dstCone[2] / srcCone[2]}
	adapt := matMul(bradfordMInv, matMul(diag(scale), bradfordM))

	out := matVec(adapt, vec3{v.X, v.Y, v.Z})
	return XYZ{X: out[0], Y: out[1], Z: out[2]}
}
