package math

// Mat3 is a 3x3 rotation matrix in row-major order.
// Layout: [m0 m1 m2]
//
//	[m3 m4 m5]
//	[m6 m7 m8]
type Mat3 [9]float32

// Mat3Identity returns the identity matrix.
func Mat3Identity() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Mul returns m * other.
func (m Mat3) Mul(other Mat3) Mat3 {
	var r Mat3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			r[row*3+col] = m[row*3+0]*other[0*3+col] +
				m[row*3+1]*other[1*3+col] +
				m[row*3+2]*other[2*3+col]
		}
	}
	return r
}

// MulVec returns m * v, each output component being a row dotted with v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

// Transpose returns the transposed matrix (the inverse, for pure rotations).
func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// IsIdentity reports whether m is within eps of the identity.
func (m Mat3) IsIdentity(eps float32) bool {
	id := Mat3Identity()
	for i := range m {
		if abs32(m[i]-id[i]) > eps {
			return false
		}
	}
	return true
}
