package math

import (
	"math"
	"testing"
)

const eps = 1e-5

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	q := Quat{X: 1, Y: 2, Z: 3, W: 4}
	n := q.Normalize()

	length := float32(math.Sqrt(float64(n.X*n.X + n.Y*n.Y + n.Z*n.Z + n.W*n.W)))
	if math.Abs(float64(length-1.0)) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}

	// Degenerate input falls back to identity.
	if got := (Quat{}).Normalize(); got != QuatIdentity() {
		t.Errorf("zero quaternion Normalize() = %v, want identity", got)
	}
}

func TestQuatFromAxisAngle(t *testing.T) {
	// 90 degrees around Y axis
	q := QuatFromAxisAngle(Vec3{X: 0, Y: 1, Z: 0}, float32(math.Pi/2))

	expectedW := float32(math.Cos(math.Pi / 4))
	expectedY := float32(math.Sin(math.Pi / 4))

	if math.Abs(float64(q.W-expectedW)) > 0.001 {
		t.Errorf("QuatFromAxisAngle W: expected %v, got %v", expectedW, q.W)
	}
	if math.Abs(float64(q.Y-expectedY)) > 0.001 {
		t.Errorf("QuatFromAxisAngle Y: expected %v, got %v", expectedY, q.Y)
	}
}

func TestQuatToMat3_Identity(t *testing.T) {
	m := QuatIdentity().ToMat3()
	if !m.IsIdentity(eps) {
		t.Errorf("identity quat should produce identity matrix, got %v", m)
	}
	// Unnormalized identity still maps to identity.
	if !(Quat{W: 5}).ToMat3().IsIdentity(eps) {
		t.Error("scaled identity quat should produce identity matrix")
	}
}

func TestQuatToMat3_Convention(t *testing.T) {
	// 90 degrees about Z. The engine convention stores the transpose of the
	// textbook matrix, so X maps to -Y rather than +Y.
	q := QuatFromAxisAngle(Vec3{Z: 1}, float32(math.Pi/2))
	m := q.ToMat3()

	got := m.MulVec(Vec3{X: 1})
	if !got.ApproxEqual(Vec3{X: 0, Y: -1, Z: 0}, 1e-5) {
		t.Errorf("rotated X = %v, want (0,-1,0)", got)
	}

	want := Mat3{
		0, 1, 0,
		-1, 0, 0,
		0, 0, 1,
	}
	for i := range want {
		if math.Abs(float64(m[i]-want[i])) > eps {
			t.Fatalf("element %d: got %v, want %v (matrix %v)", i, m[i], want[i], m)
		}
	}
}

func TestQuatToMat3_Orthonormal(t *testing.T) {
	q := Quat{X: 0.3, Y: -0.2, Z: 0.5, W: 0.78}
	m := q.ToMat3()
	p := m.Mul(m.Transpose())
	if !p.IsIdentity(1e-5) {
		t.Errorf("R*R^T should be identity, got %v", p)
	}
}

func TestMat3MulVec(t *testing.T) {
	m := Mat3{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	got := m.MulVec(Vec3{1, 0, -1})
	if got != (Vec3{-2, -2, -2}) {
		t.Errorf("MulVec = %v", got)
	}
	if got := Mat3Identity().Mul(m); got != m {
		t.Errorf("I*m = %v", got)
	}
}
