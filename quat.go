package shaderflow

import "github.com/chewxy/math32"

// Quat is a rotation quaternion. The identity value is not the zero
// value; use QuatIdent or one of the constructors.
type Quat struct {
	W       float32
	X, Y, Z float32
}

// QuatIdent returns the identity rotation.
func QuatIdent() Quat {
	return Quat{W: 1}
}

// QuatRotate returns the rotation of angle radians about axis. The axis
// is normalized first.
func QuatRotate(angle float32, axis Vec3) Quat {
	axis = axis.Normalize()
	s, c := math32.Sincos(angle / 2)
	return Quat{W: c, X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s}
}

// QuatBetween returns the shortest rotation carrying direction a onto
// direction b. Antiparallel inputs rotate half a turn about an arbitrary
// perpendicular axis.
func QuatBetween(a, b Vec3) Quat {
	a = a.Normalize()
	b = b.Normalize()
	d := a.Dot(b)
	if d >= 1-1e-6 {
		return QuatIdent()
	}
	if d <= -1+1e-6 {
		axis := V3(1, 0, 0).Cross(a)
		if axis.Len() < 1e-6 {
			axis = V3(0, 1, 0).Cross(a)
		}
		return QuatRotate(math32.Pi, axis)
	}
	axis := a.Cross(b)
	return QuatRotate(math32.Acos(d), axis)
}

// Mul returns the Hamilton product q*r. Applying the result rotates by r
// first, then by q.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// Conjugate returns the inverse rotation for a unit quaternion.
func (q Quat) Conjugate() Quat {
	return Quat{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Rotate applies the rotation to a vector.
func (q Quat) Rotate(v Vec3) Vec3 {
	// v' = v + 2w*(u x v) + 2*(u x (u x v)) with u the vector part.
	u := Vec3{X: q.X, Y: q.Y, Z: q.Z}
	uv := u.Cross(v)
	uuv := u.Cross(uv)
	return v.Add(uv.Mul(2 * q.W)).Add(uuv.Mul(2))
}

// Len returns the quaternion norm.
func (q Quat) Len() float32 {
	return math32.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalize returns a unit length copy of q. A degenerate quaternion
// collapses to the identity.
func (q Quat) Normalize() Quat {
	l := q.Len()
	if l < 1e-12 {
		return QuatIdent()
	}
	inv := 1 / l
	return Quat{W: q.W * inv, X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv}
}

// Dot returns the four dimensional dot product of two quaternions.
func (q Quat) Dot(r Quat) float32 {
	return q.W*r.W + q.X*r.X + q.Y*r.Y + q.Z*r.Z
}

// Nlerp returns the normalized linear interpolation from q to r at t,
// taking the shorter arc.
func (q Quat) Nlerp(r Quat, t float32) Quat {
	if q.Dot(r) < 0 {
		r = Quat{W: -r.W, X: -r.X, Y: -r.Y, Z: -r.Z}
	}
	return Quat{
		W: q.W + (r.W-q.W)*t,
		X: q.X + (r.X-q.X)*t,
		Y: q.Y + (r.Y-q.Y)*t,
		Z: q.Z + (r.Z-q.Z)*t,
	}.Normalize()
}

// Approx reports whether two quaternions represent nearly the same
// rotation, treating q and -q as equal.
func (q Quat) Approx(r Quat, epsilon float32) bool {
	return math32.Abs(q.Dot(r)) >= 1-epsilon
}
