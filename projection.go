package shaderflow

import "github.com/chewxy/math32"

// Projection selects how screen coordinates become rays.
type Projection int32

const (
	// Perspective projects from a plane at the camera through a plane
	// at distance one. The near plane is scaled by the isometric
	// factor, the far plane by the zoom.
	Perspective Projection = iota

	// Stereoscopic renders two half-width perspective views, one per
	// eye, separated laterally.
	Stereoscopic

	// Equirectangular sweeps the full sphere, the 360 video mapping:
	// x is azimuth and y inclination.
	Equirectangular
)

func (p Projection) String() string {
	switch p {
	case Perspective:
		return "perspective"
	case Stereoscopic:
		return "stereoscopic"
	case Equirectangular:
		return "equirectangular"
	}
	return "unknown"
}

// Ray is an origin plus a unit direction.
type Ray struct {
	Origin    Vec3
	Direction Vec3
}

// Plane is a point plus a unit normal.
type Plane struct {
	Point  Vec3
	Normal Vec3
}

// Screen coordinate conventions: gluv is zero-centered with y in
// [-1, 1] and x in [-aspect, aspect]; stuv is [0, 1] on both axes.

// GluvToStuv converts a zero-centered coordinate to the [0, 1] range.
func GluvToStuv(gluv Vec2, aspect float32) Vec2 {
	return V2(gluv.X/(2*aspect)+0.5, gluv.Y/2+0.5)
}

// StuvToGluv converts a [0, 1] coordinate to the zero-centered range.
func StuvToGluv(stuv Vec2, aspect float32) Vec2 {
	return V2((stuv.X-0.5)*2*aspect, (stuv.Y-0.5)*2)
}

// Projector turns a camera pose and a screen coordinate into a ray, and
// a ray back into a screen coordinate. It is pure math over its fields;
// the camera module fills one in per frame.
type Projector struct {
	Position Vec3
	Rotation Quat

	Projection Projection

	// Aspect is width over height, bounding the gluv x range.
	Aspect float32

	Zoom       float32
	Isometric  float32
	Orbital    float32
	Dolly      float32
	Separation float32

	// Target overrides the intersection plane for Unproject. The zero
	// value means the plane at distance one along the camera forward.
	Target *Plane
}

// Right returns the camera right direction.
func (p Projector) Right() Vec3 { return p.Rotation.Rotate(V3(1, 0, 0)) }

// Up returns the camera up direction.
func (p Projector) Up() Vec3 { return p.Rotation.Rotate(V3(0, 1, 0)) }

// Forward returns the camera forward direction.
func (p Projector) Forward() Vec3 { return p.Rotation.Rotate(V3(0, 0, 1)) }

// Plane returns the intersection plane rays are flattened against.
func (p Projector) Plane() Plane {
	if p.Target != nil {
		return *p.Target
	}
	forward := p.Forward()
	return Plane{Point: p.Position.Add(forward), Normal: forward}
}

// Ray builds the ray leaving the camera through a gluv coordinate.
func (p Projector) Ray(gluv Vec2) Ray {
	switch p.Projection {
	case Stereoscopic:
		return p.stereoRay(gluv)
	case Equirectangular:
		return p.sphereRay(gluv)
	default:
		return p.perspectiveRay(gluv, 0)
	}
}

// perspectiveRay offsets the origin on the camera plane by the
// isometric factor and aims at the unit-distance plane scaled by zoom.
// eye shifts the origin laterally for stereoscopy.
func (p Projector) perspectiveRay(gluv Vec2, eye float32) Ray {
	right, up, forward := p.Right(), p.Up(), p.Forward()
	offset := right.Mul(gluv.X).Add(up.Mul(gluv.Y))

	origin := p.Position.
		Add(offset.Mul(p.Isometric)).
		Add(right.Mul(eye)).
		Sub(forward.Mul(p.Orbital + p.Dolly))
	target := p.Position.
		Add(forward).
		Add(offset.Mul(p.Zoom)).
		Add(right.Mul(eye))

	return Ray{Origin: origin, Direction: target.Sub(origin).Normalize()}
}

// stereoRay re-centers each half of the screen and displaces the eye by
// half the separation: left half x in [-a, 0) maps to 2x+a, right half
// to 2x-a.
func (p Projector) stereoRay(gluv Vec2) Ray {
	a := p.Aspect
	if gluv.X < 0 {
		return p.perspectiveRay(V2(2*gluv.X+a, gluv.Y), -p.Separation/2)
	}
	return p.perspectiveRay(V2(2*gluv.X-a, gluv.Y), +p.Separation/2)
}

// sphereRay maps x to azimuth in [-pi, pi] and y to inclination in
// [-pi/2, pi/2], rotating the forward direction accordingly.
func (p Projector) sphereRay(gluv Vec2) Ray {
	azimuth := (gluv.X / p.Aspect) * math32.Pi
	inclination := gluv.Y * (math32.Pi / 2)
	rotation := QuatRotate(azimuth, p.Up()).Mul(QuatRotate(-inclination, p.Right()))
	return Ray{Origin: p.Position, Direction: rotation.Rotate(p.Forward())}
}

// Intersect returns the point where a ray crosses the projector's
// plane. The second result is false when the ray runs parallel to the
// plane or the crossing lies behind the ray origin.
func (p Projector) Intersect(ray Ray) (Vec3, bool) {
	plane := p.Plane()
	denom := ray.Direction.Dot(plane.Normal)
	if math32.Abs(denom) < 1e-7 {
		return Vec3{}, false
	}
	s := plane.Point.Sub(ray.Origin).Dot(plane.Normal) / denom
	if s <= 0 {
		return Vec3{}, false
	}
	return ray.Origin.Add(ray.Direction.Mul(s)), true
}

// Project flattens a ray back to a gluv coordinate by intersecting it
// with the plane. The second result is false when the intersection is
// behind the camera or the coordinate falls outside the aspect bounds.
func (p Projector) Project(ray Ray) (Vec2, bool) {
	point, ok := p.Intersect(ray)
	if !ok {
		return Vec2{}, false
	}
	// Relative to the far plane center, the offset decomposes on the
	// camera basis scaled by zoom.
	rel := point.Sub(p.Position).Sub(p.Forward())
	gluv := V2(rel.Dot(p.Right())/p.Zoom, rel.Dot(p.Up())/p.Zoom)

	const slack = 1e-3
	if math32.Abs(gluv.X) > p.Aspect+slack || math32.Abs(gluv.Y) > 1+slack {
		return gluv, false
	}
	return gluv, true
}
