package shaderflow

import (
	"math"

	"github.com/chewxy/math32"
)

// CameraMode selects how interaction shapes the camera orientation.
type CameraMode int32

const (
	// ModeFree rotates in any direction without keeping an up.
	ModeFree CameraMode = iota

	// Mode2D keeps a fixed direction; motion pans on the screen plane.
	Mode2D

	// ModeSpherical continuously aligns the camera basis to the zenith.
	ModeSpherical
)

func (m CameraMode) String() string {
	switch m {
	case ModeFree:
		return "free"
	case Mode2D:
		return "2d"
	case ModeSpherical:
		return "spherical"
	}
	return "unknown"
}

// Camera is a module maintaining a smoothed pose in a Y-up left-handed
// space: every property is a second order system chasing a target, so
// abrupt inputs become progressive motion. Orientation is a quaternion;
// rotations compose incrementally without gimbal lock or drift.
//
// The pipeline publishes the pose under the module name: <name>Mode,
// <name>Projection, the basis vectors, and the projection scalars.
type Camera struct {
	Base

	Mode       CameraMode
	Projection Projection

	position   *SecondOrder // vec3
	rotation   *SecondOrder // quaternion w x y z
	zenith     *SecondOrder // vec3
	zoom       *SecondOrder
	isometric  *SecondOrder
	orbital    *SecondOrder
	dolly      *SecondOrder
	separation *SecondOrder
}

// NewCamera creates a camera at the origin looking down +Z.
func NewCamera() *Camera {
	return &Camera{
		Mode:       Mode2D,
		position:   NewSecondOrder(4, 1, 0, 0, 0, 0),
		rotation:   NewSecondOrder(5, 1, 0, 1, 0, 0, 0),
		zenith:     NewSecondOrder(1, 1, 0, 0, 1, 0),
		zoom:       NewSecondOrder(3, 1, 0, 1),
		isometric:  NewSecondOrder(1, 1, 0, 0),
		orbital:    NewSecondOrder(1, 1, 0, 0),
		dolly:      NewSecondOrder(1, 1, 0, 0),
		separation: NewSecondOrder(0.5, 1, 0, 0.05),
	}
}

func quatOf(v []float64) Quat {
	return Quat{W: float32(v[0]), X: float32(v[1]), Y: float32(v[2]), Z: float32(v[3])}.Normalize()
}

func vec3Of(v []float64) Vec3 {
	return V3(float32(v[0]), float32(v[1]), float32(v[2]))
}

// Rotation returns the current smoothed orientation.
func (c *Camera) Rotation() Quat { return quatOf(c.rotation.Value()) }

// rotationTarget is the orientation the camera is settling towards.
func (c *Camera) rotationTarget() Quat { return quatOf(c.rotation.TargetValue()) }

// Position returns the current smoothed position.
func (c *Camera) Position() Vec3 { return vec3Of(c.position.Value()) }

// Zenith returns the current world up reference.
func (c *Camera) Zenith() Vec3 { return vec3Of(c.zenith.Value()).Normalize() }

// SetZenith retargets the world up reference.
func (c *Camera) SetZenith(up Vec3) {
	up = up.Normalize()
	c.zenith.Target(float64(up.X), float64(up.Y), float64(up.Z))
}

// Right returns the current camera right direction.
func (c *Camera) Right() Vec3 { return c.Rotation().Rotate(V3(1, 0, 0)) }

// Up returns the current camera up direction.
func (c *Camera) Up() Vec3 { return c.Rotation().Rotate(V3(0, 1, 0)) }

// Forward returns the current camera forward direction.
func (c *Camera) Forward() Vec3 { return c.Rotation().Rotate(V3(0, 0, 1)) }

func (c *Camera) rightTarget() Vec3 { return c.rotationTarget().Rotate(V3(1, 0, 0)) }

func (c *Camera) upTarget() Vec3 { return c.rotationTarget().Rotate(V3(0, 1, 0)) }

func (c *Camera) forwardTarget() Vec3 { return c.rotationTarget().Rotate(V3(0, 0, 1)) }

// Move displaces the camera target position.
func (c *Camera) Move(delta Vec3) {
	t := c.position.TargetValue()
	c.position.Target(t[0]+float64(delta.X), t[1]+float64(delta.Y), t[2]+float64(delta.Z))
}

// MoveTo sets the absolute camera target position.
func (c *Camera) MoveTo(position Vec3) {
	c.position.Target(float64(position.X), float64(position.Y), float64(position.Z))
}

// Rotate adds a cumulative rotation of angle radians about axis to the
// orientation target. Use Look for absolute rotation.
func (c *Camera) Rotate(axis Vec3, angle float32) {
	q := QuatRotate(angle, axis).Mul(c.rotationTarget()).Normalize()
	c.rotation.Target(float64(q.W), float64(q.X), float64(q.Y), float64(q.Z))
}

// angleBetween returns the angle between two vectors, safe for zero
// lengths and clamped against NaN.
func angleBetween(a, b Vec3) float32 {
	la, lb := a.Len(), b.Len()
	if la == 0 || lb == 0 {
		return 0
	}
	cos := a.Dot(b) / (la * lb)
	cos = math32.Min(math32.Max(cos, -1), 1)
	return math32.Acos(cos)
}

// Align rotates the camera as if carrying direction a onto direction b,
// stopping offset radians short.
func (c *Camera) Align(a, b Vec3, offset float32) {
	axis := a.Cross(b).Normalize()
	c.Rotate(axis, angleBetween(a, b)-offset)
}

// Look rotates the camera towards a world point.
func (c *Camera) Look(target Vec3) {
	c.Align(c.forwardTarget(), target.Sub(vec3Of(c.position.TargetValue())), 0)
}

// Rotate2D rolls the camera about its forward axis by angle radians,
// the usual cartesian rotation for planar scenes.
func (c *Camera) Rotate2D(angle float32) {
	target := QuatRotate(angle, c.forwardTarget()).Rotate(c.Zenith())
	c.Align(c.upTarget(), target, 0)
}

// Zoom returns the current smoothed zoom.
func (c *Camera) Zoom() float32 { return float32(c.zoom.Value()[0]) }

// ApplyZoom changes the zoom target multiplicatively, so zooming in by
// x then out by x lands back on the start.
func (c *Camera) ApplyZoom(value float64) {
	t := c.zoom.TargetValue()
	if value > 0 {
		c.zoom.Target(t[0] * (1 + value))
	} else {
		c.zoom.Target(t[0] / (1 - value))
	}
}

// FOV returns the vertical field of view in radians, accounting for the
// isometric factor.
func (c *Camera) FOV() float32 {
	return 2 * math32.Atan(float32(c.zoom.Value()[0]-c.isometric.Value()[0]))
}

// SetFOV retargets the zoom to produce a vertical field of view of fov
// radians.
func (c *Camera) SetFOV(fov float32) {
	c.zoom.Target(float64(math32.Tan(fov/2)) + c.isometric.TargetValue()[0])
}

// SetIsometric retargets the orthographic blend in [0, 1].
func (c *Camera) SetIsometric(factor float64) {
	c.isometric.Target(math.Min(math.Max(factor, 0), 1))
}

// SetOrbital retargets the orbital distance behind the position.
func (c *Camera) SetOrbital(distance float64) { c.orbital.Target(distance) }

// SetDolly retargets the dolly displacement behind the position.
func (c *Camera) SetDolly(distance float64) { c.dolly.Target(distance) }

// SetSeparation retargets the stereoscopic eye separation.
func (c *Camera) SetSeparation(distance float64) { c.separation.Target(distance) }

// Projector snapshots the current pose as pure projection math.
func (c *Camera) Projector() Projector {
	aspect := float32(1)
	if s := c.Scene(); s != nil {
		aspect = float32(s.AspectRatio())
	}
	return Projector{
		Position:   c.Position(),
		Rotation:   c.Rotation(),
		Projection: c.Projection,
		Aspect:     aspect,
		Zoom:       float32(c.zoom.Value()[0]),
		Isometric:  float32(c.isometric.Value()[0]),
		Orbital:    float32(c.orbital.Value()[0]),
		Dolly:      float32(c.dolly.Value()[0]),
		Separation: float32(c.separation.Value()[0]),
	}
}

// Setup snaps every dynamic back to its initial state.
func (c *Camera) Setup() error {
	for _, s := range c.systems() {
		s.Reset(true)
	}
	return nil
}

func (c *Camera) systems() []*SecondOrder {
	return []*SecondOrder{
		c.position, c.rotation, c.zenith, c.zoom,
		c.isometric, c.orbital, c.dolly, c.separation,
	}
}

// Update keeps spherical cameras upright and advances every dynamic by
// this frame's step.
func (c *Camera) Update() error {
	if c.Mode == ModeSpherical {
		c.Align(c.rightTarget(), vec3Of(c.zenith.TargetValue()), math32.Pi/2)
	}
	dt := math32.Abs(float32(c.Scene().DeltaTime()))
	for _, s := range c.systems() {
		s.Next(float64(dt))
	}
	// The smoothed quaternion drifts off unit length; renormalize so
	// basis vectors stay orthonormal.
	q := quatOf(c.rotation.Value())
	v := c.rotation.Value()
	v[0], v[1], v[2], v[3] = float64(q.W), float64(q.X), float64(q.Y), float64(q.Z)
	return nil
}

// Pipeline publishes the camera pose.
func (c *Camera) Pipeline() []Uniform {
	name := c.Name()
	return []Uniform{
		{Name: name + "Mode", Value: int32(c.Mode)},
		{Name: name + "Projection", Value: int32(c.Projection)},
		{Name: name + "Position", Value: c.Position()},
		{Name: name + "Right", Value: c.Right()},
		{Name: name + "Upward", Value: c.Up()},
		{Name: name + "Forward", Value: c.Forward()},
		{Name: name + "Zenith", Value: c.Zenith()},
		{Name: name + "Zoom", Value: float32(c.zoom.Value()[0])},
		{Name: name + "Isometric", Value: float32(c.isometric.Value()[0])},
		{Name: name + "Orbital", Value: float32(c.orbital.Value()[0])},
		{Name: name + "Dolly", Value: float32(c.dolly.Value()[0])},
		{Name: name + "Separation", Value: float32(c.separation.Value()[0])},
	}
}
