package shaderflow

import (
	"testing"

	"github.com/chewxy/math32"
)

func corners(aspect float32) []Vec2 {
	return []Vec2{
		V2(-aspect, -1), V2(aspect, -1),
		V2(-aspect, 1), V2(aspect, 1),
	}
}

func TestProjectorCornerRoundTrip(t *testing.T) {
	poses := []struct {
		name string
		p    Projector
	}{
		{
			"identity pose",
			Projector{Rotation: QuatIdent(), Aspect: 16.0 / 9, Zoom: 1},
		},
		{
			"rotated and moved",
			Projector{
				Position: V3(3, -2, 5),
				Rotation: QuatRotate(0.7, V3(0, 1, 0)).Mul(QuatRotate(-0.3, V3(1, 0, 0))),
				Aspect:   16.0 / 9,
				Zoom:     0.8,
			},
		},
		{
			"isometric blend",
			Projector{Rotation: QuatIdent(), Aspect: 1, Zoom: 1.5, Isometric: 0.6},
		},
		{
			"orbital and dolly offsets",
			Projector{
				Rotation: QuatRotate(1.2, V3(1, 1, 0)),
				Aspect:   2,
				Zoom:     1,
				Orbital:  2,
				Dolly:    0.5,
			},
		},
	}
	for _, pose := range poses {
		t.Run(pose.name, func(t *testing.T) {
			for _, corner := range corners(pose.p.Aspect) {
				got, ok := pose.p.Project(pose.p.Ray(corner))
				if !ok {
					t.Errorf("corner %v flagged out of bounds", corner)
					continue
				}
				if !got.Approx(corner, 1e-3) {
					t.Errorf("corner %v round-tripped to %v", corner, got)
				}
			}
		})
	}
}

func TestProjectorBehindPlaneAllOutOfBounds(t *testing.T) {
	p := Projector{Rotation: QuatIdent(), Aspect: 16.0 / 9, Zoom: 1}
	// The plane sits behind the camera, so every ray points away.
	p.Target = &Plane{Point: p.Position.Sub(p.Forward()), Normal: p.Forward()}

	coords := append(corners(p.Aspect), V2(0, 0), V2(0.5, -0.5))
	for _, c := range coords {
		if _, ok := p.Project(p.Ray(c)); ok {
			t.Errorf("coordinate %v not flagged out of bounds", c)
		}
	}
}

func TestProjectorOutsideAspectFlagged(t *testing.T) {
	p := Projector{Rotation: QuatIdent(), Aspect: 1, Zoom: 1}
	ray := p.Ray(V2(1.5, 0))
	if _, ok := p.Project(ray); ok {
		t.Error("coordinate beyond the aspect range not flagged")
	}
}

func TestProjectorStereoEyes(t *testing.T) {
	p := Projector{
		Rotation:   QuatIdent(),
		Projection: Stereoscopic,
		Aspect:     2,
		Zoom:       1,
		Separation: 0.5,
	}
	// The center of each half is that eye's straight-ahead ray.
	left := p.Ray(V2(-p.Aspect/2, 0))
	right := p.Ray(V2(p.Aspect/2, 0))

	forward := p.Forward()
	if !left.Direction.Approx(forward, 1e-5) {
		t.Errorf("left eye center direction = %v, want %v", left.Direction, forward)
	}
	if !right.Direction.Approx(forward, 1e-5) {
		t.Errorf("right eye center direction = %v, want %v", right.Direction, forward)
	}
	gap := right.Origin.Sub(left.Origin)
	if math32.Abs(gap.Len()-p.Separation) > 1e-5 {
		t.Errorf("eye separation = %v, want %v", gap.Len(), p.Separation)
	}
}

func TestProjectorEquirectangularSweep(t *testing.T) {
	p := Projector{
		Rotation:   QuatIdent(),
		Projection: Equirectangular,
		Aspect:     2,
		Zoom:       1,
	}
	tests := []struct {
		name string
		gluv Vec2
		want Vec3
	}{
		{"center is forward", V2(0, 0), V3(0, 0, 1)},
		{"right edge wraps behind", V2(2, 0), V3(0, 0, -1)},
		{"left edge wraps behind", V2(-2, 0), V3(0, 0, -1)},
		{"top is up", V2(0, 1), V3(0, 1, 0)},
		{"bottom is down", V2(0, -1), V3(0, -1, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ray := p.Ray(tt.gluv)
			if !ray.Origin.Approx(p.Position, 1e-6) {
				t.Errorf("origin = %v, want camera position", ray.Origin)
			}
			if !ray.Direction.Approx(tt.want, 1e-5) {
				t.Errorf("direction = %v, want %v", ray.Direction, tt.want)
			}
		})
	}
}

func TestGluvStuvRoundTrip(t *testing.T) {
	const aspect = 16.0 / 9
	coords := []Vec2{V2(0, 0), V2(-aspect, -1), V2(aspect, 1), V2(0.3, -0.7)}
	for _, c := range coords {
		stuv := GluvToStuv(c, aspect)
		if got := StuvToGluv(stuv, aspect); !got.Approx(c, 1e-5) {
			t.Errorf("round trip %v -> %v -> %v", c, stuv, got)
		}
	}
	// Convention anchors: gluv center is stuv (0.5, 0.5), gluv bottom
	// left corner is stuv (0, 0).
	if got := GluvToStuv(V2(0, 0), aspect); !got.Approx(V2(0.5, 0.5), 1e-6) {
		t.Errorf("center maps to %v", got)
	}
	if got := GluvToStuv(V2(-aspect, -1), aspect); !got.Approx(V2(0, 0), 1e-6) {
		t.Errorf("bottom left maps to %v", got)
	}
}
