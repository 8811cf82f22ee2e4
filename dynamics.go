package shaderflow

import "math"

// SecondOrder simulates a second order system in the time domain: the
// value chases a target with a motion shaped by three intuitive
// parameters instead of raw spring constants. It operates on small
// float64 vectors so one instance can smooth scalars, positions or
// quaternion components alike.
//
// Integration is semi-implicit Euler with a stability clamp, switching
// to pole matching when the system is fast relative to the time step.
type SecondOrder struct {
	// Frequency is the natural frequency in Hertz, the speed the system
	// responds to a change in input.
	Frequency float64

	// Zeta is the damping coefficient. At 0 vibration never dies, 1 is
	// the critical limit without overshoot, above 1 settling slows.
	Zeta float64

	// Response shapes the initial reaction: 1 responds instantly, 0
	// eases in, negative anticipates the motion.
	Response float64

	// Precision stops integration when the value is this close to the
	// target. Defaults to 1e-6.
	Precision float64

	// Integrate accumulates the running integral of the value.
	Integrate bool

	initial    []float64
	value      []float64
	target     []float64
	previous   []float64
	derivative []float64
	integral   []float64
}

// NewSecondOrder creates a system at rest on the initial value.
func NewSecondOrder(frequency, zeta, response float64, initial ...float64) *SecondOrder {
	s := &SecondOrder{
		Frequency: frequency,
		Zeta:      zeta,
		Response:  response,
		Precision: 1e-6,
	}
	s.Set(initial...)
	return s
}

// Set snaps value, target and initial to the given vector and clears
// all motion.
func (s *SecondOrder) Set(values ...float64) {
	s.initial = append([]float64(nil), values...)
	s.value = append([]float64(nil), values...)
	s.target = append([]float64(nil), values...)
	s.previous = append([]float64(nil), values...)
	s.derivative = make([]float64, len(values))
	s.integral = make([]float64, len(values))
}

// Reset returns the system to its initial value. When instant, the
// value snaps; otherwise only the target moves and the system glides
// back.
func (s *SecondOrder) Reset(instant bool) {
	if instant {
		s.Set(s.initial...)
		return
	}
	copy(s.target, s.initial)
}

// Target sets the value the system chases.
func (s *SecondOrder) Target(values ...float64) {
	copy(s.target, values)
}

// Value returns the current vector. The slice is live; do not mutate.
func (s *SecondOrder) Value() []float64 { return s.value }

// TargetValue returns the current target vector. The slice is live.
func (s *SecondOrder) TargetValue() []float64 { return s.target }

// Derivative returns the current rate of change. The slice is live.
func (s *SecondOrder) Derivative() []float64 { return s.derivative }

// Integral returns the accumulated integral when Integrate is set.
func (s *SecondOrder) Integral() []float64 { return s.integral }

func (s *SecondOrder) radians() float64 { return 2 * math.Pi * s.Frequency }

func (s *SecondOrder) damping() float64 {
	return s.radians() * math.Sqrt(math.Abs(s.Zeta*s.Zeta-1))
}

// Next advances the system by dt seconds and returns the new value.
func (s *SecondOrder) Next(dt float64) []float64 {
	if dt == 0 {
		return s.value
	}

	precision := s.Precision
	if precision == 0 {
		precision = 1e-6
	}
	settled := true
	for i := range s.value {
		if math.Abs(s.target[i]-s.value[i]) >= precision {
			settled = false
			break
		}
	}
	if settled {
		if s.Integrate {
			for i := range s.integral {
				s.integral[i] += s.value[i] * dt
			}
		}
		return s.value
	}

	// Estimate the target velocity from its movement since last step.
	velocity := make([]float64, len(s.target))
	for i := range velocity {
		velocity[i] = (s.target[i] - s.previous[i]) / dt
		s.previous[i] = s.target[i]
	}

	radians := s.radians()
	k1 := s.Zeta / (math.Pi * s.Frequency)
	k3 := (s.Response * s.Zeta) / radians

	var k2 float64
	if radians*dt < s.Zeta {
		// Clamp k2 to stable values without jitter.
		k2 = math.Max(k1*dt, math.Max(1/(radians*radians), 0.5*(k1+dt)*dt))
	} else {
		// Pole matching keeps fast systems stable at coarse steps.
		t1 := math.Exp(-s.Zeta * radians * dt)
		var a1 float64
		if s.Zeta <= 1 {
			a1 = 2 * t1 * math.Cos(s.damping()*dt)
		} else {
			a1 = 2 * t1 * math.Cosh(s.damping()*dt)
		}
		t2 := dt / (1 + t1*t1 - a1)
		k1 = t2 * (1 - t1*t1)
		k2 = t2 * dt
	}

	for i := range s.value {
		s.value[i] += s.derivative[i] * dt
		acceleration := (s.target[i] + k3*velocity[i] - s.value[i] - k1*s.derivative[i]) / k2
		s.derivative[i] += acceleration * dt
		if s.Integrate {
			s.integral[i] += s.value[i] * dt
		}
	}
	return s.value
}

// Dynamics is a module wrapping a SecondOrder system and publishing its
// state as uniforms under the module's name: the value itself, plus
// <name>Integral and <name>Derivative when enabled.
type Dynamics struct {
	Base
	*SecondOrder

	// Real drives the system with the unscaled wall clock step instead
	// of the scene time step, so UI-like motion ignores time scaling.
	Real bool

	// Primary controls whether the value itself is published.
	Primary bool

	// Differentiate publishes the derivative as a uniform.
	Differentiate bool
}

// NewDynamics creates a dynamics module. Primary defaults to on.
func NewDynamics(system *SecondOrder) *Dynamics {
	return &Dynamics{SecondOrder: system, Primary: true}
}

// Setup snaps the system back to its initial value so every run starts
// from the same state.
func (d *Dynamics) Setup() error {
	d.Reset(true)
	return nil
}

// Update advances the system by this frame's time step. The absolute
// value is used because the system is unstable backwards in time.
func (d *Dynamics) Update() error {
	dt := d.Scene().DeltaTime()
	if d.Real {
		dt = d.Scene().RealDelta()
	}
	d.Next(math.Abs(dt))
	return nil
}

// uniformValue maps a float64 vector to a uniform value by length.
func uniformValue(v []float64) (any, bool) {
	switch len(v) {
	case 1:
		return float32(v[0]), true
	case 2:
		return V2(float32(v[0]), float32(v[1])), true
	case 3:
		return V3(float32(v[0]), float32(v[1]), float32(v[2])), true
	default:
		return nil, false
	}
}

// Pipeline publishes the enabled uniforms, skipping vector sizes the
// uniform layer cannot carry.
func (d *Dynamics) Pipeline() []Uniform {
	var out []Uniform
	if d.Primary {
		if v, ok := uniformValue(d.Value()); ok {
			out = append(out, Uniform{Name: d.Name(), Value: v})
		}
	}
	if d.Integrate {
		if v, ok := uniformValue(d.Integral()); ok {
			out = append(out, Uniform{Name: d.Name() + "Integral", Value: v})
		}
	}
	if d.Differentiate {
		if v, ok := uniformValue(d.Derivative()); ok {
			out = append(out, Uniform{Name: d.Name() + "Derivative", Value: v})
		}
	}
	return out
}
