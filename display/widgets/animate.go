package widgets

// DefaultAnimationSteps is the number of frames a displayed value takes to
// reach a new reading.
const DefaultAnimationSteps = 8

// Interpolate returns the frames that move a displayed value from start to
// end in equal increments. The last frame is always exactly end; steps below
// one yield a single frame.
func Interpolate(start, end float64, steps int) []float64 {
	if steps < 1 {
		steps = 1
	}
	frames := make([]float64, steps)
	delta := (end - start) / float64(steps)
	for i := 0; i < steps-1; i++ {
		frames[i] = start + delta*float64(i+1)
	}
	frames[steps-1] = end
	return frames
}

// Tween is a displayed value that catches up with its target one frame at
// a time. The zero value snaps to the first target it is given.
type Tween struct {
	current float64
	frames  []float64
	steps   int
	set     bool
}

// NewTween creates a Tween that spends steps frames per retarget.
func NewTween(steps int) Tween {
	if steps < 1 {
		steps = DefaultAnimationSteps
	}
	return Tween{steps: steps}
}

// Retarget starts a new animation from the current displayed value.
func (t Tween) Retarget(target float64) Tween {
	if !t.set {
		t.current = target
		t.frames = nil
		t.set = true
		return t
	}
	steps := t.steps
	if steps < 1 {
		steps = DefaultAnimationSteps
	}
	t.frames = Interpolate(t.current, target, steps)
	return t
}

// Step advances one frame.
func (t Tween) Step() Tween {
	if len(t.frames) == 0 {
		return t
	}
	t.current = t.frames[0]
	t.frames = t.frames[1:]
	return t
}

// Value is the displayed value.
func (t Tween) Value() float64 { return t.current }

// Animating reports whether frames remain.
func (t Tween) Animating() bool { return len(t.frames) > 0 }
