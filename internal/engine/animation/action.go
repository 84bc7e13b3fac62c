package animation

import "math"

// State is the playback state of an action.
type State int

const (
	// StateStopped actions are not bound to the mixer and do not advance.
	StateStopped State = iota
	// StatePlaying actions advance every mixer update.
	StatePlaying
	// StatePaused actions stay bound with their time frozen.
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// Action is the playback instance of one clip inside a mixer.
// All setters return the action so calls can be chained.
type Action struct {
	mixer *Mixer
	clip  *Clip

	time      float32
	timeScale float32
	weight    float32
	paused    bool

	bindings []*binding
}

func newAction(m *Mixer, c *Clip) *Action {
	return &Action{
		mixer:     m,
		clip:      c,
		timeScale: 1,
		weight:    1,
	}
}

// Clip returns the clip this action plays.
func (a *Action) Clip() *Clip {
	return a.clip
}

// Play binds the action to the mixer. Playing an already active action keeps
// its current time.
func (a *Action) Play() *Action {
	a.mixer.activate(a)
	return a
}

// Stop unbinds the action and rewinds it.
func (a *Action) Stop() *Action {
	a.mixer.deactivate(a)
	return a.Reset()
}

// Reset rewinds to time zero and clears the paused flag.
func (a *Action) Reset() *Action {
	a.paused = false
	a.time = 0
	return a
}

// SetPaused freezes or resumes time without unbinding.
func (a *Action) SetPaused(paused bool) *Action {
	a.paused = paused
	return a
}

// IsPaused reports the paused flag.
func (a *Action) IsPaused() bool {
	return a.paused
}

// SetTimeScale sets the playback speed multiplier.
func (a *Action) SetTimeScale(scale float32) *Action {
	a.timeScale = scale
	return a
}

// TimeScale returns the playback speed multiplier.
func (a *Action) TimeScale() float32 {
	return a.timeScale
}

// SetWeight sets the blend weight, clamped to [0, 1].
func (a *Action) SetWeight(w float32) *Action {
	a.weight = float32(math.Max(0, math.Min(1, float64(w))))
	return a
}

// Weight returns the blend weight.
func (a *Action) Weight() float32 {
	return a.weight
}

// Time returns the local clip time in seconds.
func (a *Action) Time() float32 {
	return a.time
}

// IsRunning reports whether the action advances on the next mixer update.
func (a *Action) IsRunning() bool {
	return a.mixer.isActive(a) && !a.paused && a.timeScale != 0
}

// State returns Stopped, Playing or Paused.
func (a *Action) State() State {
	switch {
	case !a.mixer.isActive(a):
		return StateStopped
	case a.paused:
		return StatePaused
	default:
		return StatePlaying
	}
}

// advance moves local time by delta scaled by timeScale, looping.
func (a *Action) advance(delta float32) {
	if a.paused {
		return
	}
	a.time = wrap(a.time+delta*a.timeScale, a.clip.Duration)
}

// wrap maps t into [0, d). A zero-length clip always sits at zero.
func wrap(t, d float32) float32 {
	if d <= 0 {
		return 0
	}
	t = float32(math.Mod(float64(t), float64(d)))
	if t < 0 {
		t += d
	}
	return t
}
