package ahrs

import "math"

// CirclingState classifies the flight by its smoothed turn rate.
type CirclingState int

const (
	StraightFlight CirclingState = iota
	Transition
	Circling
)

func (s CirclingState) String() string {
	switch s {
	case StraightFlight:
		return "straight"
	case Transition:
		return "transition"
	case Circling:
		return "circling"
	default:
		return "unknown"
	}
}

// Classifier is a hysteresis counter over the absolute turn rate.
// The counter stays within [0, limit]; 0 means straight flight and limit
// means circling.
type Classifier struct {
	limit    int
	high     float64
	low      float64
	disabled bool

	counter int
	state   CirclingState
}

func NewClassifier(cfg CirclingConfig, disabled bool) *Classifier {
	return &Classifier{
		limit:    cfg.Limit,
		high:     cfg.HighTurnRate,
		low:      cfg.LowTurnRate,
		disabled: disabled,
	}
}

// Update feeds one smoothed turn rate sample (rad/s).
func (c *Classifier) Update(turnRate float64) CirclingState {
	if c.disabled {
		return StraightFlight
	}
	rate := math.Abs(turnRate)
	if c.counter < c.limit && rate > c.high {
		c.counter++
	}
	if c.counter > 0 && rate < c.low {
		c.counter--
	}
	switch c.counter {
	case 0:
		c.state = StraightFlight
	case c.limit:
		c.state = Circling
	default:
		c.state = Transition
	}
	return c.state
}

func (c *Classifier) State() CirclingState { return c.state }

func (c *Classifier) Counter() int { return c.counter }
