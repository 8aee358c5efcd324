package ahrs

import "testing"

func TestClassifier_RisesToCirclingWithinLimit(t *testing.T) {
	cfg := CirclingConfig{Limit: 50, HighTurnRate: 0.15, LowTurnRate: 0.07}
	c := NewClassifier(cfg, false)
	for i := 1; i < cfg.Limit; i++ {
		if s := c.Update(-0.3); s != Transition {
			t.Fatalf("tick %d state=%v want transition", i, s)
		}
	}
	if s := c.Update(0.3); s != Circling {
		t.Fatalf("state=%v want circling after %d ticks", s, cfg.Limit)
	}
	for i := 0; i < 100; i++ {
		c.Update(0.5)
	}
	if c.Counter() != cfg.Limit {
		t.Fatalf("counter=%d want clamp at %d", c.Counter(), cfg.Limit)
	}
}

func TestClassifier_Hysteresis(t *testing.T) {
	cfg := CirclingConfig{Limit: 10, HighTurnRate: 0.15, LowTurnRate: 0.07}
	c := NewClassifier(cfg, false)
	for i := 0; i < 10; i++ {
		c.Update(0.2)
	}
	if c.State() != Circling {
		t.Fatalf("state=%v want circling", c.State())
	}
	// Between thresholds: counter holds.
	for i := 0; i < 100; i++ {
		c.Update(0.1)
	}
	if c.State() != Circling || c.Counter() != 10 {
		t.Fatalf("state=%v counter=%d want circling/10", c.State(), c.Counter())
	}
	if s := c.Update(0.01); s != Transition {
		t.Fatalf("state=%v want transition", s)
	}
	for i := 0; i < 100; i++ {
		c.Update(0)
	}
	if c.State() != StraightFlight || c.Counter() != 0 {
		t.Fatalf("state=%v counter=%d want straight/0", c.State(), c.Counter())
	}
}

func TestClassifier_Disabled(t *testing.T) {
	c := NewClassifier(CirclingConfig{Limit: 3, HighTurnRate: 0.15, LowTurnRate: 0.07}, true)
	for i := 0; i < 10; i++ {
		if s := c.Update(1); s != StraightFlight {
			t.Fatalf("state=%v want straight", s)
		}
	}
}

func TestCirclingStateString(t *testing.T) {
	cases := map[CirclingState]string{
		StraightFlight:   "straight",
		Transition:       "transition",
		Circling:         "circling",
		CirclingState(9): "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("String(%d)=%q want %q", int(s), got, want)
		}
	}
}
