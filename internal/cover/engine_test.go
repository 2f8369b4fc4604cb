package cover

import (
	"testing"
	"time"

	"unipid/internal/feature"
	"unipid/internal/regcache"
)

// relayFeature builds an RO feature addressed at the given coil, backed
// by a shared cache, so RelayWriter calls land somewhere BoolValue can
// observe them back.
func relayFeature(cache *regcache.Cache, objectID string, unit uint8, coil uint16) *feature.Feature {
	return &feature.Feature{
		ObjectID:     objectID,
		Kind:         feature.KindRO,
		Bus:          "tcp",
		Unit:         unit,
		ValueAddress: coil,
		BitIndex:     0,
		CoilAddress:  coil,
		Cache:        cache,
	}
}

// newTestCoverWithTilt wires a RelayWriter that writes straight into the
// shared cache bit, mimicking what a scanner would do once a queued coil
// write lands on the bus and is read back on the next tick.
func newTestCoverWithTilt(fullTilt time.Duration) (c *Cover, up, down *feature.Feature, cache *regcache.Cache) {
	cache = regcache.New()
	up = relayFeature(cache, "cover_1_up", 1, 0)
	down = relayFeature(cache, "cover_1_down", 1, 1)

	write := func(f *feature.Feature, on bool) {
		var v uint16
		if on {
			v = 1
		}
		cache.Store(f.Bus, f.Unit, f.ValueAddress, v)
	}

	c = New("living_room_blind", "blind", up, down, 10*time.Second, fullTilt, 500*time.Millisecond, write)
	return c, up, down, cache
}

// newTestCover is a shutter with no tilt axis, for tests concerned only
// with the up/down travel state machine.
func newTestCover() (c *Cover, up, down *feature.Feature, cache *regcache.Cache) {
	return newTestCoverWithTilt(0)
}

func TestOpenEnergizesUpRelayOnly(t *testing.T) {
	c, up, down, _ := newTestCover()
	c.calibrated = true
	now := time.Now()
	c.Open(now)

	if c.State() != StateOpening {
		t.Errorf("expected state opening, got %s", c.State())
	}
	if !up.BoolValue() {
		t.Error("expected up relay energized")
	}
	if down.BoolValue() {
		t.Error("expected down relay released")
	}
}

func TestInterlockNeverEnergizesBothRelays(t *testing.T) {
	c, up, down, _ := newTestCover()
	c.calibrated = true
	now := time.Now()
	c.Open(now)
	c.Close(now.Add(10 * time.Millisecond))

	if up.BoolValue() && down.BoolValue() {
		t.Fatal("both relays energized simultaneously")
	}
}

func TestReversalGuardDelaysDirectionChange(t *testing.T) {
	c, up, down, _ := newTestCover()
	c.calibrated = true
	now := time.Now()
	c.Open(now)
	if !up.BoolValue() {
		t.Fatal("expected up energized after Open")
	}

	// Reverse mid-travel: should stop immediately, not jump straight to closing.
	reverseAt := now.Add(200 * time.Millisecond)
	c.Close(reverseAt)
	if c.State() != StateStopped {
		t.Errorf("expected stopped during the reversal guard, got %s", c.State())
	}
	if up.BoolValue() || down.BoolValue() {
		t.Error("expected both relays released during the guard window")
	}

	// Before the guard elapses, Tick must not start closing yet.
	c.Tick(reverseAt.Add(100 * time.Millisecond))
	if c.State() != StateStopped {
		t.Errorf("expected still stopped before guard elapses, got %s", c.State())
	}

	// After the guard elapses, Tick resumes the pending direction.
	c.Tick(reverseAt.Add(600 * time.Millisecond))
	if c.State() != StateClosing {
		t.Errorf("expected closing once the guard elapses, got %s", c.State())
	}
	if !down.BoolValue() {
		t.Error("expected down relay energized once closing resumes")
	}
}

func TestSetPositionSchedulesAutomaticStop(t *testing.T) {
	c, up, _, _ := newTestCover()
	c.calibrated = true
	now := time.Now()

	c.SetPosition(now, 50)
	if c.State() != StateOpening {
		t.Fatalf("expected opening toward a higher position, got %s", c.State())
	}
	if !up.BoolValue() {
		t.Fatal("expected up relay energized while approaching the target")
	}

	// Full travel is 10s for 100%, so 50% should take 5s.
	c.Tick(now.Add(5100 * time.Millisecond))
	if c.State() != StateStopped {
		t.Errorf("expected automatic stop once the scheduled deadline passes, got %s", c.State())
	}
	if got := c.Position(); got < 49 || got > 51 {
		t.Errorf("expected position near 50, got %v", got)
	}
}

func TestTiltPhaseThenPositionIntegration(t *testing.T) {
	c, _, _, _ := newTestCoverWithTilt(2 * time.Second)
	c.calibrated = true
	now := time.Now()
	c.Open(now)

	if c.State() != StateTiltingOpen {
		t.Fatalf("expected tilting_open while tilt is not at its extreme, got %s", c.State())
	}

	// Tilt window is 2s; mid-tilt the position must not have moved yet.
	c.Tick(now.Add(1 * time.Second))
	if c.Position() != 0 {
		t.Errorf("expected position unchanged during the tilt phase, got %v", c.Position())
	}
	if tilt := c.Tilt(); tilt < 49 || tilt > 51 {
		t.Errorf("expected tilt near 50 mid-phase, got %v", tilt)
	}

	// After the tilt window, travel time should start accumulating.
	c.Tick(now.Add(2*time.Second + 1*time.Second))
	if c.Tilt() != 100 {
		t.Errorf("expected tilt pinned at 100 once its phase completes, got %v", c.Tilt())
	}
	if c.Position() <= 0 {
		t.Errorf("expected position to have advanced past the tilt window, got %v", c.Position())
	}
}

func TestTickForcesStopOnBothRelaysEnergized(t *testing.T) {
	c, up, down, cache := newTestCover()
	c.calibrated = true
	now := time.Now()
	c.Open(now)

	// Simulate a wiring fault: force both coils on behind the engine's back.
	cache.Store(up.Bus, up.Unit, up.ValueAddress, 1)
	cache.Store(down.Bus, down.Unit, down.ValueAddress, 1)

	c.Tick(now.Add(50 * time.Millisecond))
	if c.State() != StateStopped {
		t.Errorf("expected forced stop on the safety violation, got %s", c.State())
	}
}

func TestClampAndAbs(t *testing.T) {
	if clamp(-5) != 0 {
		t.Error("expected clamp(-5) == 0")
	}
	if clamp(150) != 100 {
		t.Error("expected clamp(150) == 100")
	}
	if clamp(42) != 42 {
		t.Error("expected clamp(42) == 42")
	}
	if abs(-3.5) != 3.5 {
		t.Error("expected abs(-3.5) == 3.5")
	}
}

func TestTimeDurationSeconds(t *testing.T) {
	if got := timeDurationSeconds(1.5); got != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", got)
	}
}
