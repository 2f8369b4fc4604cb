// Package cover implements the cover state machine (§3, §4.5): a
// position-tracked, time-integrated model driving two antagonistic relay
// outputs, with hard interlocks, tilt sub-positioning, a reversal guard,
// and deadline-driven stop transitions.
package cover

import (
	"sync"
	"time"

	"unipid/internal/errs"
	"unipid/internal/feature"
	"unipid/internal/logger"
)

type State string

const (
	StateUnknown      State = "unknown"
	StateIdle         State = "idle"
	StateOpening      State = "opening"
	StateClosing      State = "closing"
	StateStopped      State = "stopped"
	StateTiltingOpen  State = "tilting_open"
	StateTiltingClose State = "tilting_close"
	StateCalibrating  State = "calibrating"
)

// RelayWriter issues a coil write for an output feature. It must not
// block the cover tick; implementations enqueue onto the owning
// scanner's write channel and log any failure asynchronously (§4.5's
// failure semantics: a write failure is logged, the state machine
// proceeds as if it had succeeded).
type RelayWriter func(f *feature.Feature, on bool)

// Cover is one compound device (data model §3).
type Cover struct {
	ObjectID          string
	Kind              string
	RelayUp           *feature.Feature
	RelayDown         *feature.Feature
	FullTravel        time.Duration
	FullTilt          time.Duration
	ReverseHold       time.Duration
	write             RelayWriter

	mu               sync.Mutex
	state            State
	position         float64 // 0 closed .. 100 open
	tilt             float64
	calibrated       bool
	t0               time.Time
	startPosition    float64
	startTilt        float64
	direction        int8 // +1 opening, -1 closing, 0 none
	scheduledStopAt  time.Time
	hasScheduledStop bool
	guardUntil       time.Time
	guardPending     int8 // direction to resume once the guard elapses, 0 if none
}

func New(objectID, kind string, up, down *feature.Feature, fullTravel, fullTilt, reverseHold time.Duration, write RelayWriter) *Cover {
	return &Cover{
		ObjectID:    objectID,
		Kind:        kind,
		RelayUp:     up,
		RelayDown:   down,
		FullTravel:  fullTravel,
		FullTilt:    fullTilt,
		ReverseHold: reverseHold,
		write:       write,
		state:       StateUnknown,
	}
}

func (c *Cover) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Cover) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *Cover) Tilt() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tilt
}

// releaseBoth is the hard interlock: both relays are released before
// either is energized within the same control tick (§4.5).
func (c *Cover) releaseBoth() {
	c.write(c.RelayUp, false)
	c.write(c.RelayDown, false)
}

func (c *Cover) energize(up bool) {
	c.releaseBoth()
	if up {
		c.write(c.RelayUp, true)
	} else {
		c.write(c.RelayDown, true)
	}
}

// Open issues an open command. From idle/stopped/unknown it starts
// moving (calibrating first if position is not yet known); from a
// moving state in the opposite direction it stops and schedules a
// reversal after the guard interval.
func (c *Cover) Open(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startDirection(now, 1)
}

func (c *Cover) Close(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startDirection(now, -1)
}

// startDirection must be called with mu held.
func (c *Cover) startDirection(now time.Time, dir int8) {
	if c.direction != 0 && c.direction != dir {
		// Reversal: stop now, resume the new direction after the guard.
		c.stopLocked(now)
		c.guardUntil = now.Add(c.ReverseHold)
		c.guardPending = dir
		return
	}
	if c.direction == dir {
		return // already moving that way
	}

	c.integrateLocked(now)
	c.hasScheduledStop = false
	c.guardPending = 0
	c.t0 = now
	c.startPosition = c.position
	c.startTilt = c.tilt
	c.direction = dir

	if !c.calibrated {
		c.state = StateCalibrating
		// §4.5: calibration runs the full travel+tilt range against the
		// physical end-stop rather than stopping at an inferred bound.
		c.scheduledStopAt = now.Add(c.FullTravel + c.FullTilt)
		c.hasScheduledStop = true
	} else if c.FullTilt > 0 && c.tiltNotAtExtreme(dir) {
		if dir > 0 {
			c.state = StateTiltingOpen
		} else {
			c.state = StateTiltingClose
		}
	} else if dir > 0 {
		c.state = StateOpening
	} else {
		c.state = StateClosing
	}
	c.energize(dir > 0)
}

func (c *Cover) tiltNotAtExtreme(dir int8) bool {
	if dir > 0 {
		return c.tilt < 100
	}
	return c.tilt > 0
}

// Stop releases both relays and freezes position/tilt at their
// integrated values (§4.5).
func (c *Cover) Stop(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(now)
	c.guardPending = 0
}

func (c *Cover) stopLocked(now time.Time) {
	c.integrateLocked(now)
	c.releaseBoth()
	c.direction = 0
	c.hasScheduledStop = false
	c.state = StateStopped
}

// SetPosition moves toward p, scheduling an automatic stop at the
// computed deadline (§4.5).
func (c *Cover) SetPosition(now time.Time, p float64) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.integrateLocked(now)
	delta := p - c.position
	if delta == 0 {
		return
	}
	dir := int8(1)
	if delta < 0 {
		dir = -1
	}
	c.startDirection(now, dir)

	if c.state == StateCalibrating {
		return // calibration runs the full range, not the requested delta
	}
	travelSecs := abs(delta) / 100 * c.FullTravel.Seconds()
	c.scheduledStopAt = c.t0.Add(timeDurationSeconds(travelSecs))
	c.hasScheduledStop = true
}

// SetTilt is only meaningful for blinds with FullTilt > 0; it reuses the
// same direction/scheduling machinery against the tilt axis.
func (c *Cover) SetTilt(now time.Time, t float64) {
	if t < 0 {
		t = 0
	}
	if t > 100 {
		t = 100
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FullTilt <= 0 {
		return
	}
	c.integrateLocked(now)
	delta := t - c.tilt
	if delta == 0 {
		return
	}
	dir := int8(1)
	if delta < 0 {
		dir = -1
	}
	c.startDirection(now, dir)

	if c.state == StateCalibrating {
		return // calibration runs the full range, not the requested delta
	}
	tiltSecs := abs(delta) / 100 * c.FullTilt.Seconds()
	c.scheduledStopAt = c.t0.Add(timeDurationSeconds(tiltSecs))
	c.hasScheduledStop = true
}

// Tick re-derives position/tilt from elapsed time, checks the safety
// interlock against observed relay state, applies any due scheduled stop
// or reversal, and auto-stops at the travel bounds (§4.5, §8).
func (c *Cover) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.RelayUp.BoolValue() && c.RelayDown.BoolValue() {
		violation := errs.NewCoverSafetyError("tick", nil, c.ObjectID)
		logger.LogError("%s: both relays energized, forcing stop", violation.Error())
		c.stopLocked(now)
		c.guardPending = 0
		return
	}

	if c.guardPending != 0 && !now.Before(c.guardUntil) {
		dir := c.guardPending
		c.guardPending = 0
		c.startDirection(now, dir)
		return
	}

	if c.direction == 0 {
		return
	}

	c.integrateLocked(now)

	if c.hasScheduledStop && !now.Before(c.scheduledStopAt) {
		c.finishCalibrationOrStop(now)
		return
	}
	if c.inTiltPhase(now) {
		return // tilt sub-position holds the travel position steady
	}
	if c.state == StateCalibrating {
		return // calibration ends only at its scheduled full-range deadline
	}
	if (c.direction > 0 && c.position >= 100) || (c.direction < 0 && c.position <= 0) {
		c.finishCalibrationOrStop(now)
	}
}

// inTiltPhase reports whether elapsed time since the current move started
// is still within the tilt sub-window (§4.5's tilt-then-position order).
// Must be called with mu held.
func (c *Cover) inTiltPhase(now time.Time) bool {
	if c.FullTilt <= 0 {
		return false
	}
	elapsed := now.Sub(c.t0).Seconds()
	return elapsed < c.FullTilt.Seconds()
}

func (c *Cover) finishCalibrationOrStop(now time.Time) {
	wasCalibrating := c.state == StateCalibrating
	c.stopLocked(now)
	if wasCalibrating {
		c.calibrated = true
	}
}

// integrateLocked recomputes position/tilt from wall-clock elapsed time
// since t0 (§4.5's position-integration rule). Must be called with mu
// held.
func (c *Cover) integrateLocked(now time.Time) {
	if c.direction == 0 {
		return
	}
	elapsed := now.Sub(c.t0).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	if c.FullTilt > 0 {
		tiltWindow := c.FullTilt.Seconds()
		if elapsed < tiltWindow {
			frac := elapsed / tiltWindow
			target := 0.0
			if c.direction > 0 {
				target = 100
			}
			c.tilt = clamp(c.startTilt + (target-c.startTilt)*frac)
			c.position = c.startPosition
			return
		}
		// Tilt phase complete; tilt holds at its extreme, position
		// advances over the remaining elapsed time.
		if c.direction > 0 {
			c.tilt = 100
		} else {
			c.tilt = 0
		}
		elapsed -= tiltWindow
	}

	travel := c.FullTravel.Seconds()
	if travel <= 0 {
		return
	}
	delta := (elapsed / travel) * 100 * float64(c.direction)
	c.position = clamp(c.startPosition + delta)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func timeDurationSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
