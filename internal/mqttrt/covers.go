package mqttrt

import (
	"context"
	"fmt"
	"time"

	"unipid/internal/logger"
)

// coverTickInterval drives the cover state machine's time-integration;
// finer than the publish loop so deadline-driven stops land promptly.
const coverTickInterval = 100 * time.Millisecond

// runCoverTasks ticks every configured cover and republishes its
// position/tilt/state whenever they change.
func (r *Runtime) runCoverTasks(ctx context.Context) error {
	if len(r.covers) == 0 {
		return nil
	}

	lastState := make(map[string]string, len(r.covers))
	lastPosition := make(map[string]float64, len(r.covers))
	lastTilt := make(map[string]float64, len(r.covers))

	ticker := time.NewTicker(coverTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			now := time.Now()
			for _, c := range r.covers {
				c.Stop(now)
			}
			return nil
		case <-ticker.C:
			now := time.Now()
			for _, c := range r.covers {
				c.Tick(now)

				state := string(c.State())
				position := c.Position()
				tilt := c.Tilt()

				if state != lastState[c.ObjectID] {
					r.publishRetained(fmt.Sprintf("%s/cover/%s/state/get", r.deviceSlug, c.ObjectID), state)
					lastState[c.ObjectID] = state
				}
				if position != lastPosition[c.ObjectID] {
					r.publishRetained(fmt.Sprintf("%s/cover/%s/get", r.deviceSlug, c.ObjectID), fmt.Sprintf("%.0f", position))
					lastPosition[c.ObjectID] = position
				}
				if tilt != lastTilt[c.ObjectID] {
					r.publishRetained(fmt.Sprintf("%s/cover/%s/tilt/get", r.deviceSlug, c.ObjectID), fmt.Sprintf("%.0f", tilt))
					lastTilt[c.ObjectID] = tilt
				}
			}
		}
	}
}

func (r *Runtime) publishRetained(topic, payload string) {
	token := r.client.Publish(topic, 1, true, payload)
	if token.Wait() && token.Error() != nil {
		logger.LogWarn("publish %s failed: %v", topic, token.Error())
	}
}
