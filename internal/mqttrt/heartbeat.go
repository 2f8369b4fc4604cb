package mqttrt

import (
	"context"
	"time"

	"unipid/internal/logger"
)

// heartbeatInterval is independent of any bus scan interval; it exists
// only to keep the status/diagnostic retained messages from expiring on
// brokers that drop long-idle retained topics.
const heartbeatInterval = 30 * time.Second

// runHeartbeat republishes the online status retained message on a fixed
// interval, adapted from the teacher's HeartbeatService.
func (r *Runtime) runHeartbeat(ctx context.Context) error {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			token := r.client.Publish(r.statusTopic(), 1, true, "online")
			if token.Wait() && token.Error() != nil {
				logger.LogDebug("heartbeat publish failed: %v", token.Error())
				continue
			}
			if err := r.PublishDiagnostic(ctx, 0, "unipid running"); err != nil {
				logger.LogDebug("diagnostic heartbeat failed: %v", err)
			}
		}
	}
}
