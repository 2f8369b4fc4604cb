package mqttrt

import (
	"context"
	"time"

	"unipid/internal/feature"
	"unipid/internal/logger"
	"unipid/internal/scanner"
)

// runPublishLoop polls the given feature kinds for changes every
// publishInterval and publishes their current payload (§4.3's "publish
// only on change" testable property). A nil scanner means the bus is
// absent, and the loop returns at once.
func (r *Runtime) runPublishLoop(ctx context.Context, s *scanner.Scanner, kinds ...feature.Kind) error {
	if s == nil {
		return nil
	}
	features := r.features.ByKinds(kinds...)
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, f := range features {
				if !f.Changed() {
					continue
				}
				payload := f.Payload()
				topic := f.Topic(r.deviceSlug) + "/get"
				token := r.client.Publish(topic, 1, true, payload)
				if token.Wait() && token.Error() != nil {
					logger.LogWarn("publish %s failed: %v", topic, token.Error())
					continue
				}
				f.MarkPublished()
			}
		}
	}
}

// publishInterval is the cadence at which changed features are checked
// and republished; finer than either bus's scan interval so a state
// change is never held back by the publish loop itself.
const publishInterval = 200 * time.Millisecond
