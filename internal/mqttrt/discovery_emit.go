package mqttrt

import (
	"context"
	"fmt"

	"unipid/internal/discovery"
)

// emitDiscovery publishes one retained discovery config message per
// feature and per cover, in definition order (§4.7). It runs once per
// process lifetime (Runtime.discoveryEmitted), not on every reconnect.
func (r *Runtime) emitDiscovery(ctx context.Context) error {
	claimed := map[string]bool{}
	for _, c := range r.covers {
		if c.RelayUp != nil {
			claimed[c.RelayUp.ObjectID] = true
		}
		if c.RelayDown != nil {
			claimed[c.RelayDown.ObjectID] = true
		}
	}

	for _, f := range r.features.All() {
		topic, body, skip, err := discovery.ForFeature(f, r.deviceSlug, r.discoveryInfo, claimed)
		if err != nil {
			return fmt.Errorf("discovery payload for %s: %w", f.ObjectID, err)
		}
		if skip {
			continue
		}
		if err := r.publishDiscovery(ctx, topic, body); err != nil {
			return err
		}
	}

	for _, c := range r.covers {
		topic, body, err := discovery.ForCover(c, r.deviceSlug, r.discoveryInfo)
		if err != nil {
			return fmt.Errorf("discovery payload for cover %s: %w", c.ObjectID, err)
		}
		if err := r.publishDiscovery(ctx, topic, body); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) publishDiscovery(ctx context.Context, topic string, body []byte) error {
	token := r.client.Publish(topic, 1, true, body)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
