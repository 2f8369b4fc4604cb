package mqttrt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const diagnosticsPublishInterval = 10 * time.Second

func (r *Runtime) extensionDiagnosticTopic(extension string) string {
	return fmt.Sprintf("%s/sensor/%s_diagnostic/get", r.deviceSlug, extension)
}

// runDiagnosticsPublish republishes the read/error counters of every
// unit the tracker holds (RTU extensions and the onboard board) as a
// sensor state, supplementing the spec with the teacher's
// device-diagnostics idiom (SPEC_FULL.md §4).
func (r *Runtime) runDiagnosticsPublish(ctx context.Context) error {
	if r.diag == nil {
		return nil
	}
	ticker := time.NewTicker(diagnosticsPublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, snap := range r.diag.Snapshots() {
				body, err := json.Marshal(snap)
				if err != nil {
					continue
				}
				r.publishRetained(r.extensionDiagnosticTopic(snap.Extension), string(body))
			}
		}
	}
}

func (r *Runtime) extensionSensorDiscoveryTopic(extension string) string {
	return fmt.Sprintf("%s/sensor/%s_diagnostic_%s/config", r.discoveryInfo.DiscoveryPrefix(), r.deviceSlug, extension)
}

// emitExtensionDiagnosticsDiscovery publishes one HA sensor config per
// tracked RTU extension, independent of feature discovery since these
// sensors have no corresponding hardware.FeatureTemplate.
func (r *Runtime) emitExtensionDiagnosticsDiscovery(ctx context.Context) error {
	if r.diag == nil {
		return nil
	}
	for _, name := range r.extensions {
		body, err := json.Marshal(map[string]interface{}{
			"name":        fmt.Sprintf("%s diagnostics", name),
			"unique_id":   fmt.Sprintf("%s_%s_diagnostic", r.deviceSlug, name),
			"state_topic": r.extensionDiagnosticTopic(name),
			"value_template": "{{ value_json.errors }}",
			"icon":        "mdi:heart-pulse",
		})
		if err != nil {
			return err
		}
		if err := r.publishDiscovery(ctx, r.extensionSensorDiscoveryTopic(name), body); err != nil {
			return err
		}
	}
	return nil
}
