// Package discovery builds Home Assistant MQTT discovery payloads (§4.7):
// one constructor per HA component, keyed off feature.Kind instead of the
// teacher's per-electrical-quantity topic handlers.
package discovery

import (
	"encoding/json"
	"fmt"

	"unipid/internal/cover"
	"unipid/internal/feature"
)

// DeviceInfo is the shared "device" block every discovery payload
// carries (§4.7).
type DeviceInfo struct {
	Name            string
	Model           string
	SWVersion       string
	Manufacturer    string
	SuggestedArea   string
	discoveryPrefix string
}

// NewDeviceInfo attaches the discovery_prefix configured for the bridge.
func NewDeviceInfo(name, model, swVersion, manufacturer, suggestedArea, discoveryPrefix string) DeviceInfo {
	return DeviceInfo{name, model, swVersion, manufacturer, suggestedArea, discoveryPrefix}
}

func (d DeviceInfo) DiscoveryPrefix() string { return d.discoveryPrefix }

type deviceBlock struct {
	Name          string   `json:"name"`
	Identifiers   []string `json:"identifiers"`
	Model         string   `json:"model"`
	SWVersion     string   `json:"sw_version,omitempty"`
	Manufacturer  string   `json:"manufacturer"`
	SuggestedArea string   `json:"suggested_area,omitempty"`
}

// payload is the union of every field the spec's table uses; each
// constructor below only fills the fields that apply to its component,
// relying on omitempty to drop the rest.
type payload struct {
	Name              string      `json:"name"`
	UniqueID          string      `json:"unique_id"`
	ObjectID          string      `json:"object_id,omitempty"`
	StateTopic        string      `json:"state_topic,omitempty"`
	CommandTopic      string      `json:"command_topic,omitempty"`
	PositionTopic     string      `json:"position_topic,omitempty"`
	SetPositionTopic  string      `json:"set_position_topic,omitempty"`
	QoS               int         `json:"qos"`
	Device            deviceBlock `json:"device"`
	Icon              string      `json:"icon,omitempty"`
	DeviceClass       string      `json:"device_class,omitempty"`
	PayloadOn         string      `json:"payload_on,omitempty"`
	PayloadOff        string      `json:"payload_off,omitempty"`
	UnitOfMeasurement string      `json:"unit_of_measurement,omitempty"`
	StateClass        string      `json:"state_class,omitempty"`
}

func buildDevice(info DeviceInfo, deviceSlug string) deviceBlock {
	return deviceBlock{
		Name:          info.Name,
		Identifiers:   []string{deviceSlug},
		Model:         info.Model,
		SWVersion:     info.SWVersion,
		Manufacturer:  info.Manufacturer,
		SuggestedArea: info.SuggestedArea,
	}
}

// ConfigTopic builds <discovery_prefix>/<ha_component>/<device_slug>_<object_id>/config.
func ConfigTopic(discoveryPrefix, haComponent, deviceSlug, objectID string) string {
	return fmt.Sprintf("%s/%s/%s_%s/config", discoveryPrefix, haComponent, deviceSlug, objectID)
}

// ForFeature builds the discovery topic and payload for one feature.
// skip is true when the feature is a relay claimed by a cover (data
// model invariant 5, §4.7's "omitted entirely" rule) or when its kind has
// no Home Assistant component (LED), in which case no publish should
// happen at all.
func ForFeature(f *feature.Feature, deviceSlug string, info DeviceInfo, claimedRelays map[string]bool) (topic string, body []byte, skip bool, err error) {
	if (f.Kind == feature.KindDO || f.Kind == feature.KindRO) && claimedRelays[f.ObjectID] {
		return "", nil, true, nil
	}

	component := f.Kind.HAComponent()
	if component == "" {
		return "", nil, true, nil
	}

	p := payload{
		Name:     f.FriendlyName,
		UniqueID: fmt.Sprintf("%s_%s", deviceSlug, f.ObjectID),
		ObjectID: f.ObjectID,
		QoS:      2,
		Device:   buildDevice(info, deviceSlug),
		Icon:     f.Icon,
	}

	stateTopic := fmt.Sprintf("%s/%s/%s/get", deviceSlug, topicKind(f.Kind), f.ObjectID)
	p.StateTopic = stateTopic

	switch f.Kind {
	case feature.KindDI:
		p.DeviceClass = f.DeviceClass
		on, off := f.PayloadOnOff()
		p.PayloadOn, p.PayloadOff = on, off
	case feature.KindDO, feature.KindRO, feature.KindLED:
		p.CommandTopic = fmt.Sprintf("%s/%s/%s/set", deviceSlug, topicKind(f.Kind), f.ObjectID)
		p.DeviceClass = f.DeviceClass
		on, off := f.PayloadOnOff()
		p.PayloadOn, p.PayloadOff = on, off
	case feature.KindMeter:
		p.UnitOfMeasurement = f.UnitOfMeasurement
		p.StateClass = f.StateClass
		p.DeviceClass = f.DeviceClass
	}

	body, err = json.Marshal(p)
	topic = ConfigTopic(info.DiscoveryPrefix(), component, deviceSlug, f.ObjectID)
	return topic, body, false, err
}

// ForCover builds the discovery topic and payload for a cover.
func ForCover(c *cover.Cover, deviceSlug string, info DeviceInfo) (topic string, body []byte, err error) {
	p := payload{
		Name:             c.ObjectID,
		UniqueID:         fmt.Sprintf("%s_%s", deviceSlug, c.ObjectID),
		ObjectID:         c.ObjectID,
		QoS:              2,
		Device:           buildDevice(info, deviceSlug),
		DeviceClass:      c.Kind,
		CommandTopic:     fmt.Sprintf("%s/cover/%s/set", deviceSlug, c.ObjectID),
		PositionTopic:    fmt.Sprintf("%s/cover/%s/get", deviceSlug, c.ObjectID),
		SetPositionTopic: fmt.Sprintf("%s/cover/%s/set_position", deviceSlug, c.ObjectID),
	}
	body, err = json.Marshal(p)
	topic = ConfigTopic(info.DiscoveryPrefix(), "cover", deviceSlug, c.ObjectID)
	return topic, body, err
}

func topicKind(k feature.Kind) string {
	switch k {
	case feature.KindDI:
		return "input"
	case feature.KindDO, feature.KindRO, feature.KindLED:
		return "relay"
	case feature.KindMeter:
		return "meter"
	default:
		return "unknown"
	}
}
