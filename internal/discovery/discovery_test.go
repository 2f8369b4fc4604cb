package discovery

import (
	"encoding/json"
	"testing"
	"time"

	"unipid/internal/cover"
	"unipid/internal/feature"
	"unipid/internal/regcache"
)

func testDeviceInfo() DeviceInfo {
	return NewDeviceInfo("Unipi 01", "M523", "1.4", "Unipi technology", "Utility room", "homeassistant")
}

func TestForFeatureDISkipsNothingAndFillsOnOff(t *testing.T) {
	cache := regcache.New()
	f := &feature.Feature{ObjectID: "di_1_01", Kind: feature.KindDI, FriendlyName: "Input 1", Cache: cache}

	topic, body, skip, err := ForFeature(f, "unipi01", testDeviceInfo(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skip {
		t.Fatal("did not expect a DI feature to be skipped")
	}
	if topic != "homeassistant/binary_sensor/unipi01_di_1_01/config" {
		t.Errorf("unexpected topic: %s", topic)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("invalid JSON payload: %v", err)
	}
	if decoded["state_topic"] != "unipi01/input/di_1_01/get" {
		t.Errorf("unexpected state_topic: %v", decoded["state_topic"])
	}
	if decoded["payload_on"] != "ON" || decoded["payload_off"] != "OFF" {
		t.Errorf("unexpected on/off payloads: %v/%v", decoded["payload_on"], decoded["payload_off"])
	}
}

func TestForFeatureRelaySkippedWhenClaimed(t *testing.T) {
	cache := regcache.New()
	f := &feature.Feature{ObjectID: "ro_1_01", Kind: feature.KindRO, Cache: cache}

	_, _, skip, err := ForFeature(f, "unipi01", testDeviceInfo(), map[string]bool{"ro_1_01": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !skip {
		t.Error("expected a cover-claimed relay to be skipped")
	}
}

func TestForFeatureRelayHasCommandTopic(t *testing.T) {
	cache := regcache.New()
	f := &feature.Feature{ObjectID: "ro_1_02", Kind: feature.KindRO, Cache: cache}

	topic, body, skip, err := ForFeature(f, "unipi01", testDeviceInfo(), nil)
	if err != nil || skip {
		t.Fatalf("unexpected skip=%v err=%v", skip, err)
	}
	if topic != "homeassistant/switch/unipi01_ro_1_02/config" {
		t.Errorf("unexpected topic: %s", topic)
	}
	var decoded map[string]any
	json.Unmarshal(body, &decoded)
	if decoded["command_topic"] != "unipi01/relay/ro_1_02/set" {
		t.Errorf("unexpected command_topic: %v", decoded["command_topic"])
	}
}

func TestForFeatureMeterHasUnitAndStateClass(t *testing.T) {
	cache := regcache.New()
	f := &feature.Feature{
		ObjectID: "meter_3_01", Kind: feature.KindMeter, Cache: cache,
		UnitOfMeasurement: "kWh", StateClass: "total_increasing",
	}
	topic, body, skip, err := ForFeature(f, "unipi01", testDeviceInfo(), nil)
	if err != nil || skip {
		t.Fatalf("unexpected skip=%v err=%v", skip, err)
	}
	if topic != "homeassistant/sensor/unipi01_meter_3_01/config" {
		t.Errorf("unexpected topic: %s", topic)
	}
	var decoded map[string]any
	json.Unmarshal(body, &decoded)
	if decoded["unit_of_measurement"] != "kWh" || decoded["state_class"] != "total_increasing" {
		t.Errorf("unexpected meter fields: %v", decoded)
	}
}

func TestForCoverBuildsThreeTopics(t *testing.T) {
	cache := regcache.New()
	up := &feature.Feature{ObjectID: "ro_1_01", Kind: feature.KindRO, Cache: cache}
	down := &feature.Feature{ObjectID: "ro_1_02", Kind: feature.KindRO, Cache: cache}
	c := cover.New("living_room_blind", "blind", up, down, 20*time.Second, 0, 0, func(*feature.Feature, bool) {})

	topic, body, err := ForCover(c, "unipi01", testDeviceInfo())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if topic != "homeassistant/cover/unipi01_living_room_blind/config" {
		t.Errorf("unexpected topic: %s", topic)
	}
	var decoded map[string]any
	json.Unmarshal(body, &decoded)
	if decoded["command_topic"] != "unipi01/cover/living_room_blind/set" {
		t.Errorf("unexpected command_topic: %v", decoded["command_topic"])
	}
	if decoded["set_position_topic"] != "unipi01/cover/living_room_blind/set_position" {
		t.Errorf("unexpected set_position_topic: %v", decoded["set_position_topic"])
	}
}
