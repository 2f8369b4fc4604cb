package mqttrt

import (
	"testing"
	"time"

	"unipid/internal/cover"
	"unipid/internal/feature"
	"unipid/internal/regcache"
	"unipid/internal/scanner"
)

func testRuntime(t *testing.T) (*Runtime, *scanner.Scanner, *feature.Feature) {
	t.Helper()
	cache := regcache.New()
	fm := feature.NewMap()
	relay := &feature.Feature{ObjectID: "ro_1_01", Kind: feature.KindRO, Bus: "tcp", Unit: 1, CoilAddress: 3, Cache: cache}
	fm.Add(relay)

	tcpScan := scanner.New("tcp", nil, func(uint8) {}, nil, cache, time.Second)

	r := &Runtime{
		deviceSlug: "unipi01",
		features:   fm,
		tcpScanner: tcpScan,
	}
	return r, tcpScan, relay
}

func TestHandleMessageDispatchesRelaySet(t *testing.T) {
	r, tcpScan, _ := testRuntime(t)

	r.handleMessage("unipi01/relay/ro_1_01/set", "ON")

	select {
	case wr := <-tcpScan.Writes():
		if wr.Address != 3 || !wr.Value {
			t.Errorf("unexpected write request: %+v", wr)
		}
	default:
		t.Fatal("expected a write request to be enqueued")
	}
}

func TestHandleMessageIgnoresMalformedPayload(t *testing.T) {
	r, tcpScan, _ := testRuntime(t)

	r.handleMessage("unipi01/relay/ro_1_01/set", "TOGGLE")

	select {
	case wr := <-tcpScan.Writes():
		t.Fatalf("did not expect a write for a malformed payload, got %+v", wr)
	default:
	}
}

func TestHandleMessageIgnoresForeignDevicePrefix(t *testing.T) {
	r, tcpScan, _ := testRuntime(t)

	r.handleMessage("otherdevice/relay/ro_1_01/set", "ON")

	select {
	case wr := <-tcpScan.Writes():
		t.Fatalf("did not expect a write for a foreign device prefix, got %+v", wr)
	default:
	}
}

func TestHandleMessageIgnoresUnknownTopicKind(t *testing.T) {
	r, tcpScan, _ := testRuntime(t)

	r.handleMessage("unipi01/meter/meter_3_01/set", "123")

	select {
	case wr := <-tcpScan.Writes():
		t.Fatalf("meter has no settable topic, did not expect a write, got %+v", wr)
	default:
	}
}

func TestHandleRelaySetSkipsWriteWhenAlreadyInState(t *testing.T) {
	r, tcpScan, relay := testRuntime(t)
	_ = relay

	r.handleMessage("unipi01/relay/ro_1_01/set", "OFF") // already off (zero value)

	select {
	case wr := <-tcpScan.Writes():
		t.Fatalf("did not expect a write when the relay already matches the requested state, got %+v", wr)
	default:
	}
}

func TestHandleCoverCommandOpenCloseStop(t *testing.T) {
	r, _, _ := testRuntime(t)
	cache := regcache.New()
	up := &feature.Feature{ObjectID: "cover_1_up", Kind: feature.KindRO, Bus: "tcp", Cache: cache}
	down := &feature.Feature{ObjectID: "cover_1_down", Kind: feature.KindRO, Bus: "tcp", Cache: cache}
	var written []bool
	c := cover.New("living_room_blind", "blind", up, down, 10*time.Second, 0, 0, func(f *feature.Feature, on bool) {
		written = append(written, on)
	})
	r.covers = []*cover.Cover{c}

	r.handleCoverCommand("living_room_blind", "set", "OPEN")
	if c.State() != cover.StateCalibrating {
		t.Errorf("expected calibrating on first open (no prior position), got %s", c.State())
	}
	if len(written) == 0 {
		t.Error("expected at least one relay write from Open")
	}

	r.handleCoverCommand("living_room_blind", "set", "STOP")
	if c.State() != cover.StateStopped {
		t.Errorf("expected stopped after STOP, got %s", c.State())
	}
}

func TestHandleCoverCommandUnknownObjectIDIsIgnored(t *testing.T) {
	r, _, _ := testRuntime(t)
	r.handleCoverCommand("no_such_cover", "set", "OPEN")
	// No panic, no effect: nothing to assert beyond "it returned".
}

func TestHandleCoverCommandMalformedSetPositionIsIgnored(t *testing.T) {
	r, _, _ := testRuntime(t)
	cache := regcache.New()
	up := &feature.Feature{ObjectID: "cover_1_up", Kind: feature.KindRO, Bus: "tcp", Cache: cache}
	down := &feature.Feature{ObjectID: "cover_1_down", Kind: feature.KindRO, Bus: "tcp", Cache: cache}
	c := cover.New("blind_a", "blind", up, down, 10*time.Second, 0, 0, func(*feature.Feature, bool) {})
	r.covers = []*cover.Cover{c}

	r.handleCoverCommand("blind_a", "set_position", "not-a-number")
	if c.State() != cover.StateUnknown {
		t.Errorf("expected state unchanged after a malformed set_position, got %s", c.State())
	}
}
