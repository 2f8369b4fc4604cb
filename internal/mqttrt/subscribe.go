package mqttrt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"unipid/internal/cover"
	"unipid/internal/errs"
	"unipid/internal/feature"
	"unipid/internal/logger"
	"unipid/internal/scanner"
)

// runSubscribe subscribes to every command topic under the device prefix
// and dispatches incoming messages until ctx is cancelled. Topics that
// do not match a known command shape are ignored silently; commands for
// unknown features or covers and malformed payloads are logged and
// otherwise ignored (§4.6's "unrecognized commands are ignored, not
// fatal").
func (r *Runtime) runSubscribe(ctx context.Context) error {
	topic := fmt.Sprintf("%s/#", r.deviceSlug)
	done := make(chan struct{})

	handler := func(_ paho.Client, msg paho.Message) {
		r.handleMessage(msg.Topic(), string(msg.Payload()))
	}

	token := r.client.Subscribe(topic, 1, handler)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	<-ctx.Done()
	close(done)
	r.client.Unsubscribe(topic)
	return nil
}

func (r *Runtime) handleMessage(topic, payload string) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != r.deviceSlug {
		return
	}
	kind, objectID, action := parts[1], parts[2], parts[3]

	switch kind {
	case "relay":
		if action == "set" {
			r.handleRelaySet(objectID, payload)
		}
	case "cover":
		r.handleCoverCommand(objectID, action, payload)
	}
}

func (r *Runtime) handleRelaySet(objectID, payload string) {
	f, ok := r.features.Lookup(objectID)
	if !ok || !f.Kind.IsOutput() {
		logger.LogDebug("ignoring set for unknown or non-output feature %q", objectID)
		return
	}

	on := strings.EqualFold(payload, "ON")
	if !on && !strings.EqualFold(payload, "OFF") {
		logger.LogWarn("ignoring malformed payload %q for %s", payload, objectID)
		return
	}

	write, coilValue := f.SetState(on)
	if !write {
		return
	}
	r.enqueueWrite(f, coilValue)
}

func (r *Runtime) enqueueWrite(f *feature.Feature, value bool) {
	var writes chan<- scanner.WriteRequest
	switch f.Bus {
	case "tcp":
		writes = r.tcpScanner.Writes()
	case "rtu":
		writes = r.rtuScanner.Writes()
	default:
		return
	}
	writes <- scanner.WriteRequest{Unit: f.Unit, Address: f.CoilAddress, Value: value}
}

func (r *Runtime) handleCoverCommand(objectID, action, payload string) {
	c := r.lookupCover(objectID)
	if c == nil {
		logger.LogDebug("ignoring command for unknown cover %q", objectID)
		return
	}
	now := time.Now()

	switch action {
	case "set":
		switch strings.ToUpper(strings.TrimSpace(payload)) {
		case "OPEN":
			c.Open(now)
		case "CLOSE":
			c.Close(now)
		case "STOP":
			c.Stop(now)
		default:
			logger.LogWarn("ignoring malformed cover command %q for %s", payload, objectID)
		}
	case "set_position":
		pos, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
		if err != nil {
			logger.LogWarn("%s", errs.NewCoverSafetyError("set_position", err, objectID).Error())
			return
		}
		c.SetPosition(now, pos)
	case "set_tilt":
		tilt, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
		if err != nil {
			logger.LogWarn("%s", errs.NewCoverSafetyError("set_tilt", err, objectID).Error())
			return
		}
		c.SetTilt(now, tilt)
	}
}

func (r *Runtime) lookupCover(objectID string) *cover.Cover {
	for _, c := range r.covers {
		if c.ObjectID == objectID {
			return c
		}
	}
	return nil
}
