// Package mqttrt is the MQTT runtime (§4.6): one supervising connection
// loop spawning a subscribe task, one publish task per bus, and the
// cover control-plane/tick task, with bounded reconnect.
package mqttrt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"unipid/internal/config"
	"unipid/internal/cover"
	"unipid/internal/diagnostics"
	"unipid/internal/discovery"
	"unipid/internal/feature"
	"unipid/internal/health"
	"unipid/internal/logger"
	"unipid/internal/recovery"
	"unipid/internal/scanner"
)

// statusTopicSuffix names the bridge-level availability topic
// (<device>/status, see statusTopic), grounded on the
// teacher's PublishStatusOnline/Offline and the original Python's
// last-will pattern; it is a supplemented feature (SPEC_FULL.md §4), not
// named by spec.md itself.
const statusTopicSuffix = "status"

// Runtime owns the single MQTT connection and everything that rides on
// it.
type Runtime struct {
	cfg        *config.Config
	deviceSlug string
	features   *feature.Map
	covers     []*cover.Cover

	tcpScanner *scanner.Scanner
	rtuScanner *scanner.Scanner

	discoveryInfo discovery.DeviceInfo
	diag          *diagnostics.Tracker
	extensions    []string
	health        *health.Monitor

	client           paho.Client
	discoveryEmitted bool
	breaker          *recovery.Breaker
}

func New(cfg *config.Config, features *feature.Map, covers []*cover.Cover, tcpScanner, rtuScanner *scanner.Scanner, info discovery.DeviceInfo, diag *diagnostics.Tracker, extensions []string, monitor *health.Monitor) *Runtime {
	return &Runtime{
		cfg:           cfg,
		deviceSlug:    cfg.DeviceName,
		features:      features,
		covers:        covers,
		tcpScanner:    tcpScanner,
		rtuScanner:    rtuScanner,
		discoveryInfo: info,
		diag:          diag,
		extensions:    extensions,
		health:        monitor,
		breaker:       recovery.NewBreaker(cfg.MQTT.EffectiveRetryLimit(), 0),
	}
}

func (r *Runtime) statusTopic() string {
	return fmt.Sprintf("%s/%s", r.deviceSlug, statusTopicSuffix)
}

// Run drives the connect/reconnect loop (§4.6 step 4) until ctx is
// cancelled or the retry limit is exceeded, in which case it returns a
// fatal error for the supervisor to act on.
func (r *Runtime) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !r.breaker.Allow() {
			return fmt.Errorf("mqtt: too many connection attempts")
		}

		connCtx, cancel := context.WithCancel(ctx)
		err := r.connectAndServe(connCtx)
		cancel()

		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			r.breaker.RecordSuccess()
			continue
		}

		logger.LogError("mqtt connection lost: %v", err)
		if opened := r.breaker.RecordFailure(); opened {
			return fmt.Errorf("shutdown, due to too many MQTT connection attempts")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.cfg.MQTT.ReconnectInterval()):
		}
	}
}

// connectAndServe opens one connection, runs discovery on first success,
// and supervises the per-connection tasks until one fails or ctx is
// cancelled (§4.6 steps 1-3).
func (r *Runtime) connectAndServe(ctx context.Context) error {
	clientID := fmt.Sprintf("%s-%s", r.deviceSlug, uuid.NewString())

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", r.cfg.MQTT.Host, r.cfg.MQTT.Port))
	opts.SetClientID(clientID)
	opts.SetUsername(r.cfg.MQTT.Username)
	opts.SetPassword(r.cfg.MQTT.Password)
	opts.SetKeepAlive(r.cfg.MQTT.Keepalive())
	opts.SetAutoReconnect(false)
	opts.SetWill(r.statusTopic(), "offline", 1, true)
	opts.SetCleanSession(true)

	r.client = paho.NewClient(opts)
	if token := r.client.Connect(); token.Wait() && token.Error() != nil {
		r.health.SetOnline("mqtt", false)
		return token.Error()
	}
	r.health.SetOnline("mqtt", true)
	defer r.client.Disconnect(250)
	defer r.health.SetOnline("mqtt", false)

	if token := r.client.Publish(r.statusTopic(), 1, true, "online"); token.Wait() && token.Error() != nil {
		logger.LogWarn("failed to publish online status: %v", token.Error())
	}

	if !r.discoveryEmitted && r.cfg.HomeAssistant.Enabled {
		if err := r.emitDiscovery(ctx); err != nil {
			logger.LogError("discovery publish failed: %v", err)
		} else if err := r.emitExtensionDiagnosticsDiscovery(ctx); err != nil {
			logger.LogError("diagnostic discovery publish failed: %v", err)
		} else {
			r.discoveryEmitted = true
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.runSubscribe(gctx) })
	g.Go(func() error { return r.runPublishLoop(gctx, r.tcpScanner, feature.KindDI, feature.KindDO, feature.KindRO, feature.KindLED) })
	g.Go(func() error { return r.runPublishLoop(gctx, r.rtuScanner, feature.KindMeter) })
	g.Go(func() error { return r.runCoverTasks(gctx) })
	g.Go(func() error { return r.runHeartbeat(gctx) })
	g.Go(func() error { return r.runDiagnosticsPublish(gctx) })

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
