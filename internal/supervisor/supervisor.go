// Package supervisor wires every component into a running bridge, in
// the init order the operating guide lays out: load config, identify
// hardware, load definitions, build the feature map, open bus clients,
// then run. Adapted from the teacher's pkg/builder.ApplicationBuilder
// and main.go's Application type, generalized from one gateway to two
// independently scanned buses plus the cover engine.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"unipid/internal/config"
	"unipid/internal/cover"
	"unipid/internal/diagnostics"
	"unipid/internal/discovery"
	"unipid/internal/errs"
	"unipid/internal/feature"
	"unipid/internal/hardware"
	"unipid/internal/health"
	"unipid/internal/logger"
	"unipid/internal/metrics"
	"unipid/internal/mqttrt"
	"unipid/internal/regcache"
	"unipid/internal/scanner"
)

// Supervisor owns every long-running task of one bridge process.
type Supervisor struct {
	cfg      *config.Config
	cache    *regcache.Cache
	features *feature.Map
	covers   []*cover.Cover

	tcpClient *scanner.TCPClient
	rtuClient *scanner.RTUClient
	tcpScan   *scanner.Scanner
	rtuScan   *scanner.Scanner

	metrics  metrics.Collector
	diag     *diagnostics.Tracker
	health   *health.Monitor
	handler  *errs.Handler
	runtime  *mqttrt.Runtime
}

// Build runs the eight-step init order and returns a ready Supervisor.
func Build(cfg *config.Config) (*Supervisor, error) {
	identity, err := hardware.Identify()
	if err != nil {
		return nil, fmt.Errorf("identify hardware: %w", err)
	}
	logger.LogInfo("identified hardware: %s rev %s serial %d", identity.Model, identity.Version, identity.Serial)

	hwMap, err := hardware.Load(cfg)
	if err != nil {
		return nil, fmt.Errorf("load hardware definitions: %w", err)
	}

	cache := regcache.New()
	claimed := cfg.ClaimedRelays()
	features := hwMap.ExpandFeatures(cache, claimed)

	tcpClient, err := scanner.NewTCPClient(cfg.Modbus.TCP)
	if err != nil {
		return nil, fmt.Errorf("open tcp bus: %w", err)
	}

	// ProbeBoards only discovers which SPI units answer and their
	// firmware; the register layout for unit 1 (the configured board
	// model) was already loaded above, so only its firmware is filled
	// in here. Units found beyond the configured board are logged by
	// ProbeBoards itself and otherwise unused, since this configuration
	// names exactly one board model.
	for _, probed := range scanner.ProbeBoards(tcpClient) {
		if probed.Unit == hwMap.Boards[0].Unit {
			hwMap.Boards[0].Firmware = probed.Firmware
		}
	}

	var rtuClient *scanner.RTUClient
	if len(cfg.Modbus.RTU.Extensions) > 0 {
		rtuClient, err = scanner.NewRTUClient(cfg.Modbus.RTU)
		if err != nil {
			return nil, fmt.Errorf("open rtu bus: %w", err)
		}
		for _, ext := range hwMap.Extensions {
			scanner.ProbeExtension(rtuClient, ext)
		}
	}

	registry := metrics.NewRegistry()
	if err := registry.StartServer(cfg.MetricsPort); err != nil {
		logger.LogWarn("metrics server failed to start: %v", err)
	}

	diag := diagnostics.NewTracker()

	tcpJobs := hwMap.Jobs(hardware.BusTCP)
	tcpScan := scanner.New(string(hardware.BusTCP), tcpClient.Client, tcpClient.SetSlave, tcpJobs, cache, cfg.Modbus.TCP.ScanInterval())
	tcpScan.Metrics = registry
	tcpScan.Diag = diag
	tcpScan.UnitName = func(uint8) string { return "board" }
	registry.SetBusStatus(string(hardware.BusTCP), true)

	healthMon := health.NewMonitor(diag)
	healthMon.SetOnline("tcp", true)

	var rtuScan *scanner.Scanner
	var extensionNames []string
	if rtuClient != nil {
		rtuJobs := hwMap.Jobs(hardware.BusRTU)
		rtuScan = scanner.New(string(hardware.BusRTU), rtuClient.Client, rtuClient.SetSlave, rtuJobs, cache, cfg.Modbus.RTU.ScanInterval())
		rtuScan.Diag = diag
		rtuScan.UnitName = extensionNameLookup(hwMap)
		rtuScan.Metrics = registry
		registry.SetBusStatus(string(hardware.BusRTU), true)
		healthMon.SetOnline("rtu", true)
		for _, e := range hwMap.Extensions {
			extensionNames = append(extensionNames, extensionName(e))
		}
	}

	health.StartServer(health.NewHandler(healthMon, identity.Version), cfg.HealthPort)

	covers, err := buildCovers(cfg, features, tcpScan, rtuScan)
	if err != nil {
		return nil, fmt.Errorf("build covers: %w", err)
	}

	info := discovery.NewDeviceInfo(cfg.DeviceName, cfg.Hardware.Model, identity.Version, cfg.HomeAssistant.Manufacturer, "", cfg.HomeAssistant.DiscoveryPrefix)

	s := &Supervisor{
		cfg:       cfg,
		cache:     cache,
		features:  features,
		covers:    covers,
		tcpClient: tcpClient,
		rtuClient: rtuClient,
		tcpScan:   tcpScan,
		rtuScan:   rtuScan,
		metrics:   registry,
		diag:      diag,
		health:    healthMon,
	}

	s.runtime = mqttrt.New(cfg, features, covers, tcpScan, rtuScan, info, diag, extensionNames, healthMon)
	s.handler = errs.NewHandler(s.runtime)

	return s, nil
}

func extensionName(e *hardware.Extension) string {
	if e.DeviceName != "" {
		return e.DeviceName
	}
	return fmt.Sprintf("%s_unit%d", e.Model, e.Unit)
}

func extensionNameLookup(hwMap *hardware.Map) func(unit uint8) string {
	byUnit := make(map[uint8]string, len(hwMap.Extensions))
	for _, e := range hwMap.Extensions {
		byUnit[e.Unit] = extensionName(e)
	}
	return func(unit uint8) string {
		if name, ok := byUnit[unit]; ok {
			return name
		}
		return fmt.Sprintf("unit%d", unit)
	}
}

// buildCovers wires each configured cover's relay writer directly to the
// scanner owning that relay's bus, the same routing the MQTT subscribe
// task uses for direct relay commands.
func buildCovers(cfg *config.Config, features *feature.Map, tcpScan, rtuScan *scanner.Scanner) ([]*cover.Cover, error) {
	var covers []*cover.Cover
	for _, cc := range cfg.Covers {
		up, ok := features.Lookup(cc.RelayUp)
		if !ok {
			return nil, fmt.Errorf("cover %s: relay_up %q not found among expanded features", cc.ObjectID, cc.RelayUp)
		}
		down, ok := features.Lookup(cc.RelayDown)
		if !ok {
			return nil, fmt.Errorf("cover %s: relay_down %q not found among expanded features", cc.ObjectID, cc.RelayDown)
		}

		fullTilt := time.Duration(0)
		if cc.FullTiltSeconds > 0 {
			fullTilt = time.Duration(cc.FullTiltSeconds * float64(time.Second))
		}
		fullTravel := time.Duration(cc.FullTravelSeconds * float64(time.Second))

		writer := func(f *feature.Feature, on bool) {
			var writes chan<- scanner.WriteRequest
			switch f.Bus {
			case string(hardware.BusTCP):
				if tcpScan != nil {
					writes = tcpScan.Writes()
				}
			case string(hardware.BusRTU):
				if rtuScan != nil {
					writes = rtuScan.Writes()
				}
			}
			if writes == nil {
				return
			}
			writes <- scanner.WriteRequest{Unit: f.Unit, Address: f.CoilAddress, Value: on}
		}

		covers = append(covers, cover.New(cc.ObjectID, cc.Kind, up, down, fullTravel, fullTilt, cc.ReverseHold(), writer))
	}
	return covers, nil
}

// Run starts both scanners and the MQTT runtime, returning when ctx is
// cancelled or a task fails fatally.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.tcpScan.Run(gctx) })
	if s.rtuScan != nil {
		g.Go(func() error { return s.rtuScan.Run(gctx) })
	}
	g.Go(func() error { return s.runtime.Run(gctx) })

	err := g.Wait()
	if err != nil {
		s.handler.Handle(ctx, err)
	}
	return err
}

// Close releases the bus clients.
func (s *Supervisor) Close() {
	if s.tcpClient != nil {
		s.tcpClient.Close()
	}
	if s.rtuClient != nil {
		s.rtuClient.Close()
	}
}
