// Package scanner implements the per-bus periodic read loop over
// declared register blocks (§4.3). Exactly one Scanner owns a given
// modbus.Client; writes requested by the MQTT subscribe task arrive over
// a channel instead of touching the client directly, per the
// single-owner bus-client pattern in DESIGN NOTES §9.
package scanner

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	gomodbus "github.com/goburrow/modbus"

	"unipid/internal/diagnostics"
	"unipid/internal/errs"
	"unipid/internal/hardware"
	"unipid/internal/logger"
	"unipid/internal/metrics"
	"unipid/internal/regcache"
)

// Job is one declared register block bound to a concrete unit.
type Job = hardware.BlockJob

// WriteRequest is a coil write enqueued by the subscribe task. Result
// carries the outcome back; the caller must not block indefinitely on it
// (the channel is buffered and Result is itself buffered by 1).
type WriteRequest struct {
	Unit    uint8
	Address uint16
	Value   bool
	Result  chan error
}

// Scanner owns one modbus.Client for one bus (TCP or RTU) and polls the
// jobs declared for it, sleeping scanInterval between full passes over
// all jobs (§4.3).
type Scanner struct {
	Bus          string
	client       gomodbus.Client
	setSlave     func(unit uint8)
	jobs         []Job
	cache        *regcache.Cache
	scanInterval time.Duration
	writes       chan WriteRequest

	// Diag and UnitName are optional; when set, every block read's
	// outcome is recorded against the owning unit's name (RTU extension
	// diagnostics, SPEC_FULL.md §4).
	Diag     *diagnostics.Tracker
	UnitName func(unit uint8) string

	// Metrics is optional; when set, every tick's reads/errors are
	// counted against this bus's name.
	Metrics metrics.Collector
}

// New builds a Scanner. setSlave mutates the underlying handler's unit id
// before each call — goburrow's client handlers carry the unit as a
// field on the handler, not as a per-call parameter, so the single-owner
// scanner goroutine sets it immediately before every read or write.
func New(bus string, client gomodbus.Client, setSlave func(uint8), jobs []Job, cache *regcache.Cache, scanInterval time.Duration) *Scanner {
	return &Scanner{
		Bus:          bus,
		client:       client,
		setSlave:     setSlave,
		jobs:         jobs,
		cache:        cache,
		scanInterval: scanInterval,
		writes:       make(chan WriteRequest, 16),
	}
}

// Writes returns the channel subscribers enqueue coil writes on.
func (s *Scanner) Writes() chan<- WriteRequest { return s.writes }

// Run executes the scan loop until ctx is cancelled. No block read is
// retried within a tick (§4.3); transient errors are logged and the loop
// continues to the next block.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case wr := <-s.writes:
			s.applyWrite(wr)
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scanner) tick(ctx context.Context) {
	for _, job := range s.jobs {
		select {
		case wr := <-s.writes:
			s.applyWrite(wr)
		default:
		}

		start := time.Now()
		s.setSlave(job.Unit)
		words, err := s.readBlock(job.Block)
		if err != nil {
			modbusErr := errs.NewModbusError(fmt.Sprintf("read block %d..%d", job.Block.StartAddress, job.Block.StartAddress+job.Block.Count), err, s.Bus, job.Unit)
			logger.LogWarn("%s", modbusErr.Error())
			s.recordOutcome(job.Unit, modbusErr)
			if s.Metrics != nil {
				s.Metrics.IncrementModbusErrors(s.Bus)
			}
			continue
		}
		s.cache.StoreBlock(s.Bus, job.Unit, job.Block.StartAddress, words)
		s.recordOutcome(job.Unit, nil)
		if s.Metrics != nil {
			s.Metrics.IncrementModbusReads(s.Bus)
			s.Metrics.ObserveModbusReadDuration(s.Bus, time.Since(start))
		}
	}
}

func (s *Scanner) recordOutcome(unit uint8, err error) {
	if s.Diag == nil || s.UnitName == nil {
		return
	}
	name := s.UnitName(unit)
	if err != nil {
		s.Diag.RecordError(name, err)
	} else {
		s.Diag.RecordSuccess(name)
	}
}

func (s *Scanner) readBlock(block hardware.RegisterBlock) ([]uint16, error) {
	var raw []byte
	var err error

	switch block.Kind {
	case hardware.KindInput:
		raw, err = s.client.ReadInputRegisters(block.StartAddress, block.Count)
	case hardware.KindHolding:
		raw, err = s.client.ReadHoldingRegisters(block.StartAddress, block.Count)
	case hardware.KindCoil:
		raw, err = s.client.ReadCoils(block.StartAddress, block.Count)
		if err == nil {
			return coilBytesToWords(raw, block.Count), nil
		}
	default:
		return nil, fmt.Errorf("unknown register kind %q", block.Kind)
	}
	if err != nil {
		return nil, err
	}
	return bytesToWords(raw), nil
}

func bytesToWords(raw []byte) []uint16 {
	words := make([]uint16, len(raw)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(raw[i*2:])
	}
	return words
}

// coilBytesToWords expands the packed coil-status bitmap goburrow
// returns into one word per coil (bit 0 only), so a coil block can share
// the cache's word-oriented Bit accessor.
func coilBytesToWords(raw []byte, count uint16) []uint16 {
	words := make([]uint16, count)
	for i := uint16(0); i < count; i++ {
		byteIdx := i / 8
		bitIdx := i % 8
		if int(byteIdx) >= len(raw) {
			break
		}
		if raw[byteIdx]&(1<<bitIdx) != 0 {
			words[i] = 1
		}
	}
	return words
}

func (s *Scanner) applyWrite(wr WriteRequest) {
	s.setSlave(wr.Unit)
	value := uint16(0x0000)
	if wr.Value {
		value = 0xFF00
	}
	_, err := s.client.WriteSingleCoil(wr.Address, value)
	if err != nil {
		err = errs.NewModbusError("write coil", err, s.Bus, wr.Unit)
		logger.LogWarn("%s", err.Error())
	}
	if wr.Result != nil {
		wr.Result <- err
	}
}
