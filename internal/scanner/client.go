package scanner

import (
	"fmt"

	gomodbus "github.com/goburrow/modbus"

	"unipid/internal/config"
)

// TCPClient bundles the goburrow TCP handler with its client, since
// setting the unit id for the next call means mutating the handler
// directly (goburrow has no per-call unit argument).
type TCPClient struct {
	Handler *gomodbus.TCPClientHandler
	Client  gomodbus.Client
}

func NewTCPClient(cfg config.TCPBusConfig) (*TCPClient, error) {
	handler := gomodbus.NewTCPClientHandler(cfg.Address)
	handler.Timeout = cfg.Timeout()
	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect modbus tcp %s: %w", cfg.Address, err)
	}
	return &TCPClient{Handler: handler, Client: gomodbus.NewClient(handler)}, nil
}

func (c *TCPClient) SetSlave(unit uint8) { c.Handler.SlaveId = unit }
func (c *TCPClient) Close() error        { return c.Handler.Close() }

// RTUClient bundles the goburrow RTU handler (backed by goburrow/serial)
// with its client.
type RTUClient struct {
	Handler *gomodbus.RTUClientHandler
	Client  gomodbus.Client
}

func NewRTUClient(cfg config.RTUBusConfig) (*RTUClient, error) {
	handler := gomodbus.NewRTUClientHandler(cfg.Device)
	handler.BaudRate = cfg.BaudRate
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.Timeout = cfg.Timeout()
	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("connect modbus rtu %s: %w", cfg.Device, err)
	}
	return &RTUClient{Handler: handler, Client: gomodbus.NewClient(handler)}, nil
}

func (c *RTUClient) SetSlave(unit uint8) { c.Handler.SlaveId = unit }
func (c *RTUClient) Close() error        { return c.Handler.Close() }
