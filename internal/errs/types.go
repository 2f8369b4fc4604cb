// Package errs defines the daemon's typed error hierarchy: one base shape
// (Op/Err/Severity/Code) with a distinct type per subsystem, dispatched by
// the Handler's type switch instead of string matching.
package errs

import "fmt"

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// DaemonError is the base shape every typed error embeds.
type DaemonError struct {
	Op       string
	Err      error
	Severity Severity
	Code     int
}

func (e *DaemonError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Severity, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Severity, e.Op)
}

func (e *DaemonError) Unwrap() error { return e.Err }

// ConfigError marks a failure loading or validating control.yaml / the
// hardware definitions. Always critical: the daemon cannot run without a
// valid config.
type ConfigError struct {
	DaemonError
	Field string
}

func NewConfigError(op string, err error, field string) *ConfigError {
	return &ConfigError{
		DaemonError: DaemonError{Op: op, Err: err, Severity: SeverityCritical, Code: 1},
		Field:       field,
	}
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] config field %q: %s: %v", e.Severity, e.Field, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] config: %s: %v", e.Severity, e.Op, e.Err)
}

// HardwareError marks a failure identifying or loading the board/extension
// definitions (EEPROM read, missing YAML definition for a detected model).
type HardwareError struct {
	DaemonError
	Model string
}

func NewHardwareError(op string, err error, model string) *HardwareError {
	return &HardwareError{
		DaemonError: DaemonError{Op: op, Err: err, Severity: SeverityCritical, Code: 2},
		Model:       model,
	}
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("[%s] hardware %q: %s: %v", e.Severity, e.Model, e.Op, e.Err)
}

// ModbusError marks a failed register read/write on a bus. Severity is
// SeverityWarning by default: a single bad poll is transient and must not
// crash the daemon (§7), only a caller that decides a device is
// persistently unreachable escalates it.
type ModbusError struct {
	DaemonError
	Bus  string
	Unit uint8
}

func NewModbusError(op string, err error, bus string, unit uint8) *ModbusError {
	return &ModbusError{
		DaemonError: DaemonError{Op: op, Err: err, Severity: SeverityWarning, Code: 3},
		Bus:         bus,
		Unit:        unit,
	}
}

func (e *ModbusError) Error() string {
	return fmt.Sprintf("[%s] modbus %s unit %d: %s: %v", e.Severity, e.Bus, e.Unit, e.Op, e.Err)
}

// MQTTError marks a broker connection or publish failure.
type MQTTError struct {
	DaemonError
	Broker string
	Topic  string
}

func NewMQTTError(op string, err error, broker string) *MQTTError {
	return &MQTTError{
		DaemonError: DaemonError{Op: op, Err: err, Severity: SeverityError, Code: 4},
		Broker:      broker,
	}
}

func (e *MQTTError) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("[%s] mqtt broker %q (topic %s): %s: %v", e.Severity, e.Broker, e.Topic, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] mqtt broker %q: %s: %v", e.Severity, e.Broker, e.Op, e.Err)
}

// CoverSafetyError marks a cover problem: both relays observed energized
// at a tick (the cover is then force-stopped), or a position/tilt command
// whose payload cannot be parsed.
type CoverSafetyError struct {
	DaemonError
	Cover string
}

func NewCoverSafetyError(op string, err error, cover string) *CoverSafetyError {
	return &CoverSafetyError{
		DaemonError: DaemonError{Op: op, Err: err, Severity: SeverityWarning, Code: 5},
		Cover:       cover,
	}
}

func (e *CoverSafetyError) Error() string {
	return fmt.Sprintf("[%s] cover %q: %s: %v", e.Severity, e.Cover, e.Op, e.Err)
}

// IsRecoverable reports whether the daemon should keep running after err.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	switch e := err.(type) {
	case *ConfigError:
		return false
	case *HardwareError:
		return false
	case *DaemonError:
		return e.Severity != SeverityCritical
	case *ModbusError:
		return e.Severity != SeverityCritical
	case *MQTTError:
		return e.Severity != SeverityCritical
	case *CoverSafetyError:
		return true
	default:
		return true
	}
}

// DiagnosticCode extracts the numeric code used on the diagnostic sensor.
func DiagnosticCode(err error) int {
	switch e := err.(type) {
	case *ConfigError:
		return e.Code
	case *HardwareError:
		return e.Code
	case *ModbusError:
		return e.Code
	case *MQTTError:
		return e.Code
	case *CoverSafetyError:
		return e.Code
	case *DaemonError:
		return e.Code
	default:
		return 99
	}
}
