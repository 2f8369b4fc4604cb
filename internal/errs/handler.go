package errs

import (
	"context"

	"unipid/internal/logger"
)

// DiagnosticPublisher lets the handler surface an error as an MQTT
// diagnostic sensor update without importing the mqttrt package.
type DiagnosticPublisher interface {
	PublishDiagnostic(ctx context.Context, code int, message string) error
}

// Handler centralizes error logging and, optionally, diagnostic
// publication. One instance is shared by the supervisor and handed to
// every task that can fail.
type Handler struct {
	publisher DiagnosticPublisher
}

func NewHandler(publisher DiagnosticPublisher) *Handler {
	return &Handler{publisher: publisher}
}

// Handle logs err at the severity its type carries and, if a diagnostic
// publisher is configured, publishes its code/message.
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	sev, msg := h.classify(err)
	switch sev {
	case SeverityCritical:
		logger.LogError("%s", msg)
	case SeverityError:
		logger.LogError("%s", msg)
	case SeverityWarning:
		logger.LogWarn("%s", msg)
	default:
		logger.LogInfo("%s", msg)
	}

	if h.publisher == nil {
		return
	}
	if pubErr := h.publisher.PublishDiagnostic(ctx, DiagnosticCode(err), err.Error()); pubErr != nil {
		logger.LogDebug("failed to publish diagnostic: %v", pubErr)
	}
}

func (h *Handler) classify(err error) (Severity, string) {
	switch e := err.(type) {
	case *ConfigError:
		return e.Severity, e.Error()
	case *HardwareError:
		return e.Severity, e.Error()
	case *ModbusError:
		return e.Severity, e.Error()
	case *MQTTError:
		return e.Severity, e.Error()
	case *CoverSafetyError:
		return e.Severity, e.Error()
	case *DaemonError:
		return e.Severity, e.Error()
	default:
		return SeverityError, err.Error()
	}
}
