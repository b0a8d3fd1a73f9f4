package sensor

import "codeberg.org/mutker/sensorctl/internal/errors"

const (
	// Transport Errors
	ErrTransport = errors.ErrorCode("sensor_transport_failed")
	ErrBusOpen   = errors.ErrorCode("sensor_bus_open_failed")

	// Arithmetic guards
	ErrDivideByZero        = errors.ErrorCode("sensor_divide_by_zero")
	ErrExposureUnavailable = errors.ErrorCode("sensor_exposure_unavailable")

	// Mode control Errors
	ErrInvalidTransition = errors.ErrorCode("sensor_invalid_transition")
	ErrUnsupportedMode   = errors.ErrorCode("sensor_unsupported_mode")
	ErrFlashFailed       = errors.ErrorCode("sensor_flash_failed")

	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
)

// IsGuard reports whether err is one of the arithmetic guards that should
// skip exposure synchronization instead of aborting a transition.
func IsGuard(err error) bool {
	return errors.HasCode(err, ErrDivideByZero) || errors.HasCode(err, ErrExposureUnavailable)
}

// IsTransport reports whether err is a register transaction failure.
func IsTransport(err error) bool {
	return errors.HasCode(err, ErrTransport)
}
