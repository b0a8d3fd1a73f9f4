package telemetry

import "codeberg.org/mutker/sensorctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("telemetry_invalid_config")
	ErrInvalidListen = errors.ErrorCode("telemetry_invalid_listen_address")

	// Registration Errors
	ErrRegisterFailed = errors.ErrorCode("telemetry_register_failed")

	// Server Errors
	ErrServeFailed     = errors.ErrorCode("telemetry_serve_failed")
	ErrServiceShutdown = errors.ErrorCode("telemetry_service_shutdown_failed")
)
