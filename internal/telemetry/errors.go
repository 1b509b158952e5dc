package telemetry

import "errors"

// Domain errors for the telemetry package.
var (
	// ErrAlertNotFound is returned when an alert ID does not exist.
	ErrAlertNotFound = errors.New("telemetry: alert not found")

	// ErrInvalidInterval is returned when an interval label is not recognised.
	ErrInvalidInterval = errors.New("telemetry: invalid interval")

	// ErrNegativeAmount is returned when a sales amount is negative.
	ErrNegativeAmount = errors.New("telemetry: sales amount must be non-negative")

	// ErrInvalidDeviceID is returned when a device ID is empty where required.
	ErrInvalidDeviceID = errors.New("telemetry: invalid device id")
)
