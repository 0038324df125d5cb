package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidServerURL is returned when the server URL is not an absolute
	// http or https URL.
	ErrInvalidServerURL = errors.New("invalid server URL: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when the timeout is negative.
	// Zero disables the timeout.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidBufferSize is returned when the read buffer size is negative.
	ErrInvalidBufferSize = errors.New("invalid buffer size: must be non-negative")

	// ErrConflictingReportFormats is returned when more than one of --text,
	// --markdown and --json is given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --text, --markdown and --json cannot be combined")

	// ErrConflictingTransports is returned when both a proxy address and the
	// embedded Tor daemon are requested.
	ErrConflictingTransports = errors.New("conflicting transports: --proxy and --tor cannot be used together")
)
