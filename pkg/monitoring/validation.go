package monitoring

import "github.com/core-tools/hsu-unitmaster/pkg/errors"

// ValidateProbeOptions validates probe loop configuration.
func ValidateProbeOptions(options ProbeOptions) error {
	if options.Interval <= 0 {
		return errors.NewValidationError("probe interval must be positive", nil)
	}

	if options.Timeout <= 0 {
		return errors.NewValidationError("probe timeout must be positive", nil)
	}

	// Strict: a probe must finish (or be cancelled) before the next
	// tick so probes cannot pile up.
	if options.Timeout >= options.Interval {
		return errors.NewValidationError("probe timeout must be less than interval", nil)
	}

	if options.InitialDelay < 0 {
		return errors.NewValidationError("probe initial delay cannot be negative", nil)
	}

	if options.FailureThreshold < 1 {
		return errors.NewValidationError("probe failure threshold must be at least 1", nil)
	}

	if options.RestartAfter < 0 {
		return errors.NewValidationError("probe restart-after cannot be negative", nil)
	}

	// Empty defaults to ping.
	switch options.Method {
	case "", ProbeMethodPing, ProbeMethodHealth:
	default:
		return errors.NewValidationError("unsupported probe method: "+string(options.Method), nil)
	}

	return nil
}
