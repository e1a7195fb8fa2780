package units

import (
	"github.com/core-tools/hsu-unitmaster/pkg/errors"
)

// ValidateUnitID validates unit ID format and constraints.
func ValidateUnitID(id string) error {
	if id == "" {
		return errors.NewValidationError("unit ID cannot be empty", nil)
	}

	if len(id) > 64 {
		return errors.NewValidationError("unit ID cannot exceed 64 characters", nil)
	}

	for _, char := range id {
		if !isValidIDChar(char) {
			return errors.NewValidationError("unit ID contains invalid characters: only letters, numbers, hyphens, and underscores are allowed", nil)
		}
	}

	return nil
}

func isValidIDChar(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == '-' || char == '_'
}

// ValidateRestartPolicy rejects nonsensical policy values. Zero
// fields are allowed; they are filled with defaults at registration.
func ValidateRestartPolicy(policy RestartPolicy) error {
	if policy.BackoffBase < 0 {
		return errors.NewValidationError("backoff base cannot be negative", nil)
	}
	if policy.BackoffCap < 0 {
		return errors.NewValidationError("backoff cap cannot be negative", nil)
	}
	if policy.BackoffBase > 0 && policy.BackoffCap > 0 && policy.BackoffBase > policy.BackoffCap {
		return errors.NewValidationError("backoff base cannot exceed backoff cap", nil)
	}
	if policy.BackoffRate != 0 && policy.BackoffRate < 1 {
		return errors.NewValidationError("backoff rate must be at least 1", nil)
	}
	if policy.SustainedHealthyReset < 0 {
		return errors.NewValidationError("sustained healthy reset cannot be negative", nil)
	}
	return nil
}

// ValidateDefinition checks a unit declaration before registration.
// Cross-unit checks (dependency existence, cycles) happen at
// configuration load where the full set is known.
func ValidateDefinition(def Definition) error {
	if err := ValidateUnitID(def.ID); err != nil {
		return err
	}

	if !def.ControlMode.Valid() {
		return errors.NewValidationError("invalid control mode: "+string(def.ControlMode), nil).
			WithContext("unit_id", def.ID)
	}

	for _, dep := range def.DependsOn {
		if err := ValidateUnitID(dep); err != nil {
			return errors.NewValidationError("invalid dependency ID", err).WithContext("unit_id", def.ID)
		}
		if dep == def.ID {
			return errors.NewValidationError("unit cannot depend on itself", nil).WithContext("unit_id", def.ID)
		}
	}

	if err := ValidateRestartPolicy(def.RestartPolicy); err != nil {
		return errors.NewValidationError("invalid restart policy", err).WithContext("unit_id", def.ID)
	}

	return nil
}
