package accounts

import "time"

// defaultRecoveryCooldown is the window between two recovery mails for
// the same account when the configuration leaves it unset.
const defaultRecoveryCooldown = "60m"

// CooldownOrDefault resolves the configured recovery cooldown pattern,
// falling back to the package default for an empty value.
func CooldownOrDefault(pattern string) string {
	if pattern == "" {
		return defaultRecoveryCooldown
	}
	return pattern
}

// IsWithinThresholdPeriod reports whether t falls inside the trailing
// window described by pattern, a time.ParseDuration string.
func IsWithinThresholdPeriod(t time.Time, pattern string) (bool, error) {
	duration, err := time.ParseDuration(pattern)
	if err != nil {
		return false, err
	}

	return t.After(time.Now().Add(-duration)), nil
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(t time.Time, pattern string) (bool, error) {
	within, err := IsWithinThresholdPeriod(t, pattern)
	if err != nil {
		return false, err
	}

	return !within, nil
}
