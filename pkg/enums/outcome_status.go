package enums

import "fmt"

// OutcomeStatus is the terminal classification of a single dispatch attempt.
type OutcomeStatus string

const (
	OutcomeStatusSuccess OutcomeStatus = "success"
	OutcomeStatusError   OutcomeStatus = "error"
)

var validOutcomeStatuses = []OutcomeStatus{
	OutcomeStatusSuccess,
	OutcomeStatusError,
}

// IsValid reports whether the outcome status is recognized.
func (s OutcomeStatus) IsValid() bool {
	for _, candidate := range validOutcomeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOutcomeStatus converts raw input into an OutcomeStatus.
func ParseOutcomeStatus(value string) (OutcomeStatus, error) {
	for _, candidate := range validOutcomeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outcome status %q", value)
}
