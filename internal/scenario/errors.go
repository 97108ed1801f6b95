package scenario

import (
	"errors"
	"strings"
)

var (
	// ErrCheckFailed is matched by every *CheckError.
	ErrCheckFailed = errors.New("expectation check failed")
	// ErrUnknownScenario is returned when a scenario name cannot be resolved.
	ErrUnknownScenario = errors.New("unknown scenario")
	// ErrMalformedBody marks a request body that could not be decoded at all.
	ErrMalformedBody = errors.New("malformed request body")
)

// CheckError is a scripted expectation mismatch. It has already been
// recorded in the test case's failure list when it is returned.
type CheckError struct {
	Message string
}

func (e *CheckError) Error() string {
	return e.Message
}

// Is reports whether target is ErrCheckFailed.
func (e *CheckError) Is(target error) bool {
	return target == ErrCheckFailed
}

// ExpectationError aggregates everything that went wrong in a scenario run.
type ExpectationError struct {
	Scenario string
	Unmet    []string
	Failures []string
}

func (e *ExpectationError) Error() string {
	var b strings.Builder
	for _, desc := range e.Unmet {
		b.WriteString("Expectation not satisfied: ")
		b.WriteString(desc)
		b.WriteByte('\n')
	}
	for _, msg := range e.Failures {
		b.WriteString("Error encountered: ")
		b.WriteString(msg)
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}
