package ingest

import (
	"fmt"
	"strings"
)

// ConfigurationError means the run's input and configuration disagree with
// the registry's state: expected locations are missing, or an observer name
// could not be derived. It is raised before any write in the affected
// phase; nothing was attempted.
type ConfigurationError struct {
	Country       string
	Reason        string
	UnmatchedKeys []string
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error for %q: %s", e.Country, e.Reason)
	if len(e.UnmatchedKeys) > 0 {
		msg += fmt.Sprintf(" (unmatched keys: %s)", strings.Join(e.UnmatchedKeys, ", "))
	}
	return msg
}

// TransportError means one or more remote calls in a phase failed. It is
// surfaced only after the phase's concurrent group has fully settled;
// calls that succeeded in the same group are not undone.
type TransportError struct {
	Phase string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("phase %q: %v", e.Phase, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
