package runner

import "fmt"

// Severity orders channel outcomes: ok < warning < error.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Status is the outcome of a channel task.
type Status struct {
	Severity Severity
	Err      error
}

// Warning returns a warning status carrying err.
func Warning(err error) Status {
	return Status{Severity: SeverityWarning, Err: err}
}

// Failure returns an error status carrying err.
func Failure(err error) Status {
	return Status{Severity: SeverityError, Err: err}
}

// IsOK reports whether the status has ok severity.
func (s Status) IsOK() bool { return s.Severity == SeverityOK }

// IsError reports whether the status has error severity.
func (s Status) IsError() bool { return s.Severity == SeverityError }

func (s Status) String() string {
	if s.Err == nil {
		return s.Severity.String()
	}
	return s.Severity.String() + ": " + s.Err.Error()
}

// Worst returns the first status with the highest severity.
func Worst(statuses ...Status) Status {
	var worst Status
	for _, s := range statuses {
		if s.Severity > worst.Severity {
			worst = s
		}
	}
	return worst
}
