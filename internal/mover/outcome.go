package mover

import (
	"time"
)

// Status is the terminal state of one file in one pass.
type Status string

const (
	StatusMoved   Status = "moved"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// SkipReason explains why a file was left in place without error.
type SkipReason string

const (
	ReasonNoRuleMatch   SkipReason = "no_rule_match"
	ReasonNotAccessible SkipReason = "not_accessible"
	ReasonIgnored       SkipReason = "ignored"
)

// Outcome is reported exactly once per file per pass.
type Outcome struct {
	Filename    string
	Status      Status
	Source      string
	Destination string
	Reason      SkipReason
	Err         error
	Attempts    int
	Bytes       int64
	Duration    time.Duration
}

// Moved builds a successful outcome.
func Moved(from, to string, attempts int) Outcome {
	return Outcome{Status: StatusMoved, Source: from, Destination: to, Attempts: attempts}
}

// Skipped builds an outcome for a file left untouched.
func Skipped(reason SkipReason, err error) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason, Err: err}
}

// Failed builds an outcome for a move that could not complete.
func Failed(err error, attempts int) Outcome {
	return Outcome{Status: StatusFailed, Err: err, Attempts: attempts}
}

// Detail returns a short human readable description of the outcome.
func (o Outcome) Detail() string {
	switch o.Status {
	case StatusMoved:
		return o.Destination
	case StatusSkipped:
		if o.Err != nil {
			return string(o.Reason) + ": " + o.Err.Error()
		}
		return string(o.Reason)
	case StatusFailed:
		if o.Err != nil {
			return o.Err.Error()
		}
		return "failed"
	default:
		return ""
	}
}
