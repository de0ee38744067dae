package ilp

import (
	"context"
	"strings"
	"time"
)

// NoTimeLimit lets a backend search until it proves optimality.
const NoTimeLimit time.Duration = -1

// Params bounds a solve. A zero TimeLimit expires immediately.
type Params struct {
	TimeLimit time.Duration
	Threads   int
}

// Status is the terminal state of a solve.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusSuboptimal
	StatusTimeLimit
	StatusSolutionLimit
	StatusInfeasible
	StatusUnbounded
	StatusError
)

var statusNames = map[Status]string{
	StatusUnknown:       "unknown",
	StatusOptimal:       "optimal",
	StatusSuboptimal:    "suboptimal",
	StatusTimeLimit:     "time_limit",
	StatusSolutionLimit: "solution_limit",
	StatusInfeasible:    "infeasible",
	StatusUnbounded:     "unbounded",
	StatusError:         "error",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for status, n := range statusNames {
		if n == name {
			*s = status
			return nil
		}
	}
	*s = StatusUnknown
	return nil
}

// MayCarrySolution reports whether a solve ending in s can still hold an incumbent.
func (s Status) MayCarrySolution() bool {
	switch s {
	case StatusOptimal, StatusSuboptimal, StatusTimeLimit, StatusSolutionLimit:
		return true
	}
	return false
}

// EventKind tags backend events.
type EventKind int

const (
	EventIncumbent EventKind = iota
	EventBound
)

// Event is pushed by a backend while it searches. Values of an incumbent is
// owned by the receiver.
type Event struct {
	Kind      EventKind
	Elapsed   time.Duration
	Objective float64
	Bound     float64
	Values    []float64
}

// Outcome is the terminal result of a solve.
type Outcome struct {
	Status      Status
	HasSolution bool
	Values      []float64
	Objective   float64
	HasBound    bool
	Bound       float64
	Solutions   int
	Runtime     time.Duration
}

// Backend solves a Model. Implementations send events on the channel when it
// is non-nil and must not close it. A cancelled context aborts the solve with
// the context's error.
type Backend interface {
	Name() string
	Solve(ctx context.Context, m *Model, p Params, events chan<- Event) (Outcome, error)
}

// Deadline returns the instant a solve started at start must end, and false
// when there is no limit.
func (p Params) Deadline(start time.Time) (time.Time, bool) {
	if p.TimeLimit < 0 {
		return time.Time{}, false
	}
	return start.Add(p.TimeLimit), true
}
