// Package status defines the review lifecycle of a submitted application and
// the transitions an operator may request.
package status

import "fmt"

type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Completed  Status = "completed"
)

// Default is the state every application starts in when none is supplied.
func Default() Status { return Pending }

// transitions is the complete table of operator-triggered moves. Completed is
// terminal in the normal flow but can be reopened back to processing.
var transitions = map[Status][]Status{
	Pending:    {Processing, Completed},
	Processing: {Pending, Completed},
	Completed:  {Processing},
}

// Parse returns the Status for a stored or submitted string.
func Parse(s string) (Status, error) {
	switch Status(s) {
	case Pending, Processing, Completed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// CanTransitionTo reports whether an operator may move a record from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Next lists the states reachable from s.
func (s Status) Next() []Status { return transitions[s] }

func (s Status) String() string { return string(s) }
