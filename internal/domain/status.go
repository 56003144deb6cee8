package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// transitions is the only place legal status changes are defined.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// BlockingStatuses hold their window against new bookings.
var BlockingStatuses = []Status{StatusPending, StatusConfirmed, StatusCheckedIn, StatusInProgress}

// ReschedulableStatuses may move to another time or resource.
var ReschedulableStatuses = []Status{StatusPending, StatusConfirmed}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s Status) String() string { return string(s) }

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func (s Status) Blocks() bool {
	for _, b := range BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

func (s Status) Reschedulable() bool {
	for _, r := range ReschedulableStatuses {
		if s == r {
			return true
		}
	}
	return false
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError carries the current status so callers can resync.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// Transition applies a legal status change to appt in place. reason is only
// recorded when moving into StatusCancelled.
func Transition(appt *Appointment, to Status, reason string, now time.Time) error {
	if !appt.Status.CanTransition(to) {
		return &InvalidTransitionError{From: appt.Status, To: to}
	}
	appt.Status = to
	if to == StatusCancelled {
		appt.CancelReason = strings.TrimSpace(reason)
		cancelledAt := now.UTC()
		appt.CancelledAt = &cancelledAt
	}
	appt.UpdatedAt = now.UTC()
	return nil
}
