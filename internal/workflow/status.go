// Package workflow holds the minutes lifecycle rules: the status model, the
// transition guards, and the comment and signature policies they consult.
// It has no storage or transport dependencies.
package workflow

import "strings"

type Status string

const (
	StatusDraft             Status = "draft"
	StatusPendingReview     Status = "pending_review"
	StatusRevisionRequested Status = "revision_requested"
	StatusApproved          Status = "approved"
	StatusPublished         Status = "published"
)

var allStatuses = []Status{
	StatusDraft,
	StatusPendingReview,
	StatusRevisionRequested,
	StatusApproved,
	StatusPublished,
}

func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func ParseStatus(value string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range allStatuses {
		if s == known {
			return s, true
		}
	}
	return "", false
}

// Editable reports whether content edits are accepted in this status.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRevisionRequested
}

func (s Status) Terminal() bool {
	return s == StatusPublished
}

type Event string

const (
	EventSubmit          Event = "submit"
	EventRequestRevision Event = "request_revision"
	EventApprove         Event = "approve"
	EventPublish         Event = "publish"
)

var allEvents = []Event{EventSubmit, EventRequestRevision, EventApprove, EventPublish}

func Events() []Event {
	out := make([]Event, len(allEvents))
	copy(out, allEvents)
	return out
}

func ParseEvent(value string) (Event, bool) {
	e := Event(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_"))
	for _, known := range allEvents {
		if e == known {
			return e, true
		}
	}
	return "", false
}

type Transition struct {
	From  Status
	Event Event
	To    Status
}

type edge struct {
	from  Status
	event Event
}

var transitions = map[edge]Status{
	{StatusDraft, EventSubmit}:                  StatusPendingReview,
	{StatusRevisionRequested, EventSubmit}:      StatusPendingReview,
	{StatusPendingReview, EventRequestRevision}: StatusRevisionRequested,
	{StatusPendingReview, EventApprove}:         StatusApproved,
	{StatusApproved, EventPublish}:              StatusPublished,
}

// Next returns the target status of a legal (status, event) pair.
func Next(from Status, event Event) (Status, bool) {
	to, ok := transitions[edge{from: from, event: event}]
	return to, ok
}

// Transitions lists every legal edge in a stable order.
func Transitions() []Transition {
	out := make([]Transition, 0, len(transitions))
	for _, from := range allStatuses {
		for _, event := range allEvents {
			if to, ok := Next(from, event); ok {
				out = append(out, Transition{From: from, Event: event, To: to})
			}
		}
	}
	return out
}

// AvailableEvents lists the events that are legal from the given status,
// ignoring guards.
func AvailableEvents(from Status) []Event {
	out := make([]Event, 0, 2)
	for _, event := range allEvents {
		if _, ok := Next(from, event); ok {
			out = append(out, event)
		}
	}
	return out
}
