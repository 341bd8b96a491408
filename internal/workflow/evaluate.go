package workflow

import (
	"fmt"
	"strings"

	"eboard/api/internal/rbac"
)

// State is the slice of a minutes record the guards read.
type State struct {
	Status                   Status
	ContentPlainText         string
	Version                  int
	RevisionRequestedVersion int
	RequiredSigners          []RequiredSigner
	Signatures               []Signer
}

type Payload struct {
	ApprovalNotes  string
	RevisionReason string
}

// Outcome describes an accepted transition. Callers stamp and persist it.
type Outcome struct {
	From           Status
	To             Status
	Event          Event
	ApprovalNotes  string
	RevisionReason string
}

// SignaturesIncompleteError carries the signers still missing at publish time.
type SignaturesIncompleteError struct {
	Missing []RequiredSigner
}

func (e *SignaturesIncompleteError) Error() string {
	names := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Role))
	}
	return fmt.Sprintf("%s: missing %s", ErrSignaturesIncomplete, strings.Join(names, ", "))
}

func (e *SignaturesIncompleteError) Unwrap() error { return ErrSignaturesIncomplete }

func permissionFor(event Event) rbac.Permission {
	switch event {
	case EventSubmit:
		return rbac.PermMinutesSubmit
	case EventApprove, EventRequestRevision:
		return rbac.PermMinutesApprove
	case EventPublish:
		return rbac.PermMinutesPublish
	default:
		return ""
	}
}

// Evaluate decides whether event may be applied to state by actor. Checks run
// in a fixed order: legality, permission, payload, then the content or
// signature gate. A nil error means the returned Outcome is safe to persist.
func Evaluate(state State, event Event, actor rbac.Actor, payload Payload) (Outcome, error) {
	to, ok := Next(state.Status, event)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: cannot %s minutes in status %s", ErrInvalidTransition, event, state.Status)
	}
	if perm := permissionFor(event); perm == "" || !actor.Has(perm) {
		return Outcome{}, fmt.Errorf("%w: %s requires %s", ErrForbidden, event, perm)
	}

	out := Outcome{From: state.Status, To: to, Event: event}
	switch event {
	case EventSubmit:
		if strings.TrimSpace(state.ContentPlainText) == "" {
			return Outcome{}, ErrEmptyContent
		}
		if state.Status == StatusRevisionRequested && state.Version <= state.RevisionRequestedVersion {
			return Outcome{}, ErrContentUnchanged
		}
	case EventRequestRevision:
		reason := strings.TrimSpace(payload.RevisionReason)
		if reason == "" {
			return Outcome{}, ErrMissingRevisionReason
		}
		out.RevisionReason = reason
	case EventApprove:
		out.ApprovalNotes = strings.TrimSpace(payload.ApprovalNotes)
	case EventPublish:
		if missing := MissingSigners(state.RequiredSigners, state.Signatures); len(missing) > 0 {
			return Outcome{}, &SignaturesIncompleteError{Missing: missing}
		}
	}
	return out, nil
}
