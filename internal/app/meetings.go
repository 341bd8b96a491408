package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"eboard/api/internal/rbac"
	"eboard/api/internal/store"
	"eboard/api/internal/util"
	"eboard/api/internal/workflow"
)

type CreateMeetingInput struct {
	BoardID     string    `json:"boardId"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

type RequiredSignersInput struct {
	Signers []workflow.RequiredSigner `json:"signers"`
}

var meetingStatuses = map[string]struct{}{
	store.MeetingScheduled:  {},
	store.MeetingInProgress: {},
	store.MeetingCompleted:  {},
	store.MeetingCancelled:  {},
	store.MeetingArchived:   {},
}

func parseMeetingStatus(value string) (string, bool) {
	status := strings.ToLower(strings.TrimSpace(value))
	_, ok := meetingStatuses[status]
	return status, ok
}

func (s *Service) CreateMeeting(ctx context.Context, actor rbac.Actor, input CreateMeetingInput) (MeetingView, error) {
	if err := authorize(actor, rbac.PermMeetingsConfigure); err != nil {
		return MeetingView{}, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return MeetingView{}, errValidation("title is required")
	}
	status := store.MeetingScheduled
	if input.Status != "" {
		parsed, ok := parseMeetingStatus(input.Status)
		if !ok {
			return MeetingView{}, errValidation(fmt.Sprintf("unknown meeting status %q", input.Status))
		}
		status = parsed
	}
	scheduledAt := input.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = s.now()
	}

	now := s.now()
	meeting := store.Meeting{
		ID:          util.NewID("mtg"),
		BoardID:     strings.TrimSpace(input.BoardID),
		Title:       title,
		Status:      status,
		ScheduledAt: scheduledAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertMeeting(ctx, meeting); err != nil {
		return MeetingView{}, err
	}
	return meetingView(meeting), nil
}

func (s *Service) GetMeeting(ctx context.Context, actor rbac.Actor, meetingID string) (MeetingView, error) {
	if err := authorize(actor, rbac.PermMinutesRead); err != nil {
		return MeetingView{}, err
	}
	meeting, err := s.loadMeeting(ctx, meetingID)
	if err != nil {
		return MeetingView{}, err
	}
	return meetingView(meeting), nil
}

// UpdateMeetingStatus moves the meeting through its own lifecycle. Archiving
// is final and freezes the minutes.
func (s *Service) UpdateMeetingStatus(ctx context.Context, actor rbac.Actor, meetingID, rawStatus string) (MeetingView, error) {
	if err := authorize(actor, rbac.PermMeetingsConfigure); err != nil {
		return MeetingView{}, err
	}
	status, ok := parseMeetingStatus(rawStatus)
	if !ok {
		return MeetingView{}, errValidation(fmt.Sprintf("unknown meeting status %q", rawStatus))
	}
	meeting, err := s.loadMeeting(ctx, meetingID)
	if err != nil {
		return MeetingView{}, err
	}
	if meeting.Status == store.MeetingArchived {
		return MeetingView{}, errMinutesFrozen()
	}
	if meeting.Status == status {
		return meetingView(meeting), nil
	}
	if err := s.store.UpdateMeetingStatus(ctx, meeting.ID, status); err != nil {
		return MeetingView{}, err
	}
	meeting.Status = status
	meeting.UpdatedAt = s.now()
	return meetingView(meeting), nil
}

func (s *Service) GetRequiredSigners(ctx context.Context, actor rbac.Actor, meetingID string) ([]workflow.RequiredSigner, error) {
	if err := authorize(actor, rbac.PermMinutesRead); err != nil {
		return nil, err
	}
	meeting, err := s.loadMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	signers, err := s.store.ListRequiredSigners(ctx, meeting.ID)
	if err != nil {
		return nil, err
	}
	return toWorkflowSigners(signers), nil
}

// SetRequiredSigners replaces the meeting's signer list. Once the minutes
// are published the list is locked.
func (s *Service) SetRequiredSigners(ctx context.Context, actor rbac.Actor, meetingID string, input RequiredSignersInput) ([]workflow.RequiredSigner, error) {
	if err := authorize(actor, rbac.PermMeetingsConfigure); err != nil {
		return nil, err
	}
	meeting, err := s.loadMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.Status == store.MeetingArchived {
		return nil, errMinutesFrozen()
	}

	minutes, err := s.store.ListMinutes(ctx, store.MinutesFilter{MeetingID: meeting.ID, Limit: 1})
	if err != nil {
		return nil, err
	}
	for _, m := range minutes {
		if workflow.Status(m.Status).Terminal() {
			return nil, domainError(http.StatusConflict, "SIGNERS_LOCKED", "Required signers cannot change after publication", nil)
		}
	}

	signers := make([]store.RequiredSigner, 0, len(input.Signers))
	seen := make(map[string]struct{}, len(input.Signers))
	for i, raw := range input.Signers {
		role := strings.TrimSpace(raw.Role)
		name := strings.TrimSpace(raw.Name)
		if role == "" || name == "" {
			return nil, errValidation(fmt.Sprintf("signers[%d]: role and name are required", i))
		}
		key := strings.ToLower(role) + "\x00" + strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, errValidation(fmt.Sprintf("signers[%d]: duplicate signer %s (%s)", i, name, role))
		}
		seen[key] = struct{}{}
		signers = append(signers, store.RequiredSigner{Role: role, Name: name, UserID: strings.TrimSpace(raw.UserID)})
	}

	if err := s.store.ReplaceRequiredSigners(ctx, meeting.ID, signers); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, errValidation("duplicate signer")
		}
		return nil, err
	}
	return toWorkflowSigners(signers), nil
}
