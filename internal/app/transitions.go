package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eboard/api/internal/email"
	"eboard/api/internal/export"
	"eboard/api/internal/gitrepo"
	"eboard/api/internal/obs"
	"eboard/api/internal/rbac"
	"eboard/api/internal/store"
	"eboard/api/internal/workflow"

	"go.uber.org/zap"
)

type TransitionInput struct {
	ApprovalNotes    string `json:"approvalNotes"`
	RevisionReason   string `json:"revisionReason"`
	ExpectedRevision *int   `json:"expectedRevision"`
}

// RequestTransition applies a lifecycle event to the minutes. The guard
// order is fixed by workflow.Evaluate; persistence is a compare-and-swap
// on revision, so of two racing transitions exactly one wins.
func (s *Service) RequestTransition(ctx context.Context, actor rbac.Actor, minutesID, rawEvent string, input TransitionInput) (MinutesView, error) {
	event, ok := workflow.ParseEvent(rawEvent)
	if !ok {
		return MinutesView{}, errValidation(fmt.Sprintf("unknown event %q", rawEvent))
	}
	m, meeting, err := s.loadMutable(ctx, minutesID)
	if err != nil {
		return MinutesView{}, err
	}

	state := workflow.State{
		Status:                   workflow.Status(m.Status),
		ContentPlainText:         m.ContentPlainText,
		Version:                  m.Version,
		RevisionRequestedVersion: m.RevisionRequestedVersion,
	}
	if event == workflow.EventPublish {
		required, err := s.store.ListRequiredSigners(ctx, m.MeetingID)
		if err != nil {
			return MinutesView{}, err
		}
		signatures, err := s.store.ListSignatures(ctx, m.ID)
		if err != nil {
			return MinutesView{}, err
		}
		state.RequiredSigners = toWorkflowSigners(required)
		state.Signatures = signersOf(signatures)
	}

	if err := checkExpectedRevision(m, input.ExpectedRevision); err != nil {
		obs.RecordTransition(string(event), "conflict")
		return MinutesView{}, err
	}
	outcome, err := workflow.Evaluate(state, event, actor, workflow.Payload{
		ApprovalNotes:  input.ApprovalNotes,
		RevisionReason: input.RevisionReason,
	})
	if err != nil {
		obs.RecordTransition(string(event), transitionOutcome(err))
		return MinutesView{}, err
	}

	now := s.now()
	expected := m.Revision
	payload := map[string]any{"version": m.Version}
	switch event {
	case workflow.EventSubmit:
		m.SubmittedBy = &actor.UserID
		m.SubmittedAt = &now
	case workflow.EventRequestRevision:
		m.RevisionRequestedBy = &actor.UserID
		m.RevisionRequestedAt = &now
		m.RevisionReason = strPtr(outcome.RevisionReason)
		m.RevisionRequestedVersion = m.Version
		payload["reason"] = outcome.RevisionReason
	case workflow.EventApprove:
		m.ApprovedBy = &actor.UserID
		m.ApprovedAt = &now
		m.ApprovalNotes = strPtr(outcome.ApprovalNotes)
		if outcome.ApprovalNotes != "" {
			payload["notes"] = outcome.ApprovalNotes
		}
	case workflow.EventPublish:
		m.PublishedBy = &actor.UserID
		m.PublishedAt = &now
	}
	m.Status = string(outcome.To)
	m.Revision++
	m.UpdatedAt = now

	record := s.newEvent(m, string(event), actor, payload)
	record.FromStatus = string(outcome.From)
	if err := s.saveMinutes(ctx, m, expected, &record); err != nil {
		obs.RecordTransition(string(event), transitionOutcome(err))
		return MinutesView{}, err
	}
	obs.RecordTransition(string(event), "ok")
	s.log.Info("minutes transition",
		zap.String("minutes_id", m.ID),
		zap.String("event", string(event)),
		zap.String("from", string(outcome.From)),
		zap.String("to", string(outcome.To)),
		zap.String("actor", actor.UserID),
	)

	s.afterTransition(ctx, actor, m, meeting, outcome)
	return minutesView(m), nil
}

func transitionOutcome(err error) string {
	var domainErr *DomainError
	switch {
	case errors.Is(err, workflow.ErrInvalidTransition):
		return "invalid"
	case errors.Is(err, workflow.ErrForbidden):
		return "forbidden"
	case errors.As(err, &domainErr) && domainErr.Code == "VERSION_CONFLICT":
		return "conflict"
	case errors.Is(err, workflow.ErrEmptyContent), errors.Is(err, workflow.ErrMissingRevisionReason),
		errors.Is(err, workflow.ErrContentUnchanged), errors.Is(err, workflow.ErrSignaturesIncomplete):
		return "rejected"
	default:
		return "error"
	}
}

func (s *Service) afterTransition(ctx context.Context, actor rbac.Actor, m store.Minutes, meeting store.Meeting, outcome workflow.Outcome) {
	if s.drafts != nil {
		if err := s.drafts.DiscardAll(ctx, m.ID); err != nil {
			s.log.Warn("discard drafts after transition", zap.String("minutes_id", m.ID), zap.Error(err))
		}
	}
	if s.git != nil {
		msg := fmt.Sprintf("%s (v%d): %s -> %s", outcome.Event, m.Version, outcome.From, outcome.To)
		if _, err := s.git.CommitVersion(m.ID, gitrepo.Content{Version: m.Version, Status: m.Status, HTML: m.Content}, actor.Name, msg); err != nil {
			s.log.Warn("commit transition", zap.String("minutes_id", m.ID), zap.Error(err))
		}
		if outcome.Event == workflow.EventPublish {
			if err := s.git.TagHead(m.ID, fmt.Sprintf("published-v%d", m.Version), actor.Name); err != nil {
				s.log.Warn("tag published version", zap.String("minutes_id", m.ID), zap.Error(err))
			}
		}
	}
	s.indexMinutes(m, meeting)

	if s.mailer != nil {
		notice := email.TransitionNotice{
			MeetingTitle: meeting.Title,
			FromStatus:   string(outcome.From),
			ToStatus:     string(outcome.To),
			ActorName:    actor.Name,
			Reason:       outcome.RevisionReason,
			Notes:        outcome.ApprovalNotes,
			Link:         s.minutesLink(m.ID),
		}
		s.afterCommit(ctx, "notify", func(ctx context.Context) error {
			to, err := s.transitionRecipients(ctx, actor, m, outcome.Event)
			if err != nil {
				return err
			}
			return s.mailer.SendTransitionNotice(to, notice)
		})
	}

	if outcome.Event == workflow.EventPublish && s.exporter != nil && s.artifacts != nil {
		s.afterCommit(ctx, "publish_pdf", func(ctx context.Context) error {
			return s.attachPublishedPDF(ctx, actor, m.ID)
		})
	}
}

// transitionRecipients picks who hears about an event: reviewers on
// submit, the authors on a revision request, the signers on approval and
// everyone on publication. The actor is never notified of their own action.
func (s *Service) transitionRecipients(ctx context.Context, actor rbac.Actor, m store.Minutes, event workflow.Event) ([]string, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var signers []store.RequiredSigner
	if event == workflow.EventApprove {
		if signers, err = s.store.ListRequiredSigners(ctx, m.MeetingID); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, user := range users {
		if user.ID == actor.UserID || strings.TrimSpace(user.Email) == "" {
			continue
		}
		candidate := rbac.Actor{UserID: user.ID, Name: user.DisplayName, Roles: rbac.NormalizeAll(user.Roles)}
		include := false
		switch event {
		case workflow.EventSubmit:
			include = candidate.Has(rbac.PermMinutesApprove)
		case workflow.EventRequestRevision:
			include = candidate.IsSecretary() || user.ID == m.CreatedBy
		case workflow.EventApprove:
			include = candidate.IsSecretary() || isRequiredSigner(candidate, signers)
		case workflow.EventPublish:
			include = true
		}
		if !include {
			continue
		}
		key := strings.ToLower(user.Email)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, user.Email)
	}
	return out, nil
}

func isRequiredSigner(candidate rbac.Actor, signers []store.RequiredSigner) bool {
	_, ok, already := workflow.SignerSlot(candidate, toWorkflowSigners(signers), nil)
	return ok || already
}

// attachPublishedPDF renders the published minutes, uploads the file and
// records its URL. The URL write is a normal revision-checked save.
func (s *Service) attachPublishedPDF(ctx context.Context, actor rbac.Actor, minutesID string) error {
	m, err := s.loadMinutes(ctx, minutesID)
	if err != nil {
		return err
	}
	doc, err := s.exportDocument(ctx, m, false)
	if err != nil {
		return err
	}
	result, err := s.exporter.Export(ctx, doc, export.FormatPDF)
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	url, err := s.artifacts.PutMinutesPDF(ctx, m.ID, m.Version, result.Data)
	if err != nil {
		return fmt.Errorf("upload pdf: %w", err)
	}

	expected := m.Revision
	m.PDFURL = &url
	m.Revision++
	m.UpdatedAt = s.now()
	event := s.newEvent(m, "pdf_attached", actor, map[string]any{"pdfUrl": url, "version": m.Version})
	return s.saveMinutes(ctx, m, expected, &event)
}
