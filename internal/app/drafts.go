package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"eboard/api/internal/content"
	"eboard/api/internal/drafts"
	"eboard/api/internal/rbac"
	"eboard/api/internal/workflow"
)

type SaveDraftInput struct {
	Content      string `json:"content"`
	BaseRevision int    `json:"baseRevision"`
}

type DraftView struct {
	MinutesID    string    `json:"minutesId"`
	Content      string    `json:"content"`
	BaseRevision int       `json:"baseRevision"`
	SavedAt      time.Time `json:"savedAt"`
	Stale        bool      `json:"stale"`
}

func errDraftsUnavailable() *DomainError {
	return domainError(http.StatusServiceUnavailable, "DRAFTS_UNAVAILABLE", "Autosave is not configured", nil)
}

// SaveDraft autosaves the actor's working copy. The draft must be based on
// the current revision, so an editor that missed a save or transition is
// told to refetch instead of silently diverging.
func (s *Service) SaveDraft(ctx context.Context, actor rbac.Actor, minutesID string, input SaveDraftInput) (DraftView, error) {
	if err := authorize(actor, rbac.PermMinutesEdit); err != nil {
		return DraftView{}, err
	}
	if s.drafts == nil {
		return DraftView{}, errDraftsUnavailable()
	}
	m, _, err := s.loadMutable(ctx, minutesID)
	if err != nil {
		return DraftView{}, err
	}
	if !workflow.Status(m.Status).Editable() {
		return DraftView{}, errNotEditable(m.Status)
	}
	if input.BaseRevision != m.Revision {
		return DraftView{}, errVersionConflict(m.Revision)
	}
	doc, err := content.Normalize(input.Content)
	if err != nil {
		return DraftView{}, errValidation("content is not valid HTML")
	}

	draft := drafts.Draft{
		MinutesID:    m.ID,
		UserID:       actor.UserID,
		UserName:     actor.Name,
		Content:      doc.HTML,
		BaseRevision: m.Revision,
		SavedAt:      s.now(),
	}
	if err := s.drafts.Save(ctx, draft); err != nil {
		return DraftView{}, err
	}
	return draftView(draft, m.Revision), nil
}

func (s *Service) GetDraft(ctx context.Context, actor rbac.Actor, minutesID string) (DraftView, error) {
	if err := authorize(actor, rbac.PermMinutesEdit); err != nil {
		return DraftView{}, err
	}
	if s.drafts == nil {
		return DraftView{}, errDraftsUnavailable()
	}
	m, err := s.loadMinutes(ctx, minutesID)
	if err != nil {
		return DraftView{}, err
	}
	draft, err := s.drafts.Load(ctx, m.ID, actor.UserID)
	if errors.Is(err, drafts.ErrNotFound) {
		return DraftView{}, errNotFound("Draft")
	}
	if err != nil {
		return DraftView{}, err
	}
	return draftView(draft, m.Revision), nil
}

type DraftEditor struct {
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	BaseRevision int       `json:"baseRevision"`
	SavedAt      time.Time `json:"savedAt"`
	Stale        bool      `json:"stale"`
}

// ListDraftEditors reports who holds unsaved work on the minutes, newest
// first. Draft content stays private to its editor.
func (s *Service) ListDraftEditors(ctx context.Context, actor rbac.Actor, minutesID string) ([]DraftEditor, error) {
	if err := authorize(actor, rbac.PermMinutesEdit); err != nil {
		return nil, err
	}
	if s.drafts == nil {
		return []DraftEditor{}, nil
	}
	m, err := s.loadMinutes(ctx, minutesID)
	if err != nil {
		return nil, err
	}
	items, err := s.drafts.List(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	out := make([]DraftEditor, 0, len(items))
	for _, d := range items {
		out = append(out, DraftEditor{
			UserID:       d.UserID,
			UserName:     d.UserName,
			BaseRevision: d.BaseRevision,
			SavedAt:      d.SavedAt,
			Stale:        d.BaseRevision != m.Revision,
		})
	}
	return out, nil
}

func (s *Service) DiscardDraft(ctx context.Context, actor rbac.Actor, minutesID string) error {
	if err := authorize(actor, rbac.PermMinutesEdit); err != nil {
		return err
	}
	if s.drafts == nil {
		return errDraftsUnavailable()
	}
	m, err := s.loadMinutes(ctx, minutesID)
	if err != nil {
		return err
	}
	return s.drafts.Discard(ctx, m.ID, actor.UserID)
}

func draftView(d drafts.Draft, currentRevision int) DraftView {
	return DraftView{
		MinutesID:    d.MinutesID,
		Content:      d.Content,
		BaseRevision: d.BaseRevision,
		SavedAt:      d.SavedAt,
		Stale:        d.BaseRevision != currentRevision,
	}
}
