package app

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"eboard/api/internal/content"
	"eboard/api/internal/export"
	"eboard/api/internal/gitrepo"
	"eboard/api/internal/rbac"
	"eboard/api/internal/search"
	"eboard/api/internal/store"
	"eboard/api/internal/util"
	"eboard/api/internal/workflow"

	"go.uber.org/zap"
)

type CreateMinutesInput struct {
	MeetingID      string     `json:"meetingId"`
	Content        string     `json:"content"`
	AllowComments  *bool      `json:"allowComments"`
	ReviewDeadline *time.Time `json:"reviewDeadline"`
}

type UpdateMinutesInput struct {
	Content          string `json:"content"`
	ExpectedRevision *int   `json:"expectedRevision"`
}

type UpdateSettingsInput struct {
	AllowComments    *bool      `json:"allowComments"`
	ReviewDeadline   *time.Time `json:"reviewDeadline"`
	ClearDeadline    bool       `json:"clearReviewDeadline"`
	ExpectedRevision *int       `json:"expectedRevision"`
}

// CreateMinutes opens the minutes of a completed meeting as a draft.
func (s *Service) CreateMinutes(ctx context.Context, actor rbac.Actor, input CreateMinutesInput) (MinutesView, error) {
	if err := authorize(actor, rbac.PermMinutesCreate); err != nil {
		return MinutesView{}, err
	}
	if strings.TrimSpace(input.MeetingID) == "" {
		return MinutesView{}, errValidation("meetingId is required")
	}
	meeting, err := s.loadMeeting(ctx, input.MeetingID)
	if err != nil {
		return MinutesView{}, err
	}
	switch meeting.Status {
	case store.MeetingArchived:
		return MinutesView{}, errMinutesFrozen()
	case store.MeetingCompleted:
	default:
		return MinutesView{}, domainError(http.StatusConflict, "MEETING_NOT_COMPLETED", "Minutes can only be created for a completed meeting", map[string]any{"meetingStatus": meeting.Status})
	}

	doc, err := content.Normalize(input.Content)
	if err != nil {
		return MinutesView{}, errValidation("content is not valid HTML")
	}

	now := s.now()
	allowComments := true
	if input.AllowComments != nil {
		allowComments = *input.AllowComments
	}
	m := store.Minutes{
		ID:                util.NewID("min"),
		MeetingID:         meeting.ID,
		Content:           doc.HTML,
		ContentPlainText:  doc.PlainText,
		WordCount:         doc.WordCount,
		EstimatedReadTime: doc.EstimatedReadTime,
		Status:            string(workflow.StatusDraft),
		CreatedBy:         actor.UserID,
		CreatedAt:         now,
		Version:           1,
		Revision:          1,
		AllowComments:     allowComments,
		ReviewDeadline:    input.ReviewDeadline,
		UpdatedAt:         now,
	}
	event := s.newEvent(m, "created", actor, map[string]any{"version": m.Version})
	event.FromStatus = ""
	if err := s.store.InsertMinutes(ctx, m, event); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return MinutesView{}, domainError(http.StatusConflict, "MINUTES_EXISTS", "Minutes already exist for this meeting", nil)
		}
		return MinutesView{}, err
	}

	if s.git != nil {
		if err := s.git.EnsureMinutesRepo(m.ID, gitrepo.Content{Version: m.Version, Status: m.Status, HTML: m.Content}, actor.Name); err != nil {
			s.log.Warn("init content history", zap.String("minutes_id", m.ID), zap.Error(err))
		}
	}
	s.indexMinutes(m, meeting)
	return minutesView(m), nil
}

func (s *Service) GetMinutes(ctx context.Context, actor rbac.Actor, minutesID string) (MinutesView, error) {
	if err := authorize(actor, rbac.PermMinutesRead); err != nil {
		return MinutesView{}, err
	}
	m, err := s.loadMinutes(ctx, minutesID)
	if err != nil {
		return MinutesView{}, err
	}
	return minutesView(m), nil
}

func (s *Service) ListMinutes(ctx context.Context, actor rbac.Actor, filter store.MinutesFilter) ([]MinutesView, error) {
	if err := authorize(actor, rbac.PermMinutesRead); err != nil {
		return nil, err
	}
	if filter.Status != "" {
		status, ok := workflow.ParseStatus(filter.Status)
		if !ok {
			return nil, errValidation(fmt.Sprintf("unknown status %q", filter.Status))
		}
		filter.Status = string(status)
	}
	items, err := s.store.ListMinutes(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]MinutesView, 0, len(items))
	for _, item := range items {
		out = append(out, minutesView(item))
	}
	return out, nil
}

// UpdateMinutes replaces the content of editable minutes. Identical content
// is a no-op; any change bumps version and revision together.
func (s *Service) UpdateMinutes(ctx context.Context, actor rbac.Actor, minutesID string, input UpdateMinutesInput) (MinutesView, error) {
	if err := authorize(actor, rbac.PermMinutesEdit); err != nil {
		return MinutesView{}, err
	}
	m, meeting, err := s.loadMutable(ctx, minutesID)
	if err != nil {
		return MinutesView{}, err
	}
	if !workflow.Status(m.Status).Editable() {
		return MinutesView{}, errNotEditable(m.Status)
	}
	if err := checkExpectedRevision(m, input.ExpectedRevision); err != nil {
		return MinutesView{}, err
	}

	doc, err := content.Normalize(input.Content)
	if err != nil {
		return MinutesView{}, errValidation("content is not valid HTML")
	}
	if doc.HTML == m.Content {
		return minutesView(m), nil
	}

	expected := m.Revision
	m.Content = doc.HTML
	m.ContentPlainText = doc.PlainText
	m.WordCount = doc.WordCount
	m.EstimatedReadTime = doc.EstimatedReadTime
	m.Version++
	m.Revision++
	m.UpdatedAt = s.now()
	event := s.newEvent(m, "content_updated", actor, map[string]any{"version": m.Version, "wordCount": m.WordCount})
	if err := s.saveMinutes(ctx, m, expected, &event); err != nil {
		return MinutesView{}, err
	}

	if s.git != nil {
		msg := fmt.Sprintf("Update minutes (v%d)", m.Version)
		if _, err := s.git.CommitVersion(m.ID, gitrepo.Content{Version: m.Version, Status: m.Status, HTML: m.Content}, actor.Name, msg); err != nil {
			s.log.Warn("commit content history", zap.String("minutes_id", m.ID), zap.Error(err))
		}
	}
	if s.drafts != nil {
		if err := s.drafts.Discard(ctx, m.ID, actor.UserID); err != nil {
			s.log.Debug("discard draft after save", zap.String("minutes_id", m.ID), zap.Error(err))
		}
	}
	s.indexMinutes(m, meeting)
	return minutesView(m), nil
}

// UpdateSettings changes comment availability and the review deadline.
// Published minutes are read-only.
func (s *Service) UpdateSettings(ctx context.Context, actor rbac.Actor, minutesID string, input UpdateSettingsInput) (MinutesView, error) {
	if err := authorize(actor, rbac.PermMinutesEdit); err != nil {
		return MinutesView{}, err
	}
	m, _, err := s.loadMutable(ctx, minutesID)
	if err != nil {
		return MinutesView{}, err
	}
	if workflow.Status(m.Status).Terminal() {
		return MinutesView{}, domainError(http.StatusConflict, "INVALID_TRANSITION", "Published minutes are read-only", nil)
	}
	if err := checkExpectedRevision(m, input.ExpectedRevision); err != nil {
		return MinutesView{}, err
	}
	if input.AllowComments == nil && input.ReviewDeadline == nil && !input.ClearDeadline {
		return minutesView(m), nil
	}

	payload := map[string]any{}
	if input.AllowComments != nil {
		m.AllowComments = *input.AllowComments
		payload["allowComments"] = m.AllowComments
	}
	switch {
	case input.ClearDeadline:
		m.ReviewDeadline = nil
		payload["reviewDeadline"] = nil
	case input.ReviewDeadline != nil:
		deadline := input.ReviewDeadline.UTC()
		m.ReviewDeadline = &deadline
		payload["reviewDeadline"] = deadline
	}

	expected := m.Revision
	m.Revision++
	m.UpdatedAt = s.now()
	event := s.newEvent(m, "settings_updated", actor, payload)
	if err := s.saveMinutes(ctx, m, expected, &event); err != nil {
		return MinutesView{}, err
	}
	return minutesView(m), nil
}

func (s *Service) ListEvents(ctx context.Context, actor rbac.Actor, minutesID string, limit int) ([]EventView, error) {
	if err := authorize(actor, rbac.PermMinutesRead); err != nil {
		return nil, err
	}
	if _, err := s.loadMinutes(ctx, minutesID); err != nil {
		return nil, err
	}
	events, err := s.store.ListMinutesEvents(ctx, minutesID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		out = append(out, eventView(e))
	}
	return out, nil
}

func (s *Service) ListVersions(ctx context.Context, actor rbac.Actor, minutesID string, limit int) ([]VersionView, error) {
	if err := authorize(actor, rbac.PermMinutesRead); err != nil {
		return nil, err
	}
	if _, err := s.loadMinutes(ctx, minutesID); err != nil {
		return nil, err
	}
	if s.git == nil {
		return []VersionView{}, nil
	}
	commits, err := s.git.History(minutesID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]VersionView, 0, len(commits))
	for _, c := range commits {
		out = append(out, VersionView{Hash: c.Hash, Message: strings.TrimSpace(c.Message), Author: c.Author, CreatedAt: c.CreatedAt, Added: c.Added, Removed: c.Removed})
	}
	return out, nil
}

func (s *Service) GetVersion(ctx context.Context, actor rbac.Actor, minutesID, hash string) (gitrepo.Content, error) {
	if err := authorize(actor, rbac.PermMinutesRead); err != nil {
		return gitrepo.Content{}, err
	}
	if _, err := s.loadMinutes(ctx, minutesID); err != nil {
		return gitrepo.Content{}, err
	}
	if s.git == nil {
		return gitrepo.Content{}, errNotFound("Version")
	}
	c, err := s.git.GetContentByHash(minutesID, hash)
	if err != nil {
		return gitrepo.Content{}, errNotFound("Version")
	}
	return c, nil
}

// ExportMinutes renders the current minutes with signatures and review
// comments.
func (s *Service) ExportMinutes(ctx context.Context, actor rbac.Actor, minutesID string, format export.Format) (*export.Result, error) {
	if err := authorize(actor, rbac.PermMinutesRead); err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	m, err := s.loadMinutes(ctx, minutesID)
	if err != nil {
		return nil, err
	}
	doc, err := s.exportDocument(ctx, m, true)
	if err != nil {
		return nil, err
	}
	result, err := s.exporter.Export(ctx, doc, format)
	if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil)
	}
	return result, err
}

func (s *Service) exportDocument(ctx context.Context, m store.Minutes, withComments bool) (export.Document, error) {
	meeting, err := s.loadMeeting(ctx, m.MeetingID)
	if err != nil {
		return export.Document{}, err
	}
	signatures, err := s.store.ListSignatures(ctx, m.ID)
	if err != nil {
		return export.Document{}, err
	}
	doc := export.Document{
		MinutesID:   m.ID,
		Title:       meeting.Title,
		MeetingDate: meeting.ScheduledAt,
		Status:      m.Status,
		Version:     m.Version,
		// stored content was sanitized on write
		ContentHTML: template.HTML(m.Content),
		ApprovedAt:  m.ApprovedAt,
		PublishedAt: m.PublishedAt,
	}
	doc.ApprovedBy = s.displayName(ctx, deref(m.ApprovedBy))
	doc.PublishedBy = s.displayName(ctx, deref(m.PublishedBy))
	for _, sig := range signatures {
		doc.Signatures = append(doc.Signatures, export.Signature{
			Role:     sig.SignerRole,
			Name:     sig.SignerName,
			Method:   sig.SignatureMethod,
			SignedAt: sig.SignedAt,
			Verified: sig.Verified,
		})
	}
	if !withComments {
		return doc, nil
	}
	comments, err := s.store.ListComments(ctx, m.ID)
	if err != nil {
		return export.Document{}, err
	}
	for _, thread := range buildThreads(comments) {
		line := exportComment(thread.CommentView)
		for _, reply := range thread.Replies {
			line.Replies = append(line.Replies, exportComment(reply))
		}
		doc.Comments = append(doc.Comments, line)
	}
	return doc, nil
}

func exportComment(c CommentView) export.Comment {
	return export.Comment{
		Author:            c.CreatedByName,
		Text:              c.Comment,
		SectionReference:  deref(c.SectionReference),
		Resolved:          c.Resolved,
		SecretaryResponse: deref(c.SecretaryResponse),
	}
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return userID
	}
	return user.DisplayName
}

type SearchInput struct {
	Query  string
	Type   string
	Status string
	Limit  int
	Offset int
}

func (s *Service) Search(ctx context.Context, actor rbac.Actor, input SearchInput) (search.Response, error) {
	if err := authorize(actor, rbac.PermMinutesRead); err != nil {
		return search.Response{}, err
	}
	q := strings.TrimSpace(input.Query)
	if q == "" {
		return search.Response{}, errValidation("q is required")
	}
	rtype, ok := search.ParseResultType(input.Type)
	if !ok {
		return search.Response{}, errValidation(fmt.Sprintf("unknown type %q", input.Type))
	}
	if input.Status != "" {
		if _, ok := workflow.ParseStatus(input.Status); !ok {
			return search.Response{}, errValidation(fmt.Sprintf("unknown status %q", input.Status))
		}
	}
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}
	if input.Offset < 0 {
		input.Offset = 0
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q}, nil
	}
	return s.search.Search(search.Query{
		Text:       q,
		FilterType: rtype,
		Status:     input.Status,
		Limit:      input.Limit,
		Offset:     input.Offset,
	}), nil
}
