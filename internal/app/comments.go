package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"eboard/api/internal/email"
	"eboard/api/internal/rbac"
	"eboard/api/internal/search"
	"eboard/api/internal/store"
	"eboard/api/internal/util"
	"eboard/api/internal/workflow"

	"go.uber.org/zap"
)

type AddCommentInput struct {
	Comment          string                 `json:"comment"`
	CommentType      string                 `json:"commentType"`
	SectionReference string                 `json:"sectionReference"`
	HighlightedText  string                 `json:"highlightedText"`
	TextPosition     *workflow.TextPosition `json:"textPosition"`
	ParentCommentID  string                 `json:"parentCommentId"`
}

type ResolveCommentInput struct {
	Response string `json:"response"`
}

type CommentList struct {
	Comments []CommentView `json:"comments"`
	Threads  []ThreadView  `json:"threads"`
}

// AddComment stores a review comment. Availability is checked before the
// actor so a closed document rejects everyone alike.
func (s *Service) AddComment(ctx context.Context, actor rbac.Actor, minutesID string, input AddCommentInput) (CommentView, error) {
	m, _, err := s.loadMutable(ctx, minutesID)
	if err != nil {
		return CommentView{}, err
	}
	if err := workflow.CheckCommentsOpen(m.AllowComments); err != nil {
		return CommentView{}, err
	}
	if err := authorize(actor, rbac.PermMinutesComment); err != nil {
		return CommentView{}, err
	}

	ctype, ok := workflow.ParseCommentType(input.CommentType)
	if !ok {
		return CommentView{}, fmt.Errorf("%w: unknown comment type %q", workflow.ErrInvalidComment, input.CommentType)
	}
	draft := workflow.CommentDraft{
		Text:             strings.TrimSpace(input.Comment),
		Type:             ctype,
		SectionReference: strings.TrimSpace(input.SectionReference),
		HighlightedText:  input.HighlightedText,
		TextPosition:     input.TextPosition,
	}
	if err := workflow.ValidateComment(draft); err != nil {
		return CommentView{}, err
	}

	var parentID *string
	if id := strings.TrimSpace(input.ParentCommentID); id != "" {
		parent, err := s.store.GetComment(ctx, id)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && parent.MinutesID != m.ID) {
			return CommentView{}, errNotFound("Parent comment")
		}
		if err != nil {
			return CommentView{}, err
		}
		parentID = &parent.ID
	}

	c := store.MinutesComment{
		ID:               util.NewID("cmt"),
		MinutesID:        m.ID,
		Comment:          draft.Text,
		CommentType:      string(draft.Type),
		SectionReference: strPtr(draft.SectionReference),
		HighlightedText:  strPtr(draft.HighlightedText),
		ParentCommentID:  parentID,
		CreatedBy:        actor.UserID,
		CreatedByName:    actor.Name,
		CreatedAt:        s.now(),
	}
	if pos := draft.TextPosition; pos != nil {
		start, end := pos.Start, pos.End
		c.TextPositionStart = &start
		c.TextPositionEnd = &end
	}
	event := s.newEvent(m, "comment_added", actor, map[string]any{"commentId": c.ID, "commentType": c.CommentType})
	if err := s.store.InsertComment(ctx, c, event); err != nil {
		return CommentView{}, err
	}

	s.indexComment(c)
	return commentView(c), nil
}

func (s *Service) ListComments(ctx context.Context, actor rbac.Actor, minutesID string) (CommentList, error) {
	if err := authorize(actor, rbac.PermMinutesRead); err != nil {
		return CommentList{}, err
	}
	m, err := s.loadMinutes(ctx, minutesID)
	if err != nil {
		return CommentList{}, err
	}
	comments, err := s.store.ListComments(ctx, m.ID)
	if err != nil {
		return CommentList{}, err
	}
	flat := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		flat = append(flat, commentView(c))
	}
	return CommentList{Comments: flat, Threads: buildThreads(comments)}, nil
}

// buildThreads nests every comment exactly one level under its root. A
// reply whose parent is gone hangs off its topmost surviving ancestor, or
// becomes an orphaned root itself.
func buildThreads(comments []store.MinutesComment) []ThreadView {
	sorted := make([]store.MinutesComment, len(comments))
	copy(sorted, comments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	byID := make(map[string]store.MinutesComment, len(sorted))
	for _, c := range sorted {
		byID[c.ID] = c
	}
	rootOf := func(c store.MinutesComment) string {
		current := c
		for hops := 0; hops <= len(sorted); hops++ {
			if current.ParentCommentID == nil {
				return current.ID
			}
			parent, ok := byID[*current.ParentCommentID]
			if !ok {
				return current.ID
			}
			current = parent
		}
		return c.ID
	}

	threads := make([]ThreadView, 0)
	index := make(map[string]int)
	for _, c := range sorted {
		if rootOf(c) == c.ID {
			index[c.ID] = len(threads)
			threads = append(threads, ThreadView{
				CommentView: commentView(c),
				Orphaned:    c.ParentCommentID != nil,
				Replies:     []CommentView{},
			})
		}
	}
	for _, c := range sorted {
		root := rootOf(c)
		if root == c.ID {
			continue
		}
		i := index[root]
		threads[i].Replies = append(threads[i].Replies, commentView(c))
	}
	return threads
}

// ResolveComment records the secretary's response. Only one of two racing
// resolutions can win.
func (s *Service) ResolveComment(ctx context.Context, actor rbac.Actor, commentID string, input ResolveCommentInput) (CommentView, error) {
	c, err := s.store.GetComment(ctx, strings.TrimSpace(commentID))
	if errors.Is(err, sql.ErrNoRows) {
		return CommentView{}, errNotFound("Comment")
	}
	if err != nil {
		return CommentView{}, err
	}
	m, meeting, err := s.loadMutable(ctx, c.MinutesID)
	if err != nil {
		return CommentView{}, err
	}
	if err := workflow.CheckResolve(actor, c.Resolved); err != nil {
		return CommentView{}, err
	}
	response := strings.TrimSpace(input.Response)
	if response == "" {
		return CommentView{}, errValidation("response is required")
	}

	now := s.now()
	event := s.newEvent(m, "comment_resolved", actor, map[string]any{"commentId": c.ID})
	resolved, err := s.store.ResolveComment(ctx, c.ID, response, now, event)
	if err != nil {
		return CommentView{}, err
	}
	if !resolved {
		return CommentView{}, workflow.ErrAlreadyResolved
	}
	c.Resolved = true
	c.SecretaryResponse = &response
	c.RespondedAt = &now

	s.indexComment(c)
	if s.mailer != nil && c.CreatedBy != actor.UserID {
		notice := email.CommentResolvedNotice{
			MeetingTitle: meeting.Title,
			Comment:      c.Comment,
			Response:     response,
			Link:         s.minutesLink(m.ID),
		}
		authorID := c.CreatedBy
		s.afterCommit(ctx, "notify", func(ctx context.Context) error {
			author, err := s.store.GetUserByID(ctx, authorID)
			if err != nil {
				return err
			}
			return s.mailer.SendCommentResolved(author.Email, notice)
		})
	}
	return commentView(c), nil
}

// DeleteComment removes a single comment. Replies are kept and re-rooted in
// the threads view.
func (s *Service) DeleteComment(ctx context.Context, actor rbac.Actor, commentID string) error {
	c, err := s.store.GetComment(ctx, strings.TrimSpace(commentID))
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound("Comment")
	}
	if err != nil {
		return err
	}
	m, _, err := s.loadMutable(ctx, c.MinutesID)
	if err != nil {
		return err
	}
	if !workflow.CanDeleteComment(actor, c.CreatedBy) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only the author or the secretary can delete this comment", nil)
	}
	event := s.newEvent(m, "comment_deleted", actor, map[string]any{"commentId": c.ID})
	deleted, err := s.store.DeleteComment(ctx, c.ID, event)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("Comment")
	}
	if s.search != nil {
		s.search.DeleteComment(c.ID)
	}
	s.log.Debug("comment deleted", zap.String("comment_id", c.ID), zap.String("actor", actor.UserID))
	return nil
}

func (s *Service) indexComment(c store.MinutesComment) {
	if s.search == nil {
		return
	}
	s.search.IndexComment(search.CommentRecord{
		ID:        c.ID,
		MinutesID: c.MinutesID,
		Body:      c.Comment,
		Author:    c.CreatedByName,
		Section:   deref(c.SectionReference),
		Resolved:  c.Resolved,
	})
}
