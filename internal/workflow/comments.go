package workflow

import (
	"fmt"
	"strings"

	"eboard/api/internal/rbac"
)

type CommentType string

const (
	CommentGeneral   CommentType = "general"
	CommentSection   CommentType = "section"
	CommentHighlight CommentType = "highlight"
)

func ParseCommentType(value string) (CommentType, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return CommentGeneral, true
	}
	switch t := CommentType(trimmed); t {
	case CommentGeneral, CommentSection, CommentHighlight:
		return t, true
	default:
		return "", false
	}
}

type TextPosition struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CommentDraft is a comment as submitted, before it is stored.
type CommentDraft struct {
	Text             string
	Type             CommentType
	SectionReference string
	HighlightedText  string
	TextPosition     *TextPosition
}

func ValidateComment(draft CommentDraft) error {
	if strings.TrimSpace(draft.Text) == "" {
		return fmt.Errorf("%w: comment text is required", ErrInvalidComment)
	}
	switch draft.Type {
	case CommentGeneral:
	case CommentSection:
		if strings.TrimSpace(draft.SectionReference) == "" {
			return fmt.Errorf("%w: sectionReference is required for section comments", ErrInvalidComment)
		}
	case CommentHighlight:
		if strings.TrimSpace(draft.HighlightedText) == "" {
			return fmt.Errorf("%w: highlightedText is required for highlight comments", ErrInvalidComment)
		}
	default:
		return fmt.Errorf("%w: unknown comment type %q", ErrInvalidComment, draft.Type)
	}
	if pos := draft.TextPosition; pos != nil {
		if pos.Start < 0 || pos.End <= pos.Start {
			return fmt.Errorf("%w: textPosition must satisfy 0 <= start < end", ErrInvalidComment)
		}
	}
	return nil
}

// CheckCommentsOpen gates comment creation. It is evaluated before any
// actor check, so a disabled document rejects everyone the same way.
func CheckCommentsOpen(allowComments bool) error {
	if !allowComments {
		return ErrCommentsDisabled
	}
	return nil
}

func CheckResolve(actor rbac.Actor, resolved bool) error {
	if !actor.IsSecretary() {
		return fmt.Errorf("%w: only the secretary can resolve comments", ErrForbidden)
	}
	if resolved {
		return ErrAlreadyResolved
	}
	return nil
}

func CanDeleteComment(actor rbac.Actor, authorID string) bool {
	if actor.IsSecretary() {
		return true
	}
	return authorID != "" && authorID == actor.UserID
}
