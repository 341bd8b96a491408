package app

import (
	"time"

	"eboard/api/internal/store"
	"eboard/api/internal/workflow"
)

type MinutesView struct {
	ID                       string     `json:"id"`
	MeetingID                string     `json:"meetingId"`
	Content                  string     `json:"content"`
	ContentPlainText         string     `json:"contentPlainText"`
	WordCount                int        `json:"wordCount"`
	EstimatedReadTime        int        `json:"estimatedReadTime"`
	Status                   string     `json:"status"`
	CreatedBy                string     `json:"createdBy"`
	CreatedAt                time.Time  `json:"createdAt"`
	SubmittedBy              *string    `json:"submittedBy"`
	SubmittedAt              *time.Time `json:"submittedAt"`
	ApprovedBy               *string    `json:"approvedBy"`
	ApprovedAt               *time.Time `json:"approvedAt"`
	ApprovalNotes            *string    `json:"approvalNotes"`
	RevisionRequestedBy      *string    `json:"revisionRequestedBy"`
	RevisionRequestedAt      *time.Time `json:"revisionRequestedAt"`
	RevisionReason           *string    `json:"revisionReason"`
	PublishedBy              *string    `json:"publishedBy"`
	PublishedAt              *time.Time `json:"publishedAt"`
	Version                  int        `json:"version"`
	Revision                 int        `json:"revision"`
	RevisionRequestedVersion int        `json:"revisionRequestedVersion"`
	PDFURL                   *string    `json:"pdfUrl"`
	AllowComments            bool       `json:"allowComments"`
	ReviewDeadline           *time.Time `json:"reviewDeadline"`
	UpdatedAt                time.Time  `json:"updatedAt"`
	Editable                 bool       `json:"editable"`
	AvailableEvents          []string   `json:"availableEvents"`
}

func minutesView(m store.Minutes) MinutesView {
	status := workflow.Status(m.Status)
	events := make([]string, 0, 2)
	for _, event := range workflow.AvailableEvents(status) {
		events = append(events, string(event))
	}
	return MinutesView{
		ID:                       m.ID,
		MeetingID:                m.MeetingID,
		Content:                  m.Content,
		ContentPlainText:         m.ContentPlainText,
		WordCount:                m.WordCount,
		EstimatedReadTime:        m.EstimatedReadTime,
		Status:                   m.Status,
		CreatedBy:                m.CreatedBy,
		CreatedAt:                m.CreatedAt,
		SubmittedBy:              m.SubmittedBy,
		SubmittedAt:              m.SubmittedAt,
		ApprovedBy:               m.ApprovedBy,
		ApprovedAt:               m.ApprovedAt,
		ApprovalNotes:            m.ApprovalNotes,
		RevisionRequestedBy:      m.RevisionRequestedBy,
		RevisionRequestedAt:      m.RevisionRequestedAt,
		RevisionReason:           m.RevisionReason,
		PublishedBy:              m.PublishedBy,
		PublishedAt:              m.PublishedAt,
		Version:                  m.Version,
		Revision:                 m.Revision,
		RevisionRequestedVersion: m.RevisionRequestedVersion,
		PDFURL:                   m.PDFURL,
		AllowComments:            m.AllowComments,
		ReviewDeadline:           m.ReviewDeadline,
		UpdatedAt:                m.UpdatedAt,
		Editable:                 status.Editable(),
		AvailableEvents:          events,
	}
}

type TextPositionView struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type CommentView struct {
	ID                string            `json:"id"`
	MinutesID         string            `json:"minutesId"`
	Comment           string            `json:"comment"`
	CommentType       string            `json:"commentType"`
	SectionReference  *string           `json:"sectionReference"`
	HighlightedText   *string           `json:"highlightedText"`
	TextPosition      *TextPositionView `json:"textPosition"`
	ParentCommentID   *string           `json:"parentCommentId"`
	Resolved          bool              `json:"resolved"`
	SecretaryResponse *string           `json:"secretaryResponse"`
	RespondedAt       *time.Time        `json:"respondedAt"`
	CreatedBy         string            `json:"createdBy"`
	CreatedByName     string            `json:"createdByName"`
	CreatedAt         time.Time         `json:"createdAt"`
}

func commentView(c store.MinutesComment) CommentView {
	view := CommentView{
		ID:                c.ID,
		MinutesID:         c.MinutesID,
		Comment:           c.Comment,
		CommentType:       c.CommentType,
		SectionReference:  c.SectionReference,
		HighlightedText:   c.HighlightedText,
		ParentCommentID:   c.ParentCommentID,
		Resolved:          c.Resolved,
		SecretaryResponse: c.SecretaryResponse,
		RespondedAt:       c.RespondedAt,
		CreatedBy:         c.CreatedBy,
		CreatedByName:     c.CreatedByName,
		CreatedAt:         c.CreatedAt,
	}
	if c.TextPositionStart != nil && c.TextPositionEnd != nil {
		view.TextPosition = &TextPositionView{Start: *c.TextPositionStart, End: *c.TextPositionEnd}
	}
	return view
}

// ThreadView is a root comment with every descendant flattened one level
// below it, oldest first.
type ThreadView struct {
	CommentView
	// Orphaned marks a reply whose parent was deleted; clients still
	// render it indented.
	Orphaned bool          `json:"orphaned,omitempty"`
	Replies  []CommentView `json:"replies"`
}

type SignatureView struct {
	ID               string     `json:"id"`
	MinutesID        string     `json:"minutesId"`
	MinutesVersion   int        `json:"minutesVersion"`
	SignerRole       string     `json:"signerRole"`
	SignerName       string     `json:"signerName"`
	SignatureHash    string     `json:"signatureHash"`
	SignatureMethod  string     `json:"signatureMethod"`
	CertificateID    *string    `json:"certificateId"`
	SignedAt         time.Time  `json:"signedAt"`
	Verified         bool       `json:"verified"`
	VerificationDate *time.Time `json:"verificationDate"`
}

func signatureView(sig store.MinutesSignature) SignatureView {
	return SignatureView{
		ID:               sig.ID,
		MinutesID:        sig.MinutesID,
		MinutesVersion:   sig.MinutesVersion,
		SignerRole:       sig.SignerRole,
		SignerName:       sig.SignerName,
		SignatureHash:    sig.SignatureHash,
		SignatureMethod:  sig.SignatureMethod,
		CertificateID:    sig.CertificateID,
		SignedAt:         sig.SignedAt,
		Verified:         sig.Verified,
		VerificationDate: sig.VerificationDate,
	}
}

type MeetingView struct {
	ID          string    `json:"id"`
	BoardID     string    `json:"boardId"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduledAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func meetingView(m store.Meeting) MeetingView {
	return MeetingView{
		ID:          m.ID,
		BoardID:     m.BoardID,
		Title:       m.Title,
		Status:      m.Status,
		ScheduledAt: m.ScheduledAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

type EventView struct {
	ID         int64          `json:"id"`
	Event      string         `json:"event"`
	FromStatus string         `json:"fromStatus"`
	ToStatus   string         `json:"toStatus"`
	ActorID    string         `json:"actorId"`
	ActorName  string         `json:"actorName"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func eventView(e store.MinutesEvent) EventView {
	return EventView{
		ID:         e.ID,
		Event:      e.Event,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		ActorID:    e.ActorID,
		ActorName:  e.ActorName,
		Payload:    e.Payload,
		CreatedAt:  e.CreatedAt,
	}
}

type VersionView struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	Added     int       `json:"added"`
	Removed   int       `json:"removed"`
}
