package store

import "time"

type User struct {
	ID             string
	DisplayName    string
	Email          string
	PasswordHash   string
	SigningPinHash string
	Roles          []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const (
	MeetingScheduled  = "scheduled"
	MeetingInProgress = "in_progress"
	MeetingCompleted  = "completed"
	MeetingCancelled  = "cancelled"
	MeetingArchived   = "archived"
)

type Meeting struct {
	ID          string
	BoardID     string
	Title       string
	Status      string
	ScheduledAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RequiredSigner is one row of a meeting's signer configuration, kept in
// position order.
type RequiredSigner struct {
	Role   string
	Name   string
	UserID string
}

type Minutes struct {
	ID                string
	MeetingID         string
	Content           string
	ContentPlainText  string
	WordCount         int
	EstimatedReadTime int
	Status            string

	CreatedBy           string
	CreatedAt           time.Time
	SubmittedBy         *string
	SubmittedAt         *time.Time
	ApprovedBy          *string
	ApprovedAt          *time.Time
	ApprovalNotes       *string
	RevisionRequestedBy *string
	RevisionRequestedAt *time.Time
	RevisionReason      *string
	PublishedBy         *string
	PublishedAt         *time.Time

	Version                  int
	Revision                 int
	RevisionRequestedVersion int

	PDFURL         *string
	AllowComments  bool
	ReviewDeadline *time.Time
	UpdatedAt      time.Time
}

type MinutesFilter struct {
	Status    string
	MeetingID string
	Limit     int
}

type MinutesComment struct {
	ID                string
	MinutesID         string
	Comment           string
	CommentType       string
	SectionReference  *string
	HighlightedText   *string
	TextPositionStart *int
	TextPositionEnd   *int
	ParentCommentID   *string
	Resolved          bool
	SecretaryResponse *string
	RespondedAt       *time.Time
	CreatedBy         string
	CreatedByName     string
	CreatedAt         time.Time
}

type MinutesSignature struct {
	ID               string
	MinutesID        string
	MinutesVersion   int
	SignerRole       string
	SignerName       string
	SignerUserID     string
	SignatureHash    string
	SignatureMethod  string
	CertificateID    *string
	SignedAt         time.Time
	Verified         bool
	VerificationDate *time.Time
}

// MinutesEvent is one append-only audit row.
type MinutesEvent struct {
	ID         int64
	MinutesID  string
	Event      string
	FromStatus string
	ToStatus   string
	ActorID    string
	ActorName  string
	Payload    map[string]any
	CreatedAt  time.Time
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
	Added     int
	Removed   int
}
