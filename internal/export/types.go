// Package export renders minutes documents to PDF and DOCX.
package export

import (
	"errors"
	"html/template"
	"time"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

func ParseFormat(value string) (Format, bool) {
	switch Format(value) {
	case FormatPDF, "":
		return FormatPDF, true
	case FormatDOCX:
		return FormatDOCX, true
	default:
		return "", false
	}
}

// Document is everything the minutes template prints. ContentHTML must
// already be sanitized.
type Document struct {
	MinutesID   string
	Title       string
	MeetingDate time.Time
	Status      string
	Version     int
	ContentHTML template.HTML
	ApprovedBy  string
	ApprovedAt  *time.Time
	PublishedBy string
	PublishedAt *time.Time
	Signatures  []Signature
	Comments    []Comment
}

type Signature struct {
	Role     string
	Name     string
	Method   string
	SignedAt time.Time
	Verified bool
}

type Comment struct {
	Author            string
	Text              string
	SectionReference  string
	Resolved          bool
	SecretaryResponse string
	Replies           []Comment
}

type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
