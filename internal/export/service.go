package export

import (
	"context"
	"fmt"
	"time"
)

type converter func(ctx context.Context, html, title string) (*Result, error)

// Service renders minutes with the embedded template and hands the HTML to
// the format converter.
type Service struct {
	pdf     converter
	docx    converter
	timeout time.Duration
}

func NewService() *Service {
	return &Service{pdf: exportPDF, docx: exportDOCX, timeout: 30 * time.Second}
}

func (s *Service) Export(ctx context.Context, doc Document, format Format) (*Result, error) {
	html, err := RenderMinutesHTML(doc)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	title := fmt.Sprintf("%s minutes v%d", doc.Title, doc.Version)
	switch format {
	case FormatPDF:
		return s.pdf(ctx, html, title)
	case FormatDOCX:
		return s.docx(ctx, html, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
