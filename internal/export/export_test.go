package export

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "Board meeting", "Board-meeting"},
		{"special chars", "Q3: Budget/Review?", "Q3-BudgetReview"},
		{"empty", "", "minutes"},
		{"only special", "!!!", "minutes"},
		{"unicode", "Réunion du conseil", "Runion-du-conseil"},
		{"long", strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.expected {
				t.Fatalf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"abc", "abc"},
		{"a b", "a%20b"},
		{"<p>", "%3Cp%3E"},
		{"é", "%C3%A9"},
	}
	for _, tt := range tests {
		if got := percentEncodeForDataURL(tt.input); got != tt.expected {
			t.Fatalf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestRenderMinutesHTML(t *testing.T) {
	approvedAt := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	doc := Document{
		MinutesID:   "min_1",
		Title:       "March board meeting",
		MeetingDate: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		Status:      "pending_review",
		Version:     3,
		ContentHTML: template.HTML("<h2>Resolutions</h2><p>Budget approved.</p>"),
		ApprovedBy:  "A",
		ApprovedAt:  &approvedAt,
		Signatures: []Signature{
			{Role: "chairman", Name: "A", Method: "digital", SignedAt: approvedAt, Verified: true},
		},
		Comments: []Comment{
			{Author: "C", Text: "Typo in <item 2>", Resolved: true, SecretaryResponse: "Fixed",
				Replies: []Comment{{Author: "A", Text: "Thanks"}}},
		},
	}

	html, err := RenderMinutesHTML(doc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"<h2>Resolutions</h2>",
		"4 March 2026",
		"Version 3",
		"pending review",
		"Approved by A",
		"CHAIRMAN",
		"verified",
		"Typo in &lt;item 2&gt;",
		"Secretary: Fixed",
		"Thanks",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered html missing %q", want)
		}
	}
	if strings.Contains(html, "Published by") {
		t.Fatalf("unpublished minutes must not print publication line")
	}
}

func TestExportDispatchesByFormat(t *testing.T) {
	var got string
	fake := func(name string) converter {
		return func(ctx context.Context, html, title string) (*Result, error) {
			got = name
			if _, ok := ctx.Deadline(); !ok {
				t.Fatalf("converter called without deadline")
			}
			return &Result{Filename: sanitizeFilename(title) + "." + name}, nil
		}
	}
	svc := &Service{pdf: fake("pdf"), docx: fake("docx"), timeout: time.Second}

	res, err := svc.Export(context.Background(), Document{Title: "Board", Version: 2}, FormatDOCX)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if got != "docx" || res.Filename != "Board-minutes-v2.docx" {
		t.Fatalf("unexpected dispatch %q %q", got, res.Filename)
	}

	if _, err := svc.Export(context.Background(), Document{}, Format("odt")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestExportSurfacesMissingDependency(t *testing.T) {
	svc := &Service{
		pdf: func(context.Context, string, string) (*Result, error) {
			return nil, ErrPDFDependencyMissing
		},
		timeout: time.Second,
	}
	_, err := svc.Export(context.Background(), Document{Title: "x"}, FormatPDF)
	if !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("expected ErrPDFDependencyMissing, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	if f, ok := ParseFormat(""); !ok || f != FormatPDF {
		t.Fatalf("empty format should default to pdf")
	}
	if _, ok := ParseFormat("odt"); ok {
		t.Fatalf("odt should be rejected")
	}
}
