package email

import (
	"net/smtp"
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestSendTransitionNotice(t *testing.T) {
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "minutes@example.com", FromName: "eBoard"})

	var gotTo []string
	var gotMsg string
	svc.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		if addr != "smtp.example.com:587" {
			t.Errorf("unexpected server %s", addr)
		}
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	err := svc.SendTransitionNotice([]string{"secretary@example.com"}, TransitionNotice{
		MeetingTitle: "March board",
		FromStatus:   "pending_review",
		ToStatus:     "revision_requested",
		ActorName:    "A",
		Reason:       "Fix <item 2>",
		Link:         "https://eboard.example/minutes/min_1",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(gotTo) != 1 || gotTo[0] != "secretary@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	for _, want := range []string{
		"Subject: Revision requested: March board",
		"From: eBoard <minutes@example.com>",
		"pending review",
		"Fix &lt;item 2&gt;",
		"https://eboard.example/minutes/min_1",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendSkipsWhenUnconfiguredOrNoRecipients(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendTransitionNotice([]string{"a@example.com"}, TransitionNotice{}); err == nil {
		t.Fatal("expected error when email is not configured")
	}

	svc = NewService(Config{Host: "h", Port: "25", From: "f@example.com"})
	svc.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send should not be called without recipients")
		return nil
	}
	if err := svc.SendHTMLEmail(nil, "s", "t", "<p>h</p>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRenderCommentResolvedTemplate(t *testing.T) {
	html, err := renderTemplate(commentResolvedTemplate, CommentResolvedNotice{
		MeetingTitle: "March board",
		Comment:      "Typo in item 2",
		Response:     "Fixed",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(html, "Typo in item 2") || !strings.Contains(html, "Fixed") {
		t.Error("template should contain comment and response")
	}
}
