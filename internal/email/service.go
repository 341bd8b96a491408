// Package email sends minutes workflow notifications over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config   Config
	server   string
	auth     smtp.Auth
	sendMail sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config:   config,
		server:   config.Host + ":" + config.Port,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart message with a plain text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	if len(to) == 0 {
		return nil
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-eboard-minutes"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.sendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// TransitionNotice describes one status change of a minutes document.
type TransitionNotice struct {
	MeetingTitle string
	FromStatus   string
	ToStatus     string
	ActorName    string
	Reason       string
	Notes        string
	Link         string
}

func (n TransitionNotice) subject() string {
	switch n.ToStatus {
	case "pending_review":
		return fmt.Sprintf("Minutes ready for review: %s", n.MeetingTitle)
	case "revision_requested":
		return fmt.Sprintf("Revision requested: %s", n.MeetingTitle)
	case "approved":
		return fmt.Sprintf("Minutes approved, signatures needed: %s", n.MeetingTitle)
	case "published":
		return fmt.Sprintf("Minutes published: %s", n.MeetingTitle)
	default:
		return fmt.Sprintf("Minutes updated: %s", n.MeetingTitle)
	}
}

func (s *Service) SendTransitionNotice(to []string, notice TransitionNotice) error {
	html, err := renderTemplate(transitionEmailTemplate, notice)
	if err != nil {
		return fmt.Errorf("render transition template: %w", err)
	}
	text := fmt.Sprintf("%s moved the minutes for %s from %s to %s.\n%s",
		notice.ActorName, notice.MeetingTitle, label(notice.FromStatus), label(notice.ToStatus), notice.Link)
	return s.SendHTMLEmail(to, notice.subject(), text, html)
}

// CommentResolvedNotice tells a comment author the secretary answered.
type CommentResolvedNotice struct {
	MeetingTitle string
	Comment      string
	Response     string
	Link         string
}

func (s *Service) SendCommentResolved(to string, notice CommentResolvedNotice) error {
	html, err := renderTemplate(commentResolvedTemplate, notice)
	if err != nil {
		return fmt.Errorf("render comment template: %w", err)
	}
	text := fmt.Sprintf("Your comment on %s was resolved: %s\n%s", notice.MeetingTitle, notice.Response, notice.Link)
	return s.SendHTMLEmail([]string{to}, "Your comment was resolved: "+notice.MeetingTitle, text, html)
}

func label(status string) string {
	return strings.ReplaceAll(status, "_", " ")
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Funcs(template.FuncMap{"label": label}).Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const emailStyle = `
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #1f5f3f; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #1f5f3f; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .quote { background: #f6f8fa; padding: 12px; border-radius: 4px; margin: 16px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }`

const transitionEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.MeetingTitle}}</title>
    <style>` + emailStyle + `</style>
</head>
<body>
    <div class="header"><h1>eBoard</h1></div>

    <p>{{.ActorName}} moved the minutes for <strong>{{.MeetingTitle}}</strong>
    from <em>{{label .FromStatus}}</em> to <em>{{label .ToStatus}}</em>.</p>

    {{if .Reason}}<div class="quote"><strong>Revision reason:</strong> {{.Reason}}</div>{{end}}
    {{if .Notes}}<div class="quote"><strong>Approval notes:</strong> {{.Notes}}</div>{{end}}

    {{if .Link}}<p><a href="{{.Link}}" class="button">Open minutes</a></p>{{end}}

    <div class="footer"><p>You receive this because you take part in this meeting's minutes workflow.</p></div>
</body>
</html>`

const commentResolvedTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.MeetingTitle}}</title>
    <style>` + emailStyle + `</style>
</head>
<body>
    <div class="header"><h1>eBoard</h1></div>

    <p>The secretary resolved your comment on <strong>{{.MeetingTitle}}</strong>.</p>
    <div class="quote">{{.Comment}}</div>
    <p><strong>Response:</strong> {{.Response}}</p>

    {{if .Link}}<p><a href="{{.Link}}" class="button">Open minutes</a></p>{{end}}
</body>
</html>`
