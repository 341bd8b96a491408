package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var minutesTemplate = template.Must(
	template.New("minutes.html").Funcs(template.FuncMap{
		"upper": strings.ToUpper,
		"label": func(s string) string { return strings.ReplaceAll(s, "_", " ") },
		"formatDate": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},
	}).ParseFS(templateFS, "templates/minutes.html"),
)

// RenderMinutesHTML renders the printable minutes page.
func RenderMinutesHTML(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := minutesTemplate.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
