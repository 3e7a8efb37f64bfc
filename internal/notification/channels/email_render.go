// internal/notification/channels/email_render.go
package channels

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"ops-notifications/internal/models"
)

const DefaultFooter = "You received this message because notifications are enabled for your Operations Management account."

var priorityColors = map[models.Priority]string{
	models.PriorityLow:    "#6B7280",
	models.PriorityMedium: "#F59E0B",
	models.PriorityHigh:   "#EF4444",
	models.PriorityUrgent: "#DC2626",
}

// PriorityColor falls back to the medium banner color for unknown priorities.
func PriorityColor(p models.Priority) string {
	if c, ok := priorityColors[p]; ok {
		return c
	}
	return priorityColors[models.PriorityMedium]
}

var emailHTML = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
</head>
<body style="margin:0;padding:0;background-color:#F3F4F6;font-family:Arial,Helvetica,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:24px;">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background-color:#FFFFFF;border-radius:8px;overflow:hidden;">
<tr><td style="background-color:{{.Color}};color:#FFFFFF;padding:16px 24px;font-size:20px;font-weight:bold;">{{.Title}}</td></tr>
<tr><td style="padding:24px;color:#111827;font-size:15px;line-height:1.6;white-space:pre-line;">{{.Message}}</td></tr>
{{- if .ActionURL}}
<tr><td style="padding:0 24px 24px;"><a href="{{.ActionURL}}" style="display:inline-block;background-color:{{.Color}};color:#FFFFFF;padding:10px 20px;border-radius:6px;text-decoration:none;font-weight:bold;">View details</a></td></tr>
{{- end}}
<tr><td style="padding:16px 24px;border-top:1px solid #E5E7EB;color:#6B7280;font-size:12px;">{{.Footer}}</td></tr>
</table>
</td></tr>
</table>
</body>
</html>
`))

type emailView struct {
	Title     string
	Message   string
	ActionURL string
	Color     template.CSS
	Footer    string
}

// RenderEmail produces the HTML body and its plain-text alternative.
func RenderEmail(n *models.Notification, footer string) (string, string, error) {
	if footer == "" {
		footer = DefaultFooter
	}

	var buf bytes.Buffer
	err := emailHTML.Execute(&buf, emailView{
		Title:     n.Title,
		Message:   n.Message,
		ActionURL: n.ActionURL,
		Color:     template.CSS(PriorityColor(n.Priority)),
		Footer:    footer,
	})
	if err != nil {
		return "", "", fmt.Errorf("render email html: %w", err)
	}

	return buf.String(), renderText(n, footer), nil
}

func renderText(n *models.Notification, footer string) string {
	var sb strings.Builder
	sb.WriteString(n.Title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", len([]rune(n.Title))))
	sb.WriteString("\n\n")
	sb.WriteString(n.Message)
	sb.WriteString("\n")
	if n.ActionURL != "" {
		sb.WriteString("\nView details: ")
		sb.WriteString(n.ActionURL)
		sb.WriteString("\n")
	}
	sb.WriteString("\n--\n")
	sb.WriteString(footer)
	sb.WriteString("\n")
	return sb.String()
}
