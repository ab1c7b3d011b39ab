package mailer

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"
)

// VerificationMessage builds the email carrying a verification code
func VerificationMessage(to, code string, ttl time.Duration) Message {
	minutes := int(ttl.Minutes())
	return Message{
		To:      []string{to},
		Subject: "Your Professor Linker verification code",
		Text:    fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes),
		HTML: fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Verify your email</h2>
			<p>Your verification code is:</p>
			<h1 style="letter-spacing: 5px;">%s</h1>
			<p>This code will expire in %d minutes.</p>
			<p>If you didn't request this, please ignore this email.</p>
		</div>
	`, code, minutes),
	}
}

// TextToHTML renders plain text paragraphs as escaped HTML
func TextToHTML(text string) string {
	var b strings.Builder
	for _, para := range strings.Split(strings.TrimSpace(text), "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i, l := range lines {
			lines[i] = html.EscapeString(l)
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

// SplitSubject separates a leading "Subject:" line from a generated email
func SplitSubject(text string) (subject, body string) {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	if s, ok := strings.CutPrefix(strings.TrimSpace(first), "Subject:"); ok {
		return strings.TrimSpace(s), strings.TrimSpace(rest)
	}
	return "", text
}

// MailtoURL builds a mailto link that opens the user's mail client
func MailtoURL(to, subject, body string) string {
	q := url.Values{}
	if subject != "" {
		q.Set("subject", subject)
	}
	if body != "" {
		q.Set("body", body)
	}
	link := "mailto:" + url.PathEscape(to)
	if enc := q.Encode(); enc != "" {
		// mail clients render "+" literally
		link += "?" + strings.ReplaceAll(enc, "+", "%20")
	}
	return link
}
