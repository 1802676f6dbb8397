package gmail

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	gmailv1 "google.golang.org/api/gmail/v1"
	"golang.org/x/net/html"
)

// NoContentPlaceholder is used when a message carries neither a decoded body
// nor a snippet.
const NoContentPlaceholder = "No content available."

// Email is the normalized record produced by the mail gateway. It is
// immutable once returned.
type Email struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	From     string   `json:"from"`
	Subject  string   `json:"subject"`
	Snippet  string   `json:"snippet"`
	Body     string   `json:"raw"`
	Labels   []string `json:"labelIds"`
	Date     string   `json:"date"`
}

// Content resolves the message text for LLM consumption: the decoded body
// first, the snippet as fallback, and a placeholder when both are absent.
func (e Email) Content() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Snippet != "" {
		return e.Snippet
	}
	return NoContentPlaceholder
}

// HasLabel reports whether the message carries the given Gmail label.
func (e Email) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// legacyRecord is the historical nested-header shape: the raw Gmail API
// message with headers buried under payload. Newer records carry the flat
// fields at the root.
type legacyRecord struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	Snippet  string   `json:"snippet"`
	Raw      string   `json:"raw"`
	Labels   []string `json:"labelIds"`
	Payload  *struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
	} `json:"payload"`
	InternalDate string `json:"internalDate"`
}

// UnmarshalJSON accepts both record shapes. It prefers the flat fields and
// falls back to the nested payload headers when they are absent.
func (e *Email) UnmarshalJSON(data []byte) error {
	type flat Email
	var f flat
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*e = Email(f)

	if e.From != "" || e.Subject != "" {
		return nil
	}

	var legacy legacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil || legacy.Payload == nil {
		// Not the nested shape either; keep whatever the flat decode produced.
		return nil
	}

	for _, h := range legacy.Payload.Headers {
		switch h.Name {
		case "From":
			e.From = h.Value
		case "Subject":
			e.Subject = h.Value
		case "Date":
			if e.Date == "" {
				e.Date = h.Value
			}
		}
	}
	if e.Body == "" {
		e.Body = legacy.Raw
	}
	if e.Date == "" && legacy.InternalDate != "" {
		if ms, err := strconv.ParseInt(legacy.InternalDate, 10, 64); err == nil {
			e.Date = time.UnixMilli(ms).UTC().Format(time.RFC3339)
		}
	}

	return nil
}

// fromMessage normalizes a full-format Gmail API message into an Email.
func fromMessage(msg *gmailv1.Message) Email {
	e := Email{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Labels:   msg.LabelIds,
		From:     "Unknown Sender",
		Subject:  "No Subject",
	}

	if msg.InternalDate > 0 {
		e.Date = time.UnixMilli(msg.InternalDate).UTC().Format(time.RFC3339)
	}

	if msg.Payload == nil {
		return e
	}

	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "From":
			e.From = h.Value
		case "Subject":
			e.Subject = h.Value
		}
	}

	e.Body = extractBody(msg.Payload)
	if e.Body == "" {
		e.Body = e.Snippet
	}
	if e.Snippet == "" && e.Body != "" {
		e.Snippet = truncate(e.Body, 50)
	}

	return e
}

// extractBody walks the MIME parts and returns the first decodable body as
// plain text. HTML parts are reduced to their text content.
func extractBody(payload *gmailv1.MessagePart) string {
	parts := payload.Parts
	if len(parts) == 0 {
		parts = []*gmailv1.MessagePart{payload}
	}

	for _, part := range parts {
		if part.Body == nil || part.Body.Data == "" {
			continue
		}
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			decoded, err = base64.RawURLEncoding.DecodeString(part.Body.Data)
			if err != nil {
				continue
			}
		}
		text := string(decoded)
		if strings.HasPrefix(part.MimeType, "text/html") || looksLikeHTML(text) {
			text = htmlToText(text)
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}

	return ""
}

func looksLikeHTML(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "<html") || strings.Contains(s, "<body") || strings.Contains(s, "<div")
}

// htmlToText extracts the text content from an HTML document, separating
// nodes with single spaces.
func htmlToText(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
