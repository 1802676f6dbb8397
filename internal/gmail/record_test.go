package gmail

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailv1 "google.golang.org/api/gmail/v1"
)

func TestContentResolutionOrder(t *testing.T) {
	tests := []struct {
		name  string
		email Email
		want  string
	}{
		{
			name:  "body preferred",
			email: Email{Body: "full body", Snippet: "snip"},
			want:  "full body",
		},
		{
			name:  "snippet fallback",
			email: Email{Snippet: "snip"},
			want:  "snip",
		},
		{
			name:  "placeholder when both absent",
			email: Email{},
			want:  NoContentPlaceholder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.email.Content())
		})
	}
}

func TestUnmarshalFlatRecord(t *testing.T) {
	data := []byte(`{
		"id": "m1",
		"threadId": "t1",
		"from": "Alice <alice@example.com>",
		"subject": "Hello",
		"snippet": "Hi there",
		"raw": "Hi there, long form",
		"labelIds": ["INBOX", "UNREAD"],
		"date": "2026-03-01T10:00:00Z"
	}`)

	var e Email
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, "Alice <alice@example.com>", e.From)
	assert.Equal(t, "Hello", e.Subject)
	assert.Equal(t, "Hi there, long form", e.Body)
	assert.True(t, e.HasLabel("UNREAD"))
}

func TestUnmarshalLegacyNestedRecord(t *testing.T) {
	data := []byte(`{
		"id": "m2",
		"threadId": "t2",
		"snippet": "legacy snippet",
		"raw": "legacy raw body",
		"internalDate": "1740800000000",
		"payload": {
			"headers": [
				{"name": "From", "value": "Bob <bob@example.com>"},
				{"name": "Subject", "value": "Quarterly report"},
				{"name": "Date", "value": "Fri, 28 Feb 2026 15:00:00 +0000"}
			]
		}
	}`)

	var e Email
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, "Bob <bob@example.com>", e.From)
	assert.Equal(t, "Quarterly report", e.Subject)
	assert.Equal(t, "legacy raw body", e.Body)
	assert.Equal(t, "Fri, 28 Feb 2026 15:00:00 +0000", e.Date)
}

func TestUnmarshalUnknownShapeKeepsDefaults(t *testing.T) {
	var e Email
	require.NoError(t, json.Unmarshal([]byte(`{"id":"m3"}`), &e))
	assert.Equal(t, "m3", e.ID)
	assert.Empty(t, e.From)
	assert.Equal(t, NoContentPlaceholder, e.Content())
}

func TestFromMessageDecodesHTMLPart(t *testing.T) {
	htmlBody := `<html><body><div>Meeting at <b>3pm</b> tomorrow.</div><style>p{}</style></body></html>`
	msg := &gmailv1.Message{
		Id:           "m4",
		ThreadId:     "t4",
		Snippet:      "Meeting at 3pm",
		LabelIds:     []string{"INBOX", "IMPORTANT"},
		InternalDate: 1740800000000,
		Payload: &gmailv1.MessagePart{
			Headers: []*gmailv1.MessagePartHeader{
				{Name: "From", Value: "Carol <carol@example.com>"},
				{Name: "Subject", Value: "Sync"},
			},
			Parts: []*gmailv1.MessagePart{
				{
					MimeType: "text/html",
					Body: &gmailv1.MessagePartBody{
						Data: base64.URLEncoding.EncodeToString([]byte(htmlBody)),
					},
				},
			},
		},
	}

	e := fromMessage(msg)
	assert.Equal(t, "Carol <carol@example.com>", e.From)
	assert.Equal(t, "Sync", e.Subject)
	assert.Contains(t, e.Body, "Meeting at 3pm tomorrow.")
	assert.NotContains(t, e.Body, "<div>")
	assert.True(t, e.HasLabel("IMPORTANT"))
	assert.Equal(t, "2025-03-01T04:13:20Z", e.Date)
}

func TestFromMessageMissingHeaders(t *testing.T) {
	e := fromMessage(&gmailv1.Message{Id: "m5", Snippet: "just a snippet"})
	assert.Equal(t, "Unknown Sender", e.From)
	assert.Equal(t, "No Subject", e.Subject)
	assert.Equal(t, "just a snippet", e.Content())
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name        string
		includeRead bool
		keywords    []string
		want        string
	}{
		{
			name: "unread only",
			want: "in:inbox is:unread",
		},
		{
			name:        "include read",
			includeRead: true,
			want:        "in:inbox",
		},
		{
			name:        "keywords quoted and ORed",
			includeRead: true,
			keywords:    []string{"project update", "invoice"},
			want:        `in:inbox "project update" OR "invoice"`,
		},
		{
			name:     "keywords with unread",
			keywords: []string{"alice"},
			want:     `in:inbox is:unread "alice"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildQuery(tt.includeRead, tt.keywords))
		})
	}
}
