// Package gmail is the mail gateway: it authenticates with the credentials
// stored for one session and normalizes Gmail API responses into the
// assistant's email record shape.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/mailmate/mailmate/internal/apierr"
	"github.com/mailmate/mailmate/internal/authstore"
	"github.com/mailmate/mailmate/internal/google"
	"github.com/mailmate/mailmate/internal/logging"
)

// Client wraps the Gmail Users service for a single session.
type Client struct {
	svc        *gmailv1.UsersService
	sessionKey string
}

// NewClient creates a mail gateway bound to the credentials stored for the
// session key. Returns apierr.ErrUnauthorized when no bundle exists.
func NewClient(ctx context.Context, store authstore.Store, sessionKey string) (*Client, error) {
	httpClient, err := google.HTTPClient(ctx, store, sessionKey)
	if err != nil {
		return nil, err
	}

	svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, apierr.Upstream("gmail", err)
	}

	return &Client{
		svc:        svc.Users,
		sessionKey: sessionKey,
	}, nil
}

// buildQuery assembles the Gmail search string for inbox listings.
// Keywords are quoted and OR-ed so multi-word terms stay intact.
func buildQuery(includeRead bool, keywords []string) string {
	parts := []string{"in:inbox"}
	if !includeRead {
		parts = append(parts, "is:unread")
	}
	if len(keywords) > 0 {
		quoted := make([]string, len(keywords))
		for i, kw := range keywords {
			quoted[i] = fmt.Sprintf("%q", kw)
		}
		parts = append(parts, strings.Join(quoted, " OR "))
	}
	return strings.Join(parts, " ")
}

// ListEmails fetches up to count messages from the inbox and normalizes them.
// An empty keyword set matches the base inbox query.
func (c *Client) ListEmails(ctx context.Context, count int64, includeRead bool, keywords []string) ([]Email, error) {
	query := buildQuery(includeRead, keywords)
	slog.Debug("listing emails",
		logging.Operation("gmail.list"),
		logging.SessionHash(c.sessionKey),
		slog.String("query", query),
		slog.Int64("count", count))

	res, err := c.svc.Messages.List("me").
		MaxResults(count).
		Q(query).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apierr.Upstream("gmail", err)
	}

	if len(res.Messages) == 0 {
		return []Email{}, nil
	}

	emails := make([]Email, 0, len(res.Messages))
	for _, m := range res.Messages {
		msg, err := c.svc.Messages.Get("me", m.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, apierr.Upstream("gmail", err)
		}
		emails = append(emails, fromMessage(msg))
	}

	return emails, nil
}

// SendResult carries the identifiers of a sent message.
type SendResult struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// SendEmail sends a plain-text message. When replyToID and threadID are set
// the message is threaded as a reply (In-Reply-To/References headers plus the
// thread id on the API call). The caller validates that replyToID and
// threadID are provided together.
func (c *Client) SendEmail(ctx context.Context, to, subject, body, replyToID, threadID string) (*SendResult, error) {
	profile, err := c.svc.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, apierr.Upstream("gmail", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", profile.EmailAddress)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if replyToID != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", replyToID)
		fmt.Fprintf(&b, "References: %s\r\n", replyToID)
	}
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	msg := &gmailv1.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(b.String())),
	}
	if threadID != "" {
		msg.ThreadId = threadID
	}

	sent, err := c.svc.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return nil, apierr.Upstream("gmail", err)
	}

	slog.Info("email sent",
		logging.Operation("gmail.send"),
		logging.SessionHash(c.sessionKey),
		slog.String("thread_id", sent.ThreadId))

	return &SendResult{ID: sent.Id, ThreadID: sent.ThreadId}, nil
}

// MarkAsRead removes the UNREAD label from each of the given message ids.
func (c *Client) MarkAsRead(ctx context.Context, ids []string) error {
	for _, id := range ids {
		_, err := c.svc.Messages.Modify("me", id, &gmailv1.ModifyMessageRequest{
			RemoveLabelIds: []string{"UNREAD"},
		}).Context(ctx).Do()
		if err != nil {
			return apierr.Upstream("gmail", err)
		}
		slog.Debug("marked message as read",
			logging.Operation("gmail.markRead"),
			slog.String("message_id", id))
	}
	return nil
}
