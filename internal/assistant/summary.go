package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mailmate/mailmate/internal/llm"
	"github.com/mailmate/mailmate/internal/logging"
)

const summaryPrompt = `You are an intelligent assistant summarizing an inbox. Below are the details of recent emails:

%s

Please provide a well-structured and concise summary of what these emails are about. Highlight any high-priority messages or actions needed.`

// NewSummarizeInboxTool builds the summarize_inbox tool. It fetches recent
// unread emails and asks the LLM for a structured prose summary. Fetch and
// model failures are converted to an error string so the turn still
// completes with a user-visible explanation.
func NewSummarizeInboxTool(chat llm.Chatter, mail MailGateway) *Tool {
	return &Tool{
		Name: ToolSummarizeInbox,
		Description: "Fetches the user's recent unread emails and produces a concise summary " +
			"highlighting high-priority messages and required actions.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Run: func(ctx context.Context, _ string) (string, error) {
			logger := logging.WithTool(slog.Default(), string(ToolSummarizeInbox))

			emails, err := mail.ListEmails(ctx, 10, false, nil)
			if err != nil {
				logger.Warn("email fetch failed", logging.Err(err))
				return fmt.Sprintf("Error fetching emails: %v", err), nil
			}
			if len(emails) == 0 {
				return "There are no unread emails in the inbox.", nil
			}

			var combined strings.Builder
			for _, e := range emails {
				priority := "Low"
				if e.HasLabel("IMPORTANT") {
					priority = "High"
				}
				fmt.Fprintf(&combined, "From: %s\nSubject: %s\nPriority: %s\nSummary: %s\n\n",
					e.From, e.Subject, priority, e.Content())
			}

			summary, err := chat.Chat(ctx, "", fmt.Sprintf(summaryPrompt, combined.String()))
			if err != nil {
				logger.Warn("summary generation failed", logging.Err(err))
				return fmt.Sprintf("Error generating summary: %v", err), nil
			}

			return summary, nil
		},
	}
}
