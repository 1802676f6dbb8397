package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mailmate/mailmate/internal/gmail"
	"github.com/mailmate/mailmate/internal/llm"
	"github.com/mailmate/mailmate/internal/logging"
)

// emptySearchResult is what downstream formatting treats as "no results".
const emptySearchResult = "[]"

const keywordPrompt = `
Extract keywords from the following user query for email search.
Return the keywords as a comma-separated list.
User Query: "%s"
`

const searchPrompt = `You are a smart assistant that searches through a user's inbox.

Your job is to carefully examine each email and return only those that match the user's query.

---

**Inbox Emails:**
%s

---

**User Query:**
"%s"

---

**Instructions:**

1. Carefully read each email.
2. Return only the emails that clearly match the intent of the query.
3. If no email matches, return an empty list: []

Return the results as a JSON array of objects with the following fields:
- "Subject"
- "Sender"
- "Date"
- "Summary"

Example output format:
[
  {
    "Subject": "Project Update",
    "Sender": "John <john@example.com>",
    "Date": "Fri, 29 Mar 2024 15:00:00 +0000",
    "Summary": "We're ahead of schedule for Q2 and should be done by mid-April."
  }
]
Please output ONLY the JSON array with no additional text.`

var codeFenceRe = regexp.MustCompile("```(?:json|python)?")

// searchArgs is the argument shape the routing model emits for search_emails.
type searchArgs struct {
	Query string `json:"query"`
}

// NewSearchEmailsTool builds the search_emails tool. It derives keyword terms
// from the query via the LLM, fetches matching emails including read ones,
// and asks the LLM to filter and format the matches.
func NewSearchEmailsTool(chat llm.Chatter, mail MailGateway) *Tool {
	return &Tool{
		Name: ToolSearchEmails,
		Description: "Searches the user's emails for messages matching a natural-language query. " +
			"Returns the matches as a JSON array of {Subject, Sender, Date, Summary} objects.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The user's search query in natural language",
				},
			},
			"required": []string{"query"},
		},
		Run: func(ctx context.Context, arguments string) (string, error) {
			var args searchArgs
			if err := json.Unmarshal([]byte(arguments), &args); err != nil {
				// The model sometimes emits malformed arguments; search with
				// the raw string rather than failing the turn.
				args.Query = arguments
			}

			logger := logging.WithTool(slog.Default(), string(ToolSearchEmails))

			keywords := generateKeywords(ctx, chat, args.Query)
			logger.Debug("extracted keywords", slog.Int("count", len(keywords)))

			emails, err := mail.ListEmails(ctx, 10, true, keywords)
			if err != nil {
				logger.Warn("email fetch failed", logging.Err(err))
				return emptySearchResult, nil
			}
			if len(emails) == 0 {
				return emptySearchResult, nil
			}

			result, err := filterEmails(ctx, chat, emails, args.Query)
			if err != nil {
				logger.Warn("search filtering failed", logging.Err(err))
				return emptySearchResult, nil
			}

			return stripCodeFences(result), nil
		},
	}
}

// generateKeywords asks the LLM for comma-separated search terms. Any failure
// yields an empty keyword set; the search proceeds against the base inbox
// query.
func generateKeywords(ctx context.Context, chat llm.Chatter, query string) []string {
	resp, err := chat.Chat(ctx, "", fmt.Sprintf(keywordPrompt, query))
	if err != nil {
		return nil
	}

	var keywords []string
	for _, kw := range strings.Split(strings.TrimSpace(resp), ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// filterEmails asks the LLM to select and format the emails matching the
// query. The model text is returned as-is; the core never parses it.
func filterEmails(ctx context.Context, chat llm.Chatter, emails []gmail.Email, query string) (string, error) {
	var summaries strings.Builder
	for i, e := range emails {
		fmt.Fprintf(&summaries, "[Email %d]\nFrom: %s\nSubject: %s\nDate: %s\nContent: %s\n\n",
			i+1, e.From, e.Subject, e.Date, e.Content())
	}

	return chat.Chat(ctx, "", fmt.Sprintf(searchPrompt, summaries.String(), query))
}

// stripCodeFences removes markdown code fences the model may wrap around
// JSON output.
func stripCodeFences(s string) string {
	return strings.Trim(codeFenceRe.ReplaceAllString(s, ""), "` \n")
}
