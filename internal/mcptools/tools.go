// Package mcptools exposes the assistant's capabilities as MCP tools over
// stdio, so MCP-capable agents can drive the same mail/calendar operations as
// the HTTP API. The session key binding the tools to stored credentials is
// supplied at server construction time.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mailmate/mailmate/internal/assistant"
	"github.com/mailmate/mailmate/internal/authstore"
	"github.com/mailmate/mailmate/internal/calendar"
	"github.com/mailmate/mailmate/internal/gmail"
	"github.com/mailmate/mailmate/internal/llm"
)

// Deps are the collaborators the MCP tools operate on.
type Deps struct {
	Store      authstore.Store
	Chat       llm.Chatter
	SessionKey string
}

// RegisterTools registers the assistant and gateway tools with the MCP
// server.
func RegisterTools(s *mcpserver.MCPServer, deps Deps) error {
	if deps.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}

	searchTool := mcp.NewTool("search_emails",
		mcp.WithDescription("Search the user's emails with a natural-language query. Returns matches as a JSON array of {Subject, Sender, Date, Summary} objects."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query in natural language"),
		),
	)
	s.AddTool(searchTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSearchEmails(ctx, request, deps)
	})

	summaryTool := mcp.NewTool("summarize_inbox",
		mcp.WithDescription("Fetch the user's recent unread emails and produce a concise summary highlighting high-priority messages."),
	)
	s.AddTool(summaryTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSummarizeInbox(ctx, request, deps)
	})

	listEmailsTool := mcp.NewTool("list_emails",
		mcp.WithDescription("List normalized inbox messages as JSON."),
		mcp.WithNumber("count",
			mcp.Description("Maximum number of messages to return (default: 10)"),
		),
		mcp.WithBoolean("includeRead",
			mcp.Description("Include messages that are already read (default: false)"),
		),
		mcp.WithString("query",
			mcp.Description("Keyword to filter the inbox listing"),
		),
	)
	s.AddTool(listEmailsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListEmails(ctx, request, deps)
	})

	listEventsTool := mcp.NewTool("list_events",
		mcp.WithDescription("List upcoming events from the primary calendar as JSON."),
		mcp.WithString("start",
			mcp.Description("Range start as an RFC 3339 timestamp (default: now)"),
		),
		mcp.WithString("end",
			mcp.Description("Range end as an RFC 3339 timestamp (default: open-ended, next 10 events)"),
		),
	)
	s.AddTool(listEventsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListEvents(ctx, request, deps)
	})

	return nil
}

func handleSearchEmails(ctx context.Context, request mcp.CallToolRequest, deps Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	gw, err := gmail.NewClient(ctx, deps.Store, deps.SessionKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create mail gateway: %v", err)), nil
	}

	tool := assistant.NewSearchEmailsTool(deps.Chat, gw)
	arguments, _ := json.Marshal(map[string]string{"query": query})
	out, err := tool.Run(ctx, string(arguments))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

func handleSummarizeInbox(ctx context.Context, _ mcp.CallToolRequest, deps Deps) (*mcp.CallToolResult, error) {
	gw, err := gmail.NewClient(ctx, deps.Store, deps.SessionKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create mail gateway: %v", err)), nil
	}

	tool := assistant.NewSummarizeInboxTool(deps.Chat, gw)
	out, err := tool.Run(ctx, "{}")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("summary failed: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

func handleListEmails(ctx context.Context, request mcp.CallToolRequest, deps Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	count := int64(10)
	if v, ok := args["count"].(float64); ok && v > 0 {
		count = int64(v)
	}
	includeRead := false
	if v, ok := args["includeRead"].(bool); ok {
		includeRead = v
	}
	var keywords []string
	if v, ok := args["query"].(string); ok && v != "" {
		keywords = []string{v}
	}

	gw, err := gmail.NewClient(ctx, deps.Store, deps.SessionKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create mail gateway: %v", err)), nil
	}

	emails, err := gw.ListEmails(ctx, count, includeRead, keywords)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list emails: %v", err)), nil
	}

	data, err := json.MarshalIndent(emails, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal emails: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, deps Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	start, _ := args["start"].(string)
	end, _ := args["end"].(string)

	gw, err := calendar.NewClient(ctx, deps.Store, deps.SessionKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create calendar gateway: %v", err)), nil
	}

	events, err := gw.ListEvents(ctx, start, end, "primary")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list events: %v", err)), nil
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal events: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
