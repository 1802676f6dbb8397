// Package assistant implements the tool registry and the agent dispatcher:
// given a user query and a persona, it decides between a direct model reply
// and tool execution, runs the selected tool, and folds the tool output back
// into a persona-styled response.
package assistant

import (
	"context"

	"github.com/mailmate/mailmate/internal/apierr"
	"github.com/mailmate/mailmate/internal/gmail"
	"github.com/mailmate/mailmate/internal/llm"
)

// ToolName identifies a registered tool. The set is closed: an unknown name
// coming back from the routing model is a contract violation, not user error.
type ToolName string

const (
	// ToolSearchEmails searches the inbox with LLM-derived keywords and
	// LLM-filtered results.
	ToolSearchEmails ToolName = "search_emails"

	// ToolSummarizeInbox summarizes recent unread emails.
	ToolSummarizeInbox ToolName = "summarize_inbox"
)

// MailGateway is the slice of the mail gateway the tools depend on.
type MailGateway interface {
	ListEmails(ctx context.Context, count int64, includeRead bool, keywords []string) ([]gmail.Email, error)
}

// Tool is a named capability bound to one user's mail gateway and the LLM
// client. Tools hold no shared mutable state; each is a pure function of the
// bound identity and its call arguments.
type Tool struct {
	Name        ToolName
	Description string
	Parameters  map[string]any

	// Run executes the tool with the raw JSON arguments emitted by the
	// routing model. Failures the tool can explain to the user are returned
	// as text, not as an error, so the turn still completes.
	Run func(ctx context.Context, arguments string) (string, error)
}

// Registry holds the fixed set of tools for one session.
type Registry struct {
	tools map[ToolName]*Tool
	order []ToolName
}

// NewRegistry builds a registry from the given tools.
func NewRegistry(tools ...*Tool) *Registry {
	r := &Registry{tools: make(map[ToolName]*Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r
}

// NewDefaultRegistry builds the standard two-tool registry bound to one
// session's mail gateway.
func NewDefaultRegistry(chat llm.Chatter, mail MailGateway) *Registry {
	return NewRegistry(
		NewSearchEmailsTool(chat, mail),
		NewSummarizeInboxTool(chat, mail),
	)
}

// Resolve returns the tool registered under name. An unknown name yields a
// ToolResolutionError, which aborts the turn.
func (r *Registry) Resolve(name string) (*Tool, error) {
	t, ok := r.tools[ToolName(name)]
	if !ok {
		return nil, &apierr.ToolResolutionError{Name: name}
	}
	return t, nil
}

// Specs returns the tool descriptions offered to the routing model.
func (r *Registry) Specs() []llm.Tool {
	specs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, llm.Tool{
			Name:        string(t.Name),
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return specs
}
