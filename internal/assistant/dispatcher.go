package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailmate/mailmate/internal/instrumentation"
	"github.com/mailmate/mailmate/internal/llm"
	"github.com/mailmate/mailmate/internal/logging"
)

const followupPrompt = `The user asked: %s

After processing their requests, the tool returned the following:

%s

Return response that suits your personality, tone, and style.`

// ToolResult pairs a tool call id with the tool's string output.
type ToolResult struct {
	CallID  string
	Content string
}

// Dispatcher routes one user query at a time: it offers the registry to the
// model, executes any requested tool, and produces the final persona-styled
// text. Turns are stateless; no conversation history is retained.
type Dispatcher struct {
	chat     llm.Chatter
	registry *Registry
	metrics  *instrumentation.Metrics
}

// NewDispatcher creates a dispatcher over the given model client and
// registry. metrics may be nil.
func NewDispatcher(chat llm.Chatter, registry *Registry, metrics *instrumentation.Metrics) *Dispatcher {
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	return &Dispatcher{
		chat:     chat,
		registry: registry,
		metrics:  metrics,
	}
}

// Respond runs one turn. The query is passed to the routing model verbatim;
// when the model requests no tools the direct reply is returned verbatim.
//
// When tools are requested, every requested call is executed, but only the
// first result feeds the follow-up prompt. This bounds the follow-up to one
// tool's output and is a deliberate, documented limitation.
func (d *Dispatcher) Respond(ctx context.Context, persona, query string) (string, error) {
	logger := logging.WithOperation(slog.Default(), "assistant.respond")

	_, calls, err := d.chat.ChatWithTools(ctx, query, d.registry.Specs())
	if err != nil {
		d.metrics.RecordAssistantTurn(ctx, "routing", err)
		return "", err
	}

	if len(calls) == 0 {
		logger.Debug("no tool calls, direct reply")
		text, err := d.chat.Chat(ctx, persona, query)
		d.metrics.RecordAssistantTurn(ctx, "direct", err)
		return text, err
	}

	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		tool, err := d.registry.Resolve(call.Name)
		if err != nil {
			// Unknown tool name: provider/registry mismatch, abort the turn.
			d.metrics.RecordAssistantTurn(ctx, "tool", err)
			return "", err
		}

		start := time.Now()
		output, err := tool.Run(ctx, call.Arguments)
		d.metrics.RecordToolInvocation(ctx, call.Name, time.Since(start), err)
		if err != nil {
			d.metrics.RecordAssistantTurn(ctx, "tool", err)
			return "", err
		}

		logger.Info("tool executed",
			logging.Tool(call.Name),
			slog.String("call_id", call.ID))
		results = append(results, ToolResult{CallID: call.ID, Content: output})
	}

	followup := fmt.Sprintf(followupPrompt, query, results[0].Content)
	text, err := d.chat.Chat(ctx, persona, followup)
	d.metrics.RecordAssistantTurn(ctx, "tool", err)
	return text, err
}
