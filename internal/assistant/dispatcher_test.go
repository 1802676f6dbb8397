package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailmate/mailmate/internal/apierr"
	"github.com/mailmate/mailmate/internal/gmail"
	"github.com/mailmate/mailmate/internal/llm"
)

// chatRecord captures one Chat invocation for assertions.
type chatRecord struct {
	system string
	user   string
}

// fakeChatter scripts the model side of a turn.
type fakeChatter struct {
	toolCalls    []llm.ToolCall
	toolsErr     error
	chatReplies  []string
	chatErr      error
	chatRecords  []chatRecord
	toolsPrompts []string
}

func (f *fakeChatter) Chat(_ context.Context, system, user string) (string, error) {
	f.chatRecords = append(f.chatRecords, chatRecord{system: system, user: user})
	if f.chatErr != nil {
		return "", f.chatErr
	}
	if len(f.chatReplies) == 0 {
		return "", nil
	}
	reply := f.chatReplies[0]
	f.chatReplies = f.chatReplies[1:]
	return reply, nil
}

func (f *fakeChatter) ChatWithTools(_ context.Context, user string, _ []llm.Tool) (string, []llm.ToolCall, error) {
	f.toolsPrompts = append(f.toolsPrompts, user)
	return "", f.toolCalls, f.toolsErr
}

type listCall struct {
	count       int64
	includeRead bool
	keywords    []string
}

// fakeMail scripts the mail gateway.
type fakeMail struct {
	emails []gmail.Email
	err    error
	calls  []listCall
}

func (f *fakeMail) ListEmails(_ context.Context, count int64, includeRead bool, keywords []string) ([]gmail.Email, error) {
	f.calls = append(f.calls, listCall{count: count, includeRead: includeRead, keywords: keywords})
	if f.err != nil {
		return nil, f.err
	}
	return f.emails, nil
}

func staticTool(name ToolName, output string) *Tool {
	return &Tool{
		Name:        name,
		Description: "test tool",
		Parameters:  map[string]any{"type": "object"},
		Run: func(context.Context, string) (string, error) {
			return output, nil
		},
	}
}

func TestDirectReplyIsVerbatim(t *testing.T) {
	chat := &fakeChatter{chatReplies: []string{"  hi, nothing else  "}}
	mail := &fakeMail{}
	d := NewDispatcher(chat, NewDefaultRegistry(chat, mail), nil)

	got, err := d.Respond(context.Background(), "You are a pirate.", "hello")
	require.NoError(t, err)
	assert.Equal(t, "  hi, nothing else  ", got, "direct reply must not be mutated or wrapped")

	// Query passed to the routing model verbatim.
	require.Len(t, chat.toolsPrompts, 1)
	assert.Equal(t, "hello", chat.toolsPrompts[0])

	// The persona and query go to the reply model unchanged.
	require.Len(t, chat.chatRecords, 1)
	assert.Equal(t, "You are a pirate.", chat.chatRecords[0].system)
	assert.Equal(t, "hello", chat.chatRecords[0].user)

	// Neither gateway was invoked.
	assert.Empty(t, mail.calls)
}

func TestOnlyFirstToolResultInFollowup(t *testing.T) {
	chat := &fakeChatter{
		toolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "first_tool", Arguments: "{}"},
			{ID: "call_2", Name: "second_tool", Arguments: "{}"},
		},
		chatReplies: []string{"final answer"},
	}
	registry := NewRegistry(
		staticTool("first_tool", "FIRST-RESULT"),
		staticTool("second_tool", "SECOND-RESULT"),
	)
	d := NewDispatcher(chat, registry, nil)

	got, err := d.Respond(context.Background(), "persona", "do both things")
	require.NoError(t, err)
	assert.Equal(t, "final answer", got)

	require.Len(t, chat.chatRecords, 1)
	followup := chat.chatRecords[0].user
	assert.Contains(t, followup, "do both things")
	assert.Contains(t, followup, "FIRST-RESULT")
	assert.NotContains(t, followup, "SECOND-RESULT",
		"only the first tool result is carried into the follow-up")
}

func TestUnknownToolAbortsTurn(t *testing.T) {
	chat := &fakeChatter{
		toolCalls: []llm.ToolCall{{ID: "call_1", Name: "drop_tables", Arguments: "{}"}},
	}
	d := NewDispatcher(chat, NewDefaultRegistry(chat, &fakeMail{}), nil)

	_, err := d.Respond(context.Background(), "persona", "query")
	require.Error(t, err)

	var tre *apierr.ToolResolutionError
	require.True(t, errors.As(err, &tre))
	assert.Equal(t, "drop_tables", tre.Name)

	// No follow-up call was made.
	assert.Empty(t, chat.chatRecords)
}

func TestRoutingErrorPropagates(t *testing.T) {
	chat := &fakeChatter{toolsErr: apierr.Upstream("llm", errors.New("timeout"))}
	d := NewDispatcher(chat, NewDefaultRegistry(chat, &fakeMail{}), nil)

	_, err := d.Respond(context.Background(), "persona", "query")
	require.Error(t, err)

	var ue *apierr.UpstreamError
	assert.True(t, errors.As(err, &ue))
}

func TestSummarizeInboxEndToEnd(t *testing.T) {
	mail := &fakeMail{emails: []gmail.Email{
		{From: "Alice <a@x.com>", Subject: "Budget", Body: "Numbers attached", Labels: []string{"IMPORTANT", "UNREAD"}},
		{From: "Bob <b@x.com>", Subject: "Lunch", Snippet: "Tacos?"},
	}}
	chat := &fakeChatter{
		toolCalls:   []llm.ToolCall{{ID: "call_1", Name: "summarize_inbox", Arguments: "{}"}},
		chatReplies: []string{"THE-SUMMARY-TEXT", "Arr, yer inbox says: budget numbers be in."},
	}
	d := NewDispatcher(chat, NewDefaultRegistry(chat, mail), nil)

	got, err := d.Respond(context.Background(), "You are a pirate.", "Summarize my inbox")
	require.NoError(t, err)
	assert.Equal(t, "Arr, yer inbox says: budget numbers be in.", got)

	// The tool fetched unread emails only.
	require.Len(t, mail.calls, 1)
	assert.False(t, mail.calls[0].includeRead)
	assert.Equal(t, int64(10), mail.calls[0].count)

	// Follow-up embeds the literal query and the tool's summary.
	require.Len(t, chat.chatRecords, 2)
	followup := chat.chatRecords[1]
	assert.Equal(t, "You are a pirate.", followup.system)
	assert.Contains(t, followup.user, "Summarize my inbox")
	assert.Contains(t, followup.user, "THE-SUMMARY-TEXT")
}

func TestSummaryPromptMarksPriority(t *testing.T) {
	mail := &fakeMail{emails: []gmail.Email{
		{From: "Alice", Subject: "Urgent", Body: "now", Labels: []string{"IMPORTANT"}},
		{From: "Bob", Subject: "FYI", Body: "later"},
	}}
	chat := &fakeChatter{chatReplies: []string{"summary"}}
	tool := NewSummarizeInboxTool(chat, mail)

	_, err := tool.Run(context.Background(), "{}")
	require.NoError(t, err)

	require.Len(t, chat.chatRecords, 1)
	prompt := chat.chatRecords[0].user
	assert.Contains(t, prompt, "Priority: High")
	assert.Contains(t, prompt, "Priority: Low")
}

func TestSummarizeInboxFetchErrorBecomesText(t *testing.T) {
	mail := &fakeMail{err: apierr.Upstream("gmail", errors.New("quota exceeded"))}
	chat := &fakeChatter{}
	tool := NewSummarizeInboxTool(chat, mail)

	out, err := tool.Run(context.Background(), "{}")
	require.NoError(t, err, "tool failures are recovered as text, not errors")
	assert.Contains(t, out, "Error fetching emails")
	assert.Contains(t, out, "quota exceeded")
}

func TestSummarizeInboxEmpty(t *testing.T) {
	tool := NewSummarizeInboxTool(&fakeChatter{}, &fakeMail{})

	out, err := tool.Run(context.Background(), "{}")
	require.NoError(t, err)
	assert.Contains(t, out, "no unread emails")
}
