// Package chat implements the conversation engine: a message history, a
// function registry, and the ask/dispatch loop that lets a model call
// functions and read their results across turns.
package chat

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/llm"
	"github.com/parleyhq/parley/tool"
)

// DefaultMaxInteractions bounds a Run loop when Options leaves it unset.
const DefaultMaxInteractions = 100

// Persister receives every message appended to a chat's history. Failures
// are logged and swallowed; persistence never blocks a conversation.
type Persister interface {
	AppendMessage(ctx context.Context, msg llm.Message) error
}

// Chat is a single conversation: instruction, history, and the functions
// the model may call. It is not safe for concurrent use; each conversation
// runs sequentially.
type Chat struct {
	// Name labels the conversation in logs and persistence.
	Name string

	// Instruction is the system prompt sent with every request.
	Instruction string

	// Context is extra framing injected after the instruction.
	Context string

	// Examples are few-shot messages sent before the live history.
	Examples []llm.Message

	// SimpleResponseCallback runs when the model answers without calling a
	// function. Returning a message continues the loop with it; returning
	// ErrStopLoop ends the loop cleanly.
	SimpleResponseCallback func(response *llm.Message) (*llm.Message, error)

	client          llm.Client
	registry        *tool.Registry
	messages        []llm.Message
	persister       Persister
	logger          zerolog.Logger
	maxInteractions int
	outputLimit     int
}

// Options configures a new Chat. Zero values fall back to defaults.
type Options struct {
	Name        string
	Instruction string
	Context     string
	Examples    []llm.Message
	Messages    []llm.Message

	// MaxInteractions caps the rounds of a Run loop. Zero means
	// DefaultMaxInteractions.
	MaxInteractions int

	// OutputLimit caps rendered function results, in characters. Zero means
	// DefaultOutputLimit.
	OutputLimit int

	Persister Persister
	Logger    *zerolog.Logger
}

// New builds a Chat around the given client.
func New(client llm.Client, opts Options) *Chat {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "chat").Str("chat", opts.Name).Logger()

	maxInteractions := opts.MaxInteractions
	if maxInteractions <= 0 {
		maxInteractions = DefaultMaxInteractions
	}
	outputLimit := opts.OutputLimit
	if outputLimit <= 0 {
		outputLimit = DefaultOutputLimit
	}

	c := &Chat{
		Name:                   opts.Name,
		Instruction:            opts.Instruction,
		Context:                opts.Context,
		Examples:               opts.Examples,
		SimpleResponseCallback: StopAfterSimpleResponse,
		client:                 client,
		registry:               tool.NewRegistry(logger),
		persister:              opts.Persister,
		logger:                 logger,
		maxInteractions:        maxInteractions,
		outputLimit:            outputLimit,
	}
	c.messages = append(c.messages, opts.Messages...)
	return c
}

// Client exposes the underlying model client.
func (c *Chat) Client() llm.Client { return c.client }

// Registry exposes the function registry so callers can register tools.
func (c *Chat) Registry() *tool.Registry { return c.registry }

// Messages returns a copy of the conversation history.
func (c *Chat) Messages() []llm.Message {
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// LastMessage returns the most recent message, or nil when the history is
// empty.
func (c *Chat) LastMessage() *llm.Message {
	if len(c.messages) == 0 {
		return nil
	}
	msg := c.messages[len(c.messages)-1]
	return &msg
}

// Load replaces the history with msgs, bypassing the persister.
func (c *Chat) Load(msgs []llm.Message) {
	c.messages = make([]llm.Message, len(msgs))
	copy(c.messages, msgs)
}

// Reset clears the history and drops every registered function.
func (c *Chat) Reset() {
	c.messages = nil
	c.registry = tool.NewRegistry(c.logger)
}

// Ask sends a user prompt and returns the model's response. The response is
// appended to the history but not dispatched; use Run for the full
// function-calling loop.
func (c *Chat) Ask(ctx context.Context, prompt string) (*llm.Message, error) {
	msg := llm.NewTextMessage(llm.RoleUser, prompt)
	return c.AskMessage(ctx, &msg)
}

// AskMessage appends msg to the history and fetches the model's response.
// A nil msg fetches on the existing history without appending, which is how
// a pending function result gets its follow-up turn.
func (c *Chat) AskMessage(ctx context.Context, msg *llm.Message) (*llm.Message, error) {
	if msg != nil {
		c.append(ctx, *msg)
	}

	resp, err := c.client.Fetch(ctx, c.buildRequest())
	if err != nil {
		return nil, err
	}
	if resp.Usage != nil {
		c.logger.Debug().
			Int64("input_tokens", resp.Usage.InputTokens).
			Int64("output_tokens", resp.Usage.OutputTokens).
			Msg("Model round trip")
	}

	response := resp.Message
	c.append(ctx, response)
	return &response, nil
}

func (c *Chat) append(ctx context.Context, msg llm.Message) {
	c.messages = append(c.messages, msg)
	if c.persister == nil {
		return
	}
	if err := c.persister.AppendMessage(ctx, msg); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist message")
	}
}

func (c *Chat) buildRequest() *llm.Request {
	examples := make([]llm.Message, len(c.Examples))
	copy(examples, c.Examples)
	messages := make([]llm.Message, len(c.messages))
	copy(messages, c.messages)

	return &llm.Request{
		Instruction: c.Instruction,
		Context:     c.Context,
		ToolStates:  c.registry.States(),
		Examples:    examples,
		Messages:    messages,
		Tools:       c.registry.Specs(),
	}
}
