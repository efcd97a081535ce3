package chat

import (
	"context"
	"errors"

	"github.com/parleyhq/parley/llm"
)

type convState int

const (
	stateAsk convState = iota
	stateCallback
	stateDone
)

// Conversation walks a function-calling loop one surfaced message at a
// time, in the bufio.Scanner style:
//
//	conv := chat.Run("plot the data")
//	for conv.Next(ctx) {
//	    render(conv.Message())
//	}
//	if err := conv.Err(); err != nil { ... }
//
// A Conversation is finite and not restartable; a fresh Run starts a fresh
// traversal over the history built so far.
type Conversation struct {
	chat     *Chat
	queue    []llm.Message
	current  *llm.Message
	input    *llm.Message
	lastResp *llm.Message
	state    convState
	rounds   int
	err      error
}

// Run starts a conversation loop from a user prompt. The user turn is the
// first message surfaced.
func (c *Chat) Run(prompt string) *Conversation {
	msg := llm.NewTextMessage(llm.RoleUser, prompt)
	return &Conversation{
		chat:  c,
		queue: []llm.Message{msg},
		input: &msg,
	}
}

// RunMessage starts a conversation loop from a prepared message. A nil msg
// resumes on the existing history, which is how a loaded conversation is
// continued. Unlike Run, the input message is not surfaced.
func (c *Chat) RunMessage(msg *llm.Message) *Conversation {
	return &Conversation{chat: c, input: msg}
}

// Next advances the loop until a message is surfaced, performing at most
// one model round trip. It returns false when the conversation is over or
// failed; Err distinguishes the two.
func (conv *Conversation) Next(ctx context.Context) bool {
	if len(conv.queue) > 0 {
		msg := conv.queue[0]
		conv.queue = conv.queue[1:]
		conv.current = &msg
		return true
	}

	for {
		switch conv.state {
		case stateDone:
			return false

		case stateCallback:
			// Deferred on purpose: the callback decides what happens after
			// the plain response has already been surfaced.
			msg, err := conv.chat.SimpleResponseCallback(conv.lastResp)
			if err != nil {
				if !errors.Is(err, ErrStopLoop) {
					conv.err = err
				}
				conv.state = stateDone
				return false
			}
			conv.input = msg
			conv.state = stateAsk

		case stateAsk:
			if conv.rounds >= conv.chat.maxInteractions {
				conv.state = stateDone
				return false
			}
			conv.rounds++

			response, err := conv.chat.AskMessage(ctx, conv.input)
			conv.input = nil
			if err != nil {
				conv.err = err
				conv.state = stateDone
				return false
			}

			if response.FunctionCall() == nil {
				conv.lastResp = response
				conv.current = response
				conv.state = stateCallback
				return true
			}

			result, stopped := conv.chat.dispatch(ctx, response)
			if stopped {
				conv.current = response
				conv.state = stateDone
				return true
			}

			// The result surfaces now but only joins the history when the
			// next round trip sends it.
			conv.input = result
			conv.current = response
			conv.queue = append(conv.queue, *result)
			return true
		}
	}
}

// Message returns the message surfaced by the last successful Next.
func (conv *Conversation) Message() *llm.Message { return conv.current }

// Err returns the first error that ended the loop, or nil for a clean end
// (stop signal or MaxInteractions reached).
func (conv *Conversation) Err() error { return conv.err }
