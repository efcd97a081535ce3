package toolkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/llm"
	"github.com/parleyhq/parley/tool"
)

// Notifier surfaces desktop notifications so the model can flag finished
// work or anything that needs the user's attention while they are away from
// the terminal.
type Notifier struct {
	logger zerolog.Logger
	post   func(title, message string) error

	mu   sync.Mutex
	sent int
	last string
}

// NewNotifier creates a notifier that posts through the system notification
// service.
func NewNotifier(logger zerolog.Logger) *Notifier {
	return &Notifier{
		logger: logger.With().Str("component", "toolkit").Logger(),
		post: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// ToolName implements tool.Tool.
func (n *Notifier) ToolName() string {
	return "Notifier"
}

// Methods implements tool.Tool.
func (n *Notifier) Methods() []tool.Method {
	return []tool.Method{
		{
			Name:        "notify",
			Description: "Display a desktop notification to the user. Use it to report finished work or to ask for attention when the user may not be watching the conversation.",
			Schema: llm.ToolSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"message": map[string]interface{}{
						"type":        "string",
						"description": "The notification body",
					},
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Optional notification title (default: 'Parley')",
					},
				},
				Required: []string{"message"},
			},
			Invoke: n.notify,
		},
	}
}

func (n *Notifier) notify(_ context.Context, args map[string]interface{}, _ *llm.Message) (any, error) {
	var payload struct {
		Message string `json:"message"`
		Title   string `json:"title"`
	}
	if err := decodeArgs(args, &payload); err != nil {
		return nil, err
	}
	if payload.Message == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	title := payload.Title
	if title == "" {
		title = "Parley"
	}

	if err := n.post(title, payload.Message); err != nil {
		// Usually missing notification permissions. The conversation can
		// still continue, so report the failure as a result.
		n.logger.Warn().Err(err).Msg("Failed to send desktop notification")
		return map[string]any{"sent": false, "error": err.Error()}, nil
	}

	n.mu.Lock()
	n.sent++
	n.last = payload.Message
	n.mu.Unlock()

	n.logger.Info().Str("title", title).Msg("Desktop notification sent")
	return map[string]any{"sent": true, "title": title, "message": payload.Message}, nil
}

// LLMState implements tool.StateProvider.
func (n *Notifier) LLMState() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == 0 {
		return "No notifications sent this session."
	}
	return fmt.Sprintf("Sent %d notification(s) this session; last: %q.", n.sent, n.last)
}
