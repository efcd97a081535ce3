package chat

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/parleyhq/parley/llm"
)

// ErrStopLoop ends a Run loop from inside a tool handler or a text-response
// callback. It is a control signal, not a failure: the loop's Err() stays
// nil when a conversation stops this way.
var ErrStopLoop = errors.New("stop conversation loop")

// StopAfterSimpleResponse is the default text-response callback: any
// assistant turn without a function call ends the loop.
func StopAfterSimpleResponse(response *llm.Message) (*llm.Message, error) {
	return nil, ErrStopLoop
}

// dispatch resolves and runs the function call carried by response, and
// builds the function-role message holding the formatted result. A stop
// signal reports stopped=true instead of a message. Handler failures never
// escape: they come back as the result text so the model can recover.
func (c *Chat) dispatch(ctx context.Context, response *llm.Message) (msg *llm.Message, stopped bool) {
	call := response.FunctionCall()
	callID := response.FunctionCallID()

	value, errText, stop := c.callFunction(ctx, response, call)
	if stop {
		return nil, true
	}
	if errText != "" {
		c.logger.Warn().Str("function", call.Name).Str("error", firstLine(errText)).Msg("Function call failed")
		failed := llm.NewFunctionResultMessage(call.Name, callID, errText)
		return &failed, false
	}

	result := c.resultMessage(call.Name, callID, value)
	return &result, false
}

// callFunction invokes the registry handler, converting panics and returned
// errors (other than the stop signal) into result text.
func (c *Chat) callFunction(ctx context.Context, response *llm.Message, call *llm.FunctionCall) (value any, errText string, stop bool) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			errText = formatPanic(r, debug.Stack())
		}
	}()

	value, err := c.registry.Handle(ctx, call.Name, call.Arguments, response)
	if err != nil {
		if errors.Is(err, ErrStopLoop) {
			return nil, "", true
		}
		return nil, dispatchErrorText(err), false
	}
	return value, "", false
}

// dispatchErrorText shapes a handler error for the model: the concrete type
// first, like a traceback's final line, then the message.
func dispatchErrorText(err error) string {
	return fmt.Sprintf("%T: %v", err, err)
}

// formatPanic shapes a recovered panic into a traceback-style string. Frames
// belonging to the dispatch machinery are stripped so the trace starts at
// the handler's own code.
func formatPanic(value any, stack []byte) string {
	lines := strings.Split(strings.TrimRight(string(stack), "\n"), "\n")

	var kept []string
	// Stack dumps pair a function line with an indented location line; the
	// first line names the goroutine.
	for i := 1; i+1 < len(lines); i += 2 {
		fn, loc := lines[i], lines[i+1]
		if isDispatchFrame(fn, loc) {
			continue
		}
		kept = append(kept, fn, loc)
	}
	if len(kept) == 0 {
		kept = lines[1:]
	}

	return fmt.Sprintf("Traceback (most recent call last):\n%s\npanic: %v", strings.Join(kept, "\n"), value)
}

func isDispatchFrame(fn, loc string) bool {
	return strings.Contains(loc, "runtime/debug/stack.go") ||
		strings.Contains(loc, "runtime/panic.go") ||
		strings.Contains(fn, "parleyhq/parley/chat.") ||
		strings.Contains(fn, "parleyhq/parley/tool.")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
