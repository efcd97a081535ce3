// Package tool maps function names to callables so the conversation engine
// can dispatch model-issued calls. Flat functions register under their schema
// name; tool instances register every method under a namespaced name so
// several instances of the same tool can coexist in one conversation.
package tool

import (
	"context"

	"github.com/parleyhq/parley/llm"
)

// Invoker executes one registered function. The response argument carries the
// assistant message whose function call triggered the dispatch; most
// implementations ignore it.
type Invoker func(ctx context.Context, args map[string]interface{}, response *llm.Message) (any, error)

// Tool is the capability a value implements to expose its methods to the
// model. The method set is read once, at registration; dispatch afterward is
// a plain name lookup with no reflection on the instance.
type Tool interface {
	// ToolName returns the class-name half of namespaced function names.
	ToolName() string
	// Methods enumerates the callable members to expose.
	Methods() []Method
}

// Method is one callable member of a Tool.
type Method struct {
	Name        string
	Description string
	Schema      llm.ToolSchema
	Invoke      Invoker
}

// StateProvider supplies a tool's textual state for the tool-states context
// block. Tools without it fall back to fmt.Stringer, then to "%+v".
type StateProvider interface {
	LLMState() string
}
