package schema

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parleyhq/parley/llm"
	"github.com/parleyhq/parley/tool"
)

// Bind derives the parameter schema from Args and wraps fn into a registry
// invoker that validates and decodes arguments before the call.
func Bind[Args any](name, description string, fn func(ctx context.Context, args Args) (any, error)) (llm.ToolSpec, tool.Invoker) {
	return BindWithResponse(name, description, func(ctx context.Context, args Args, _ *llm.Message) (any, error) {
		return fn(ctx, args)
	})
}

// BindWithResponse is Bind for handlers that also inspect the assistant
// message whose function call triggered them.
func BindWithResponse[Args any](name, description string, fn func(ctx context.Context, args Args, response *llm.Message) (any, error)) (llm.ToolSpec, tool.Invoker) {
	var zero Args
	spec := llm.ToolSpec{
		Name:        name,
		Description: description,
		Schema:      FromStruct(zero),
	}

	invoke := func(ctx context.Context, args map[string]interface{}, response *llm.Message) (any, error) {
		if args == nil {
			args = map[string]interface{}{}
		}
		if err := Validate(args, spec.Schema); err != nil {
			return nil, err
		}

		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encoding arguments for %s: %w", name, err)
		}
		var decoded Args
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("decoding arguments for %s: %w", name, err)
		}

		return fn(ctx, decoded, response)
	}

	return spec, invoke
}
