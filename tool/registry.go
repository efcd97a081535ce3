package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/parleyhq/parley/llm"
)

// Registry maps function names to invokers. A conversation owns one registry;
// access is sequential, so the registry does not lock. Tool instances shared
// across concurrent conversations synchronize themselves.
type Registry struct {
	invokers map[string]Invoker
	specs    []llm.ToolSpec
	tools    map[string]*toolEntry
	toolIDs  []string
	logger   zerolog.Logger
}

type toolEntry struct {
	instance Tool
	names    []string
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		invokers: make(map[string]Invoker),
		tools:    make(map[string]*toolEntry),
		logger:   logger.With().Str("component", "tool_registry").Logger(),
	}
}

// Register binds a flat function under its spec name. Registering a name
// again replaces the previous binding in place, keeping its position in
// Specs.
func (r *Registry) Register(spec llm.ToolSpec, fn Invoker) error {
	if spec.Name == "" {
		return fmt.Errorf("function spec has no name")
	}
	if fn == nil {
		return fmt.Errorf("function %s has no invoker", spec.Name)
	}
	r.logger.Debug().Str("name", spec.Name).Msg("Registering function")
	r.bind(spec, fn)
	return nil
}

func (r *Registry) bind(spec llm.ToolSpec, fn Invoker) {
	if _, exists := r.invokers[spec.Name]; exists {
		for i, s := range r.specs {
			if s.Name == spec.Name {
				r.specs[i] = spec
				break
			}
		}
	} else {
		r.specs = append(r.specs, spec)
	}
	r.invokers[spec.Name] = fn
}

// RegisterTool binds every method of t under "<ToolName>-<id>__<method>" and
// returns the tool id. An empty id gets a generated one. Registering an id
// again replaces the previous instance and all of its bindings.
func (r *Registry) RegisterTool(t Tool, id string) string {
	if id == "" {
		// Names must stay under vendor caps (OpenAI allows 64 chars), so
		// a short id beats a full uuid.
		id = uuid.NewString()[:8]
	}
	if _, exists := r.tools[id]; exists {
		r.Unregister(id)
	}

	prefix := fmt.Sprintf("%s-%s", t.ToolName(), id)
	entry := &toolEntry{instance: t}
	for _, m := range t.Methods() {
		if m.Name == "" || m.Invoke == nil {
			continue
		}
		spec := llm.ToolSpec{
			Name:        fmt.Sprintf("%s__%s", prefix, m.Name),
			Description: m.Description,
			Schema:      m.Schema,
		}
		r.bind(spec, m.Invoke)
		entry.names = append(entry.names, spec.Name)
	}
	r.tools[id] = entry
	r.toolIDs = append(r.toolIDs, id)
	r.logger.Debug().Str("tool", prefix).Int("methods", len(entry.names)).Msg("Registered tool")
	return id
}

// Unregister removes the tool and every namespaced function bound to it. It
// reports whether the id was registered.
func (r *Registry) Unregister(id string) bool {
	entry, ok := r.tools[id]
	if !ok {
		return false
	}
	delete(r.tools, id)
	r.toolIDs = lo.Without(r.toolIDs, id)

	removed := make(map[string]bool, len(entry.names))
	for _, name := range entry.names {
		removed[name] = true
		delete(r.invokers, name)
	}
	r.specs = lo.Reject(r.specs, func(s llm.ToolSpec, _ int) bool {
		return removed[s.Name]
	})

	r.logger.Debug().Str("id", id).Int("functions", len(entry.names)).Msg("Unregistered tool")
	return true
}

// Lookup returns the invoker bound to a function name.
func (r *Registry) Lookup(name string) (Invoker, bool) {
	fn, ok := r.invokers[name]
	return fn, ok
}

// Tool returns the registered instance for an id.
func (r *Registry) Tool(id string) (Tool, bool) {
	entry, ok := r.tools[id]
	if !ok {
		return nil, false
	}
	return entry.instance, true
}

// Handle dispatches one function call by name.
func (r *Registry) Handle(ctx context.Context, name string, args map[string]interface{}, response *llm.Message) (any, error) {
	fn, ok := r.invokers[name]
	if !ok {
		r.logger.Error().Str("function", name).Msg("Unknown function requested")
		return nil, fmt.Errorf("unknown function: %s", name)
	}

	if argBytes, err := json.MarshalIndent(args, "", "  "); err == nil {
		r.logger.Debug().Str("function", name).Str("args", string(argBytes)).Msg("Invoking function")
	}

	result, err := fn(ctx, args, response)
	if err != nil {
		r.logger.Warn().Str("function", name).Err(err).Msg("Function returned error")
		return result, err
	}

	if resultBytes, e := json.MarshalIndent(result, "", "  "); e == nil {
		resultStr := string(resultBytes)
		if len(resultStr) > 500 {
			resultStr = resultStr[:500] + "... (truncated)"
		}
		r.logger.Debug().Str("function", name).Str("result", resultStr).Msg("Function returned result")
	} else {
		r.logger.Debug().Str("function", name).Interface("result", result).Msg("Function returned result (non-jsonable)")
	}
	return result, err
}

// Specs returns every registered schema in registration order.
func (r *Registry) Specs() []llm.ToolSpec {
	return append([]llm.ToolSpec(nil), r.specs...)
}

// States builds the tool-states context block from every live tool's textual
// state, in registration order. It returns "" when no tools are registered.
func (r *Registry) States() string {
	if len(r.toolIDs) == 0 {
		return ""
	}
	sections := lo.Map(r.toolIDs, func(id string, _ int) string {
		entry := r.tools[id]
		name := fmt.Sprintf("%s-%s", entry.instance.ToolName(), id)
		return fmt.Sprintf("### %s\n%s", name, stateOf(entry.instance))
	})
	return fmt.Sprintf("## Last Tools States\n%s\n--- End of Last Tools States ---", strings.Join(sections, "\n"))
}

func stateOf(t Tool) string {
	switch v := t.(type) {
	case StateProvider:
		return v.LLMState()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%+v", t)
	}
}
