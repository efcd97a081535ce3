package llm

import (
	"encoding/json"
	"fmt"
)

// Role represents the role of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// PartKind represents the kind of content carried by a message part.
type PartKind string

const (
	PartText                PartKind = "text"
	PartImage               PartKind = "image"
	PartFunctionCall        PartKind = "function_call"
	PartFunctionResult      PartKind = "function_result"
	PartFunctionResultImage PartKind = "function_result_image"
)

// FunctionCall is a request from the model to invoke a named function.
type FunctionCall struct {
	Name      string
	Arguments map[string]interface{}
}

// Part is the atomic unit of message content. Exactly one of the
// content-bearing fields is set, and it must match Kind. FunctionCallID
// correlates a call with its result across turns.
type Part struct {
	Kind           PartKind
	Text           string
	Image          *Image
	FunctionCall   *FunctionCall
	FunctionCallID string
}

// TextPart creates a text part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// ImagePart creates an image part.
func ImagePart(img *Image) Part {
	return Part{Kind: PartImage, Image: img}
}

// FunctionCallPart creates a function call part. callID may be empty for
// calls that were never assigned a vendor id (e.g. template examples before
// id assignment).
func FunctionCallPart(call *FunctionCall, callID string) Part {
	return Part{Kind: PartFunctionCall, FunctionCall: call, FunctionCallID: callID}
}

// FunctionResultPart creates a function result part. An empty text is a
// valid result (it is how unanswered calls are repaired).
func FunctionResultPart(callID, text string) Part {
	return Part{Kind: PartFunctionResult, Text: text, FunctionCallID: callID}
}

// FunctionResultImagePart creates an image-carrying function result part.
func FunctionResultImagePart(callID string, img *Image) Part {
	return Part{Kind: PartFunctionResultImage, Image: img, FunctionCallID: callID}
}

// Message represents a single conversational turn. The conversation history
// owns its messages; adapters read them and produce new ones but never
// mutate a message that is already part of a history.
type Message struct {
	Role  Role
	Parts []Part
	Name  string
	ID    string
}

// NewTextMessage creates a message with a single text part.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart(text)}}
}

// NewImageMessage creates a message with a single image part.
func NewImageMessage(role Role, img *Image) Message {
	return Message{Role: role, Parts: []Part{ImagePart(img)}}
}

// NewFunctionCallMessage creates an assistant message carrying one function
// call.
func NewFunctionCallMessage(call *FunctionCall, callID string) Message {
	return Message{Role: RoleAssistant, Parts: []Part{FunctionCallPart(call, callID)}}
}

// NewFunctionResultMessage creates a function-role message carrying a text
// result. name is the called function's name.
func NewFunctionResultMessage(name, callID, text string) Message {
	return Message{
		Role:  RoleFunction,
		Name:  name,
		Parts: []Part{FunctionResultPart(callID, text)},
	}
}

// NewFunctionResultImageMessage creates a function-role message carrying an
// image result, optionally preceded by a text result part.
func NewFunctionResultImageMessage(name, callID, text string, img *Image) Message {
	parts := make([]Part, 0, 2)
	if text != "" {
		parts = append(parts, FunctionResultPart(callID, text))
	}
	parts = append(parts, FunctionResultImagePart(callID, img))
	return Message{Role: RoleFunction, Name: name, Parts: parts}
}

// NewMessage creates a message from an explicit part list. Function-role
// messages with no parts are synthesized with an empty placeholder result so
// that every call eventually has an answer on the wire.
func NewMessage(role Role, parts ...Part) Message {
	if role == RoleFunction && len(parts) == 0 {
		parts = []Part{FunctionResultPart("", "")}
	}
	return Message{Role: role, Parts: parts}
}

// Validate checks the message invariants. It is called where messages cross
// a trust boundary (template parsing, store loads); messages built through
// the constructors hold these by construction.
func (m Message) Validate() error {
	if m.Role != RoleFunction && len(m.Parts) == 0 {
		return fmt.Errorf("message with role %q must have at least one part", m.Role)
	}
	var texts, calls, results, resultImages int
	seenID := ""
	for _, p := range m.Parts {
		switch p.Kind {
		case PartText:
			texts++
		case PartFunctionCall:
			calls++
		case PartFunctionResult:
			results++
		case PartFunctionResultImage:
			resultImages++
		case PartImage:
		default:
			return fmt.Errorf("unknown part kind %q", p.Kind)
		}
		if p.FunctionCallID != "" {
			if seenID != "" && seenID != p.FunctionCallID {
				return fmt.Errorf("message carries conflicting function call ids %q and %q", seenID, p.FunctionCallID)
			}
			seenID = p.FunctionCallID
		}
	}
	if texts > 1 {
		return fmt.Errorf("message has %d text parts, at most one is allowed", texts)
	}
	if calls > 1 {
		return fmt.Errorf("message has %d function_call parts, at most one is allowed", calls)
	}
	if m.Role == RoleFunction && (results > 1 || resultImages > 1) {
		return fmt.Errorf("function message has %d result and %d result image parts, at most one of each is allowed", results, resultImages)
	}
	return nil
}

// Text returns the message's single-string content: the sole text part for
// ordinary roles, the sole function_result part for function-role messages.
// Returns "" when no qualifying part exists. More than one qualifying part
// is an invariant violation and panics.
func (m Message) Text() string {
	if m.Role == RoleFunction {
		var out string
		found := 0
		for _, p := range m.Parts {
			if p.Kind == PartFunctionResult {
				out = p.Text
				found++
			}
		}
		if found > 1 {
			panic("llm: function message has multiple function_result parts")
		}
		return out
	}
	var out string
	found := 0
	for _, p := range m.Parts {
		if p.Kind == PartText {
			out = p.Text
			found++
		}
	}
	if found > 1 {
		panic("llm: message has multiple text parts")
	}
	return out
}

// SetText replaces the content of the message's existing text part.
// It is an error to set text on a function-role message or on a message
// that has no text part.
func (m *Message) SetText(text string) error {
	if m.Role == RoleFunction {
		return fmt.Errorf("function messages cannot have text content set")
	}
	idx := -1
	for i, p := range m.Parts {
		if p.Kind == PartText {
			if idx >= 0 {
				return fmt.Errorf("message has multiple text parts")
			}
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("message has no text part")
	}
	m.Parts[idx].Text = text
	return nil
}

// FunctionCall returns the message's sole function call, or nil. More than
// one call part is an invariant violation and panics.
func (m Message) FunctionCall() *FunctionCall {
	var out *FunctionCall
	found := 0
	for _, p := range m.Parts {
		if p.Kind == PartFunctionCall {
			out = p.FunctionCall
			found++
		}
	}
	if found > 1 {
		panic("llm: message has multiple function_call parts")
	}
	return out
}

// FunctionCallID returns the call id shared by the message's call or result
// parts, or "". Conflicting ids across parts panic.
func (m Message) FunctionCallID() string {
	out := ""
	for _, p := range m.Parts {
		switch p.Kind {
		case PartFunctionCall, PartFunctionResult, PartFunctionResultImage:
			if p.FunctionCallID == "" {
				continue
			}
			if out != "" && out != p.FunctionCallID {
				panic("llm: message carries conflicting function call ids")
			}
			out = p.FunctionCallID
		}
	}
	return out
}

// ImageContent returns the message's sole image (plain or result image), or
// nil. More than one image part is an invariant violation and panics.
func (m Message) ImageContent() *Image {
	var out *Image
	found := 0
	for _, p := range m.Parts {
		if (p.Kind == PartImage || p.Kind == PartFunctionResultImage) && p.Image != nil {
			out = p.Image
			found++
		}
	}
	if found > 1 {
		panic("llm: message has multiple image parts")
	}
	return out
}

// ToJSON marshals a message to JSON for debugging/logging purposes.
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToolSpec represents a tool definition that can be provided to an LLM.
type ToolSpec struct {
	Name        string
	Description string
	Schema      ToolSchema
}

// ToolSchema represents the JSON schema for a tool's input parameters.
type ToolSchema struct {
	Type        string
	Properties  map[string]interface{}
	Required    []string
	ExtraFields map[string]interface{} // For any additional schema fields
}

// AsMap flattens the schema into the generic JSON-Schema object shape that
// every vendor consumes.
func (s ToolSchema) AsMap() map[string]interface{} {
	out := map[string]interface{}{
		"type":       s.Type,
		"properties": map[string]interface{}{},
	}
	if s.Type == "" {
		out["type"] = "object"
	}
	if s.Properties != nil {
		out["properties"] = s.Properties
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	for k, v := range s.ExtraFields {
		out[k] = v
	}
	return out
}

// Request represents a complete model round-trip request. Adapters decide
// how each field maps onto the vendor wire shape.
type Request struct {
	Model       string
	Instruction string    // System prompt, placed per vendor convention.
	Context     string    // Free text injected into the first user turn.
	ToolStates  string    // Tool-states block, injected as system-level context.
	Examples    []Message // Few-shot prefix, never part of the history.
	Messages    []Message // The conversation history.
	Tools       []ToolSpec
	MaxTokens   int64
	Temperature *float64 // Optional temperature override.
}

// ConversationMessages returns the turn sequence an adapter should
// serialize: examples, then history with Context injected into the first
// history turn. Injection happens on a copy; the history itself is never
// modified, so repeated requests do not accumulate context prefixes.
func (r *Request) ConversationMessages() []Message {
	msgs := make([]Message, 0, len(r.Examples)+len(r.Messages))
	msgs = append(msgs, r.Examples...)
	if r.Context == "" || len(r.Messages) == 0 {
		return append(msgs, r.Messages...)
	}

	first := r.Messages[0]
	parts := make([]Part, len(first.Parts))
	copy(parts, first.Parts)
	injected := false
	for i, p := range parts {
		if p.Kind == PartText {
			parts[i].Text = r.Context + "\n" + p.Text
			injected = true
			break
		}
	}
	if !injected {
		parts = append([]Part{TextPart(r.Context)}, parts...)
	}
	first.Parts = parts

	msgs = append(msgs, first)
	return append(msgs, r.Messages[1:]...)
}

// Response represents a complete model round-trip response: exactly one new
// assistant message plus usage accounting.
type Response struct {
	Message    Message
	Usage      *Usage
	StopReason string
}

// Usage represents token usage information from a model response.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	// Prompt-cache accounting, for providers that report it.
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}
