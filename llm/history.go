package llm

import "fmt"

// InsertMissingResults returns a copy of the turn sequence where every
// assistant function call is answered: wherever an assistant turn carries a
// call and the next turn is not a function turn, a synthetic empty-result
// function turn is inserted. Vendors reject histories with unanswered calls,
// which happen when tool dispatch was skipped or a session was cut short.
// The pass is idempotent.
func InsertMissingResults(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for i, m := range msgs {
		out = append(out, m)
		if m.Role != RoleAssistant {
			continue
		}
		call := m.FunctionCall()
		if call == nil {
			continue
		}
		if i+1 < len(msgs) && msgs[i+1].Role == RoleFunction {
			continue
		}
		out = append(out, Message{
			Role:  RoleFunction,
			Name:  call.Name,
			Parts: []Part{FunctionResultPart(m.FunctionCallID(), "")},
		})
	}
	return out
}

// EnsureCallIDs returns a copy of the turn sequence where every function
// call part carries a non-empty id and every result part inherits the id of
// the call it answers. Ids are empty on template-built example turns;
// vendors that correlate calls and results by id need them filled before
// serialization.
func EnsureCallIDs(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	lastID := ""
	for i, m := range msgs {
		parts := make([]Part, len(m.Parts))
		copy(parts, m.Parts)
		for j, p := range parts {
			switch p.Kind {
			case PartFunctionCall:
				if p.FunctionCallID == "" {
					parts[j].FunctionCallID = fmt.Sprintf("call_%d", i)
				}
				lastID = parts[j].FunctionCallID
			case PartFunctionResult, PartFunctionResultImage:
				if p.FunctionCallID == "" && lastID != "" {
					parts[j].FunctionCallID = lastID
				}
			}
		}
		m.Parts = parts
		out[i] = m
	}
	return out
}

// MergeTurns collapses consecutive turns that serialize to the same vendor
// role into one turn with the concatenated part list. roleOf maps a message
// to its serialized role (e.g. function results become user turns for
// vendors that require strict role alternation). Merged turns are transient
// serialization inputs; they intentionally bypass the one-text-part rule
// that history messages obey.
func MergeTurns(msgs []Message, roleOf func(Message) Role) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		role := roleOf(m)
		if n := len(out); n > 0 && roleOf(out[n-1]) == role {
			prev := out[n-1]
			parts := make([]Part, 0, len(prev.Parts)+len(m.Parts))
			parts = append(parts, prev.Parts...)
			parts = append(parts, m.Parts...)
			prev.Parts = parts
			out[n-1] = prev
			continue
		}
		// Copy so appends never alias the caller's slice.
		merged := m
		merged.Parts = append([]Part(nil), m.Parts...)
		out = append(out, merged)
	}
	return out
}
