// Package prompt parses chat template files: a mini-language that seeds a
// conversation's instruction and few-shot examples.
//
// A template is a sequence of "## <role>" sections. A leading "## system"
// section becomes the instruction; the rest become example messages. Lines
// prefixed with ">" at the end of a section are a function-call expression:
//
//	## system
//	You are a terse calculator.
//
//	## user
//	add 1 and 2
//
//	## assistant
//	> add(a="1", b="2")
//
//	## function
//	3
//
//	## assistant
//	3
package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/parleyhq/parley/llm"
)

// Template is the parsed form of a chat template file.
type Template struct {
	Instruction string
	Examples    []llm.Message
}

// ParseFile reads and parses a template file.
func ParseFile(path string) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	tpl, err := Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", path, err)
	}
	return tpl, nil
}

type section struct {
	role string
	body string
}

// Parse parses template text into an instruction and example messages.
// Examples get ids "example_<n>"; a call and the function result that
// answers it share the call id of the calling turn.
func Parse(text string) (*Template, error) {
	chunks := strings.Split(text, "## ")[1:]

	tpl := &Template{}
	sections := make([]section, 0, len(chunks))
	for i, chunk := range chunks {
		role, body, found := strings.Cut(chunk, "\n")
		if !found {
			return nil, fmt.Errorf("section %d (%q) has no content", i, strings.TrimSpace(role))
		}
		role = strings.TrimSpace(role)
		body = strings.TrimSpace(body)

		if i == 0 && role == "system" {
			tpl.Instruction = body
			continue
		}
		sections = append(sections, section{role: role, body: body})
	}

	for idx, sec := range sections {
		role := llm.Role(strings.ToLower(sec.role))
		switch role {
		case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleFunction:
		default:
			return nil, fmt.Errorf("example %d has unknown role %q", idx, sec.role)
		}

		content, callText := splitCallLines(sec.body)
		id := fmt.Sprintf("example_%d", idx)

		var msg llm.Message
		switch {
		case role == llm.RoleFunction:
			if callText != "" {
				return nil, fmt.Errorf("function example %d cannot carry a call", idx)
			}
			if idx == 0 || tpl.Examples[idx-1].FunctionCall() == nil {
				return nil, fmt.Errorf("function example %d has no preceding call", idx)
			}
			msg = llm.NewFunctionResultMessage("example_function", fmt.Sprintf("example_%d", idx-1), sec.body)
		case callText != "":
			call, err := ParseCall(callText)
			if err != nil {
				return nil, fmt.Errorf("example %d: %w", idx, err)
			}
			parts := make([]llm.Part, 0, 2)
			if content != "" {
				parts = append(parts, llm.TextPart(content))
			}
			parts = append(parts, llm.FunctionCallPart(call, id))
			msg = llm.NewMessage(role, parts...)
		default:
			msg = llm.NewTextMessage(role, sec.body)
		}

		msg.Name = "example_" + string(role)
		msg.ID = id
		if err := msg.Validate(); err != nil {
			return nil, fmt.Errorf("example %d: %w", idx, err)
		}
		tpl.Examples = append(tpl.Examples, msg)
	}

	return tpl, nil
}

// splitCallLines separates a section body into plain content and the
// trailing ">"-prefixed call expression. Once a ">" line is seen, every
// following line belongs to the call, so fenced blocks inside arguments
// keep their continuation lines.
func splitCallLines(body string) (content, callText string) {
	var contentLines, callLines []string
	inCall := false
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, ">"):
			inCall = true
			callLines = append(callLines, strings.TrimSpace(line[1:]))
		case inCall:
			callLines = append(callLines, line)
		default:
			contentLines = append(contentLines, line)
		}
	}
	return strings.Join(contentLines, "\n"), strings.Join(callLines, "\n")
}
