package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/llm"
)

// ParseCall parses a template function-call expression of the form
// `name(key="value", items=["a"], opts={"k": "v"})`. Leading "> " markers
// are stripped, newlines collapse to spaces, and ```-fenced segments become
// string values (so multiline SQL or code can ride in an argument).
//
// Only string, list-of-string, and dict values survive parsing; other value
// kinds are skipped. A call that ends up with no arguments is an error.
func ParseCall(text string) (*llm.FunctionCall, error) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, ">") {
			if len(line) <= 2 {
				lines[i] = ""
			} else {
				lines[i] = line[2:]
			}
		}
	}
	joined := strings.Join(lines, " ")

	parts := strings.Split(joined, "```")
	if len(parts)%2 == 0 {
		return nil, errors.New("call has an unterminated ``` block")
	}
	for i := 1; i < len(parts); i += 2 {
		parts[i] = "'''" + parts[i] + "'''"
	}
	joined = strings.Join(parts, "")

	p := &callParser{src: joined}
	return p.parseCall()
}

type callParser struct {
	src string
	pos int
}

func (p *callParser) parseCall() (*llm.FunctionCall, error) {
	p.skipSpace()
	name := p.scanName()
	if name == "" {
		return nil, errors.New("text does not contain a valid function call")
	}
	p.skipSpace()
	if !p.consume('(') {
		return nil, errors.New("text does not contain a valid function call")
	}

	args := map[string]interface{}{}
	for {
		p.skipSpace()
		if p.consume(')') {
			break
		}
		key := p.scanIdent()
		if key == "" {
			return nil, fmt.Errorf("expected a parameter name at offset %d", p.pos)
		}
		p.skipSpace()
		if !p.consume('=') {
			return nil, fmt.Errorf("parameter %s is missing '='", key)
		}
		p.skipSpace()

		value, ok, err := p.parseValue()
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", key, err)
		}
		if ok {
			args[key] = value
		}

		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(')') {
			break
		}
		return nil, fmt.Errorf("expected ',' or ')' at offset %d", p.pos)
	}

	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unexpected trailing text %q", p.src[p.pos:])
	}
	if len(args) == 0 {
		return nil, errors.New("function call has no arguments")
	}
	return &llm.FunctionCall{Name: name, Arguments: args}, nil
}

// parseValue parses one argument value. ok is false for skipped kinds
// (numbers, identifiers) that the mini-language does not carry.
func (p *callParser) parseValue() (any, bool, error) {
	switch p.peek() {
	case '\'', '"':
		s, err := p.parseString()
		if err != nil {
			return nil, false, err
		}
		return s, true, nil
	case '[':
		list, err := p.parseList()
		if err != nil {
			return nil, false, err
		}
		return list, true, nil
	case '{':
		dict, err := p.parseDict()
		if err != nil {
			return nil, false, err
		}
		return dict, true, nil
	default:
		p.skipUntil(",)")
		return nil, false, nil
	}
}

func (p *callParser) parseList() ([]string, error) {
	p.pos++ // '['
	var out []string
	for {
		p.skipSpace()
		if p.consume(']') {
			return out, nil
		}
		if p.peek() != '\'' && p.peek() != '"' {
			return nil, fmt.Errorf("list elements must be strings (offset %d)", p.pos)
		}
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(']') {
			return out, nil
		}
		return nil, fmt.Errorf("expected ',' or ']' at offset %d", p.pos)
	}
}

func (p *callParser) parseDict() (map[string]string, error) {
	p.pos++ // '{'
	out := map[string]string{}
	for {
		p.skipSpace()
		if p.consume('}') {
			return out, nil
		}
		if p.peek() != '\'' && p.peek() != '"' {
			return nil, fmt.Errorf("dict keys must be strings (offset %d)", p.pos)
		}
		key, err := p.parseString()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if !p.consume(':') {
			return nil, fmt.Errorf("dict key %q is missing ':'", key)
		}
		p.skipSpace()
		if p.peek() == '\'' || p.peek() == '"' {
			value, err := p.parseString()
			if err != nil {
				return nil, err
			}
			out[key] = value
		} else {
			// Non-string values are dropped, same as the call level.
			p.skipUntil(",}")
		}
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume('}') {
			return out, nil
		}
		return nil, fmt.Errorf("expected ',' or '}' at offset %d", p.pos)
	}
}

func (p *callParser) parseString() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	triple := false
	if p.pos+1 < len(p.src) && p.src[p.pos] == quote && p.src[p.pos+1] == quote {
		triple = true
		p.pos += 2
	}

	var b strings.Builder
	for {
		if p.pos >= len(p.src) {
			return "", errors.New("unterminated string")
		}
		ch := p.src[p.pos]
		if ch == '\\' && p.pos+1 < len(p.src) {
			esc := p.src[p.pos+1]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteByte(esc)
			default:
				b.WriteByte('\\')
				b.WriteByte(esc)
			}
			p.pos += 2
			continue
		}
		if ch == quote {
			if !triple {
				p.pos++
				return b.String(), nil
			}
			if p.pos+2 < len(p.src) && p.src[p.pos+1] == quote && p.src[p.pos+2] == quote {
				p.pos += 3
				return b.String(), nil
			}
			// A lone quote char inside a triple-quoted string is content.
		}
		b.WriteByte(ch)
		p.pos++
	}
}

// skipUntil consumes a balanced run of input up to any terminator byte at
// depth zero.
func (p *callParser) skipUntil(terminators string) {
	depth := 0
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		switch {
		case ch == '\'' || ch == '"':
			_, _ = p.parseString()
			continue
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case ch == ')' || ch == ']' || ch == '}':
			if depth == 0 && strings.IndexByte(terminators, ch) >= 0 {
				return
			}
			depth--
		case depth == 0 && strings.IndexByte(terminators, ch) >= 0:
			return
		}
		p.pos++
	}
}

// scanName scans a function name. Dashes are allowed past the first char so
// namespaced tool methods ("Calculator-calc1__add") can appear in templates.
func (p *callParser) scanName() string {
	start := p.pos
	if p.pos < len(p.src) && isIdentStart(p.src[p.pos]) {
		p.pos++
		for p.pos < len(p.src) && (isIdentByte(p.src[p.pos]) || p.src[p.pos] == '-') {
			p.pos++
		}
	}
	return p.src[start:p.pos]
}

func (p *callParser) scanIdent() string {
	start := p.pos
	if p.pos < len(p.src) && isIdentStart(p.src[p.pos]) {
		p.pos++
		for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
			p.pos++
		}
	}
	return p.src[start:p.pos]
}

func isIdentStart(ch byte) bool {
	return ch == '_' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z')
}

func isIdentByte(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

func (p *callParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *callParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *callParser) consume(ch byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == ch {
		p.pos++
		return true
	}
	return false
}
