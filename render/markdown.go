// Package render formats conversation turns for human eyes: markdown
// documents and colored terminal output with optional inline images.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/parleyhq/parley/llm"
)

// Markdown renders one message as a markdown section: a "## role" heading,
// text content verbatim, calls as "> name(key=value, …)" and results as
// "> Result: …" quote lines.
func Markdown(msg llm.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n", msg.Role)
	for _, p := range msg.Parts {
		switch p.Kind {
		case llm.PartText:
			if p.Text != "" {
				b.WriteString(p.Text)
				b.WriteByte('\n')
			}
		case llm.PartFunctionCall:
			if p.FunctionCall != nil {
				fmt.Fprintf(&b, "> %s(%s)\n", p.FunctionCall.Name, FormatArgs(p.FunctionCall.Arguments))
			}
		case llm.PartFunctionResult:
			fmt.Fprintf(&b, "> Result: %s\n", p.Text)
		case llm.PartFunctionResultImage:
			if p.Image != nil {
				fmt.Fprintf(&b, "> Result image: ![Image](%s)\n", p.Image.DataURL())
			}
		case llm.PartImage:
			if p.Image != nil {
				fmt.Fprintf(&b, "> Image: ![Image](%s)\n", p.Image.DataURL())
			}
		}
	}
	return b.String()
}

// Transcript renders a whole history as one markdown document, one section
// per turn separated by blank lines.
func Transcript(msgs []llm.Message) string {
	sections := make([]string, len(msgs))
	for i, msg := range msgs {
		sections[i] = Markdown(msg)
	}
	return strings.Join(sections, "\n")
}

// FormatArgs renders a call argument map as "key=value" pairs in key order.
// Go maps iterate randomly, so sorting keeps rendered calls stable.
func FormatArgs(args map[string]interface{}) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%v", k, args[k])
	}
	return strings.Join(pairs, ", ")
}
