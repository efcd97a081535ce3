package chat

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/parleyhq/parley/llm"
	"github.com/parleyhq/parley/tool"
)

// DefaultOutputLimit caps formatted tool results, in characters.
const DefaultOutputLimit = 4000

// ResultKind selects how a tool return value is rendered into the
// function-role message fed back to the model.
type ResultKind int

const (
	ResultText ResultKind = iota
	ResultScalar
	ResultTable
	ResultJSON
	ResultImage
	ResultTool
)

// Result is an explicitly tagged tool return value. Handlers may return one
// (or a pointer to one) to pick the rendering; any other return value is
// classified by type instead.
type Result struct {
	Kind  ResultKind
	Text  string
	Table []map[string]any
	Value any
	Image *llm.Image
	Tool  tool.Tool
}

// TextResult renders verbatim, capped at the output limit.
func TextResult(text string) *Result {
	return &Result{Kind: ResultText, Text: text}
}

// TableResult renders rows as a CSV block with a rows-displayed marker when
// capped.
func TableResult(rows []map[string]any) *Result {
	return &Result{Kind: ResultTable, Table: rows}
}

// JSONResult renders the value as a JSON document, capped.
func JSONResult(value any) *Result {
	return &Result{Kind: ResultJSON, Value: value}
}

// ImageResult renders as image content on the function turn.
func ImageResult(img *llm.Image) *Result {
	return &Result{Kind: ResultImage, Image: img}
}

// NestedToolResult registers the value as a live tool; the rendered text
// names its generated id so the model can address it in later turns.
func NestedToolResult(t tool.Tool) *Result {
	return &Result{Kind: ResultTool, Tool: t}
}

// resultMessage converts whatever a dispatched function returned into the
// next function-role message. An llm.Message return bypasses formatting.
func (c *Chat) resultMessage(name, callID string, value any) llm.Message {
	switch v := value.(type) {
	case llm.Message:
		return v
	case *llm.Message:
		return *v
	case Result:
		return c.renderResult(name, callID, v)
	case *Result:
		return c.renderResult(name, callID, *v)
	default:
		return c.renderResult(name, callID, c.classify(value))
	}
}

// classify maps an untyped return value onto a Result. Type sniffing is the
// interop fallback; handlers wanting control return a Result themselves.
func (c *Chat) classify(value any) Result {
	switch v := value.(type) {
	case nil:
		return Result{Kind: ResultText}
	case string:
		return Result{Kind: ResultText, Text: v}
	case []map[string]any:
		return Result{Kind: ResultTable, Table: v}
	case map[string]any:
		return Result{Kind: ResultJSON, Value: v}
	case []byte:
		img, err := llm.DetectImage(v)
		if err != nil {
			return Result{Kind: ResultText, Text: dispatchErrorText(llm.NewInvalidRequestError("returned bytes are not a valid image", err))}
		}
		return Result{Kind: ResultImage, Image: img}
	case llm.Image:
		return Result{Kind: ResultImage, Image: &v}
	case *llm.Image:
		return Result{Kind: ResultImage, Image: v}
	case tool.Tool:
		return Result{Kind: ResultTool, Tool: v}
	case []string:
		if len(v) == 0 {
			return Result{Kind: ResultText, Text: "[]"}
		}
		return Result{Kind: ResultText, Text: strings.Join(v, "\n")}
	case []any:
		if len(v) == 0 {
			return Result{Kind: ResultText, Text: "[]"}
		}
		return Result{Kind: ResultText, Text: c.joinItems(v)}
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return Result{Kind: ResultScalar, Text: fmt.Sprint(v)}
	default:
		return Result{Kind: ResultScalar, Text: fmt.Sprintf("%v", value)}
	}
}

// joinItems renders a mixed slice one line per item. Tool-capable items are
// registered and replaced by a reference to their id.
func (c *Chat) joinItems(items []any) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			lines = append(lines, v)
		case tool.Tool:
			id := c.registry.RegisterTool(v, "")
			lines = append(lines, "Added tool: "+id)
		default:
			lines = append(lines, fmt.Sprint(v))
		}
	}
	return strings.Join(lines, "\n")
}

func (c *Chat) renderResult(name, callID string, r Result) llm.Message {
	var text string
	switch r.Kind {
	case ResultText:
		text = capText(r.Text, c.outputLimit)
	case ResultScalar:
		text = r.Text
	case ResultTable:
		text = csvDumps(r.Table, c.outputLimit)
	case ResultJSON:
		raw, err := json.Marshal(r.Value)
		if err != nil {
			text = capText(fmt.Sprintf("%v", r.Value), c.outputLimit)
		} else {
			text = capText(string(raw), c.outputLimit)
		}
	case ResultImage:
		if r.Image == nil {
			return llm.NewFunctionResultMessage(name, callID, "")
		}
		return llm.NewFunctionResultImageMessage(name, callID, r.Text, r.Image)
	case ResultTool:
		id := c.registry.RegisterTool(r.Tool, "")
		text = "Added tool: " + id
	}
	return llm.NewFunctionResultMessage(name, callID, text)
}

// capText truncates to limit, appending a marker that names the original
// length so truncation is visible to the model.
func capText(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + fmt.Sprintf("\n... (%d characters)", len(s))
}

// csvDumps renders rows as a fenced CSV block. Rows beyond the character
// limit are dropped and noted; a single oversized row gets its fields
// truncated evenly instead.
func csvDumps(rows []map[string]any, limit int) string {
	if len(rows) == 0 {
		return "[]"
	}

	header := make([]string, 0, len(rows[0]))
	for key := range rows[0] {
		header = append(header, key)
	}
	sort.Strings(header)

	kept, ok := limitRows(rows, header, limit)
	if !ok {
		return "Error: too many fields to display data within the character limit."
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	_ = w.Write(header)
	for _, row := range kept {
		record := make([]string, len(header))
		for i, key := range header {
			record[i] = fmt.Sprint(row[key])
		}
		_ = w.Write(record)
	}
	w.Flush()

	out := fmt.Sprintf("```csv\n%s\n```", strings.TrimSpace(buf.String()))
	if len(kept) < len(rows) {
		out += fmt.Sprintf("\n\n... %d of %d rows displayed.", len(kept), len(rows))
	}
	return out
}

func limitRows(rows []map[string]any, header []string, limit int) ([]map[string]any, bool) {
	if limit <= 0 {
		return rows, true
	}

	kept := make([]map[string]any, 0, len(rows))
	total := 0
	for _, row := range rows {
		count := rowCharCount(row)
		if total+count > limit {
			if len(kept) == 0 {
				perField := (limit - total) / len(header)
				if perField < 1 {
					return nil, false
				}
				kept = append(kept, truncateFields(row, perField))
			}
			break
		}
		kept = append(kept, row)
		total += count
	}
	return kept, true
}

func rowCharCount(row map[string]any) int {
	count := len(row) - 1
	for key, value := range row {
		count += len(key) + len(fmt.Sprint(value))
	}
	return count
}

func truncateFields(row map[string]any, perField int) map[string]any {
	out := make(map[string]any, len(row))
	for key, value := range row {
		s := fmt.Sprint(value)
		if len(s) > perField {
			s = s[:perField]
		}
		out[key] = s
	}
	return out
}
