package chat

import (
	"github.com/parleyhq/parley/llm"
	"github.com/parleyhq/parley/prompt"
)

// NewFromTemplate builds a Chat seeded with a template file's instruction
// and example messages. The template overrides the Instruction and Examples
// fields of opts; everything else applies as in New.
func NewFromTemplate(client llm.Client, path string, opts Options) (*Chat, error) {
	tpl, err := prompt.ParseFile(path)
	if err != nil {
		return nil, err
	}
	opts.Instruction = tpl.Instruction
	opts.Examples = tpl.Examples
	return New(client, opts), nil
}
