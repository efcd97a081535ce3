package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/parleyhq/parley/llm"
)

var roleColors = map[llm.Role]func(a ...interface{}) string{
	llm.RoleUser:      color.New(color.FgGreen, color.Bold).SprintFunc(),
	llm.RoleAssistant: color.New(color.FgCyan, color.Bold).SprintFunc(),
	llm.RoleFunction:  color.New(color.FgYellow).SprintFunc(),
	llm.RoleSystem:    color.New(color.FgMagenta).SprintFunc(),
}

// Terminal writes conversation turns to a terminal with colored role
// headers. Images render inline on terminals that support the iTerm2
// escape sequence; elsewhere they land in TempDir and print as file://
// links.
type Terminal struct {
	Out          io.Writer
	InlineImages bool
	TempDir      string
}

// NewTerminal returns a renderer for out. Inline images are enabled when
// TERM_PROGRAM reports iTerm2.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		Out:          out,
		InlineImages: os.Getenv("TERM_PROGRAM") == "iTerm.app",
		TempDir:      os.TempDir(),
	}
}

// Render writes one message to the terminal. The whole turn is built up
// front and written once so concurrent writers do not interleave.
func (t *Terminal) Render(msg llm.Message) error {
	var b strings.Builder
	header := fmt.Sprintf("## %s", msg.Role)
	if paint, ok := roleColors[msg.Role]; ok {
		header = paint(header)
	}
	b.WriteString(header)
	b.WriteByte('\n')

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
		case llm.PartFunctionResultImage, llm.PartImage:
			if p.Image == nil {
				continue
			}
			label := "Image"
			if p.Kind == llm.PartFunctionResultImage {
				label = "Result image"
			}
			if t.InlineImages {
				fmt.Fprintf(&b, "> %s:\n\x1b]1337;File=inline=1;width=auto;preserveAspectRatio=1:%s\x07\n", label, p.Image.Base64())
			} else {
				path, err := t.writeImageFile(p.Image)
				if err != nil {
					return fmt.Errorf("writing image file: %w", err)
				}
				fmt.Fprintf(&b, "> %s: file://%s\n", label, path)
			}
		}
	}

	_, err := io.WriteString(t.Out, b.String())
	return err
}

func (t *Terminal) writeImageFile(img *llm.Image) (string, error) {
	ext := strings.TrimPrefix(img.MIMEType, "image/")
	if ext == "" || ext == img.MIMEType {
		ext = "png"
	}
	path := filepath.Join(t.TempDir, fmt.Sprintf("parley_image_%s.%s", uuid.NewString()[:8], ext))
	if err := os.WriteFile(path, img.Data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
