package main

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/chat"
	"github.com/parleyhq/parley/llm"
	"github.com/parleyhq/parley/render"
)

const tuiKeyHelp = "[gray]Alt+Enter: send | Enter: new line | Tab: switch focus | /reset /tools | exit[white]"

type tuiSession struct {
	app     *tview.Application
	display *tview.TextView
	status  *tview.TextView
	input   *tview.TextArea
	chat    *chat.Chat
	logger  zerolog.Logger
}

// runTUI starts the full-screen terminal session. It blocks until the user
// leaves with exit, Esc or Ctrl-C.
func runTUI(c *chat.Chat, title, themeName string, logger zerolog.Logger) error {
	if err := applyTheme(themeName); err != nil {
		return err
	}

	s := &tuiSession{
		app:    tview.NewApplication(),
		chat:   c,
		logger: logger.With().Str("component", "tui").Logger(),
	}

	s.display = tview.NewTextView()
	s.display.SetDynamicColors(true).
		SetWordWrap(true).
		SetBorder(true).
		SetTitle(title)
	s.display.SetScrollable(true)

	s.status = tview.NewTextView()
	s.status.SetDynamicColors(true)
	s.status.SetText(tuiKeyHelp)

	s.input = tview.NewTextArea()
	s.input.SetLabel("You: ").
		SetBorder(true).
		SetTitle("Message")

	// Arrow key scrolling on the transcript; Tab hops back to the input.
	s.display.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyUp:
			row, col := s.display.GetScrollOffset()
			if row > 0 {
				s.display.ScrollTo(row-1, col)
			}
			return nil
		case tcell.KeyDown:
			row, col := s.display.GetScrollOffset()
			s.display.ScrollTo(row+1, col)
			return nil
		case tcell.KeyPgUp:
			row, col := s.display.GetScrollOffset()
			_, _, _, height := s.display.GetInnerRect()
			newRow := row - height
			if newRow < 0 {
				newRow = 0
			}
			s.display.ScrollTo(newRow, col)
			return nil
		case tcell.KeyPgDn:
			row, col := s.display.GetScrollOffset()
			_, _, _, height := s.display.GetInnerRect()
			s.display.ScrollTo(row+height, col)
			return nil
		case tcell.KeyHome:
			_, col := s.display.GetScrollOffset()
			s.display.ScrollTo(0, col)
			return nil
		case tcell.KeyEnd:
			s.display.ScrollToEnd()
			return nil
		case tcell.KeyTab:
			s.app.SetFocus(s.input)
			return nil
		case tcell.KeyEsc:
			s.app.Stop()
			return nil
		}
		return ev
	})

	s.input.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyEnter:
			if ev.Modifiers()&tcell.ModAlt != 0 {
				s.send()
				return nil
			}
			// Regular Enter creates a new line.
			return ev
		case tcell.KeyTab:
			s.app.SetFocus(s.display)
			return nil
		case tcell.KeyEsc:
			s.app.Stop()
			return nil
		}
		return ev
	})

	if history := c.Messages(); len(history) == 0 {
		fmt.Fprint(s.display, "[gray]Start a conversation...[white]\n\n")
	} else {
		for _, msg := range history {
			fmt.Fprint(s.display, tuiMessage(msg))
		}
	}
	s.display.ScrollToEnd()

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.display, 0, 1, false).
		AddItem(s.status, 1, 0, false).
		AddItem(s.input, 7, 0, true)

	return s.app.SetRoot(layout, true).SetFocus(s.input).Run()
}

// send validates the typed message and hands the round trip to a background
// goroutine. It runs on the UI thread and must return immediately.
func (s *tuiSession) send() {
	message := strings.TrimSpace(s.input.GetText())
	if message == "" {
		return
	}

	lines := strings.Split(message, "\n")
	if len(lines) == 1 && strings.EqualFold(lines[0], "exit") {
		s.app.Stop()
		return
	}
	if len(lines) == 1 && strings.HasPrefix(lines[0], "/") {
		s.input.SetText("", true)
		s.command(strings.ToLower(lines[0]))
		return
	}

	s.input.SetText("", true)
	go s.converse(message)
}

func (s *tuiSession) command(cmd string) {
	switch cmd {
	case "/reset":
		s.chat.Load(nil)
		s.app.QueueUpdateDraw(func() {
			s.display.Clear()
			fmt.Fprint(s.display, "[yellow]Context cleared.[white]\n\n")
		})
	case "/tools":
		specs := s.chat.Registry().Specs()
		s.app.QueueUpdateDraw(func() {
			if len(specs) == 0 {
				fmt.Fprint(s.display, "[gray]No functions registered.[white]\n\n")
			} else {
				for _, spec := range specs {
					fmt.Fprintf(s.display, "[yellow]%s[white]  %s\n", spec.Name, tview.Escape(spec.Description))
				}
				fmt.Fprint(s.display, "\n")
			}
			s.display.ScrollToEnd()
		})
	default:
		s.app.QueueUpdateDraw(func() {
			fmt.Fprintf(s.display, "[red]Unknown command: %s[white]\n", tview.Escape(cmd))
			fmt.Fprint(s.display, "[gray]Available commands: /reset, /tools, exit[white]\n\n")
			s.display.ScrollToEnd()
		})
	}
}

// converse runs one conversation loop in the background, surfacing each turn
// into the transcript as it lands.
func (s *tuiSession) converse(message string) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			s.logger.Error().Interface("panic", r).Msg("Panic during conversation")
			s.app.QueueUpdateDraw(func() {
				fmt.Fprintf(s.display, "\n[red]PANIC: %v[white]\n%s\n", r, tview.Escape(stack))
				s.status.SetText(tuiKeyHelp)
				s.display.ScrollToEnd()
			})
		}
	}()

	s.app.QueueUpdateDraw(func() {
		fmt.Fprintf(s.display, "[cyan]You[white]: %s\n\n", tview.Escape(message))
		s.status.SetText("[yellow]parley is thinking...[white]")
		s.display.ScrollToEnd()
	})

	// RunMessage instead of Run: the user turn is already on screen.
	msg := llm.NewTextMessage(llm.RoleUser, message)
	conv := s.chat.RunMessage(&msg)
	ctx := context.Background()
	for conv.Next(ctx) {
		surfaced := *conv.Message()
		s.app.QueueUpdateDraw(func() {
			fmt.Fprint(s.display, tuiMessage(surfaced))
			s.display.ScrollToEnd()
		})
	}

	s.app.QueueUpdateDraw(func() {
		if err := conv.Err(); err != nil {
			fmt.Fprintf(s.display, "[red]Error[white]: %v\n\n", err)
		}
		s.status.SetText(tuiKeyHelp)
		s.display.ScrollToEnd()
	})
}

// tuiMessage renders one message as tview-tagged text. Message content is
// escaped so bracketed text is not read as color tags.
func tuiMessage(msg llm.Message) string {
	var b strings.Builder
	for _, p := range msg.Parts {
		switch p.Kind {
		case llm.PartText:
			if p.Text == "" {
				continue
			}
			text := tview.Escape(p.Text)
			switch msg.Role {
			case llm.RoleUser:
				fmt.Fprintf(&b, "[cyan]You[white]: %s\n\n", text)
			case llm.RoleAssistant:
				fmt.Fprintf(&b, "[green]parley[white]: %s\n\n", text)
			default:
				fmt.Fprintf(&b, "[gray]%s[white]: %s\n\n", msg.Role, text)
			}
		case llm.PartFunctionCall:
			if p.FunctionCall != nil {
				args := render.FormatArgs(p.FunctionCall.Arguments)
				fmt.Fprintf(&b, "[yellow]> %s(%s)[white]\n\n", p.FunctionCall.Name, tview.Escape(args))
			}
		case llm.PartFunctionResult:
			if p.Text != "" {
				fmt.Fprintf(&b, "[gray]> Result: %s[white]\n\n", tview.Escape(p.Text))
			}
		case llm.PartImage, llm.PartFunctionResultImage:
			if p.Image != nil {
				fmt.Fprintf(&b, "[gray]> Image attached (%s)[white]\n\n", p.Image.MIMEType)
			}
		}
	}
	return b.String()
}
