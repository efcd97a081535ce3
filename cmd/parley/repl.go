package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/chat"
	"github.com/parleyhq/parley/config"
	"github.com/parleyhq/parley/llm"
	"github.com/parleyhq/parley/render"
)

// runREPL reads prompts from stdin line by line and prints every surfaced
// turn. It returns on EOF or an exit command. conversationID may be empty
// when persistence is off.
func runREPL(c *chat.Chat, cfg *config.Config, conversationID string, logger zerolog.Logger) error {
	model := cfg.Model
	if model == "" {
		model = llm.DefaultModel(cfg.Provider)
	}
	fmt.Printf("parley %s/%s\n", cfg.Provider, model)
	if conversationID != "" {
		fmt.Printf("conversation %s\n", conversationID)
	}
	fmt.Println("Type /help for commands, exit to quit.")
	fmt.Println()

	out := render.NewTerminal(os.Stdout)
	ctx := context.Background()

	scanner := bufio.NewScanner(os.Stdin)
	// Default token limit is 64KB; pasted prompts can be bigger.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			return nil
		case strings.HasPrefix(line, "/"):
			replCommand(c, out, strings.ToLower(line))
			continue
		}

		conv := c.Run(line)
		for conv.Next(ctx) {
			msg := conv.Message()
			if msg.Role == llm.RoleUser {
				// The user just typed it.
				continue
			}
			if err := out.Render(*msg); err != nil {
				logger.Warn().Err(err).Msg("Failed to render message")
			}
		}
		if err := conv.Err(); err != nil {
			fmt.Println(color.RedString("Error: %v", err))
		}
		fmt.Println()
	}
}

func replCommand(c *chat.Chat, out *render.Terminal, cmd string) {
	switch cmd {
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /tools    list registered functions")
		fmt.Println("  /history  print the conversation so far")
		fmt.Println("  /reset    clear the conversation history")
		fmt.Println("  exit      leave")
	case "/reset":
		c.Load(nil)
		fmt.Println("Context cleared.")
	case "/tools":
		specs := c.Registry().Specs()
		if len(specs) == 0 {
			fmt.Println("No functions registered.")
			return
		}
		for _, spec := range specs {
			fmt.Printf("  %s  %s\n", color.YellowString(spec.Name), spec.Description)
		}
	case "/history":
		msgs := c.Messages()
		if len(msgs) == 0 {
			fmt.Println("No messages yet.")
			return
		}
		for _, msg := range msgs {
			_ = out.Render(msg)
		}
	default:
		fmt.Println(color.RedString("Unknown command: %s", cmd))
		fmt.Println("Available commands: /help, /tools, /history, /reset, exit")
	}
}
