package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/chat"
	"github.com/parleyhq/parley/config"
	"github.com/parleyhq/parley/conversations"
	"github.com/parleyhq/parley/llm"
	parleylogger "github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/mcp"
	"github.com/parleyhq/parley/migrations"
	"github.com/parleyhq/parley/render"
	"github.com/parleyhq/parley/schedule"
	"github.com/parleyhq/parley/toolkit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command-line flags
	var (
		configFlag = flag.String("config", "", "Path to config file (default: ~/.parley/config.yaml)")
		provider   = flag.String("provider", "", "Model provider: anthropic, openai, gemini or ollama. Overrides config")
		model      = flag.String("model", "", "Model name. Overrides config")
		template   = flag.String("template", "", "Path to a prompt template file")
		prompt     = flag.String("prompt", "", "Run a single prompt and exit")
		every      = flag.String("every", "", "With --prompt, repeat it on a schedule (cron expression or duration)")
		tui        = flag.Bool("tui", false, "Start the full-screen terminal UI")
		themeFlag  = flag.String("theme", "", "TUI color theme: solarized, gruvbox or cyberpunk")
		resume     = flag.String("resume", "", "Resume a stored conversation by id")
		list       = flag.Bool("list", false, "List stored conversations and exit")
		remove     = flag.String("delete", "", "Delete a stored conversation by id and exit")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stderr")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
	)
	flag.Parse()

	// Validate that --logfile and --pretty are mutually exclusive
	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}
	if *every != "" && *prompt == "" {
		return fmt.Errorf("--every requires --prompt")
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if *provider != "" {
		cfg.Provider = *provider
	}
	if *model != "" {
		cfg.Model = *model
	}

	logPath := *logFile
	if logPath == "" {
		logPath = config.ExpandPath(cfg.LogFile)
	}
	logger, err := parleylogger.Init(logPath, cfg.LogLevel, *pretty)
	if err != nil {
		return err
	}

	logger.Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Str("config", configPath).
		Msg("parley starting")

	ctx := context.Background()

	// ---------------------------
	// Conversation store
	// ---------------------------

	var store *conversations.Store
	if cfg.History.Path != "" {
		historyPath := config.ExpandPath(cfg.History.Path)
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o750); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
		logger.Info().Str("path", historyPath).Msg("Opening conversation store")
		db, err := sql.Open("sqlite3", historyPath)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close() //nolint:errcheck // No remedy for db close errors
		if err := migrations.Run(db, logger); err != nil {
			return err
		}
		store = conversations.NewStore(db)
	}

	// ---------------------------
	// Maintenance modes
	// ---------------------------

	if *list {
		if store == nil {
			return fmt.Errorf("conversation history is not configured; set history.path in %s", configPath)
		}
		summaries, err := store.Conversations(ctx)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No stored conversations.")
			return nil
		}
		for _, s := range summaries {
			fmt.Printf("%s  %4d messages  last active %s\n", s.ID, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	}
	if *remove != "" {
		if store == nil {
			return fmt.Errorf("conversation history is not configured; set history.path in %s", configPath)
		}
		if err := store.Delete(ctx, *remove); err != nil {
			return err
		}
		fmt.Printf("Deleted conversation %s.\n", *remove)
		return nil
	}

	// ---------------------------
	// Model client + MCP servers
	// ---------------------------

	client, err := chat.NewClient(cfg.ClientConfig(), logger)
	if err != nil {
		return err
	}

	sessions := startMCP(cfg, logger)
	defer func() {
		for _, s := range sessions {
			_ = s.Close()
		}
	}()

	conversationID := *resume
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	// buildChat assembles one conversation: template or blank, stored history,
	// builtin tools, MCP attachments. Scheduled mode calls it per firing so
	// every run starts from the thread as persisted, without respawning the
	// MCP servers.
	buildChat := func(ctx context.Context) (*chat.Chat, error) {
		opts := chat.Options{
			Name:            "parley",
			MaxInteractions: cfg.Chat.MaxInteractions,
			OutputLimit:     cfg.Chat.OutputLimit,
			Logger:          &logger,
		}
		if store != nil {
			opts.Persister = store.Thread(conversationID)
		}

		var (
			c   *chat.Chat
			err error
		)
		if *template != "" {
			c, err = chat.NewFromTemplate(client, *template, opts)
		} else {
			c = chat.New(client, opts)
		}
		if err != nil {
			return nil, err
		}

		if store != nil {
			msgs, err := store.Messages(ctx, conversationID)
			if err != nil {
				return nil, fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
			}
			c.Load(msgs)
		}

		reg := c.Registry()
		reg.RegisterTool(toolkit.NewNotifier(logger), "desk")
		reg.RegisterTool(toolkit.NewHost(), "local")
		for _, s := range sessions {
			if err := s.Attach(ctx, reg); err != nil {
				logger.Error().Err(err).Msg("Failed to attach MCP server")
			}
		}
		return c, nil
	}

	// ---------------------------
	// Mode dispatch
	// ---------------------------

	if *prompt != "" && *every != "" {
		return runScheduled(buildChat, *prompt, *every, logger)
	}

	session, err := buildChat(ctx)
	if err != nil {
		return err
	}

	switch {
	case *prompt != "":
		out := render.NewTerminal(os.Stdout)
		conv := session.Run(*prompt)
		for conv.Next(ctx) {
			if err := out.Render(*conv.Message()); err != nil {
				return err
			}
		}
		return conv.Err()

	case *tui:
		modelName := cfg.Model
		if modelName == "" {
			modelName = llm.DefaultModel(cfg.Provider)
		}
		themeName := *themeFlag
		if themeName == "" {
			themeName = os.Getenv("PARLEY_THEME")
		}
		if themeName == "" {
			themeName = "solarized"
		}
		title := fmt.Sprintf("parley (%s/%s)", cfg.Provider, modelName)
		return runTUI(session, title, themeName, logger)

	default:
		replID := ""
		if store != nil {
			replID = conversationID
		}
		return runREPL(session, cfg, replID, logger)
	}
}

// runScheduled repeats one prompt on a schedule until interrupted.
func runScheduled(factory schedule.Factory, prompt, spec string, logger zerolog.Logger) error {
	runner := schedule.NewRunner(factory, 0, logger)
	if err := runner.Add(schedule.Job{Name: "prompt", Spec: spec, Prompt: prompt}); err != nil {
		return err
	}
	runner.Start()

	if next, ok := runner.Next("prompt"); ok {
		fmt.Printf("Scheduled %q; next run %s. Press Ctrl-C to stop.\n", spec, next.Format(time.RFC3339))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	<-runner.Stop().Done()
	logger.Info().Msg("parley shutdown complete")
	return nil
}

// startMCP brings up every configured MCP server. Failures are logged and
// skipped so one broken server does not take the whole session down.
func startMCP(cfg *config.Config, logger zerolog.Logger) []*mcp.Session {
	if len(cfg.MCPServers) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var sessions []*mcp.Session
	for name, serverConfig := range cfg.MCPServers {
		if serverConfig == nil {
			logger.Warn().Str("name", name).Msg("MCP server has nil config, skipping")
			continue
		}

		var (
			session *mcp.Session
			err     error
		)
		switch {
		case serverConfig.Command != "":
			session, err = mcp.NewStdioSession(logger, serverConfig.Command, serverConfig.Env, serverConfig.Args)
		case serverConfig.URL != "":
			session, err = mcp.NewHTTPSession(logger, serverConfig.URL)
		default:
			logger.Warn().Str("name", name).Msg("MCP server has neither command nor url, skipping")
			continue
		}
		if err != nil {
			logger.Error().Str("name", name).Err(err).Msg("Failed to create MCP session")
			continue
		}

		if err := session.Start(ctx); err != nil {
			logger.Error().Str("name", name).Err(err).Msg("Failed to start MCP session")
			_ = session.Close()
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions
}
