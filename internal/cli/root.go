// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/studychat/studychat-tui/internal/config"
	"github.com/studychat/studychat-tui/internal/store"
	"github.com/studychat/studychat-tui/internal/stream"
	"github.com/studychat/studychat-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	flagConfig  string
	flagServer  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "studychat",
	Short: "Terminal client for streaming AI chat",
	Long: `studychat is a terminal client for a streaming AI chat backend.

Run it with no arguments to open the chat TUI. Conversations are saved
locally and survive restarts.

Quick Start:
  studychat                     # Open the chat TUI
  studychat sessions list       # List saved conversations
  studychat sessions export <id> --format md

Configuration lives at ~/.studychat/config.toml and can be overridden
with STUDYCHAT_* environment variables.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default ~/.studychat/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadConfig resolves the effective configuration for this invocation.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFromPath(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if flagServer != "" {
		cfg.Server.URL = flagServer
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openStore opens the SQLite-backed conversation store and hydrates it.
func openStore(cfg *config.Config) (*store.Store, error) {
	persister, err := store.NewSQLitePersister(cfg.Storage.DatabasePath, log.Default())
	if err != nil {
		return nil, fmt.Errorf("open conversation storage: %w", err)
	}

	st := store.New(persister, log.Default())
	if err := st.Load(); err != nil {
		persister.Close()
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	return st, nil
}

// runTUI starts the chat interface.
func openLogFile() (*os.File, error) {
	if err := config.EnsureDir(); err != nil {
		return nil, err
	}
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "studychat.log"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func runTUI() error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("studychat requires an interactive terminal; see 'studychat sessions' for scripted use")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The TUI owns stdout, so logs go to a file for the lifetime of
	// the program.
	logFile, err := openLogFile()
	if err != nil {
		return err
	}
	defer logFile.Close()
	log.SetOutput(logFile)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	client := stream.NewClient(cfg.Server.URL)
	m := chat.New(cfg, st, client, log.Default())

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Config edits apply live; a watcher failure only costs the reload.
	if w, err := watchConfig(p); err != nil {
		log.Warn("config reload disabled", "error", err)
	} else if w != nil {
		defer w.Close()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}

// watchConfig feeds config file changes into the running program.
func watchConfig(p *tea.Program) (*config.Watcher, error) {
	path := flagConfig
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			return nil, err
		}
	}

	w, err := config.NewWatcher(path,
		func(cfg *config.Config) {
			p.Send(chat.ConfigReloadedMsg{Config: cfg})
		},
		func(err error) {
			log.Warn("config reload failed", "error", err)
		},
	)
	if err != nil {
		return nil, err
	}
	if err := w.Watch(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}
