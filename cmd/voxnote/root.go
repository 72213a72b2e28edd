package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jwulff/voxnote/internal/app"
	"github.com/jwulff/voxnote/internal/config"
	"github.com/jwulff/voxnote/internal/daemon"
	"github.com/jwulff/voxnote/internal/db"
	"github.com/jwulff/voxnote/internal/note"
	"github.com/jwulff/voxnote/internal/session"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	verbose    bool
	configFile string
	cfg        *config.Config
)

// rootCmd starts the TUI when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voxnote",
	Short: "Text and voice notes in the terminal",
	Long: `voxnote keeps typed notes and transcribed voice recordings in a local
SQLite database. Recording, playback and speech recognition are provided by
voxnote-daemon; text notes work without it.`,
	Args: cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		c, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			fatal("Error loading configuration", err)
		}
		cfg = c
		slog.SetDefault(newLogger(os.Stderr))
	},
	Run: runTUI,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $HOME/.config/voxnote/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory holding the database and recordings")
	rootCmd.PersistentFlags().String("socket", "", "voxnote-daemon socket path")
	rootCmd.PersistentFlags().String("locale", "", "Speech recognition locale")
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore opens the note database in the configured data directory.
func openStore() *db.Store {
	store, err := db.Open(db.PathIn(cfg.DataDir))
	if err != nil {
		fatal("Error opening note store", err)
	}
	return store
}

func runTUI(cmd *cobra.Command, args []string) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		fatal("Error creating log directory", err)
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fatal("Error opening log file", err)
	}
	defer logFile.Close()

	// The TUI owns the terminal.
	logger := newLogger(logFile)
	slog.SetDefault(logger)

	store := openStore()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := db.Watch(ctx, db.PathIn(cfg.DataDir), logger)
	if err != nil {
		logger.Warn("store watcher disabled", "err", err)
		changes = nil
	}

	capture := daemon.NewCapture(cfg.SocketPath, cfg.Locale, logger)
	defer capture.Detach()

	coord := session.New(capture, capture.Transcriber(), store, cfg.AudioDir(), session.WithLogger(logger))
	model := app.New(note.NewService(store), coord, capture,
		app.WithLogger(logger),
		app.WithStoreChanges(changes),
	)

	logger.Info("starting tui", "data_dir", cfg.DataDir, "socket", cfg.SocketPath)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fatal("Error running TUI", err)
	}
}
