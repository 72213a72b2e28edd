package main

import (
	"log/slog"

	"github.com/jwulff/voxnote/internal/mcpserver"
	"github.com/jwulff/voxnote/internal/note"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve notes to MCP clients over stdio",
	Long: `mcp runs a Model Context Protocol server on stdin/stdout with the tools
list_notes, add_note and delete_note. Logs go to stderr.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		srv := mcpserver.New(note.NewService(store), version, slog.Default())
		if err := srv.ServeStdio(); err != nil {
			fatal("Error serving MCP", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
