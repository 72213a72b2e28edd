package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwulff/voxnote/internal/note"
	"github.com/spf13/cobra"
)

var (
	listJSON  bool
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all notes, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		ctx := context.Background()
		notes, err := note.NewService(store).List(ctx)
		if err != nil {
			fatal("Error listing notes", err)
		}
		if listLimit > 0 && listLimit < len(notes) {
			notes = notes[:listLimit]
		}

		out := cmd.OutOrStdout()
		if listJSON {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(notes); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}

		for _, n := range notes {
			created := n.CreatedAt.Local().Format("2006-01-02 15:04")
			switch n.Kind {
			case note.KindAudio:
				fmt.Fprintf(out, "%s  %s  [audio] %s (%s)\n", n.ID, created, n.Title(), n.AudioPath)
			case note.KindText:
				fmt.Fprintf(out, "%s  %s  [text]  %s\n", n.ID, created, n.Title())
			}
		}

		total, err := store.Count(ctx)
		if err != nil {
			fatal("Error counting notes", err)
		}
		fmt.Fprintf(out, "%d of %d notes\n", len(notes), total)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Show at most this many notes (0 for all)")
}
