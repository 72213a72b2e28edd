package main

import (
	"context"
	"fmt"

	"github.com/jwulff/voxnote/internal/note"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a note",
	Long:  `Delete permanently removes a note. The recording of an audio note stays on disk.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		store := openStore()
		defer store.Close()

		if err := note.NewService(store).Delete(context.Background(), id); err != nil {
			fatal("Error deleting note", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Note deleted: %s\n", id)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
