package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwulff/voxnote/internal/note"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [text...]",
	Short: "Add a text note",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		n, err := note.NewService(store).AddText(context.Background(), strings.Join(args, " "))
		if errors.Is(err, note.ErrEmptyContent) {
			fatal("Error adding note", errors.New("note text is empty"))
		}
		if err != nil {
			fatal("Error adding note", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Note added: %s\n", n.ID)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
