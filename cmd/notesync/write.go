package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/git"
)

var (
	noteTitle    string
	noteContent  string
	changeReason string
	changeType   string
)

// changeContext carries a commit message for versioned stores.
func changeContext(scope, subject string) context.Context {
	ctx := context.Background()
	switch {
	case changeType != "":
		if changeReason == "" {
			changeReason = subject
		}
		return context.WithValue(ctx, core.ChangeReasonKey, git.FormatCommitMessage(changeType, scope, changeReason, ""))
	case changeReason != "":
		return context.WithValue(ctx, core.ChangeReasonKey, git.AppendFooter(changeReason))
	}
	return ctx
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		svc := openService()
		defer closeService(svc)

		ctx := changeContext("notes", "create "+noteTitle)
		n, err := svc.CreateNote(ctx, core.NoteFields{Title: noteTitle, Content: noteContent})
		if err != nil {
			fatal("Error creating note", err)
		}
		fmt.Printf("Note created: %s\n", n.ID)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Replace the title and content of a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc := openService()
		defer closeService(svc)

		ctx := changeContext("notes", "update "+noteTitle)
		n, err := svc.UpdateNote(ctx, args[0], core.NoteFields{Title: noteTitle, Content: noteContent})
		if err != nil {
			fatal("Error updating note", err)
		}
		fmt.Printf("Note updated: %s\n", n.ID)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a note",
	Long:  `Delete permanently removes a note (and stages the removal when versioning is on).`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc := openService()
		defer closeService(svc)

		ctx := changeContext("notes", "delete "+args[0])
		if err := svc.DeleteNote(ctx, args[0]); err != nil {
			fatal("Error deleting note", err)
		}
		fmt.Printf("Note deleted: %s\n", args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		c.Flags().StringVar(&noteTitle, "title", "", "Note title")
		c.Flags().StringVar(&noteContent, "content", "", "Note content")
		_ = c.MarkFlagRequired("title")
		_ = c.MarkFlagRequired("content")
	}
	for _, c := range []*cobra.Command{createCmd, updateCmd, deleteCmd} {
		c.Flags().StringVarP(&changeReason, "message", "m", "", "Change reason (commit message when versioned)")
		c.Flags().StringVarP(&changeType, "type", "t", "", "Change type (feat, fix, chore)")
		rootCmd.AddCommand(c)
	}
}
