package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loupe-ai/loupe/internal/config"
)

var conversationsUserID string

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Manage saved conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	Args:  cobra.NoArgs,
	RunE:  runConversationsList,
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show a conversation's turns",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsShow,
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation and its search index entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsDelete,
}

func init() {
	conversationsCmd.PersistentFlags().StringVarP(&conversationsUserID, "user", "u",
		config.DefaultUserID, "user id")
	conversationsCmd.AddCommand(conversationsListCmd, conversationsShowCmd, conversationsDeleteCmd)
	rootCmd.AddCommand(conversationsCmd)
}

func runConversationsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	summaries, err := a.Conversations.ListConversations(ctx, conversationsUserID)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTURNS\tUPDATED\tTITLE")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			s.ConversationID, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"), s.Title)
	}
	return w.Flush()
}

func runConversationsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	turns, err := a.Conversations.Turns(ctx, conversationsUserID, args[0])
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Conversation %q has no turns.\n", args[0])
		return nil
	}

	for _, t := range turns {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n%s\n\n",
			t.Role, t.Timestamp.Format("2006-01-02 15:04:05"), t.Content)
	}
	return nil
}

func runConversationsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	deleted, err := a.Conversations.DeleteConversation(ctx, conversationsUserID, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation %q (%d turns).\n", args[0], deleted)
	return nil
}
