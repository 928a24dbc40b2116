package cmd

import (
	"context"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/loupe-ai/loupe/internal/agent"
	"github.com/loupe-ai/loupe/internal/config"
	"github.com/loupe-ai/loupe/internal/conversation"
)

var (
	askConversationID string
	askUserID         string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over the ingested knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askConversationID, "conversation", "c",
		config.DefaultConversationID, "conversation to continue")
	askCmd.Flags().StringVarP(&askUserID, "user", "u",
		config.DefaultUserID, "user id")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}

	record, err := a.Pipeline.Run(ctx, agent.Query{
		Text:                question,
		ConversationID:      askConversationID,
		UserID:              askUserID,
		MaxTokens:           int64(a.Config.MaxTokens),
		Temperature:         a.Config.Temperature,
		InitialSystemPrompt: a.Config.InitialSystemPrompt,
		FinalSystemPrompt:   a.Config.FinalSystemPrompt,
	})
	if err != nil && record == nil {
		return err
	}
	if err != nil {
		a.Logger.Warn("run completed with recording error", "error", err)
	}

	if appendErr := appendTurns(ctx, a.Conversations, question, record.Answer); appendErr != nil {
		a.Logger.Warn("appending conversation turns", "error", appendErr)
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderAnswer(record.Answer))
	return nil
}

// appendTurns records the exchange in the conversation log. An answer
// carrying the error prefix keeps the user turn but drops the assistant
// turn, so a failed generation is not replayed as memory.
func appendTurns(ctx context.Context, store *conversation.Store, question, answer string) error {
	err := store.Append(ctx, conversation.Turn{
		Role:           conversation.RoleUser,
		Content:        question,
		ConversationID: askConversationID,
		UserID:         askUserID,
	})
	if err != nil {
		return err
	}
	if strings.HasPrefix(answer, "Error:") {
		return nil
	}
	return store.Append(ctx, conversation.Turn{
		Role:           conversation.RoleAssistant,
		Content:        answer,
		ConversationID: askConversationID,
		UserID:         askUserID,
	})
}

// renderAnswer renders markdown for the terminal, falling back to plain
// text when the renderer cannot be built.
func renderAnswer(answer string) string {
	header := lipgloss.NewStyle().Bold(true).Render("Answer")

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return header + "\n\n" + answer
	}
	rendered, err := r.Render(answer)
	if err != nil {
		return header + "\n\n" + answer
	}
	return header + "\n" + strings.TrimSuffix(rendered, "\n")
}
