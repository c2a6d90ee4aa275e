package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lessonworks/sage/pkg/chat"
	"github.com/lessonworks/sage/pkg/config"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Manage saved conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations for the configured deployment",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Get()
		if settings.Server.Deployment == "" {
			return fmt.Errorf("no deployment configured: pass --deployment or set SAGE_DEPLOYMENT")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		client := chat.NewClient(settings.Server.URL, settings.Server.Token)
		convs, err := client.ListConversations(ctx, settings.Server.Deployment)
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}

		if len(convs) == 0 {
			fmt.Println("No conversations yet.")
			return nil
		}
		for _, conv := range convs {
			title := conv.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%6d  %-40s  %d messages\n", conv.ID, title, conv.MessageCount)
		}
		return nil
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conversation id %q", args[0])
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		settings := config.Get()
		client := chat.NewClient(settings.Server.URL, settings.Server.Token)
		if err := client.DeleteConversation(ctx, id); err != nil {
			return fmt.Errorf("failed to delete conversation %d: %w", id, err)
		}

		fmt.Printf("Deleted conversation %d.\n", id)
		return nil
	},
}

func init() {
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
	rootCmd.AddCommand(conversationsCmd)
}
