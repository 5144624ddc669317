package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

var (
	historyUser     string
	historyPage     int
	historyPageSize int
	historyJSON     bool

	feedbackUser    string
	feedbackComment string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past questions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		page, err := svc.History.UserHistory(cmd.Context(), historyUser, historyPage, historyPageSize)
		if err != nil {
			return err
		}
		if historyJSON {
			return writeJSON(cmd.OutOrStdout(), page)
		}
		newPrinter(cmd).history(page)
		return nil
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <query-id> <rating>",
	Short: "Rate an answer from 1 to 5",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		rating, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: rating must be a number", domain.ErrValidation)
		}
		id, err := svc.History.SubmitFeedback(cmd.Context(), domain.Feedback{
			QueryID: args[0],
			UserID:  feedbackUser,
			Rating:  rating,
			Comment: feedbackComment,
		})
		if err != nil {
			return err
		}
		cmd.Printf("Feedback recorded: %s\n", id)
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyUser, "user", domain.AnonymousUserID, "user whose history to show")
	historyCmd.Flags().IntVar(&historyPage, "page", 1, "page number")
	historyCmd.Flags().IntVar(&historyPageSize, "size", 20, "entries per page")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON")

	feedbackCmd.Flags().StringVar(&feedbackUser, "user", domain.AnonymousUserID, "user submitting the feedback")
	feedbackCmd.Flags().StringVar(&feedbackComment, "comment", "", "optional comment")

	rootCmd.AddCommand(historyCmd, feedbackCmd)
}
