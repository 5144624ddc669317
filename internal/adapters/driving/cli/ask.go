package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

const defaultLimit = 5

var (
	queryLimit      int
	queryUser       string
	queryLevel      string
	queryDepartment string
	queryJSON       bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieve the passages the user may read and generate an answer grounded
in them. When nothing relevant is found, or the model cannot ground its
answer, a fallback message is returned instead.

Examples:
  docrag ask "How many days of annual leave do I get?"
  docrag ask --level internal --department HR "What is the parental leave policy?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the most relevant passages without generating an answer",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	for _, c := range []*cobra.Command{askCmd, searchCmd} {
		c.Flags().IntVarP(&queryLimit, "limit", "n", defaultLimit, "maximum passages to retrieve (1-20)")
		c.Flags().StringVar(&queryUser, "user", "", "user ID recorded in history")
		c.Flags().StringVar(&queryLevel, "level", "", "user access level: public, internal or confidential")
		c.Flags().StringVar(&queryDepartment, "department", "", "user department")
		c.Flags().BoolVar(&queryJSON, "json", false, "print JSON")
	}
	rootCmd.AddCommand(askCmd, searchCmd)
}

func queryUserContext() (*domain.UserContext, error) {
	level, err := domain.ParseAccessLevel(queryLevel)
	if err != nil {
		return nil, err
	}
	return domain.NewUserContext(queryUser, level, queryDepartment)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	user, err := queryUserContext()
	if err != nil {
		return err
	}

	ans, err := svc.Answer.SearchAndAnswer(cmd.Context(), args[0], queryLimit, user)
	if err != nil {
		return err
	}

	if queryJSON {
		return writeJSON(cmd.OutOrStdout(), ans)
	}
	newPrinter(cmd).answer(ans)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := requireServices(); err != nil {
		return err
	}
	user, err := queryUserContext()
	if err != nil {
		return err
	}

	results, err := svc.Retrieval.Retrieve(cmd.Context(), args[0], queryLimit, user)
	if err != nil {
		return err
	}

	if queryJSON {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	newPrinter(cmd).results(results)
	return nil
}
