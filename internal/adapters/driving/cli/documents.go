package cli

import (
	"github.com/spf13/cobra"
)

var documentsJSON bool

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Inspect indexed documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		docs, err := svc.Documents.List(cmd.Context())
		if err != nil {
			return err
		}
		if documentsJSON {
			return writeJSON(cmd.OutOrStdout(), docs)
		}
		newPrinter(cmd).documents(docs)
		return nil
	},
}

var documentsGetCmd = &cobra.Command{
	Use:   "get <document-id>",
	Short: "Show one document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		doc, err := svc.Documents.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if documentsJSON {
			return writeJSON(cmd.OutOrStdout(), doc)
		}
		newPrinter(cmd).document(doc)
		return nil
	},
}

func init() {
	documentsCmd.PersistentFlags().BoolVar(&documentsJSON, "json", false, "print JSON")
	documentsCmd.AddCommand(documentsListCmd, documentsGetCmd)
	rootCmd.AddCommand(documentsCmd)
}
