package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the configured stores and AI providers are reachable",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Second, "timeout per check")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	if err := requireServices(); err != nil {
		return err
	}

	p := newPrinter(cmd)
	failed := 0
	for _, hc := range svc.Health {
		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		err := hc.Check(ctx)
		cancel()

		if err != nil {
			failed++
			p.printf("%s %-16s %v\n", p.render(p.failure, "FAIL"), hc.Name, err)
			continue
		}
		p.printf("%s %s\n", p.render(p.success, "ok  "), hc.Name)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(svc.Health))
	}
	return nil
}
