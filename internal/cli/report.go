package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mocktest-client/internal/countdown"
	"mocktest-client/internal/domain"
)

// NewResultsCmd prints the scored results of a submitted test.
func NewResultsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "results <testId>",
		Short: "Show results for a submitted test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			svc, err := buildServices(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			store := svc.sessionStore()
			defer store.Close(cmd.Context())
			res, err := store.RefreshResults(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

// NewAnalysisCmd prints the markdown performance analysis for a test.
func NewAnalysisCmd(configPath *string) *cobra.Command {
	var (
		regenerate bool
		bySession  bool
	)

	cmd := &cobra.Command{
		Use:   "analysis <testId>",
		Short: "Generate or fetch the performance analysis of a test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			svc, err := buildServices(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			store := svc.analysisStore()
			var analysis domain.Analysis
			switch {
			case bySession:
				analysis, err = store.Retrieve(cmd.Context(), args[0])
			case regenerate:
				analysis, err = store.Regenerate(cmd.Context(), args[0])
			default:
				analysis, err = store.Generate(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), analysis.Markdown)
			return nil
		},
	}

	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "ignore a cached analysis and generate a new one")
	cmd.Flags().BoolVar(&bySession, "session", false, "treat the argument as an analysis session ID")
	return cmd
}

// NewHistoryCmd lists the signed-in user's past results.
func NewHistoryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your past test results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			svc, err := buildServices(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			results, err := svc.history.MyResults(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No results yet.")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(out, "%-40s %3d/%-3d %6.2f%%  %s\n",
					r.TestID, r.CorrectAnswers, r.TotalQuestions, r.Percentage, countdown.FormatClock(r.TimeTaken))
			}
			return nil
		},
	}
}
