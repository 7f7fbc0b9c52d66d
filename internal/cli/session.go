package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mocktest-client/internal/app"
	"mocktest-client/internal/domain"
)

// NewTakeCmd starts a new timed test in the terminal.
func NewTakeCmd(configPath *string) *cobra.Command {
	var cfg domain.TestConfig

	cmd := &cobra.Command{
		Use:   "take",
		Short: "Create a new mock test and take it in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, *configPath, func(ctx context.Context, store *app.SessionStore) error {
				return store.CreateAndLoad(ctx, cfg)
			})
		},
	}

	cmd.Flags().StringSliceVar(&cfg.Subjects, "subject", []string{"Physics"}, "subjects to include (repeatable)")
	cmd.Flags().IntVar(&cfg.TotalQuestions, "questions", 10, "number of questions")
	cmd.Flags().IntVar(&cfg.Duration, "duration", 30, "time limit in minutes")
	cmd.Flags().StringVar(&cfg.Difficulty, "difficulty", domain.DifficultyMedium, "easy, medium, intermediate or hard")
	cmd.Flags().StringSliceVar(&cfg.Topics, "topics", nil, "topics to focus on")
	return cmd
}

// NewResumeCmd continues a test, restoring saved progress when it is recent.
func NewResumeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <testId>",
		Short: "Resume a test from its last autosave",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, *configPath, func(ctx context.Context, store *app.SessionStore) error {
				if err := store.LoadExisting(ctx, args[0]); err != nil {
					return err
				}
				if store.State().Restored {
					fmt.Fprintln(cmd.OutOrStdout(), "Restored your saved progress.")
				}
				return nil
			})
		},
	}
}

func runInteractive(cmd *cobra.Command, configPath string, load func(context.Context, *app.SessionStore) error) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	store := svc.sessionStore()
	defer store.Close(context.Background())

	if err := load(ctx, store); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Test %s\n", store.State().TestID)
	r := &runner{store: store, in: cmd.InOrStdin(), out: out}
	_, err = r.run(ctx)
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		fmt.Fprintf(out, "\nProgress saved. Continue with: mocktest resume %s\n", store.State().TestID)
		return nil
	}
	return err
}
