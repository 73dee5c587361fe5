package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/engine"
	"github.com/xkilldash9x/pagefinder/internal/observability"
)

func newAutofillCmd() *cobra.Command {
	var (
		region int
		all    bool
		wait   time.Duration
	)

	autofillCmd := &cobra.Command{
		Use:   "autofill <url>",
		Short: "Fills a form region on a page from the stored profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			progress := engine.WithAutofillObserver(func(s schemas.AutofillStatus) {
				logger.Debug("Autofill progress",
					zap.String("run_id", s.RunID),
					zap.Int("found", s.FieldsFound),
					zap.Int("filled", s.FieldsFilled))
			})
			c, err := openPage(ctx, cfg, normalizeURL(args[0]), progress)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			if err := settle(ctx, wait); err != nil {
				return err
			}
			if _, err := c.Engine.Start(ctx); err != nil {
				return fmt.Errorf("discovery failed: %w", err)
			}
			session := c.Engine.Stop()

			targets := []int{region}
			if all {
				targets = targets[:0]
				for _, r := range session.Regions {
					targets = append(targets, r.Index)
				}
			}

			out := cmd.OutOrStdout()
			for _, idx := range targets {
				status, err := c.Engine.AutofillForm(ctx, idx)
				if err != nil {
					return err
				}
				msg := "ok"
				if status.Error != nil {
					msg = *status.Error
				}
				fmt.Fprintf(out, "region %d: filled %d of %d field(s) (%s)\n", idx, status.FieldsFilled, status.FieldsFound, msg)
			}
			return nil
		},
	}

	autofillCmd.Flags().IntVarP(&region, "region", "r", 0, "Index of the region to fill.")
	autofillCmd.Flags().BoolVar(&all, "all", false, "Fill every discovered region in order.")
	autofillCmd.Flags().DurationVar(&wait, "wait", 0, "Time to let the page settle before discovery.")
	autofillCmd.Flags().String("driver", "", "Browser driver, chromedp or rod. (Overrides config/env)")
	autofillCmd.Flags().Bool("headless", true, "Run the browser without a window. (Overrides config/env)")
	return autofillCmd
}
