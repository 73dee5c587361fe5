package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagefinder/internal/export"
)

func newExportCmd() *cobra.Command {
	var (
		format string
		wait   time.Duration
	)

	exportCmd := &cobra.Command{
		Use:   "export <url>",
		Short: "Saves the rendered document of a page as HTML or markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			c, err := openPage(ctx, cfg, normalizeURL(args[0]))
			if err != nil {
				return err
			}
			defer c.Shutdown()

			if err := settle(ctx, wait); err != nil {
				return err
			}
			path, err := c.Engine.SavePage(ctx, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	exportCmd.Flags().StringVarP(&format, "format", "f", "html", "Output format, html or markdown.")
	exportCmd.Flags().DurationVar(&wait, "wait", 0, "Time to let the page settle before export.")
	exportCmd.Flags().StringP("out", "o", ".", "Directory to write into. (Overrides config/env)")
	exportCmd.Flags().Bool("sanitize", false, "Strip scripts and active content. (Overrides config/env)")
	exportCmd.Flags().String("driver", "", "Browser driver, chromedp or rod. (Overrides config/env)")
	return exportCmd
}
