package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/engine"
	"github.com/xkilldash9x/pagefinder/internal/observability"
	"github.com/xkilldash9x/pagefinder/internal/scan"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newScanCmd creates and configures the `scan` command.
func newScanCmd() *cobra.Command {
	var (
		asJSON bool
		wait   time.Duration
	)

	scanCmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Discovers the form regions on a page and visits each in turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			updates := make(chan schemas.ScanSession, 16)
			observe := scan.WithObserver(func(s schemas.ScanSession) {
				select {
				case updates <- s:
				default:
				}
			})

			c, err := openPage(ctx, cfg, normalizeURL(args[0]), engine.WithScanOptions(observe))
			if err != nil {
				return err
			}
			defer c.Shutdown()

			if err := settle(ctx, wait); err != nil {
				return err
			}

			session, err := c.Engine.Start(ctx)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			logger.Info("Scan running", zap.String("session_id", session.ID), zap.Int("regions", len(session.Regions)))

			for session.State == schemas.ScanScanning {
				select {
				case <-ctx.Done():
					c.Engine.Stop()
					return ctx.Err()
				case s := <-updates:
					if s.ID != session.ID {
						continue
					}
					session = s
					logger.Info("Visiting region",
						zap.Int("index", s.CurrentIndex),
						zap.Int("progress", s.ProgressPercent),
						zap.String("state", string(s.State)))
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(session)
			}
			return printRegions(cmd.OutOrStdout(), session)
		},
	}

	scanCmd.Flags().BoolVar(&asJSON, "json", false, "Print the final session as JSON.")
	scanCmd.Flags().DurationVar(&wait, "wait", 0, "Time to let the page settle before discovery.")
	scanCmd.Flags().String("driver", "", "Browser driver, chromedp or rod. (Overrides config/env)")
	scanCmd.Flags().Bool("headless", true, "Run the browser without a window. (Overrides config/env)")
	scanCmd.Flags().Duration("interval", 0, "Delay between region visits. (Overrides config/env)")
	return scanCmd
}

// printRegions renders a session as a table.
func printRegions(w io.Writer, s schemas.ScanSession) error {
	fmt.Fprintf(w, "%s  %s  %d%%  %d region(s)\n", s.URL, s.State, s.ProgressPercent, len(s.Regions))
	if len(s.Regions) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tID\tTYPE\tELEMENT\tINPUTS\tBOX\tMANUAL")
	for _, r := range s.Regions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.0f,%.0f %.0fx%.0f\t%t\n",
			r.Index, r.ID, r.Kind, r.ElementTag, r.VisibleInputCount,
			r.Box.X, r.Box.Y, r.Box.Width, r.Box.Height, r.ManuallySelected)
	}
	return tw.Flush()
}

// normalizeURL adds a scheme when the target has none.
func normalizeURL(target string) string {
	if strings.Contains(target, "://") || strings.HasPrefix(target, "about:") || strings.HasPrefix(target, "data:") {
		return target
	}
	return "https://" + target
}
