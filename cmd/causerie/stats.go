package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/causerie-app/causerie/pkg/tracker"
)

func newStatsCmd(configPath *string) *cobra.Command {
	var (
		since   time.Duration
		traceID string
		recent  int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show provider attempt statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx := cmd.Context()
			from := time.Now().Add(-since)

			// Single generation
			if traceID != "" {
				recs, err := tr.Trace(ctx, traceID)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Println("No attempts found for trace.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "#\tTIME\tFEATURE\tPROVIDER\tOUTCOME\tLATENCY\tTOKENS")
				for _, r := range recs {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%dms\t%d\n",
						r.Attempt, r.CreatedAt.Format("2006-01-02T15:04:05"), r.Feature, r.Provider, r.Outcome, r.LatencyMs, r.Tokens)
				}
				return w.Flush()
			}

			// Latest attempts
			if recent > 0 {
				recs, err := tr.Recent(ctx, from, recent)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Println("No attempts found.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "WHEN\tTRACE\tFEATURE\tPROVIDER\t#\tOUTCOME\tLATENCY")
				for _, r := range recs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%dms\n",
						humanize.Time(r.CreatedAt), r.TraceID, r.Feature, r.Provider, r.Attempt, r.Outcome, r.LatencyMs)
				}
				return w.Flush()
			}

			// Default: per provider summary
			summaries, err := tr.Summary(ctx, from)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FEATURE\tPROVIDER\tOUTCOME\tATTEMPTS\tAVG LATENCY\tTOKENS")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dms\t%s\n",
					s.Feature, s.Provider, s.Outcome, s.Count, s.AvgLatencyMs, humanize.Comma(int64(s.TotalTokens)))
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "only include attempts newer than this")
	cmd.Flags().StringVar(&traceID, "trace", "", "show the attempts of one generation")
	cmd.Flags().IntVar(&recent, "recent", 0, "list the N most recent attempts")
	return cmd
}
