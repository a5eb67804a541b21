package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"SignalBT/internal/domain/models"
)

// printReport writes the end-of-run counters as an aligned table.
func printReport(w io.Writer, job string, r *models.RunReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s run\t%s\n", job, r.RunID)
	fmt.Fprintf(tw, "duration\t%s\n", r.Duration.Round(time.Millisecond))
	if r.Messages > 0 {
		fmt.Fprintf(tw, "messages\t%d\n", r.Messages)
	}
	fmt.Fprintf(tw, "signals\t%d\n", r.Signals)
	fmt.Fprintf(tw, "complete\t%d\n", r.Complete)
	if r.AIResolved > 0 {
		fmt.Fprintf(tw, "ai resolved\t%d\n", r.AIResolved)
	}
	for _, o := range models.Outcomes {
		if n, ok := r.Outcomes[o]; ok {
			fmt.Fprintf(tw, "%s\t%d\n", o, n)
		}
	}

	reasons := make([]string, 0, len(r.ResolverFailures))
	for reason := range r.ResolverFailures {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(tw, "failed: %s\t%d\n", reason, r.ResolverFailures[models.FailureReason(reason)])
	}
	_ = tw.Flush()
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}
