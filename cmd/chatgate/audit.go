package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pario-ai/chatgate/pkg/audit"
	"github.com/pario-ai/chatgate/pkg/config"
	"github.com/pario-ai/chatgate/pkg/models"
	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the gateway audit log",
	}

	cmd.AddCommand(
		newAuditSearchCmd(),
		newAuditShowCmd(),
		newAuditStatsCmd(),
		newAuditCleanupCmd(),
	)
	return cmd
}

func newAuditSearchCmd() *cobra.Command {
	var (
		configPath   string
		outcome      string
		since        string
		clientPrefix string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{
				Outcome:      outcome,
				ClientPrefix: clientPrefix,
				Limit:        limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatAuditEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to chatgate config file")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (fresh, cache_hit, rate_limited, upstream_error, ...)")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&clientPrefix, "client-prefix", "", "filter by client prefix")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	return cmd
}

func newAuditShowCmd() *cobra.Command {
	var (
		configPath string
		requestID  string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a single audit entry by request ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				return fmt.Errorf("--request-id is required")
			}

			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := l.Query(context.Background(), models.AuditQueryOpts{
				RequestID: requestID,
				Limit:     1,
			})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No entry found for that request ID.")
				return nil
			}

			e := entries[0]
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Request ID:    %s\n", e.RequestID)
			fmt.Fprintf(out, "Outcome:       %s\n", e.Outcome)
			fmt.Fprintf(out, "Model:         %s\n", e.Model)
			fmt.Fprintf(out, "Client:        %s...\n", e.ClientPrefix)
			fmt.Fprintf(out, "Status:        %d\n", e.StatusCode)
			fmt.Fprintf(out, "Latency:       %dms\n", e.LatencyMs)
			fmt.Fprintf(out, "Tokens:        %d prompt / %d completion / %d total\n",
				e.PromptTokens, e.CompletionTokens, e.TotalTokens)
			fmt.Fprintf(out, "Time:          %s\n", e.CreatedAt.Format(time.RFC3339))
			if e.Message != "" {
				fmt.Fprintf(out, "\n--- Message ---\n%s\n", e.Message)
			}
			if e.Response != "" {
				fmt.Fprintf(out, "\n--- Response ---\n%s\n", e.Response)
			}
			if e.ErrorDetail != "" {
				fmt.Fprintf(out, "\n--- Error ---\n%s\n", e.ErrorDetail)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to chatgate config file")
	cmd.Flags().StringVar(&requestID, "request-id", "", "request ID to show")

	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show audit log statistics by outcome and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatAuditStats(stats))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to chatgate config file")
	return cmd
}

func newAuditCleanupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete audit entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d audit entries.\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to chatgate config file")
	return cmd
}

func openAuditLogger(configPath string) (*audit.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	l, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit db: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-16s %-10s %6s %8s %8s %-20s\n",
		"REQUEST ID", "OUTCOME", "CLIENT", "STATUS", "LATENCY", "TOKENS", "TIME")
	b.WriteString(strings.Repeat("-", 112) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-38s %-16s %-10s %6d %6dms %8d %-20s\n",
			e.RequestID, e.Outcome, e.ClientPrefix, e.StatusCode,
			e.LatencyMs, e.TotalTokens,
			e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No audit stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %-12s %8s\n", "OUTCOME", "DAY", "COUNT")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-18s %-12s %8d\n", s.Outcome, s.Day, s.Count)
	}
	return b.String()
}
