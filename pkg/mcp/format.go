package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/chatgate/pkg/models"
)

func formatCacheStats(stats models.CacheStats) string {
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, stats.HitRate()*100)
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s  %-16s  %-10s  %6s  %8s  %s\n",
		"REQUEST ID", "OUTCOME", "CLIENT", "STATUS", "LATENCY", "TIME")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-36s  %-16s  %-10s  %6d  %6dms  %s\n",
			e.RequestID, e.Outcome, e.ClientPrefix, e.StatusCode, e.LatencyMs,
			e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
