package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show raw memory tiering, active view, and concept counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := eng.Stats(owner)
			if err != nil {
				return err
			}
			fmt.Printf("raw memories: hot=%d warm=%d cold=%d total=%d\n",
				stats.RawMemoryTiers.Hot, stats.RawMemoryTiers.Warm, stats.RawMemoryTiers.Cold, stats.RawMemoryTiers.Total)
			fmt.Printf("active views: %d\n", stats.ActiveViews)
			fmt.Printf("stable concepts: %d\n", stats.Concepts)
			fmt.Printf("audit entries: %d\n", stats.AuditEntries)
			return nil
		},
	}
}
