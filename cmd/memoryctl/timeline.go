package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTimelineCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "List events recorded in the last N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			start := now.AddDate(0, 0, -days).UnixMilli()
			end := now.UnixMilli()

			events, err := eng.Timeline(owner, start, end)
			if err != nil {
				return err
			}
			for _, e := range events {
				ts := time.UnixMilli(e.Timestamp).Format(time.RFC3339)
				actor := ""
				if e.Actor != nil {
					actor = *e.Actor + " "
				}
				fmt.Printf("%s  %s%s %s\n", ts, actor, e.Action, e.Target)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "how many days back to list")
	return cmd
}
