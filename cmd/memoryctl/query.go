package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "query <text...>",
		Short: "Route text to a plugin (\"@plugin text\") or the default conversation plugin",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			resp, err := eng.Query(ctx, owner, actor, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id recorded on the resulting chat_with_plugin event")
	return cmd
}
