package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/ingest"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <text...>",
		Short: "Record a raw memory and extract any events it contains",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			res, err := eng.Ingest(ctx, owner, ingest.Input{
				ContentType: store.ContentText,
				Text:        strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			fmt.Printf("raw_memory_id=%s events=%d linked_entities=%d linked_relations=%d\n",
				res.RawMemoryID, len(res.EventIDs), res.LinkedEntities, res.LinkedRelations)
			return nil
		},
	}
}
