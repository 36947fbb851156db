// Command memoryctl is a thin CLI exercising the memoria library API —
// ingest, query, timeline, and stats — the way the teacher's
// cmd/wasm/main.go exercises its store. No business logic lives here.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/cryptobox"
	"github.com/kittclouds/memoria/pkg/engine"
	"github.com/kittclouds/memoria/pkg/provider"
)

var (
	dataDir    string
	owner      string
	encryptAtRest bool
	eng        *engine.Engine
)

func main() {
	root := &cobra.Command{
		Use:   "memoryctl",
		Short: "Command-line driver for the memoria personal memory engine",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return openEngine()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if eng != nil {
				return eng.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "./memoria-data", "directory holding the SQLite database and key file")
	root.PersistentFlags().StringVar(&owner, "owner", "default", "owner id to operate on")
	root.PersistentFlags().BoolVar(&encryptAtRest, "encrypt", false, "encrypt raw memory content at rest")

	root.AddCommand(newIngestCmd(), newQueryCmd(), newTimelineCmd(), newStatsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openEngine() error {
	if eng != nil {
		return nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	s, err := store.New(filepath.Join(dataDir, "memoria.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	var box *cryptobox.Box
	if encryptAtRest {
		box, err = cryptobox.Open(filepath.Join(dataDir, cryptobox.DefaultKeyFileName))
		if err != nil {
			return fmt.Errorf("open key file: %w", err)
		}
	}

	cfg := engine.DefaultConfig()
	cfg.Logger, _ = zap.NewProduction()

	var prov provider.Provider
	eng, err = engine.New(s, prov, box, cfg)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	return nil
}
