package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Execute builds the root command and runs it to completion, returning
// whatever error the chosen subcommand surfaces.
func Execute(ctx context.Context) error {
	root := &cobra.Command{Use: "aggregator", Short: "Multi-market data aggregator"}
	root.AddCommand(serveCmd(ctx))
	log.Info().Msg("aggregator starting")
	return root.ExecuteContext(ctx)
}
