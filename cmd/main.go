package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jaam8/election_ledger/internal/config"
	"github.com/jaam8/election_ledger/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const programName = "election-ledger"

var (
	cfg *config.Config
	log *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Election vote ledger and tabulation service",
		SilenceUsage: true,
		RunE:         serveRun,
	}
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.New()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log, err = logger.New(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initalize logger: %w", err)
		}
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(resultsCommand())
	rootCmd.AddCommand(resetCommand())

	err := rootCmd.ExecuteContext(context.Background())
	if log != nil {
		_ = log.Sync()
	}
	if err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
