package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jaam8/election_ledger/internal/config"
	"github.com/spf13/cobra"
)

var errNotDurable = errors.New("storage is not durable: set SQLITE_DATA_DIR or use STORAGE_DRIVER=tarantool")

// openDurable opens the ledger for commands that run next to a server. Such a
// command would only see an empty private store otherwise.
func openDurable(cfg *config.Config) (*app, error) {
	if !cfg.Durable() {
		return nil, errNotDurable
	}
	return newApp(cfg, log)
}

func resultsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "results <election id>",
		Short: "Print the results of an election as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openDurable(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.service.BuildResults(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
}

func resetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <election id>",
		Short: "Remove every vote of an election and reopen it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openDurable(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.service.ResetResults(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d votes from election %s\n", removed, args[0])
			return nil
		},
	}
}
