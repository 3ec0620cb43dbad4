package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/haukened/risklists/internal/risk/common/log"
	"github.com/haukened/risklists/internal/risk/services/listmanager"
)

// NewListManagerCommand returns the destlist-manager root command.
func NewListManagerCommand() *cobra.Command {
	cmd := newRootCommand(
		"destlist-manager <output_<tier>.json>",
		"Create or update the destination list for an extractor output file",
		runSync,
	)
	cmd.Long = `Reads an output_<tier>.json file written by risk-extractor and makes sure the
Umbrella destination list named after the tier exists and contains every
domain in the file. Entries already present are left alone.`
	return cmd
}

func runSync(cmd *cobra.Command, path, envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	log.Info(map[string]any{"version": Version, "input": path}, "Starting destination list manager")

	svc, err := buildListManager(cfg)
	if err != nil {
		return err
	}
	res, err := svc.Sync(cmd.Context(), path)
	if err != nil {
		return err
	}
	printSyncSummary(cmd.OutOrStdout(), res)
	return nil
}

func printSyncSummary(w io.Writer, res listmanager.Result) {
	state := "existing"
	if res.Created {
		state = "created"
	}
	if res.Skipped > 0 {
		fmt.Fprintf(w, "destination list %q: skipped %d excluded entries\n", res.ListName, res.Skipped)
	}
	switch {
	case res.ListID == 0:
		fmt.Fprintf(w, "destination list %q: no domains in input, nothing to do\n", res.ListName)
	case res.NoOp:
		fmt.Fprintf(w, "destination list %q (id %d, %s): already up to date, %d entries present\n", res.ListName, res.ListID, state, res.Existing)
	default:
		fmt.Fprintf(w, "destination list %q (id %d, %s): added %d of %d entries\n", res.ListName, res.ListID, state, res.Added, res.Candidates)
	}
}
