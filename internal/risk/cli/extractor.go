package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haukened/risklists/internal/risk/common/log"
	"github.com/haukened/risklists/internal/risk/domain"
	"github.com/haukened/risklists/internal/risk/services/extractor"
)

// NewExtractorCommand returns the risk-extractor root command.
func NewExtractorCommand() *cobra.Command {
	cmd := newRootCommand(
		`risk-extractor "<risk tier>"`,
		"Extract the App Discovery applications of one risk tier into output_<tier>.json",
		runExtract,
	)
	cmd.Long = `Fetches the Umbrella App Discovery inventory, keeps the applications whose
weighted risk equals the given tier ("very low", "low", "medium", "high" or
"very high"), removes excluded vendor domains and writes output_<tier>.json.`
	return cmd
}

func runExtract(cmd *cobra.Command, arg, envFile string) error {
	// the tier is checked before configuration, credentials or network
	tier, err := domain.ParseRiskTier(arg)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	log.Info(map[string]any{"version": Version, "tier": tier.String(), "output_dir": cfg.OutputDir}, "Starting risk extractor")

	svc, excl, err := buildExtractor(cfg)
	if err != nil {
		return err
	}
	res, err := svc.Extract(cmd.Context(), tier)
	logExclusionStats(excl)
	if err != nil {
		return err
	}
	printExtractSummary(cmd.OutOrStdout(), res)
	return nil
}

func printExtractSummary(w io.Writer, res extractor.Result) {
	fmt.Fprintf(w, "risk tier:       %s\n", res.Tier)
	fmt.Fprintf(w, "applications:    %d fetched, %d matched\n", res.Fetched, res.Matched)
	fmt.Fprintf(w, "records written: %d\n", res.Written)
	fmt.Fprintf(w, "excluded hosts:  %d (%d applications dropped)\n", res.ExcludedHosts, res.Dropped)
	if len(res.ExcludedDomains) > 0 {
		parts := make([]string, 0, len(res.ExcludedDomains))
		for _, d := range res.ExcludedDomains {
			parts = append(parts, fmt.Sprintf("%s (%d)", d.Domain, d.Hosts))
		}
		fmt.Fprintf(w, "excluded under:  %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(w, "output:          %s\n", res.Path)
}
