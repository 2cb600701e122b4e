package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/covid-report/internal/s0_data"
)

// sourcesCmd lists the configured upstream datasets
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the upstream datasets",
	RunE:  listSources,
}

var sourcesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch every source and reference file once and report the result",
	Long: `Fetches each source and reference table without writing any pages.
Useful after an upstream format change.

Example:
  go run ./cmd/report sources check`,
	RunE: checkSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesCheckCmd)
}

func listSources(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		PrintError(err.Error())
		return err
	}

	widths := []int{22, 70}
	PrintTableHeader([]string{"SOURCE", "LOCATION"}, widths)
	for _, src := range a.sources {
		location := ""
		if loc, ok := src.(s0_data.Locatable); ok {
			location = loc.Location()
		}
		PrintTableRow([]string{string(src.Name()), location}, widths)
	}
	fmt.Println()

	PrintTableHeader([]string{"REFERENCE", "LOCATION"}, widths)
	PrintTableRow([]string{"la_region", a.cfg.Reference.LARegion}, widths)
	PrintTableRow([]string{"ccg_region", a.cfg.Reference.CCGRegion}, widths)
	PrintTableRow([]string{"populations", a.cfg.Reference.Populations}, widths)
	return nil
}

func checkSources(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		PrintError(err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ref, refErr := s0_data.LoadReference(ctx, s0_data.NewLocator(a.http), a.cfg.Reference)
	if refErr != nil {
		PrintError(fmt.Sprintf("reference data: %v", refErr))
	} else {
		PrintSuccess(fmt.Sprintf("reference data: %d LA codes, %d CCG codes, %d populations",
			ref.LARegion.Len(), ref.CCGRegion.Len(), ref.Populations.Len()))
	}
	fmt.Println()

	_, results, err := a.collector.FetchAll(ctx)

	widths := []int{22, 8, 8, 10, 50}
	PrintTableHeader([]string{"SOURCE", "ROWS", "DATES", "TIME", "STATUS"}, widths)
	failed := 0
	for _, r := range results {
		status := "ok"
		if r.Error != nil {
			failed++
			status = truncate(r.Error.Error(), 50)
		}
		PrintTableRow([]string{
			string(r.Source),
			fmt.Sprintf("%d", r.Rows),
			fmt.Sprintf("%d", r.Dates),
			fmt.Sprintf("%.2fs", r.Duration.Seconds()),
			status,
		}, widths)
	}
	fmt.Println()

	switch {
	case err != nil:
		PrintError(err.Error())
		return err
	case refErr != nil:
		return refErr
	case failed > 0:
		PrintWarning(fmt.Sprintf("%d of %d sources failed", failed, len(results)))
	default:
		PrintSuccess(fmt.Sprintf("All %d sources fetched", len(results)))
	}
	return nil
}
