package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/covid-report/internal/brain"
	"github.com/wonny/covid-report/internal/s6_report"
)

var (
	generateOutput string
	generatePages  []string
)

// generateCmd runs the pipeline once
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Fetch every source and write the report pages once",
	Long: `Runs the full pipeline once:

S0 → S1 → S2 → S3 → S4 → S5 → S6

- S0: fetch sources, load reference tables
- S1: apply known corrections
- S2: aggregate to NHS regions
- S3: 7-day centred rolling means
- S4: rates per 100,000
- S5: regional trend scores
- S6: charts, pages, map data

A source that fails or returns malformed data only removes the sections
that need it. A schema change in a reference file or a correction that no
longer fits its table aborts the run with exit code 1.

Example:
  go run ./cmd/report generate
  go run ./cmd/report generate --output ./public --page index`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "output directory (default OUTPUT_DIR)")
	generateCmd.Flags().StringSliceVar(&generatePages, "page", nil, fmt.Sprintf("pages to render %v (default all)", s6_report.AllPages()))
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		PrintError(err.Error())
		return err
	}

	outDir := a.cfg.OutputDir
	if generateOutput != "" {
		outDir = generateOutput
	}
	orch, err := a.orchestrator(outDir)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	PrintDoubleSeparator()
	fmt.Println("  UK COVID-19 report")
	PrintSeparator()
	PrintKeyValue("Output", outDir, 8)
	PrintKeyValue("Policy", a.cfg.PolicyFile, 8)
	PrintSeparator()

	result, err := orch.Run(ctx, brain.RunConfig{Pages: generatePages})
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintTableHeader([]string{"PAGE", "SECTION", "STATUS"}, []int{10, 32, 40})
	for _, s := range result.Sections {
		status := "ok"
		if !s.OK {
			status = "omitted: " + truncate(s.Error, 31)
		}
		PrintTableRow([]string{s.Page, s.Section, status}, []int{10, 32, 40})
	}
	fmt.Println()

	for _, p := range result.Pages {
		PrintList([]string{p})
	}
	if failed := result.FailedSections(); len(failed) > 0 {
		PrintWarning(fmt.Sprintf("%d section(s) omitted, see the log for details", len(failed)))
	}
	PrintSuccess(fmt.Sprintf("Run %s completed in %.2fs (source coverage %.0f%%)",
		result.RunID, result.Duration().Seconds(), result.Quality.QualityScore*100))

	return nil
}
