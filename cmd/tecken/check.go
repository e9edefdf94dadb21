package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/g-k/tecken/internal/orchestrator"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe every dependency once and exit",
	Long: `Check runs one deep health probe against every configured
dependency: Postgres including applied migrations, both Redis instances,
the storage endpoint, and the broker when one is configured.

Exits 0 when every probe passes, non-zero otherwise. Output is a table on
a terminal and JSON everywhere else (or always with --json).`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "force JSON output")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Check.Timeout)
	defer cancel()

	if app.otelProvider != nil {
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			if err := app.otelProvider.Shutdown(shutCtx); err != nil {
				slog.Warn("OTEL shutdown error", "err", err)
			}
		}()
	}

	results := app.orchestrator.RunDeepHealth(ctx)

	names := make([]string, 0, len(results))
	failed := 0
	for name, res := range results {
		names = append(names, name)
		if !res.OK {
			failed++
		}
	}
	sort.Strings(names)

	if checkJSON || !isatty.IsTerminal(os.Stdout.Fd()) {
		printCheckJSON(results, failed == 0)
	} else {
		printCheckTable(results, names)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(names))
	}
	return nil
}

func printCheckJSON(results map[string]orchestrator.ProbeResult, ok bool) {
	out := struct {
		Status string                              `json:"status"`
		Checks map[string]orchestrator.ProbeResult `json:"checks"`
	}{Status: orchestrator.StatusOK, Checks: results}
	if !ok {
		out.Status = orchestrator.StatusError
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		// Fallback to plain text if JSON encoding somehow fails.
		fmt.Fprintf(os.Stdout, `{"status":%q}`+"\n", out.Status)
	}
}

func printCheckTable(results map[string]orchestrator.ProbeResult, names []string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"dependency", "status", "latency", "error"})
	for _, name := range names {
		res := results[name]
		status := "ok"
		if !res.OK {
			status = "FAIL"
		}
		t.AppendRow(table.Row{name, status, fmt.Sprintf("%dms", res.LatencyMs), res.Error})
	}
	t.Render()
}
