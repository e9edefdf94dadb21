package dispatch

import (
	"context"
	"log/slog"
)

// runTestPipeline drives the coverage workflow in strict order: erase stale
// data, run the suite, print the summary, then exactly one reporting
// branch. The branch is fixed by the CI signal snapshotted at startup. A
// failing step stops the pipeline with that step's exit code, so a broken
// suite never reaches the success-only reporting steps.
func (d *Dispatcher) runTestPipeline(ctx context.Context, extra []string) error {
	run := make([]string, 0, len(d.cfg.Commands.CoverageRun)+len(extra))
	run = append(run, d.cfg.Commands.CoverageRun...)
	run = append(run, extra...)

	steps := [][]string{
		d.cfg.Commands.CoverageErase,
		run,
		d.cfg.Commands.CoverageReport,
	}
	if d.cfg.Runtime.CI {
		steps = append(steps, d.cfg.Commands.CoverageXML, d.cfg.Commands.CoverageUpload)
	} else {
		steps = append(steps, d.cfg.Commands.CoverageHTML)
	}

	slog.InfoContext(ctx, "running test pipeline", "ci", d.cfg.Runtime.CI, "steps", len(steps))

	for _, argv := range steps {
		if err := d.launcher.Run(ctx, argv); err != nil {
			return err
		}
	}
	return nil
}
