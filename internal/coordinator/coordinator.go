package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"fundprice/internal/fetcher"
)

// Acquirer produces one outcome per instrument and never fails.
type Acquirer interface {
	Acquire(ctx context.Context, ref fetcher.InstrumentRef) fetcher.Outcome
}

// Coordinator runs acquisitions for a batch of instruments, one at a time
type Coordinator struct {
	acquirer  Acquirer
	outputDir string
}

// New creates a new Coordinator that writes into outputDir
func New(acquirer Acquirer, outputDir string) *Coordinator {
	return &Coordinator{
		acquirer:  acquirer,
		outputDir: outputDir,
	}
}

// Run acquires every instrument in order and returns their outcomes in the
// same order. Per-instrument failures are recorded in the outcomes; the only
// error returned is an unusable output directory. An empty batch yields no
// outcomes.
func (c *Coordinator) Run(ctx context.Context, refs []fetcher.InstrumentRef) ([]fetcher.Outcome, error) {
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", c.outputDir, err)
	}

	runID := uuid.NewString()
	logger := slog.With("run_id", runID)
	logger.Info("starting batch", "instruments", len(refs), "output_dir", c.outputDir)

	start := time.Now()
	outcomes := make([]fetcher.Outcome, 0, len(refs))
	failed := 0

	for i, ref := range refs {
		out := c.acquirer.Acquire(ctx, ref)
		if out.Failed() {
			failed++
		}
		logger.Debug("instrument done",
			"index", i,
			"source", ref.Source,
			"identifier", ref.Identifier,
			"failed", out.Failed())
		outcomes = append(outcomes, out)
	}

	logger.Info("batch complete",
		"instruments", len(refs),
		"failed", failed,
		"elapsed", time.Since(start))

	return outcomes, nil
}
