package main

import (
	"fmt"
	"io"
	"time"

	"tessera/internal/pipeline"
)

func printBatchTimings(out io.Writer, summary pipeline.Summary) {
	if out == nil {
		return
	}
	t := summary.Timings
	if t.Has(pipeline.StageLookup) {
		fmt.Fprintf(out, "cache lookup %.1f ms\n", toMillis(t.Duration(pipeline.StageLookup)))
	}
	if t.Has(pipeline.StageDecode) {
		fmt.Fprintf(out, "decoded %.1f ms\n", toMillis(t.Duration(pipeline.StageDecode)))
	}
	if t.Has(pipeline.StageRender) {
		fmt.Fprintf(out, "rendered %.1f ms\n", toMillis(t.Duration(pipeline.StageRender)))
	}
	if len(summary.Timing.Phases) > 0 {
		fmt.Fprint(out, summary.Timing.Summary())
	}
	fmt.Fprintf(out, "wall %.1f ms\n", toMillis(summary.Elapsed))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
