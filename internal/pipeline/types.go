package pipeline

import "time"

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageLookup is the result cache lookup.
	StageLookup Stage = "lookup"
	// StageDecode is the beam search.
	StageDecode Stage = "decode"
	// StageRender turns a decoder result into output text.
	StageRender Stage = "render"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the sentence is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the sentence is being processed.
	StatusWorking Status = "working"
	// StatusDone indicates the sentence has a translation.
	StatusDone Status = "done"
	// StatusFailed indicates the decoder found no complete translation.
	StatusFailed Status = "failed"
	// StatusCached indicates the translation came from the cache.
	StatusCached Status = "cached"
	// StatusError indicates the sentence aborted with an error.
	StatusError Status = "error"
)

// Event reports progress for a sentence, or for the whole batch when Index
// is negative.
type Event struct {
	Index   int
	Label   string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. OnEvent may be called from many
// goroutines at once.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations summed over a batch.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Add accumulates dur for the given stage.
func (t *Timings) Add(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] += dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	if t.stages == nil {
		return false
	}
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
