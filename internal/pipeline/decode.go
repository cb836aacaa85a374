// Package pipeline decodes a batch of sentences concurrently. One bad
// sentence never aborts the batch: its SentenceResult carries the error
// and its output line is empty so indices stay aligned.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"tessera/internal/cache"
	"tessera/internal/decoder"
	"tessera/internal/feature"
	"tessera/internal/observ"
	"tessera/internal/outspace"
	"tessera/internal/trace"
	"tessera/internal/vocab"
)

// ResultCache stores rendered translations by key; *cache.Disk implements it.
type ResultCache interface {
	Get(key cache.Digest, out any) (bool, error)
	Put(key cache.Digest, v any) error
}

// Request configures one batch.
type Request struct {
	Decoder *decoder.Decoder
	Vocab   *vocab.Vocabulary
	Lines   []string
	// Spaces optionally constrains sentence i with Spaces[i]. Constrained
	// sentences bypass the cache.
	Spaces []outspace.Space
	// Jobs bounds how many sentences decode at once; zero means one.
	Jobs       int
	NBest      int
	Alignments bool
	Cache      ResultCache
	// Fingerprint identifies everything besides the source line that
	// shapes a translation: models, weights, search settings.
	Fingerprint cache.Digest
	Progress    ProgressSink
}

// NBestEntry is one ranked complete translation.
type NBestEntry struct {
	Rank     int            `msgpack:"rank" json:"rank"`
	Target   string         `msgpack:"target" json:"target"`
	Features feature.Values `msgpack:"features" json:"features"`
	Score    float64        `msgpack:"score" json:"score"`
}

// Translation is the rendered outcome of one sentence.
type Translation struct {
	Source string `msgpack:"source" json:"source"`
	Target string `msgpack:"target" json:"target"`
	Failed bool   `msgpack:"failed" json:"failed"`
	// Partial is the fallback text of a failed sentence.
	Partial   string        `msgpack:"partial,omitempty" json:"partial,omitempty"`
	NBest     []NBestEntry  `msgpack:"nbest,omitempty" json:"nbest,omitempty"`
	Alignment string        `msgpack:"alignment,omitempty" json:"alignment,omitempty"`
	Stats     decoder.Stats `msgpack:"stats" json:"stats"`
	Timing    observ.Report `msgpack:"timing" json:"timing"`
}

// SentenceResult pairs a sentence index with its translation or error.
type SentenceResult struct {
	Index       int
	Translation *Translation
	Cached      bool
	Err         error

	elapsed map[Stage]time.Duration
}

// Line is the 1-best output line; failed and aborted sentences give "".
func (r SentenceResult) Line() string {
	if r.Err != nil || r.Translation == nil || r.Translation.Failed {
		return ""
	}
	return r.Translation.Target
}

// Summary aggregates a batch.
type Summary struct {
	Sentences int
	Failed    int
	Errors    int
	Cached    int
	Stats     decoder.Stats
	Timing    observ.Report
	Timings   Timings
	Elapsed   time.Duration
}

// Decode translates every line of req. The returned error is non-nil only
// when ctx ended the batch early; per-sentence errors live in the results.
func Decode(ctx context.Context, req *Request) ([]SentenceResult, Summary, error) {
	var summary Summary
	if req == nil || req.Decoder == nil || req.Vocab == nil {
		return nil, summary, fmt.Errorf("missing decode request")
	}
	if req.Spaces != nil && len(req.Spaces) != len(req.Lines) {
		return nil, summary, fmt.Errorf("%d output spaces for %d sentences", len(req.Spaces), len(req.Lines))
	}
	start := time.Now()
	ctx, span := trace.Start(ctx, trace.ScopeBatch, "batch")
	span.WithExtra("sentences", strconv.Itoa(len(req.Lines)))

	emitQueued(req.Progress, req.Lines)
	results := make([]SentenceResult, len(req.Lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(req.Jobs, 1))
	for i := range req.Lines {
		g.Go(func() error {
			results[i] = decodeOne(gctx, req, i, span.ID())
			return nil
		})
	}
	_ = g.Wait()

	summary = summarize(results)
	summary.Elapsed = time.Since(start)
	emit(req.Progress, Event{Index: -1, Stage: StageDecode, Status: StatusDone, Elapsed: summary.Elapsed})
	span.WithExtra("failed", strconv.Itoa(summary.Failed)).End("")
	return results, summary, ctx.Err()
}

func decodeOne(ctx context.Context, req *Request, i int, parent uint64) SentenceResult {
	line := req.Lines[i]
	res := SentenceResult{Index: i, elapsed: make(map[Stage]time.Duration, 3)}
	fail := func(stage Stage, err error) SentenceResult {
		res.Err = err
		emit(req.Progress, Event{Index: i, Label: line, Stage: stage, Status: StatusError, Err: err})
		return res
	}
	if err := ctx.Err(); err != nil {
		return fail(StageDecode, err)
	}

	var space outspace.Space
	if req.Spaces != nil {
		space = req.Spaces[i]
	}
	useCache := req.Cache != nil && space == nil
	key := cache.Combine(req.Fingerprint, cache.Sum(line))

	if useCache {
		t0 := time.Now()
		emit(req.Progress, Event{Index: i, Label: line, Stage: StageLookup, Status: StatusWorking})
		var tr Translation
		ok, err := req.Cache.Get(key, &tr)
		res.elapsed[StageLookup] = time.Since(t0)
		if err != nil {
			trace.Point(trace.FromContext(ctx), trace.ScopeSentence, "cache-miss", parent, err.Error())
		}
		if ok && err == nil {
			res.Translation = &tr
			res.Cached = true
			emit(req.Progress, Event{Index: i, Label: line, Stage: StageLookup, Status: StatusCached, Elapsed: res.elapsed[StageLookup]})
			return res
		}
	}

	t0 := time.Now()
	emit(req.Progress, Event{Index: i, Label: line, Stage: StageDecode, Status: StatusWorking})
	out, err := req.Decoder.Decode(ctx, decoder.Input{ID: i, Source: req.Vocab.Parse(line), Space: space})
	res.elapsed[StageDecode] = time.Since(t0)
	if err != nil {
		return fail(StageDecode, err)
	}

	t0 = time.Now()
	tr, err := render(req, line, out)
	res.elapsed[StageRender] = time.Since(t0)
	if err != nil {
		return fail(StageRender, err)
	}
	res.Translation = tr
	if useCache {
		if err := req.Cache.Put(key, tr); err != nil {
			trace.Point(trace.FromContext(ctx), trace.ScopeSentence, "cache-store", parent, err.Error())
		}
	}
	status := StatusDone
	if tr.Failed {
		status = StatusFailed
	}
	emit(req.Progress, Event{Index: i, Label: line, Stage: StageDecode, Status: status, Elapsed: res.elapsed[StageDecode]})
	return res
}

func render(req *Request, line string, out *decoder.Result) (*Translation, error) {
	voc := req.Vocab
	tr := &Translation{
		Source: line,
		Failed: out.Failed(),
		Stats:  out.Stats,
		Timing: out.Timing,
	}
	if best := out.Best(); best != nil {
		tr.Target = voc.String(best.Target)
	} else if p := out.Partial(); p != nil {
		tr.Partial = voc.String(p.Target)
	}
	for _, h := range out.NBest(max(req.NBest, 1)) {
		tr.NBest = append(tr.NBest, NBestEntry{
			Rank:     h.Rank,
			Target:   voc.String(h.Target),
			Features: h.Features,
			Score:    h.Score,
		})
	}
	if req.Alignments {
		var sb strings.Builder
		if err := out.WriteAlignments(&sb, voc); err != nil {
			return nil, err
		}
		tr.Alignment = sb.String()
	}
	return tr, nil
}

func summarize(results []SentenceResult) Summary {
	s := Summary{Sentences: len(results)}
	reports := make([]observ.Report, 0, len(results))
	for _, r := range results {
		for stage, d := range r.elapsed {
			s.Timings.Add(stage, d)
		}
		switch {
		case r.Err != nil:
			s.Errors++
			continue
		case r.Cached:
			s.Cached++
		}
		if r.Translation.Failed {
			s.Failed++
		}
		if !r.Cached {
			s.Stats.Add(r.Translation.Stats)
			reports = append(reports, r.Translation.Timing)
		}
	}
	s.Timing = observ.Merge(reports...)
	return s
}

func emitQueued(sink ProgressSink, lines []string) {
	if sink == nil {
		return
	}
	for i, line := range lines {
		sink.OnEvent(Event{Index: i, Label: line, Stage: StageDecode, Status: StatusQueued})
	}
}

func emit(sink ProgressSink, evt Event) {
	if sink == nil {
		return
	}
	sink.OnEvent(evt)
}
