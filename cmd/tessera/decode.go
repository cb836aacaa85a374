package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tessera/internal/cache"
	"tessera/internal/config"
	"tessera/internal/outspace"
	"tessera/internal/pipeline"
	"tessera/internal/vocab"
)

// referenceSeparator splits alternative references on one line.
const referenceSeparator = " ||| "

var decodeCmd = &cobra.Command{
	Use:   "decode [flags] [input]",
	Short: "Translate a file (or stdin) line by line",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDecode,
}

func init() {
	addModelFlags(decodeCmd)
	f := decodeCmd.Flags()
	f.String("format", "text", "output format (text|json)")
	f.String("ui", "auto", "progress view (auto|on|off)")
	f.Int("jobs", 1, "sentences decoded concurrently")
	f.String("alignments", "", "append alignment blocks to this file (overrides [output].alignments)")
	f.String("nbest-file", "", "write n-best lists to this file (overrides [output].nbest-file)")
	f.Bool("cache", true, "reuse cached translations (overrides [output].cache)")
	f.String("reference", "", "constrain each sentence to the references on the matching line")
	f.String("reference-mode", "forced", "how references constrain output (forced|prefix)")
}

type decodeOptions struct {
	format     string
	ui         uiMode
	jobs       int
	alignments string
	nbestFile  string
	useCache   bool
	reference  string
	refMode    string
	quiet      bool
	timings    bool
}

func readDecodeOptions(cmd *cobra.Command, file *config.File) (decodeOptions, error) {
	flags := cmd.Flags()
	var o decodeOptions
	var err error
	get := func(name string, dst *string) {
		if err == nil {
			*dst, err = flags.GetString(name)
		}
	}
	var uiValue string
	get("format", &o.format)
	get("ui", &uiValue)
	get("alignments", &o.alignments)
	get("nbest-file", &o.nbestFile)
	get("reference", &o.reference)
	get("reference-mode", &o.refMode)
	if err != nil {
		return o, err
	}
	if o.jobs, err = flags.GetInt("jobs"); err != nil {
		return o, err
	}
	if o.quiet, err = cmd.Root().PersistentFlags().GetBool("quiet"); err != nil {
		return o, err
	}
	if o.timings, err = cmd.Root().PersistentFlags().GetBool("timings"); err != nil {
		return o, err
	}
	o.useCache = file.CacheEnabled()
	if flags.Changed("cache") {
		if o.useCache, err = flags.GetBool("cache"); err != nil {
			return o, err
		}
	}
	if o.alignments == "" {
		o.alignments = file.Output.Alignments
	}
	if o.nbestFile == "" {
		o.nbestFile = file.Output.NBestFile
	}
	o.format = strings.ToLower(o.format)
	if o.format != "text" && o.format != "json" {
		return o, errInvalidFlag("format", o.format, "text|json")
	}
	if o.refMode != "forced" && o.refMode != "prefix" {
		return o, errInvalidFlag("reference-mode", o.refMode, "forced|prefix")
	}
	if o.ui, err = readUIMode(uiValue); err != nil {
		return o, err
	}
	return o, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine(cmd)
	if err != nil {
		return err
	}
	opts, err := readDecodeOptions(cmd, engine.File)
	if err != nil {
		return err
	}

	inputPath := ""
	if len(args) == 1 {
		inputPath = args[0]
	}
	lines, err := readLinesFrom(inputPath)
	if err != nil {
		return err
	}

	nbest := engine.Decoder.Config().NBest
	req := &pipeline.Request{
		Decoder:     engine.Decoder,
		Vocab:       engine.Vocab,
		Lines:       lines,
		Jobs:        opts.jobs,
		NBest:       nbest,
		Alignments:  opts.alignments != "" || opts.format == "json",
		Fingerprint: cache.Combine(engine.Fingerprint, cache.Sum(fmt.Sprintf("nbest=%d align=%t", nbest, opts.alignments != "" || opts.format == "json"))),
	}
	if opts.reference != "" {
		if req.Spaces, err = loadSpaces(opts.reference, opts.refMode, engine.Vocab, len(lines)); err != nil {
			return err
		}
	}
	if opts.useCache {
		disk, err := cache.OpenDefault("tessera")
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		req.Cache = disk
	}

	ctx := cmd.Context()
	var (
		results []pipeline.SentenceResult
		summary pipeline.Summary
	)
	if shouldUseTUI(opts.ui) && len(lines) > 0 {
		results, summary, err = runDecodeWithUI(ctx, "decoding", req)
	} else {
		results, summary, err = pipeline.Decode(ctx, req)
	}
	if err != nil && results == nil {
		return err
	}

	out := bufio.NewWriter(cmd.OutOrStdout())
	writeErr := writeResults(out, results, opts, nbest)
	if flushErr := out.Flush(); writeErr == nil {
		writeErr = flushErr
	}
	if writeErr != nil {
		return writeErr
	}
	if opts.alignments != "" {
		if err := appendAlignments(opts.alignments, results); err != nil {
			return err
		}
	}
	if opts.nbestFile != "" {
		if err := writeNBestFile(opts.nbestFile, results); err != nil {
			return err
		}
	}

	stderr := cmd.ErrOrStderr()
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(stderr, "sentence %d: %v\n", r.Index, r.Err)
		}
	}
	if !opts.quiet {
		printSummary(stderr, summary)
	}
	if opts.timings {
		printBatchTimings(stderr, summary)
	}
	if err != nil {
		return err
	}
	if summary.Errors > 0 {
		return fmt.Errorf("%d of %d sentences aborted", summary.Errors, summary.Sentences)
	}
	return nil
}

func readLinesFrom(path string) ([]string, error) {
	in, closeIn, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer closeIn()
	return readLines(in)
}

func readLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines, sc.Err()
}

func loadSpaces(path, mode string, voc *vocab.Vocabulary, n int) ([]outspace.Space, error) {
	refs, err := readLinesFrom(path)
	if err != nil {
		return nil, err
	}
	if len(refs) != n {
		return nil, fmt.Errorf("%s: %d reference lines for %d input lines", path, len(refs), n)
	}
	spaces := make([]outspace.Space, n)
	for i, line := range refs {
		if mode == "prefix" {
			spaces[i] = outspace.NewPrefix(voc.Parse(line))
			continue
		}
		var seqs []vocab.Sequence
		for _, ref := range strings.Split(line, referenceSeparator) {
			seqs = append(seqs, voc.Parse(ref))
		}
		spaces[i] = outspace.NewEnumerated(seqs...)
	}
	return spaces, nil
}

type jsonSentence struct {
	ID     int                  `json:"id"`
	Cached bool                 `json:"cached,omitempty"`
	Error  string               `json:"error,omitempty"`
	Result *pipeline.Translation `json:"result,omitempty"`
}

func writeResults(w io.Writer, results []pipeline.SentenceResult, opts decodeOptions, nbest int) error {
	if opts.format == "json" {
		enc := json.NewEncoder(w)
		for _, r := range results {
			js := jsonSentence{ID: r.Index, Cached: r.Cached, Result: r.Translation}
			if r.Err != nil {
				js.Error = r.Err.Error()
			}
			if err := enc.Encode(js); err != nil {
				return err
			}
		}
		return nil
	}
	if nbest > 1 && opts.nbestFile == "" {
		return writeNBest(w, results)
	}
	for _, r := range results {
		if _, err := fmt.Fprintln(w, r.Line()); err != nil {
			return err
		}
	}
	return nil
}

// writeNBest writes "id ||| target ||| features ||| score" lines.
func writeNBest(w io.Writer, results []pipeline.SentenceResult) error {
	for _, r := range results {
		if r.Translation == nil {
			continue
		}
		for _, e := range r.Translation.NBest {
			if _, err := fmt.Fprintf(w, "%d ||| %s ||| %s ||| %g\n", r.Index, e.Target, e.Features, e.Score); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeNBestFile(path string, results []pipeline.SentenceResult) error {
	// #nosec G304 -- output path comes from the user's configuration
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	err = writeNBest(bw, results)
	if flushErr := bw.Flush(); err == nil {
		err = flushErr
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func appendAlignments(path string, results []pipeline.SentenceResult) error {
	// #nosec G304 -- output path comes from the user's configuration
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	for _, r := range results {
		block := "\n\n"
		if r.Translation != nil {
			block = r.Translation.Alignment
		}
		if _, err = bw.WriteString(block); err != nil {
			break
		}
	}
	if flushErr := bw.Flush(); err == nil {
		err = flushErr
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func printSummary(w io.Writer, s pipeline.Summary) {
	ok := s.Sentences - s.Failed - s.Errors
	fmt.Fprintf(w, "decoded %s sentences", color.GreenString("%d/%d", ok, s.Sentences))
	if s.Failed > 0 {
		fmt.Fprintf(w, ", %s", color.YellowString("%d failed", s.Failed))
	}
	if s.Errors > 0 {
		fmt.Fprintf(w, ", %s", color.RedString("%d aborted", s.Errors))
	}
	if s.Cached > 0 {
		fmt.Fprintf(w, ", %d cached", s.Cached)
	}
	fmt.Fprintf(w, " in %.1f ms (%d hypotheses, %d recombined, %d pruned)\n",
		toMillis(s.Elapsed), s.Stats.Generated, s.Stats.Beams.Recombined, s.Stats.Beams.Pruned)
}
