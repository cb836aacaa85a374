package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tessera/internal/config"
)

const noConfigMessage = "no tessera.toml found\nplease pass --config or at least --phrase-table, e.g.:\n  tessera decode --phrase-table phrases.txt input.txt"

func addModelFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("phrase-table", "", "phrase table (overrides [models].phrase-table)")
	f.String("lm", "", "ARPA language model (overrides [models].lm)")
	f.Int("beam-size", 0, "hypotheses kept per coverage bucket")
	f.Int("distortion-limit", -1, "maximum jump past the first uncovered word (-1 = unlimited)")
	f.Int("threads", 0, "beam expansion workers per sentence (0 = GOMAXPROCS)")
	f.Int("nbest", 0, "translations reported per sentence")
	f.Bool("dtu", false, "enable discontinuous phrases with floating target segments")
	f.Bool("itg", false, "restrict reordering to ITG-compatible permutations")
	f.String("recombination", "", "recombination filter name")
	f.Bool("msd-recombination", false, "also key recombination on the MSD orientation")
	f.StringArray("weight", nil, "feature weight override name=value (repeatable)")
}

func loadConfigFile(cmd *cobra.Command) (*config.File, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		return config.Load(path)
	}
	f, found, err := config.Discover(".")
	if err != nil {
		return nil, err
	}
	if found {
		return f, nil
	}
	if cmd.Flags().Changed("phrase-table") {
		return &config.File{Path: "<flags>"}, nil
	}
	return nil, errors.New(noConfigMessage)
}

func applyOverrides(cmd *cobra.Command, f *config.File) error {
	flags := cmd.Flags()
	var err error
	str := func(name string, dst *string, isPath bool) {
		if err != nil || !flags.Changed(name) {
			return
		}
		var v string
		if v, err = flags.GetString(name); err == nil && isPath && v != "" {
			v, err = filepath.Abs(v)
		}
		*dst = v
	}
	num := func(name string, dst *int) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetInt(name)
		}
	}
	flag := func(name string, dst *bool) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetBool(name)
		}
	}

	str("phrase-table", &f.Models.PhraseTable, true)
	str("lm", &f.Models.LM, true)
	str("recombination", &f.Decoder.Recombination, false)
	num("beam-size", &f.Decoder.BeamSize)
	num("threads", &f.Decoder.Threads)
	num("nbest", &f.Decoder.NBest)
	flag("dtu", &f.Decoder.DTU)
	flag("itg", &f.Decoder.ITG)
	flag("msd-recombination", &f.Decoder.MSDRecombination)
	if err == nil && flags.Changed("distortion-limit") {
		var d int
		if d, err = flags.GetInt("distortion-limit"); err == nil {
			f.Decoder.DistortionLimit = &d
		}
	}
	if err != nil {
		return err
	}

	weights, err := flags.GetStringArray("weight")
	if err != nil {
		return err
	}
	for _, w := range weights {
		name, value, ok := strings.Cut(w, "=")
		if !ok {
			return fmt.Errorf("invalid --weight %q (expected name=value)", w)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("invalid --weight %q: %w", w, err)
		}
		if f.Weights == nil {
			f.Weights = make(map[string]float64)
		}
		f.Weights[strings.TrimSpace(name)] = v
	}
	return nil
}

func loadEngine(cmd *cobra.Command) (*config.Engine, error) {
	f, err := loadConfigFile(cmd)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cmd, f); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return config.Build(f, nil)
}

// openInput returns the named file, or stdin for "" and "-".
func openInput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	// #nosec G304 -- the user names the input file
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
