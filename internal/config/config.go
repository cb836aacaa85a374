// Package config loads tessera.toml, the decoder's model and search
// configuration, and assembles a ready decoder from it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"tessera/internal/decoder"
	"tessera/internal/recomb"
)

// FileName is the configuration file looked up by Find.
const FileName = "tessera.toml"

// File is a parsed tessera.toml. Model paths are absolute after Load.
type File struct {
	Path    string             `toml:"-"`
	Decoder DecoderSection     `toml:"decoder"`
	Models  ModelsSection      `toml:"models"`
	Weights map[string]float64 `toml:"weights"`
	Output  OutputSection      `toml:"output"`
}

type DecoderSection struct {
	BeamSize         int    `toml:"beam-size"`
	DistortionLimit  *int   `toml:"distortion-limit"`
	ITG              bool   `toml:"itg"`
	DTU              bool   `toml:"dtu"`
	Threads          int    `toml:"threads"`
	Recombination    string `toml:"recombination"`
	MSDRecombination bool   `toml:"msd-recombination"`
	NBest            int    `toml:"nbest"`
	MaxFloating      int    `toml:"max-floating"`
	MaxTargetSpan    int    `toml:"max-target-span"`
	GapsInFutureCost bool   `toml:"gaps-in-future-cost"`
	OptionLimit      int    `toml:"option-limit"`
	Unknown          *bool  `toml:"unknown-words"`
}

type ModelsSection struct {
	PhraseTable string `toml:"phrase-table"`
	LM          string `toml:"lm"`
	LMOrder     int    `toml:"lm-order"`
}

type OutputSection struct {
	Alignments string `toml:"alignments"`
	NBestFile  string `toml:"nbest-file"`
	Cache      *bool  `toml:"cache"`
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover finds and loads the nearest tessera.toml above startDir.
func Discover(startDir string) (*File, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	f, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return f, true, nil
}

// Load parses path and resolves model paths against its directory.
func Load(path string) (*File, error) {
	f := &File{Path: path}
	meta, err := toml.DecodeFile(path, f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if !meta.IsDefined("models") {
		return nil, fmt.Errorf("%s: missing [models]", path)
	}
	if !meta.IsDefined("models", "phrase-table") || strings.TrimSpace(f.Models.PhraseTable) == "" {
		return nil, fmt.Errorf("%s: missing [models].phrase-table", path)
	}
	root := filepath.Dir(path)
	f.Models.PhraseTable = resolve(root, f.Models.PhraseTable)
	f.Models.LM = resolve(root, f.Models.LM)
	f.Output.Alignments = resolve(root, f.Output.Alignments)
	f.Output.NBestFile = resolve(root, f.Output.NBestFile)
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func resolve(root, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

// Validate checks values that TOML typing cannot.
func (f *File) Validate() error {
	if f.Models.PhraseTable == "" {
		return fmt.Errorf("missing [models].phrase-table")
	}
	if name := f.RecombinationName(); !slices.Contains(recomb.Names(), name) {
		return fmt.Errorf("[decoder].recombination: unknown filter %q (known: %s)", name, strings.Join(recomb.Names(), ", "))
	}
	if f.Models.LMOrder < 0 {
		return fmt.Errorf("[models].lm-order must be positive")
	}
	if f.Decoder.OptionLimit < 0 {
		return fmt.Errorf("[decoder].option-limit must be >= 0")
	}
	cfg := f.DecoderConfig()
	return cfg.Validate()
}

// RecombinationName is the configured filter, defaulting to classic (or
// dtu in DTU mode).
func (f *File) RecombinationName() string {
	if name := strings.TrimSpace(f.Decoder.Recombination); name != "" {
		return strings.ToLower(name)
	}
	if f.Decoder.DTU {
		return recomb.NameDTU
	}
	return recomb.NameClassic
}

// DecoderConfig converts the [decoder] section. The recombination filter
// depends on the featurizer set and is filled in by Build.
func (f *File) DecoderConfig() decoder.Config {
	d := f.Decoder
	limit := -1
	if d.DistortionLimit != nil {
		limit = *d.DistortionLimit
	}
	return decoder.Config{
		BeamSize:         d.BeamSize,
		DistortionLimit:  limit,
		ITG:              d.ITG,
		DTU:              d.DTU,
		Threads:          d.Threads,
		NBest:            d.NBest,
		MaxFloating:      d.MaxFloating,
		MaxTargetSpan:    d.MaxTargetSpan,
		GapsInFutureCost: d.GapsInFutureCost,
	}
}

// CacheEnabled reports [output].cache, which defaults to true.
func (f *File) CacheEnabled() bool {
	return f.Output.Cache == nil || *f.Output.Cache
}

// UnknownWords reports [decoder].unknown-words, which defaults to true.
func (f *File) UnknownWords() bool {
	return f.Decoder.Unknown == nil || *f.Decoder.Unknown
}
