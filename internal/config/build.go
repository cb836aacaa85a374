package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"tessera/internal/cache"
	"tessera/internal/decoder"
	"tessera/internal/feature"
	"tessera/internal/lm"
	"tessera/internal/recomb"
	"tessera/internal/rule"
	"tessera/internal/vocab"
)

// DefaultWeights apply to features the [weights] table leaves out.
var DefaultWeights = map[string]float64{
	"TM:0":                       1,
	rule.UnknownFeature:          -100,
	feature.LanguageModelName:    1,
	feature.WordPenaltyName:      -0.5,
	feature.PhrasePenaltyName:    0,
	feature.LinearDistortionName: 0.3,
}

// Engine is a loaded model stack with its decoder.
type Engine struct {
	File        *File
	Vocab       *vocab.Vocabulary
	Table       *rule.Table
	LM          *lm.Model
	Generator   *rule.Generator
	Featurizers *feature.Set
	Scorer      *feature.Linear
	Decoder     *decoder.Decoder
	// Fingerprint changes whenever settings, weights or model files do.
	Fingerprint cache.Digest
}

// Build loads the models named by f and assembles the decoder. voc may be
// nil, in which case a fresh vocabulary is created.
func Build(f *File, voc *vocab.Vocabulary) (*Engine, error) {
	if voc == nil {
		voc = vocab.New()
	}
	e := &Engine{File: f, Vocab: voc}

	var err error
	if e.Table, err = rule.LoadTable(f.Models.PhraseTable, voc); err != nil {
		return nil, err
	}
	featurizers := []feature.Featurizer{feature.WordPenalty{}, feature.PhrasePenalty{}, feature.LinearDistortion{}}
	if f.Models.LM != "" {
		if e.LM, err = lm.LoadARPA(f.Models.LM, voc); err != nil {
			return nil, err
		}
		if f.Models.LMOrder > 0 && e.LM.Order() != f.Models.LMOrder {
			return nil, fmt.Errorf("%s: [models].lm-order is %d but %s has order %d",
				f.Path, f.Models.LMOrder, f.Models.LM, e.LM.Order())
		}
		featurizers = append(featurizers, feature.NewNGram(e.LM, feature.LanguageModelName))
	}
	if e.Featurizers, err = feature.NewSet(featurizers...); err != nil {
		return nil, err
	}
	e.Scorer = feature.NewLinear(f.EffectiveWeights())
	e.Generator = &rule.Generator{
		Table:   e.Table,
		Limit:   f.Decoder.OptionLimit,
		Gapped:  f.Decoder.DTU,
		Unknown: f.UnknownWords(),
	}

	cfg := f.DecoderConfig()
	if cfg.Filter, err = recomb.NewFilter(f.RecombinationName(), f.Decoder.MSDRecombination, e.Featurizers); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	if e.Decoder, err = decoder.New(cfg, voc, e.Generator, e.Featurizers, e.Scorer); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	if e.Fingerprint, err = f.Fingerprint(); err != nil {
		return nil, err
	}
	return e, nil
}

// EffectiveWeights merges [weights] over DefaultWeights.
func (f *File) EffectiveWeights() map[string]float64 {
	w := make(map[string]float64, len(DefaultWeights)+len(f.Weights))
	for k, v := range DefaultWeights {
		w[k] = v
	}
	for k, v := range f.Weights {
		w[k] = v
	}
	return w
}

// Fingerprint digests the canonical TOML form of f together with the size
// and modification time of every model file.
func (f *File) Fingerprint() (cache.Digest, error) {
	var buf bytes.Buffer
	canon := *f
	canon.Weights = f.EffectiveWeights()
	canon.Output = OutputSection{}
	if err := toml.NewEncoder(&buf).Encode(canon); err != nil {
		return cache.Digest{}, fmt.Errorf("fingerprint config: %w", err)
	}
	parts := []cache.Digest{cache.Sum(buf.String())}
	for _, p := range []string{f.Models.PhraseTable, f.Models.LM} {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return cache.Digest{}, err
		}
		stamp := p + "|" + strconv.FormatInt(info.Size(), 10) + "|" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
		parts = append(parts, cache.Sum(stamp))
	}
	return cache.Combine(parts...), nil
}
