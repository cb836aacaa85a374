package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tessera/internal/decoder"
	"tessera/internal/recomb"
)

const phraseTable = `a ||| A ||| -1
b ||| B ||| -1
a b ||| A B ||| -1.5
`

const arpa = `
\data\
ngram 1=4
ngram 2=1

\1-grams:
-1.0	<s>	-0.3
-1.0	A	-0.3
-1.0	B	-0.3
-1.0	</s>

\2-grams:
-0.1	A B

\end\
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "models", "phrases.txt"), phraseTable)
	writeFile(t, filepath.Join(root, FileName), `
[decoder]
beam-size = 50
distortion-limit = 0

[models]
phrase-table = "models/phrases.txt"

[weights]
"TM:0" = 2.0
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatal(err)
	}
	f, ok, err := Discover(nested)
	if err != nil || !ok {
		t.Fatalf("Discover = (%v, %v)", ok, err)
	}
	if f.Models.PhraseTable != filepath.Join(root, "models", "phrases.txt") {
		t.Fatalf("phrase table path = %q", f.Models.PhraseTable)
	}
	cfg := f.DecoderConfig()
	if cfg.BeamSize != 50 || cfg.DistortionLimit != 0 {
		t.Fatalf("decoder config = %+v", cfg)
	}
	w := f.EffectiveWeights()
	if w["TM:0"] != 2 || w["WordPenalty"] != DefaultWeights["WordPenalty"] {
		t.Fatalf("weights = %v", w)
	}
	if f.RecombinationName() != recomb.NameClassic || !f.CacheEnabled() || !f.UnknownWords() {
		t.Fatal("defaults not applied")
	}
}

func TestDiscoverNone(t *testing.T) {
	// The temp dir's ancestors are assumed free of tessera.toml.
	_, ok, err := Discover(t.TempDir())
	if err != nil || ok {
		t.Fatalf("Discover = (%v, %v)", ok, err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no models", "[decoder]\nbeam-size = 3\n", "missing [models]"},
		{"no phrase table", "[models]\nlm = \"x.arpa\"\n", "missing [models].phrase-table"},
		{"unknown key", "[models]\nphrase-table = \"p\"\nbogus = 1\n", "unknown keys: models.bogus"},
		{"bad filter", "[models]\nphrase-table = \"p\"\n[decoder]\nrecombination = \"fancy\"\n", "unknown filter"},
		{"itg dtu", "[models]\nphrase-table = \"p\"\n[decoder]\nitg = true\ndtu = true\n", "ITG"},
		{"syntax", "[models\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			writeFile(t, path, tt.body)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
			if !strings.HasPrefix(err.Error(), path) {
				t.Fatalf("error lacks file path: %v", err)
			}
		})
	}
}

func TestBuildAndDecode(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "p.txt"), phraseTable)
	writeFile(t, filepath.Join(root, "lm.arpa"), arpa)
	path := filepath.Join(root, FileName)
	writeFile(t, path, `
[decoder]
distortion-limit = 2
recombination = "ngram"

[models]
phrase-table = "p.txt"
lm = "lm.arpa"
lm-order = 2
`)
	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	e, err := Build(f, nil)
	if err != nil {
		t.Fatal(err)
	}
	if e.LM == nil || e.Table.Len() != 3 || e.Featurizers.NumSlots() != 1 {
		t.Fatalf("engine = %+v", e)
	}
	res, err := e.Decoder.Decode(context.Background(), decoder.Input{Source: e.Vocab.Parse("a b")})
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed() || e.Vocab.String(res.Best().Target) != "A B" {
		t.Fatalf("best = %v", res.Best())
	}

	fp := e.Fingerprint
	again, err := f.Fingerprint()
	if err != nil || again != fp {
		t.Fatalf("fingerprint unstable: %v", err)
	}
	f.Weights = map[string]float64{"LM": 0.25}
	if changed, _ := f.Fingerprint(); changed == fp {
		t.Fatal("weight change kept the fingerprint")
	}
}

func TestBuildLMOrderMismatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "p.txt"), phraseTable)
	writeFile(t, filepath.Join(root, "lm.arpa"), arpa)
	path := filepath.Join(root, FileName)
	writeFile(t, path, "[models]\nphrase-table = \"p.txt\"\nlm = \"lm.arpa\"\nlm-order = 3\n")
	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Build(f, nil); err == nil || !strings.Contains(err.Error(), "lm-order") {
		t.Fatalf("err = %v", err)
	}
}
