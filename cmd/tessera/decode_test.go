package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tessera/internal/feature"
	"tessera/internal/outspace"
	"tessera/internal/pipeline"
	"tessera/internal/vocab"
)

func writeFixture(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDecodeCommand(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "phrases.txt", "das ||| the ||| -0.5\nhaus ||| house ||| -0.7\ndas haus ||| the house ||| -0.9\n")
	cfg := writeFixture(t, dir, "tessera.toml", `
[decoder]
distortion-limit = 3

[models]
phrase-table = "phrases.txt"

[weights]
"TM:0" = 1.0
`)
	input := writeFixture(t, dir, "in.txt", "das haus\nhaus das\n")
	align := filepath.Join(dir, "align.txt")

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"--config", cfg, "--quiet", "decode", "--ui", "off", "--cache=false", "--alignments", align, input})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("decode: %v\n%s", err, errOut.String())
	}
	if got, want := out.String(), "the house\nhouse the\n"; got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}
	data, err := os.ReadFile(align)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "the house\ndas haus\n0:1 => 0:1 # das haus => the house\n\n") {
		t.Fatalf("alignments:\n%s", data)
	}
}

func TestWriteResultsFormats(t *testing.T) {
	results := []pipeline.SentenceResult{
		{Index: 0, Translation: &pipeline.Translation{
			Source: "a", Target: "A",
			NBest: []pipeline.NBestEntry{
				{Rank: 0, Target: "A", Features: feature.Values{{Name: "TM:0", Value: -1}}, Score: -1},
				{Rank: 1, Target: "AA", Features: feature.Values{{Name: "TM:0", Value: -2}}, Score: -2},
			},
		}},
		{Index: 1, Translation: &pipeline.Translation{Source: "zz", Failed: true}},
	}

	var text bytes.Buffer
	if err := writeResults(&text, results, decodeOptions{format: "text"}, 1); err != nil {
		t.Fatal(err)
	}
	if text.String() != "A\n\n" {
		t.Fatalf("text = %q", text.String())
	}

	var nbest bytes.Buffer
	if err := writeResults(&nbest, results, decodeOptions{format: "text"}, 2); err != nil {
		t.Fatal(err)
	}
	want := "0 ||| A ||| TM:0=-1 ||| -1\n0 ||| AA ||| TM:0=-2 ||| -2\n"
	if nbest.String() != want {
		t.Fatalf("n-best = %q, want %q", nbest.String(), want)
	}

	var js bytes.Buffer
	if err := writeResults(&js, results, decodeOptions{format: "json"}, 1); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(js.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("json lines = %d", len(lines))
	}
	var first jsonSentence
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first.Result == nil || first.Result.Target != "A" || len(first.Result.NBest) != 2 {
		t.Fatalf("json = %+v", first)
	}
}

func TestLoadSpaces(t *testing.T) {
	dir := t.TempDir()
	refs := writeFixture(t, dir, "refs.txt", "A B ||| B A\nC\n")
	voc := vocab.New()
	spaces, err := loadSpaces(refs, "forced", voc, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := spaces[0].(*outspace.Enumerated); !ok {
		t.Fatalf("space = %T", spaces[0])
	}
	prefix, err := loadSpaces(refs, "prefix", voc, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := prefix[1].(*outspace.Prefix); !ok {
		t.Fatalf("space = %T", prefix[1])
	}
	if _, err := loadSpaces(refs, "forced", voc, 3); err == nil {
		t.Fatal("line count mismatch accepted")
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "ON": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Fatalf("readUIMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatal("invalid mode accepted")
	}
}

func TestReadLinesKeepsEmptyLines(t *testing.T) {
	lines, err := readLines(strings.NewReader("a b\r\n\nc\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 || lines[0] != "a b" || lines[1] != "" {
		t.Fatalf("lines = %q", lines)
	}
}
