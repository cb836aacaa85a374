package rule

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tessera/internal/feature"
	"tessera/internal/vocab"
)

// Table indexes rules by their source side.
type Table struct {
	contiguous map[string][]*Rule
	gapped     map[vocab.WordID][]*Rule
	maxLen     int
	size       int
}

func NewTable() *Table {
	return &Table{
		contiguous: make(map[string][]*Rule),
		gapped:     make(map[vocab.WordID][]*Rule),
	}
}

func sourceKey(words vocab.Sequence) string {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(w))
	}
	return string(buf)
}

// Add indexes r. Rules are kept in insertion order per source.
func (t *Table) Add(r *Rule) {
	t.size++
	hasSourceGap := false
	for _, g := range r.Gaps {
		hasSourceGap = hasSourceGap || g
	}
	if hasSourceGap {
		t.gapped[r.Source[0]] = append(t.gapped[r.Source[0]], r)
		return
	}
	k := sourceKey(r.Source)
	t.contiguous[k] = append(t.contiguous[k], r)
	t.maxLen = max(t.maxLen, len(r.Source))
}

// Len counts rules.
func (t *Table) Len() int { return t.size }

// Lookup returns the contiguous-source rules for words.
func (t *Table) Lookup(words vocab.Sequence) []*Rule {
	return t.contiguous[sourceKey(words)]
}

// LoadTable reads a phrase table file.
func LoadTable(path string, voc *vocab.Vocabulary) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open phrase table: %w", err)
	}
	defer f.Close()
	t, err := ReadTable(f, voc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadTable parses "source ||| target ||| scores" lines. Scores are log-domain
// values named TM:0, TM:1, ... An optional fourth field is ignored.
func ReadTable(r io.Reader, voc *vocab.Vocabulary) (*Table, error) {
	t := NewTable()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rl, err := ParseRule(line, voc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		t.Add(rl)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseRule parses one phrase-table line.
func ParseRule(line string, voc *vocab.Vocabulary) (*Rule, error) {
	fields := strings.Split(line, "|||")
	if len(fields) < 3 {
		return nil, fmt.Errorf("expected 'source ||| target ||| scores', got %q", line)
	}
	r := &Rule{}
	var prevGap bool
	for _, tok := range vocab.Tokenize(fields[0]) {
		if tok == GapToken {
			if len(r.Source) == 0 || prevGap {
				return nil, fmt.Errorf("misplaced %s in source %q", GapToken, fields[0])
			}
			r.Gaps[len(r.Gaps)-1] = true
			prevGap = true
			continue
		}
		r.Source = append(r.Source, voc.Intern(tok))
		r.Gaps = append(r.Gaps, false)
		prevGap = false
	}
	if len(r.Source) == 0 || prevGap {
		return nil, fmt.Errorf("bad source side %q", fields[0])
	}
	r.Gaps = r.Gaps[:len(r.Gaps)-1]

	seg := vocab.Sequence{}
	for _, tok := range vocab.Tokenize(fields[1]) {
		if tok == GapToken {
			if len(seg) == 0 {
				return nil, fmt.Errorf("misplaced %s in target %q", GapToken, fields[1])
			}
			r.Target = append(r.Target, seg)
			seg = vocab.Sequence{}
			continue
		}
		seg = append(seg, voc.Intern(tok))
	}
	if len(seg) == 0 && len(r.Target) > 0 {
		return nil, fmt.Errorf("target ends with %s: %q", GapToken, fields[1])
	}
	r.Target = append(r.Target, seg)

	for i, s := range strings.Fields(fields[2]) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("score %d: %w", i, err)
		}
		r.Features = append(r.Features, feature.Value{Name: "TM:" + strconv.Itoa(i), Value: v})
	}
	return r, nil
}
