package lm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tessera/internal/vocab"
)

// LoadARPA reads an ARPA file from path. Words are interned into voc.
func LoadARPA(path string, voc *vocab.Vocabulary) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open language model: %w", err)
	}
	defer f.Close()
	m, err := ReadARPA(f, voc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadARPA parses ARPA text. The order is taken from the \data\ header.
func ReadARPA(r io.Reader, voc *vocab.Vocabulary) (*Model, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		m       *Model
		order   int
		current int
		lineNo  int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == `\data\`:
			current = 0
			continue
		case line == `\end\`:
			if m == nil {
				return nil, fmt.Errorf("line %d: \\end\\ before any n-gram section", lineNo)
			}
			return m, nil
		case strings.HasPrefix(line, "ngram "):
			n, _, ok := strings.Cut(strings.TrimPrefix(line, "ngram "), "=")
			if !ok {
				return nil, fmt.Errorf("line %d: malformed header %q", lineNo, line)
			}
			v, err := strconv.Atoi(strings.TrimSpace(n))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			order = max(order, v)
			continue
		case strings.HasPrefix(line, `\`) && strings.HasSuffix(line, "-grams:"):
			v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, `\`), "-grams:"))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if m == nil {
				m = NewModel(max(order, v))
			}
			current = v
			continue
		}
		if current == 0 || m == nil {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < current+1 {
			return nil, fmt.Errorf("line %d: expected %d words in %q", lineNo, current, line)
		}
		prob, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		backoff := 0.0
		if len(fields) > current+1 {
			if backoff, err = strconv.ParseFloat(fields[current+1], 64); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
		words := make([]vocab.WordID, current)
		for i := range current {
			words[i] = voc.Intern(fields[1+i])
		}
		m.Add(words, log10ToLn(prob), log10ToLn(backoff))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("no n-gram sections")
	}
	return m, nil
}
