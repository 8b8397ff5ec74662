// Package dataset reads and writes tagged sentences in the
//
//	sentence####word=TAG word=TAG ...
//
// line format used by the SemEval laptop and restaurant corpora.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/teatak/absa/spans"
	"github.com/teatak/absa/tagset"
)

// Separator splits the raw sentence from its tagged tokens.
const Separator = "####"

// ErrMalformed is returned for lines that do not follow the format.
var ErrMalformed = errors.New("dataset: malformed line")

// Example is one tagged sentence.
type Example struct {
	Sentence string
	Words    []string
	Labels   []tagset.Label
	Spans    []spans.Span
}

// Parse reads one line whose tags are written in schema s.
func Parse(line string, s tagset.Schema) (Example, error) {
	sentence, tagged, ok := strings.Cut(line, Separator)
	if !ok {
		return Example{}, fmt.Errorf("%w: missing %q", ErrMalformed, Separator)
	}
	fields := strings.Fields(tagged)
	words := make([]string, len(fields))
	tags := make([]string, len(fields))
	for i, f := range fields {
		// Words may contain '=' themselves, so split at the last one.
		k := strings.LastIndex(f, "=")
		if k <= 0 || k == len(f)-1 {
			return Example{}, fmt.Errorf("%w: token %q", ErrMalformed, f)
		}
		words[i], tags[i] = f[:k], f[k+1:]
	}
	labels, err := tagset.ToBIEOS(s, tags)
	if err != nil {
		return Example{}, err
	}
	return Example{
		Sentence: strings.TrimSpace(sentence),
		Words:    words,
		Labels:   labels,
		Spans:    spans.Decode(labels),
	}, nil
}

// Read parses every non-blank line of r.
func Read(r io.Reader, s tagset.Schema) ([]Example, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var out []Example
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ex, err := Parse(line, s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, ex)
	}
	return out, scanner.Err()
}

// Load reads a dataset file.
func Load(path string, s tagset.Schema) ([]Example, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file, s)
}

// Format writes words and BIEOS labels as one line. The sentence part is
// the words joined by spaces.
func Format(words []string, labels []tagset.Label) (string, error) {
	if len(words) != len(labels) {
		return "", fmt.Errorf("dataset: %d words but %d labels", len(words), len(labels))
	}
	var b strings.Builder
	b.WriteString(strings.Join(words, " "))
	b.WriteString(Separator)
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		b.WriteByte('=')
		b.WriteString(labels[i].String())
	}
	return b.String(), nil
}

// Sentences returns the words of every example.
func Sentences(examples []Example) [][]string {
	out := make([][]string, len(examples))
	for i, ex := range examples {
		out[i] = ex.Words
	}
	return out
}

// Stats summarises a dataset.
type Stats struct {
	Sentences int
	Tokens    int
	Aspects   map[tagset.Polarity]int
}

// Summarize counts sentences, tokens and aspects per polarity.
func Summarize(examples []Example) Stats {
	st := Stats{Sentences: len(examples), Aspects: make(map[tagset.Polarity]int)}
	for _, ex := range examples {
		st.Tokens += len(ex.Words)
		for _, sp := range ex.Spans {
			st.Aspects[sp.Polarity]++
		}
	}
	return st
}
