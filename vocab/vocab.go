// Package vocab maps tokens to dense ids and keeps their corpus frequencies.
package vocab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Unknown is the id every out-of-vocabulary token maps to.
const Unknown = 0

// UnknownToken is the word stored at id Unknown.
const UnknownToken = "<unk>"

// Vocab holds words, their ids and frequencies. Ids are assigned in
// insertion order starting at 1.
type Vocab struct {
	Total float64
	Words map[string]float64
	ids   map[string]int
	list  []string
}

// New creates an empty vocabulary holding only UnknownToken.
func New() *Vocab {
	return &Vocab{
		Words: make(map[string]float64),
		ids:   map[string]int{UnknownToken: Unknown},
		list:  []string{UnknownToken},
	}
}

// Add adds freq to word, giving it an id if it is new.
func (v *Vocab) Add(word string, freq float64) int {
	id, ok := v.ids[word]
	if !ok {
		id = len(v.list)
		v.ids[word] = id
		v.list = append(v.list, word)
	}
	if word != UnknownToken {
		v.Words[word] += freq
		v.Total += freq
	}
	return id
}

// Load reads words from a file.
// File format: word frequency (space separated). A word without a
// frequency counts once.
func (v *Vocab) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return v.Read(file)
}

// Read is Load from an io.Reader.
func (v *Vocab) Read(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		freq := 1.0
		if len(parts) >= 2 {
			f, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				return fmt.Errorf("vocab: line %d: bad frequency %q", lineNo, parts[1])
			}
			freq = f
		}
		v.Add(parts[0], freq)
	}
	return scanner.Err()
}

// Write stores the words in id order, one "word freq" per line.
func (v *Vocab) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, word := range v.list[1:] {
		if _, err := fmt.Fprintf(bw, "%s %s\n", word, strconv.FormatFloat(v.Words[word], 'f', -1, 64)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Save writes the vocabulary to a file Load can read.
func (v *Vocab) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := v.Write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ID returns the id of word, or Unknown and false.
func (v *Vocab) ID(word string) (int, bool) {
	id, ok := v.ids[word]
	if !ok {
		return Unknown, false
	}
	return id, true
}

// Word returns the word with the given id, or UnknownToken.
func (v *Vocab) Word(id int) string {
	if id < 0 || id >= len(v.list) {
		return UnknownToken
	}
	return v.list[id]
}

// Len returns the number of ids, UnknownToken included.
func (v *Vocab) Len() int {
	return len(v.list)
}

// Build counts tokens and keeps those seen at least minCount times. Ids go
// by descending frequency, ties alphabetically.
func Build(sentences [][]string, minCount int) *Vocab {
	counts := make(map[string]int)
	for _, s := range sentences {
		for _, w := range s {
			counts[w]++
		}
	}
	words := make([]string, 0, len(counts))
	for w, c := range counts {
		if c >= minCount && w != UnknownToken {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		ci, cj := counts[words[i]], counts[words[j]]
		if ci != cj {
			return ci > cj
		}
		return words[i] < words[j]
	})

	v := New()
	for _, w := range words {
		v.Add(w, float64(counts[w]))
	}
	return v
}
