// Package crf implements linear-chain scoring over the joint tag set:
// the forward algorithm for the negative log-likelihood and Viterbi
// decoding. The package holds no state; the transition matrix is owned by
// the caller and passed in.
package crf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/teatak/absa/tagset"
)

// Virtual boundary states. They index rows and columns of Transitions next
// to the real labels.
const (
	Start = tagset.Size
	End   = tagset.Size + 1
)

// NumLabels is the number of real labels a path can take.
const NumLabels = tagset.Size

// Transitions[from][to] is the score of moving from one state to the next.
// Row Start holds the scores of the first label, column End those of the
// last one. Column Start and row End are never read.
type Transitions [tagset.NumStates][tagset.NumStates]float64

// NewTransitions returns an all-zero matrix.
func NewTransitions() *Transitions {
	return &Transitions{}
}

// StateStr returns the text form of a state: a tag, <START> or <END>.
func StateStr(s int) string {
	switch s {
	case Start:
		return "<START>"
	case End:
		return "<END>"
	}
	if !tagset.Label(s).Valid() {
		return "?"
	}
	return tagset.Label(s).String()
}

// ParseState is the inverse of StateStr; it returns -1 for unknown text.
func ParseState(s string) int {
	switch s {
	case "<START>":
		return Start
	case "<END>":
		return End
	}
	l, err := tagset.Parse(s)
	if err != nil || s == "EQ" {
		return -1
	}
	return int(l)
}

// Write stores the non-zero entries, one per line:
//
//	T from_state to_state weight
func (t *Transitions) Write(w io.Writer) error {
	for i := 0; i < tagset.NumStates; i++ {
		for j := 0; j < tagset.NumStates; j++ {
			if t[i][j] == 0 {
				continue
			}
			if _, err := fmt.Fprintf(w, "T %s %s %s\n", StateStr(i), StateStr(j),
				strconv.FormatFloat(t[i][j], 'g', -1, 64)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseLine reads one "T from to weight" line split into fields.
func (t *Transitions) ParseLine(fields []string) error {
	if len(fields) != 4 || fields[0] != "T" {
		return fmt.Errorf("crf: malformed transition line %q", strings.Join(fields, " "))
	}
	from := ParseState(fields[1])
	to := ParseState(fields[2])
	if from < 0 || to < 0 {
		return fmt.Errorf("crf: unknown state in %q", strings.Join(fields, " "))
	}
	weight, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return fmt.Errorf("crf: bad weight in %q: %w", strings.Join(fields, " "), err)
	}
	t[from][to] = weight
	return nil
}

// Save writes the matrix to a file.
func (t *Transitions) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	writer := bufio.NewWriter(file)
	if err := t.Write(writer); err != nil {
		file.Close()
		return err
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Load reads a file written by Save. Blank lines and lines starting with
// '#' are skipped.
func (t *Transitions) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := t.ParseLine(strings.Fields(line)); err != nil {
			return err
		}
	}
	return scanner.Err()
}
