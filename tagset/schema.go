package tagset

import (
	"fmt"
	"strings"
)

// Schema is the tagging schema a dataset or model output is written in.
type Schema int

const (
	// SchemaBIEOS tags are read directly.
	SchemaBIEOS Schema = iota
	// SchemaBIO tags use B/I only; converted through OT.
	SchemaBIO
	// SchemaOT tags mark every aspect token with T-<polarity>.
	SchemaOT
)

func (s Schema) String() string {
	switch s {
	case SchemaBIEOS:
		return "BIEOS"
	case SchemaBIO:
		return "BIO"
	case SchemaOT:
		return "OT"
	}
	return "?"
}

// ParseSchema parses BIEOS, BIO or OT (case-insensitive).
func ParseSchema(s string) (Schema, error) {
	switch strings.ToUpper(s) {
	case "BIEOS":
		return SchemaBIEOS, nil
	case "BIO":
		return SchemaBIO, nil
	case "OT":
		return SchemaOT, nil
	}
	return SchemaBIEOS, fmt.Errorf("tagset: invalid tagging schema %q", s)
}

func isOutsideTag(t string) bool {
	return t == "O" || t == "EQ"
}

// BIOToOT rewrites B-x and I-x tags as T-x.
func BIOToOT(tags []string) ([]string, error) {
	out := make([]string, len(tags))
	for i, t := range tags {
		if isOutsideTag(t) {
			out[i] = "O"
			continue
		}
		_, pol, ok := strings.Cut(t, "-")
		if !ok {
			return nil, fmt.Errorf("%w: cannot parse tag %q at %d", ErrInvalidLabel, t, i)
		}
		out[i] = "T-" + pol
	}
	return out, nil
}

// OTToBIEOS turns runs of consecutive T-x tags into B/I/E or S tags. The
// polarity written at each position is the one found there; a run with
// mixed polarities stays a single aspect.
func OTToBIEOS(tags []string) ([]string, error) {
	n := len(tags)
	out := make([]string, n)
	inside := func(i int) bool {
		return i >= 0 && i < n && !isOutsideTag(tags[i])
	}
	for i, t := range tags {
		if isOutsideTag(t) {
			out[i] = "O"
			continue
		}
		_, pol, ok := strings.Cut(t, "-")
		if !ok {
			return nil, fmt.Errorf("%w: cannot parse tag %q at %d", ErrInvalidLabel, t, i)
		}
		prev, next := inside(i-1), inside(i+1)
		switch {
		case !prev && !next:
			out[i] = "S-" + pol
		case !prev:
			out[i] = "B-" + pol
		case !next:
			out[i] = "E-" + pol
		default:
			out[i] = "I-" + pol
		}
	}
	return out, nil
}

// ToBIEOS converts tags written in schema s into labels.
func ToBIEOS(s Schema, tags []string) ([]Label, error) {
	var err error
	switch s {
	case SchemaOT:
		tags, err = OTToBIEOS(tags)
	case SchemaBIO:
		if tags, err = BIOToOT(tags); err == nil {
			tags, err = OTToBIEOS(tags)
		}
	}
	if err != nil {
		return nil, err
	}
	labels := make([]Label, len(tags))
	for i, t := range tags {
		if labels[i], err = Parse(t); err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
	}
	return labels, nil
}

// Strings renders labels as their tag text.
func Strings(labels []Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.String()
	}
	return out
}
