// Package tagset defines the joint boundary+polarity tag vocabulary.
//
// Every label is either O or a pair of a boundary role (B, I, E, S) and a
// sentiment polarity (POS, NEG, NEU), giving 13 labels in total.
package tagset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidLabel is returned for label ids outside the vocabulary.
	ErrInvalidLabel = errors.New("tagset: invalid label")
	// ErrInvalidCombination is returned when a role and polarity cannot form a label.
	ErrInvalidCombination = errors.New("tagset: invalid role/polarity combination")
)

// Role is the boundary part of a label.
type Role int

const (
	Outside Role = iota // Outside any aspect
	Begin               // Begin of a multi-token aspect
	Inside              // Inside a multi-token aspect
	End                 // End of a multi-token aspect
	Single              // Single-token aspect
)

// Polarity is the sentiment part of a label.
type Polarity int

const (
	None Polarity = iota // only valid together with Outside
	Positive
	Negative
	Neutral
)

// Label is a joint tag id in [0, Size).
type Label int

// Label ids. Polarity-major: each polarity owns a block of B, I, E, S.
const (
	O Label = iota
	BPos
	IPos
	EPos
	SPos
	BNeg
	INeg
	ENeg
	SNeg
	BNeu
	INeu
	ENeu
	SNeu
)

const (
	// Size is the number of labels in the vocabulary.
	Size = 13
	// NumStates is Size plus the two virtual Start/End states used by
	// linear-chain scoring.
	NumStates = Size + 2

	numRoles = 4
)

// Valid reports whether l is inside the vocabulary.
func (l Label) Valid() bool {
	return l >= 0 && l < Size
}

// Decompose splits a label into its role and polarity.
func Decompose(l Label) (Role, Polarity, error) {
	if !l.Valid() {
		return Outside, None, fmt.Errorf("%w: %d", ErrInvalidLabel, int(l))
	}
	if l == O {
		return Outside, None, nil
	}
	k := int(l) - 1
	return Begin + Role(k%numRoles), Positive + Polarity(k/numRoles), nil
}

// Compose builds the label for a role and polarity.
// Outside only combines with None, and every other role needs a polarity.
func Compose(r Role, p Polarity) (Label, error) {
	if r == Outside {
		if p != None {
			return O, fmt.Errorf("%w: %s with %s", ErrInvalidCombination, r, p)
		}
		return O, nil
	}
	if r < Begin || r > Single || p < Positive || p > Neutral {
		return O, fmt.Errorf("%w: %s with %s", ErrInvalidCombination, r, p)
	}
	return Label(1 + int(p-Positive)*numRoles + int(r-Begin)), nil
}

// MustCompose is like Compose but panics on invalid input. Intended for
// constant tables and tests.
func MustCompose(r Role, p Polarity) Label {
	l, err := Compose(r, p)
	if err != nil {
		panic(err)
	}
	return l
}

// Role returns the boundary role of l, Outside for invalid ids.
func (l Label) Role() Role {
	r, _, _ := Decompose(l)
	return r
}

// Polarity returns the polarity of l, None for O and invalid ids.
func (l Label) Polarity() Polarity {
	_, p, _ := Decompose(l)
	return p
}

func (r Role) String() string {
	switch r {
	case Outside:
		return "O"
	case Begin:
		return "B"
	case Inside:
		return "I"
	case End:
		return "E"
	case Single:
		return "S"
	}
	return "?"
}

func (p Polarity) String() string {
	switch p {
	case None:
		return "NONE"
	case Positive:
		return "POS"
	case Negative:
		return "NEG"
	case Neutral:
		return "NEU"
	}
	return "?"
}

// String returns the conventional tag text, e.g. "B-POS" or "O".
func (l Label) String() string {
	r, p, err := Decompose(l)
	if err != nil {
		return "?"
	}
	if r == Outside {
		return "O"
	}
	return r.String() + "-" + p.String()
}

// ParsePolarity parses POS, NEG or NEU.
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToUpper(s) {
	case "POS":
		return Positive, nil
	case "NEG":
		return Negative, nil
	case "NEU":
		return Neutral, nil
	}
	return None, fmt.Errorf("%w: unknown polarity %q", ErrInvalidCombination, s)
}

// MarshalText writes the polarity as POS, NEG, NEU or NONE.
func (p Polarity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts the MarshalText forms.
func (p *Polarity) UnmarshalText(b []byte) error {
	if strings.EqualFold(string(b), "NONE") {
		*p = None
		return nil
	}
	v, err := ParsePolarity(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func parseRole(s string) (Role, bool) {
	switch s {
	case "B":
		return Begin, true
	case "I":
		return Inside, true
	case "E":
		return End, true
	case "S":
		return Single, true
	}
	return Outside, false
}

// Parse parses a BIEOS tag such as "E-NEG". "EQ", a padding tag some
// BIEOS vocabularies carry, is read as O.
func Parse(s string) (Label, error) {
	if s == "O" || s == "EQ" {
		return O, nil
	}
	head, tail, ok := strings.Cut(s, "-")
	if !ok {
		return O, fmt.Errorf("%w: cannot parse tag %q", ErrInvalidLabel, s)
	}
	r, ok := parseRole(head)
	if !ok {
		return O, fmt.Errorf("%w: cannot parse tag %q", ErrInvalidLabel, s)
	}
	p, err := ParsePolarity(tail)
	if err != nil {
		return O, err
	}
	return Compose(r, p)
}

// All returns every label in id order.
func All() []Label {
	out := make([]Label, Size)
	for i := range out {
		out[i] = Label(i)
	}
	return out
}
