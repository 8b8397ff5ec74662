package head

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// param is a named parameter matrix.
type param struct {
	name string
	m    *mat.Dense
}

type parameterized interface {
	params() []param
}

// Params returns the named parameter matrices of h. The matrices are live.
func Params(h Head) map[string]*mat.Dense {
	p, ok := h.(parameterized)
	if !ok {
		return nil
	}
	out := make(map[string]*mat.Dense)
	for _, pr := range p.params() {
		out[pr.name] = pr.m
	}
	return out
}

func configOf(h Head) (Config, error) {
	switch h := h.(type) {
	case *Linear:
		return Config{Kind: KindLinear, Dim: h.dim}, nil
	case *Recurrent:
		return Config{Kind: KindLSTM, Dim: h.dim, Hidden: h.fwd.hidden}, nil
	case *SelfAttention:
		_, ff := h.layers[0].W1.Dims()
		return Config{Kind: KindSAN, Dim: h.dim, Layers: len(h.layers), FFDim: ff}, nil
	case *Structured:
		return Config{Kind: KindCRF, Dim: h.dim}, nil
	}
	return Config{}, fmt.Errorf("%w: %T", ErrUnknownKind, h)
}

// Write stores h as text:
//
//	H kind dim hidden layers ffdim
//	M name rows cols
//	<rows lines of cols values>
//	T from_state to_state weight   (linear-chain head only)
func Write(w io.Writer, h Head) error {
	cfg, err := configOf(h)
	if err != nil {
		return err
	}
	cfg = cfg.withDefaults()
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "H %s %d %d %d %d\n", cfg.Kind, cfg.Dim, cfg.Hidden, cfg.Layers, cfg.FFDim)

	for _, p := range h.(parameterized).params() {
		rows, cols := p.m.Dims()
		fmt.Fprintf(bw, "M %s %d %d\n", p.name, rows, cols)
		for i := 0; i < rows; i++ {
			for j, v := range p.m.RawRowView(i) {
				if j > 0 {
					bw.WriteByte(' ')
				}
				bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			}
			bw.WriteByte('\n')
		}
	}
	if s, ok := h.(*Structured); ok {
		if err := s.trans.Write(bw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read restores a head stored by Write.
func Read(r io.Reader) (Head, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	next := func() ([]string, bool) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			return strings.Fields(line), true
		}
		return nil, false
	}

	header, ok := next()
	if !ok {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("head: empty model")
	}
	if len(header) != 6 || header[0] != "H" {
		return nil, fmt.Errorf("head: malformed header %q", strings.Join(header, " "))
	}
	kind, err := ParseKind(header[1])
	if err != nil {
		return nil, err
	}
	nums, err := atois(header[2:])
	if err != nil {
		return nil, fmt.Errorf("head: malformed header: %w", err)
	}
	h, err := New(Config{Kind: kind, Dim: nums[0], Hidden: nums[1], Layers: nums[2], FFDim: nums[3]})
	if err != nil {
		return nil, err
	}

	want := Params(h)
	seen := make(map[string]bool, len(want))
	for {
		fields, ok := next()
		if !ok {
			break
		}
		switch fields[0] {
		case "M":
			if len(fields) != 4 {
				return nil, fmt.Errorf("head: malformed matrix line %q", strings.Join(fields, " "))
			}
			m, ok := want[fields[1]]
			if !ok {
				return nil, fmt.Errorf("head: unexpected parameter %q for %s head", fields[1], kind)
			}
			shape, err := atois(fields[2:])
			if err != nil {
				return nil, fmt.Errorf("head: parameter %s: %w", fields[1], err)
			}
			rows, cols := m.Dims()
			if shape[0] != rows || shape[1] != cols {
				return nil, fmt.Errorf("head: parameter %s: %w: stored %dx%d, want %dx%d",
					fields[1], ErrDimensionMismatch, shape[0], shape[1], rows, cols)
			}
			for i := 0; i < rows; i++ {
				row, ok := next()
				if !ok || len(row) != cols {
					return nil, fmt.Errorf("head: parameter %s: %w: short row %d", fields[1], ErrDimensionMismatch, i)
				}
				for j, s := range row {
					v, err := strconv.ParseFloat(s, 64)
					if err != nil {
						return nil, fmt.Errorf("head: parameter %s: %w", fields[1], err)
					}
					m.Set(i, j, v)
				}
			}
			seen[fields[1]] = true
		case "T":
			s, ok := h.(*Structured)
			if !ok {
				return nil, fmt.Errorf("head: transition line in %s model", kind)
			}
			if err := s.trans.ParseLine(fields); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("head: unknown record %q", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for name := range want {
		if !seen[name] {
			return nil, fmt.Errorf("head: parameter %s missing", name)
		}
	}
	return h, nil
}

// Save writes h to a file.
func Save(path string, h Head) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(file, h); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Load reads a head from a file written by Save.
func Load(path string) (Head, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file)
}

func atois(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
