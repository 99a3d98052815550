// Package vocab holds the closed token set shared with the recognition model.
package vocab

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrDuplicateToken = errors.New("vocab: duplicate token")
	ErrDuplicateIndex = errors.New("vocab: duplicate index")
	ErrMissingBlank   = errors.New("vocab: blank token not in table")
	ErrUnknownIndex   = errors.New("vocab: unknown class index")
	ErrUnknownToken   = errors.New("vocab: unknown token")
)

// DefaultBlank is the blank token of the bundled LPRNet vocabulary.
const DefaultBlank = "_"

// Table is a bijective token <-> class index mapping. It is immutable after
// construction and safe for concurrent reads.
type Table struct {
	toIndex map[string]int
	toToken map[int]string
	blank   string
}

// New builds a table from a token->index mapping. Indices must be unique and
// blank must be one of the tokens.
func New(tokenToIndex map[string]int, blank string) (*Table, error) {
	t := &Table{
		toIndex: make(map[string]int, len(tokenToIndex)),
		toToken: make(map[int]string, len(tokenToIndex)),
		blank:   blank,
	}
	for tok, idx := range tokenToIndex {
		if prev, ok := t.toToken[idx]; ok {
			return nil, fmt.Errorf("%w: %d used by %q and %q", ErrDuplicateIndex, idx, prev, tok)
		}
		if idx < 0 {
			return nil, fmt.Errorf("vocab: negative index %d for %q", idx, tok)
		}
		t.toIndex[tok] = idx
		t.toToken[idx] = tok
	}
	if err := t.check(); err != nil {
		return nil, err
	}
	return t, nil
}

// FromList builds a table where each token's index is its position in tokens.
func FromList(tokens []string, blank string) (*Table, error) {
	m := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		if tok == "" {
			return nil, fmt.Errorf("vocab: empty token at index %d", i)
		}
		if prev, ok := m[tok]; ok {
			return nil, fmt.Errorf("%w: %q at %d and %d", ErrDuplicateToken, tok, prev, i)
		}
		m[tok] = i
	}
	return New(m, blank)
}

// Load reads one token per line; the line number (ignoring blank lines) is the index.
func Load(path, blank string) (*Table, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: read %s: %w", path, err)
	}
	return FromList(lines, blank)
}

func readLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(b), "\n") {
		l = strings.TrimRight(l, "\r")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// check verifies both directions are exact inverses.
func (t *Table) check() error {
	if len(t.toIndex) != len(t.toToken) {
		return fmt.Errorf("%w: %d tokens for %d indices", ErrDuplicateToken, len(t.toIndex), len(t.toToken))
	}
	for tok, idx := range t.toIndex {
		if t.toToken[idx] != tok {
			return fmt.Errorf("vocab: %q -> %d -> %q is not an inverse", tok, idx, t.toToken[idx])
		}
	}
	if _, ok := t.toIndex[t.blank]; !ok {
		return fmt.Errorf("%w: %q", ErrMissingBlank, t.blank)
	}
	return nil
}

func (t *Table) TokenFor(index int) (string, error) {
	tok, ok := t.toToken[index]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownIndex, index)
	}
	return tok, nil
}

func (t *Table) IndexFor(token string) (int, error) {
	idx, ok := t.toIndex[token]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownToken, token)
	}
	return idx, nil
}

func (t *Table) Blank() string { return t.blank }

func (t *Table) Len() int { return len(t.toToken) }

// Contiguous reports whether the indices are exactly 0..Len()-1, which is what a
// recognizer with Len() output classes expects.
func (t *Table) Contiguous() bool {
	for i := 0; i < len(t.toToken); i++ {
		if _, ok := t.toToken[i]; !ok {
			return false
		}
	}
	return true
}
