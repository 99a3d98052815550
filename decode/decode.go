// Package decode turns recognizer class sequences into plate strings.
package decode

import (
	"fmt"

	iface "EdgeLPR/interface"
)

// Vocabulary is the part of vocab.Table the decoder needs.
type Vocabulary interface {
	TokenFor(index int) (string, error)
	Blank() string
}

// Greedy performs CTC-style greedy decoding: the first offset positions are
// skipped, consecutive identical tokens collapse to one, and blanks are
// dropped. Collapsing runs on the raw stream, so a blank between two equal
// tokens keeps both of them.
//
// An index with no token is reported as an error, never substituted.
func Greedy(seq iface.CharacterSequence, offset int, v Vocabulary) (iface.DecodedPlate, error) {
	if offset < 0 {
		return nil, fmt.Errorf("decode: negative offset %d", offset)
	}
	if offset > len(seq) {
		offset = len(seq)
	}
	blank := v.Blank()
	prev := blank
	plate := make(iface.DecodedPlate, 0, len(seq)-offset)
	for pos, idx := range seq[offset:] {
		tok, err := v.TokenFor(idx)
		if err != nil {
			return nil, fmt.Errorf("decode: position %d: %w", pos+offset, err)
		}
		if tok != prev && tok != blank {
			plate = append(plate, tok)
		}
		prev = tok
	}
	return plate, nil
}
