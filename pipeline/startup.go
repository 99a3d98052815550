package pipeline

import (
	"errors"
	"fmt"

	"EdgeLPR/decode"
	iface "EdgeLPR/interface"
)

var ErrModelMismatch = errors.New("pipeline: model and vocabulary disagree")

// VocabularyTable is a decode vocabulary that can be checked against the
// recognizer's class count.
type VocabularyTable interface {
	decode.Vocabulary
	Len() int
	Contiguous() bool
}

// CheckModels validates the recognizer against the vocabulary once at
// startup so that class-index misses cannot happen per frame.
func CheckModels(rec iface.Recognizer, v VocabularyTable, prefix int) error {
	classes, positions := rec.NumClasses(), rec.SequenceLength()
	if !v.Contiguous() {
		return fmt.Errorf("%w: vocabulary indices are not 0..%d", ErrModelMismatch, v.Len()-1)
	}
	if v.Len() != classes {
		return fmt.Errorf("%w: vocabulary has %d tokens, recognizer has %d classes", ErrModelMismatch, v.Len(), classes)
	}
	if prefix < 0 || prefix >= positions {
		return fmt.Errorf("%w: prefix length %d leaves nothing of %d positions", ErrModelMismatch, prefix, positions)
	}
	return nil
}
