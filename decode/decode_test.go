package decode

import (
	"math/rand"
	"testing"

	iface "EdgeLPR/interface"
	"EdgeLPR/vocab"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(t *testing.T) *vocab.Table {
	t.Helper()
	tbl, err := vocab.FromList([]string{"X", "A", "B", "<Beijing>", "_"}, "_")
	require.NoError(t, err)
	return tbl
}

func seqOf(t *testing.T, tbl *vocab.Table, tokens ...string) iface.CharacterSequence {
	t.Helper()
	seq := make(iface.CharacterSequence, len(tokens))
	for i, tok := range tokens {
		idx, err := tbl.IndexFor(tok)
		require.NoError(t, err)
		seq[i] = idx
	}
	return seq
}

func TestGreedy(t *testing.T) {
	tbl := table(t)

	cases := []struct {
		name   string
		tokens []string
		offset int
		want   string
	}{
		{"prefix then AAB", []string{"X", "X", "X", "X", "X", "X", "X", "A", "A", "_", "B"}, 7, "AB"},
		{"blank separates repeats", []string{"A", "A", "_", "A"}, 0, "AA"},
		{"leading blank seed", []string{"_", "_", "A"}, 0, "A"},
		{"all blanks", []string{"_", "_", "_"}, 0, ""},
		{"multi-char tags", []string{"<Beijing>", "<Beijing>", "A", "_", "B", "B"}, 0, "<Beijing>AB"},
		{"prefix covers everything", []string{"A", "B"}, 2, ""},
		{"offset beyond length", []string{"A", "B"}, 5, ""},
		{"prefix token is not compared", []string{"A", "A", "B"}, 1, "AB"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plate, err := Greedy(seqOf(t, tbl, tc.tokens...), tc.offset, tbl)
			require.NoError(t, err)
			assert.Equal(t, tc.want, plate.String())
		})
	}
}

func TestGreedy_UnknownIndex(t *testing.T) {
	tbl := table(t)
	_, err := Greedy(iface.CharacterSequence{0, 1, 99}, 0, tbl)
	assert.ErrorIs(t, err, vocab.ErrUnknownIndex)

	// misses inside the skipped prefix are never looked up
	plate, err := Greedy(iface.CharacterSequence{99, 1}, 1, tbl)
	require.NoError(t, err)
	assert.Equal(t, "A", plate.String())
}

func TestGreedy_NegativeOffset(t *testing.T) {
	_, err := Greedy(iface.CharacterSequence{1}, -1, table(t))
	assert.Error(t, err)
}

func TestGreedy_Properties(t *testing.T) {
	tbl, err := vocab.LPRNet()
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		n := rng.Intn(30)
		seq := make(iface.CharacterSequence, n)
		for j := range seq {
			// bias towards blanks and repeats
			switch rng.Intn(4) {
			case 0:
				seq[j] = tbl.Len() - 1
			case 1:
				if j > 0 {
					seq[j] = seq[j-1]
					continue
				}
				fallthrough
			default:
				seq[j] = rng.Intn(tbl.Len())
			}
		}
		k := 0
		if n > 0 {
			k = rng.Intn(n + 1)
		}

		plate, err := Greedy(seq, k, tbl)
		require.NoError(t, err)
		again, err := Greedy(seq, k, tbl)
		require.NoError(t, err)
		assert.Equal(t, plate, again)

		assert.Equal(t, runs(t, tbl, seq[k:]), plate)
		for _, tok := range plate {
			assert.NotEqual(t, tbl.Blank(), tok)
		}
	}
}

// runs emits one token per maximal run of equal tokens, skipping blank runs.
// Equal neighbours in the result are only possible across a blank run.
func runs(t *testing.T, tbl *vocab.Table, seq iface.CharacterSequence) iface.DecodedPlate {
	t.Helper()
	out := iface.DecodedPlate{}
	for i, idx := range seq {
		if i > 0 && seq[i-1] == idx {
			continue
		}
		tok, err := tbl.TokenFor(idx)
		require.NoError(t, err)
		if tok != tbl.Blank() {
			out = append(out, tok)
		}
	}
	return out
}
