package vocab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLPRNet(t *testing.T) {
	tbl, err := LPRNet()
	require.NoError(t, err)
	assert.Equal(t, 71, tbl.Len())
	assert.True(t, tbl.Contiguous())
	assert.Equal(t, "_", tbl.Blank())

	cases := map[string]int{"0": 0, "9": 9, "<Anhui>": 10, "<police>": 43, "A": 44, "Z": 69, "_": 70}
	for tok, idx := range cases {
		got, err := tbl.IndexFor(tok)
		require.NoError(t, err)
		assert.Equal(t, idx, got, tok)

		back, err := tbl.TokenFor(idx)
		require.NoError(t, err)
		assert.Equal(t, tok, back)
	}
}

func TestTable_RoundTrip(t *testing.T) {
	tbl, err := LPRNet()
	require.NoError(t, err)
	for i := 0; i < tbl.Len(); i++ {
		tok, err := tbl.TokenFor(i)
		require.NoError(t, err)
		idx, err := tbl.IndexFor(tok)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
}

func TestTable_Misses(t *testing.T) {
	tbl, err := LPRNet()
	require.NoError(t, err)

	_, err = tbl.TokenFor(71)
	assert.ErrorIs(t, err, ErrUnknownIndex)
	_, err = tbl.TokenFor(-1)
	assert.ErrorIs(t, err, ErrUnknownIndex)
	_, err = tbl.IndexFor("<Atlantis>")
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestNew_Validation(t *testing.T) {
	t.Run("duplicate index", func(t *testing.T) {
		_, err := New(map[string]int{"A": 0, "B": 0, "_": 1}, "_")
		assert.ErrorIs(t, err, ErrDuplicateIndex)
	})
	t.Run("duplicate token", func(t *testing.T) {
		_, err := FromList([]string{"A", "B", "A", "_"}, "_")
		assert.ErrorIs(t, err, ErrDuplicateToken)
	})
	t.Run("missing blank", func(t *testing.T) {
		_, err := FromList([]string{"A", "B"}, "_")
		assert.ErrorIs(t, err, ErrMissingBlank)
	})
	t.Run("gaps are allowed but not contiguous", func(t *testing.T) {
		tbl, err := New(map[string]int{"A": 0, "_": 5}, "_")
		require.NoError(t, err)
		assert.False(t, tbl.Contiguous())
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chars.txt")
	require.NoError(t, os.WriteFile(path, []byte("A\r\nB\r\n\r\n_\r\n"), 0o644))

	tbl, err := Load(path, "_")
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	idx, err := tbl.IndexFor("_")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = Load(filepath.Join(dir, "missing.txt"), "_")
	assert.Error(t, err)
}
