package textweave

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordTokenizerRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "known words", text: "hello world", want: "hello world"},
		{name: "empty", text: "", want: ""},
		{name: "extra whitespace", text: "  hello   world ", want: "hello world"},
	}
	tok := NewWordTokenizer("hello world again", 4)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := tok.EncodeText(tt.text)
			require.NoError(t, err)
			got, err := tok.DecodeIndexes(ids)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWordTokenizerUnknownWords(t *testing.T) {
	tok := NewWordTokenizer("hello world", 4)
	ids, err := tok.EncodeText("hello mars")
	require.NoError(t, err)
	require.Len(t, ids, 2)
	got, err := tok.DecodeIndexes(ids)
	require.NoError(t, err)
	assert.Equal(t, "hello "+Unk, got)
}

func TestWordTokenizerDeterministicVocab(t *testing.T) {
	a := NewWordTokenizer("c b a", 4)
	b := NewWordTokenizer("a c b", 4)
	idsA, err := a.EncodeText("a b c")
	require.NoError(t, err)
	idsB, err := b.EncodeText("a b c")
	require.NoError(t, err)
	assert.Equal(t, idsA, idsB)
}

func TestEncodeBERTWindow(t *testing.T) {
	tok := NewWordTokenizer("a b c d e f", 4)
	abc, err := tok.EncodeText("a b c")
	require.NoError(t, err)

	t.Run("short window pads at the back", func(t *testing.T) {
		ids, mask, types := tok.EncodeBERT(abc)
		require.Len(t, ids, 6)
		require.Len(t, mask, 6)
		require.Len(t, types, 6)
		assert.Equal(t, []int{1, 1, 1, 1, 1, 0}, mask)
		assert.Equal(t, tok.ids[Cls], ids[0])
		assert.Equal(t, tok.ids[Sep], ids[4])
		assert.Equal(t, tok.ids[Pad], ids[5])
		assert.Equal(t, make([]int, 6), types)
	})

	t.Run("overlong window truncates from the front", func(t *testing.T) {
		long, err := tok.EncodeText("a b c d e f")
		require.NoError(t, err)
		ids, mask, _ := tok.EncodeBERT(long)
		require.Len(t, ids, 6)
		assert.Equal(t, []int{1, 1, 1, 1, 1, 1}, mask)
		// the four most recent tokens survive
		assert.Equal(t, long[2:], ids[1:5])
	})
}

func wordpieceVocabFile(t *testing.T) string {
	t.Helper()
	vocab := "[PAD]\n[UNK]\n[CLS]\n[SEP]\n[END]\nhello\nworld\n##s\n"
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(vocab), 0o644))
	return path
}

func TestWordPieceVocab(t *testing.T) {
	wp, err := NewWordPiece(wordpieceVocabFile(t), 8)
	require.NoError(t, err)
	assert.Equal(t, 8, wp.VocabSize())
	assert.Equal(t, 4, wp.EndID())
}

func TestWordPieceMissingMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte("[PAD]\n[UNK]\nhello\n"), 0o644))
	_, err := NewWordPiece(path, 8)
	assert.Error(t, err)
}

func TestWordPieceEncodeBERTShape(t *testing.T) {
	wp, err := NewWordPiece(wordpieceVocabFile(t), 8)
	require.NoError(t, err)
	ids, mask, types := wp.EncodeBERT([]int{5, 6})
	assert.Len(t, ids, 10)
	assert.Len(t, mask, 10)
	assert.Len(t, types, 10)
	assert.Equal(t, 2, ids[0], "first slot is [CLS]")
	assert.Equal(t, 3, ids[3], "last filled slot is [SEP]")
}

func TestWordPieceDecodeIndexes(t *testing.T) {
	wp, err := NewWordPiece(wordpieceVocabFile(t), 8)
	require.NoError(t, err)
	got, err := wp.DecodeIndexes([]int{2, 5, 7, 6, 3, 0})
	require.NoError(t, err)
	assert.Equal(t, "hellos world", got, "## pieces merge, markers drop")
}

func TestWordPieceEncodeText(t *testing.T) {
	wp, err := NewWordPiece(wordpieceVocabFile(t), 8)
	require.NoError(t, err)

	ids, err := wp.EncodeText("hello world")
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	for _, id := range ids {
		assert.GreaterOrEqual(t, id, 0)
		assert.Less(t, id, wp.VocabSize())
	}
	text, err := wp.DecodeIndexes(ids)
	require.NoError(t, err)
	assert.Contains(t, text, "hello")

	empty, err := wp.EncodeText("   ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
