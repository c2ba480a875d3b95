package textweave

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// WordPiece is a BERT-style sub-word tokenizer backed by
// github.com/sugarme/tokenizer, loaded from a vocab.txt file. The vocabulary
// file must carry the [PAD], [UNK], [CLS], [SEP] and [END] markers.
type WordPiece struct {
	t      *tk.Tokenizer
	words  []string
	ids    map[string]int
	maxSeq int
}

// NewWordPiece loads the vocabulary file and configures BERT normalization
// and pre-tokenization. contextSize fixes the encoded window width at
// contextSize+2 to leave room for the [CLS] and [SEP] markers.
func NewWordPiece(vocabPath string, contextSize int) (*WordPiece, error) {
	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, Unk)
	if err != nil {
		return nil, fmt.Errorf("loading wordpiece vocabulary: %w", err)
	}
	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	w := &WordPiece{
		t:      t,
		ids:    make(map[string]int),
		maxSeq: contextSize + 2,
	}
	f, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("opening vocabulary: %w", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		w.ids[word] = len(w.words)
		w.words = append(w.words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}
	for _, marker := range []string{Pad, Unk, Cls, Sep, End} {
		if _, ok := w.ids[marker]; !ok {
			return nil, fmt.Errorf("vocabulary is missing the %s marker", marker)
		}
	}
	return w, nil
}

// EncodeText tokenizes raw text into sub-word ids, without markers.
func (w *WordPiece) EncodeText(text string) ([]int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	enc, err := w.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(text)), false)
	if err != nil {
		return nil, fmt.Errorf("encoding text: %w", err)
	}
	ids := enc.GetIds()
	out := make([]int, len(ids))
	copy(out, ids)
	return out, nil
}

func (w *WordPiece) EncodeBERT(tokens []int) (ids, mask, types []int) {
	return encodeBERTWindow(tokens, w.maxSeq, w.ids[Cls], w.ids[Sep], w.ids[Pad])
}

// DecodeIndexes joins sub-word tokens back into text, merging ## pieces and
// dropping marker tokens.
func (w *WordPiece) DecodeIndexes(tokens []int) (string, error) {
	var b strings.Builder
	for _, id := range tokens {
		if id < 0 || id >= len(w.words) {
			return "", fmt.Errorf("token id %d outside vocabulary of size %d", id, len(w.words))
		}
		word := w.words[id]
		switch word {
		case Pad, Cls, Sep, End:
			continue
		}
		if piece, ok := strings.CutPrefix(word, "##"); ok {
			b.WriteString(piece)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	return b.String(), nil
}

func (w *WordPiece) EndID() int     { return w.ids[End] }
func (w *WordPiece) VocabSize() int { return len(w.words) }
