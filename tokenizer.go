package textweave

import (
	"fmt"
	"sort"
	"strings"
)

// Special vocabulary markers. End is the end-of-sequence marker generation
// stops on.
const (
	Pad = "[PAD]"
	Unk = "[UNK]"
	Cls = "[CLS]"
	Sep = "[SEP]"
	End = "[END]"
)

// Tokenizer maps raw text to integer token sequences and back, and builds
// fixed-length BERT-style input triples aligned to the context window.
type Tokenizer interface {
	// EncodeText tokenizes raw text into token ids.
	EncodeText(text string) ([]int, error)
	// EncodeBERT turns a token sequence into the fixed-width
	// (input_ids, attention_mask, token_type_ids) triple the scorer
	// expects, truncating from the front and padding at the back.
	EncodeBERT(tokens []int) (ids, mask, types []int)
	// DecodeIndexes renders token ids back into text, skipping markers.
	DecodeIndexes(tokens []int) (string, error)
	// EndID is the id of the end-of-sequence marker.
	EndID() int
	VocabSize() int
}

// WordTokenizer is a whitespace word-level tokenizer over a closed
// vocabulary. It is the small-corpus counterpart of the WordPiece tokenizer
// and shares its encoding contract.
type WordTokenizer struct {
	ids    map[string]int
	words  []string
	maxSeq int
}

// NewWordTokenizer builds the vocabulary from the words of the corpus, in
// deterministic sorted order after the marker tokens. The encoded width is
// contextSize plus two, so a full context window fits next to the [CLS] and
// [SEP] markers.
func NewWordTokenizer(corpus string, contextSize int) *WordTokenizer {
	t := &WordTokenizer{
		ids:    make(map[string]int),
		maxSeq: contextSize + 2,
	}
	for _, s := range []string{Pad, Unk, Cls, Sep, End} {
		t.ids[s] = len(t.words)
		t.words = append(t.words, s)
	}
	seen := make(map[string]bool)
	var uniq []string
	for _, w := range strings.Fields(corpus) {
		if !seen[w] {
			seen[w] = true
			uniq = append(uniq, w)
		}
	}
	sort.Strings(uniq)
	for _, w := range uniq {
		t.ids[w] = len(t.words)
		t.words = append(t.words, w)
	}
	return t
}

func (t *WordTokenizer) EncodeText(text string) ([]int, error) {
	var out []int
	for _, w := range strings.Fields(text) {
		id, ok := t.ids[w]
		if !ok {
			id = t.ids[Unk]
		}
		out = append(out, id)
	}
	return out, nil
}

func (t *WordTokenizer) EncodeBERT(tokens []int) (ids, mask, types []int) {
	return encodeBERTWindow(tokens, t.maxSeq, t.ids[Cls], t.ids[Sep], t.ids[Pad])
}

func (t *WordTokenizer) DecodeIndexes(tokens []int) (string, error) {
	var words []string
	for _, id := range tokens {
		if id < 0 || id >= len(t.words) {
			return "", fmt.Errorf("token id %d outside vocabulary of size %d", id, len(t.words))
		}
		w := t.words[id]
		switch w {
		case Pad, Cls, Sep, End:
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, " "), nil
}

func (t *WordTokenizer) EndID() int     { return t.ids[End] }
func (t *WordTokenizer) VocabSize() int { return len(t.words) }

// encodeBERTWindow builds the fixed-width triple shared by all tokenizers:
// [CLS] window [SEP] padded to maxSeq, with the window truncated from the
// front so the most recent tokens survive. Segment ids are all zero as only
// single-segment inputs exist here.
func encodeBERTWindow(tokens []int, maxSeq, clsID, sepID, padID int) (ids, mask, types []int) {
	keep := maxSeq - 2
	if keep < 0 {
		keep = 0
	}
	if len(tokens) > keep {
		tokens = tokens[len(tokens)-keep:]
	}
	ids = make([]int, maxSeq)
	mask = make([]int, maxSeq)
	types = make([]int, maxSeq)
	n := 0
	put := func(id int) {
		if n < maxSeq {
			ids[n] = id
			mask[n] = 1
			n++
		}
	}
	put(clsID)
	for _, id := range tokens {
		put(id)
	}
	put(sepID)
	for i := n; i < maxSeq; i++ {
		ids[i] = padID
	}
	return ids, mask, types
}
