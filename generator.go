package textweave

import (
	"errors"
	"fmt"
)

// Generate produces text from the trained model, one token at a time. The
// seed is encoded into the initial context; each step scores the current
// window, samples a label index from the temperature-adjusted distribution
// and appends the resulting token to both the context and the output. The
// context is a sliding window: once it exceeds the trained context size the
// oldest token is evicted. Generation stops on the end-of-sequence marker
// (which is never part of the output) or after maxLength tokens; hitting the
// cap is a normal outcome, not an error.
func (m *Model) Generate(tok Tokenizer, seed string, maxLength int, temperature float64) (string, error) {
	if m.Scorer == nil || len(m.Labels) == 0 || m.ContextSize <= 0 {
		return "", errors.New("model must be trained before generation")
	}
	if temperature <= 0 {
		return "", ErrBadTemperature
	}
	context, err := tok.EncodeText(seed)
	if err != nil {
		return "", fmt.Errorf("encoding seed: %w", err)
	}
	if len(context) > m.ContextSize {
		context = context[len(context)-m.ContextSize:]
	}
	var generated []int
	m.Scorer.EvalMode()

	endID := tok.EndID()

	for i := 0; i < maxLength; i++ {
		ids, mask, types := tok.EncodeBERT(context)
		logits, err := m.Scorer.Logits(ids, mask, types)
		if err != nil {
			return "", fmt.Errorf("scoring context: %w", err)
		}
		probs, err := softmaxTemperature(logits, temperature)
		if err != nil {
			return "", err
		}
		idx := m.Sampler.Sample(probs)
		if idx < 0 || idx >= len(m.Labels) {
			return "", fmt.Errorf("sampled label index %d outside label space of size %d", idx, len(m.Labels))
		}
		token := m.Labels[idx]
		if token == endID {
			return tok.DecodeIndexes(generated)
		}
		context = append(context, token)
		generated = append(generated, token)
		if len(context) > m.ContextSize {
			context = context[1:]
		}
	}
	return tok.DecodeIndexes(generated)
}
