package textweave

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"
)

// DefaultVocabURL points at the multilingual cased BERT vocabulary the
// WordPiece tokenizer is normally used with.
const DefaultVocabURL = "https://huggingface.co/bert-base-multilingual-cased/resolve/main/vocab.txt"

// DownloadVocab fetches a vocabulary file over HTTP into outputPath,
// creating the file. Failures are surfaced, never retried.
func DownloadVocab(log zerolog.Logger, outputPath, url string) error {
	log.Info().Str("url", url).Msg("downloading vocabulary")

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", outputPath, err)
	}
	defer out.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write to file %s: %w", outputPath, err)
	}
	log.Info().Int64("bytes", n).Str("path", outputPath).Msg("download complete")
	return nil
}
