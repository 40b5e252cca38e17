package patterns

import (
	"crypto/sha256"
	"encoding/binary"
	"regexp"
	"strings"
)

const embeddingDims = 16

var tokenPattern = regexp.MustCompile(`[a-zA-Z]{3,}`)

// Tokenize splits text into lowercase alphabetic runs of length >= 3
func Tokenize(text string) []string {
	matches := tokenPattern.FindAllString(text, -1)
	tokens := make([]string, len(matches))
	for i, m := range matches {
		tokens[i] = strings.ToLower(m)
	}
	return tokens
}

// Embedder maps title text into a fixed-size numeric vector
type Embedder interface {
	Embed(text string) []float64
}

// HashEmbedder is a deterministic embedding derived from the sha256 digest of
// the token stream, so discovery is reproducible without a model dependency.
type HashEmbedder struct{}

// Embed produces a 16-dimensional vector normalized into [0, 1]
func (HashEmbedder) Embed(text string) []float64 {
	tokens := Tokenize(text)
	digest := sha256.Sum256([]byte(strings.Join(tokens, " ")))

	vector := make([]float64, embeddingDims)
	var max float64
	for i := 0; i < embeddingDims; i++ {
		v := float64(binary.BigEndian.Uint16(digest[i*2 : i*2+2]))
		vector[i] = v
		if v > max {
			max = v
		}
	}
	if max > 0 {
		for i := range vector {
			vector[i] /= max
		}
	}
	return vector
}
