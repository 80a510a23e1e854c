// Package application contains use-case orchestration services.
package application

import (
	"bufio"
	"crypto/rand"
	_ "embed"
	"io"
	"math/big"
	"strings"
	"unicode"
)

//go:embed wordlist.txt
var embeddedWordList string

const (
	passphraseWords     = 3
	passphraseSeparator = "-"
	minWordLen          = 3
	maxWordLen          = 10
	fallbackLength      = 16
	fallbackAlphabet    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	digits              = "0123456789"
)

// PassphraseGenerator produces human-typable passphrases such as
// "Gentle-Winter-Planet7". All randomness comes from a cryptographically
// secure source.
type PassphraseGenerator struct {
	words  []string
	random io.Reader
}

// NewPassphraseGenerator creates a generator over the embedded word list.
func NewPassphraseGenerator() *PassphraseGenerator {
	return NewPassphraseGeneratorWithWords(ParseWordList(embeddedWordList), rand.Reader)
}

// NewPassphraseGeneratorWithWords creates a generator over a custom word list
// and random source. Words are filtered with the same rules as ParseWordList.
// An empty list selects the random-character fallback.
func NewPassphraseGeneratorWithWords(words []string, random io.Reader) *PassphraseGenerator {
	filtered := make([]string, 0, len(words))
	for _, w := range words {
		if usableWord(w) {
			filtered = append(filtered, strings.ToLower(w))
		}
	}
	return &PassphraseGenerator{words: filtered, random: random}
}

// WordCount returns the number of usable dictionary words.
func (g *PassphraseGenerator) WordCount() int {
	return len(g.words)
}

// Generate returns a new passphrase. It never fails: without a dictionary it
// falls back to 16 random letters and digits.
func (g *PassphraseGenerator) Generate() string {
	if len(g.words) == 0 {
		return g.fallback()
	}

	parts := make([]string, passphraseWords)
	for i := range parts {
		parts[i] = capitalize(g.words[g.intn(len(g.words))])
	}
	return strings.Join(parts, passphraseSeparator) + string(digits[g.intn(len(digits))])
}

func (g *PassphraseGenerator) fallback() string {
	var b strings.Builder
	b.Grow(fallbackLength)
	for range fallbackLength {
		b.WriteByte(fallbackAlphabet[g.intn(len(fallbackAlphabet))])
	}
	return b.String()
}

// intn returns a uniform integer in [0, n). A failing random source is not
// recoverable for credential generation.
func (g *PassphraseGenerator) intn(n int) int {
	v, err := rand.Int(g.random, big.NewInt(int64(n)))
	if err != nil {
		panic("passphrase: random source failed: " + err.Error())
	}
	return int(v.Int64())
}

// ParseWordList splits a word list into words. Blank lines and lines starting
// with '#' are skipped; a line may hold several whitespace-separated words.
// Only purely alphabetic words of 3 to 10 letters are kept, lowercased and
// deduplicated.
func ParseWordList(src string) []string {
	seen := make(map[string]bool)
	var words []string

	scanner := bufio.NewScanner(strings.NewReader(src))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, w := range strings.Fields(line) {
			w = strings.ToLower(w)
			if !usableWord(w) || seen[w] {
				continue
			}
			seen[w] = true
			words = append(words, w)
		}
	}
	return words
}

func usableWord(w string) bool {
	if len(w) < minWordLen || len(w) > maxWordLen {
		return false
	}
	for _, r := range w {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
