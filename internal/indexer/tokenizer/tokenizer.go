// Package tokenizer provides text normalisation for the search engine.
// It splits input on non-alphanumeric boundaries, lower-cases, removes
// stop-words, and stems each surviving token. Positions are assigned after
// stop-word removal so that phrase adjacency only counts searchable tokens.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"
)

// Stemmer names accepted by Config.Stemmer.
const (
	StemmerSnowball = "snowball"
	StemmerSuffix   = "suffix"
	StemmerNone     = "none"
)

var defaultStopWords = []string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an",
	"and", "any", "are", "as", "at", "be", "because", "been", "before",
	"being", "below", "between", "both", "but", "by", "can", "could", "did",
	"do", "does", "doing", "down", "during", "each", "few", "for", "from",
	"further", "had", "has", "have", "having", "he", "her", "here", "hers",
	"herself", "him", "himself", "his", "how", "i", "if", "in", "into", "is",
	"it", "its", "itself", "me", "more", "most", "my", "myself", "no", "nor",
	"not", "of", "off", "on", "once", "only", "or", "other", "our", "ours",
	"ourselves", "out", "over", "own", "same", "she", "should", "so", "some",
	"such", "than", "that", "the", "their", "theirs", "them", "themselves",
	"then", "there", "these", "they", "this", "those", "through", "to", "too",
	"under", "until", "up", "very", "was", "we", "were", "what", "when",
	"where", "which", "while", "who", "whom", "why", "will", "with", "would",
	"you", "your", "yours", "yourself", "yourselves",
}

// DefaultStopWords returns a copy of the built-in English stop-word list.
func DefaultStopWords() []string {
	out := make([]string, len(defaultStopWords))
	copy(out, defaultStopWords)
	return out
}

// SuffixRule rewrites a trailing suffix when the remaining stem is at least
// MinLen bytes long.
type SuffixRule struct {
	Suffix      string `yaml:"suffix"`
	Replacement string `yaml:"replacement"`
	MinLen      int    `yaml:"minLen"`
}

var defaultSuffixRules = []SuffixRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// DefaultSuffixRules returns a copy of the built-in suffix-stripping table.
func DefaultSuffixRules() []SuffixRule {
	out := make([]SuffixRule, len(defaultSuffixRules))
	copy(out, defaultSuffixRules)
	return out
}

// Config controls the normalisation pipeline.
type Config struct {
	StopWords      []string     `yaml:"stopWords"`
	Stemmer        string       `yaml:"stemmer"`
	SuffixRules    []SuffixRule `yaml:"suffixRules"`
	MinTokenLength int          `yaml:"minTokenLength"`
}

// DefaultConfig returns the English analyzer configuration.
func DefaultConfig() Config {
	return Config{
		StopWords:      DefaultStopWords(),
		Stemmer:        StemmerSnowball,
		SuffixRules:    DefaultSuffixRules(),
		MinTokenLength: 1,
	}
}

// Token represents a single normalised term and its position in the
// post-stop-word token stream.
type Token struct {
	Term     string
	Position int
}

// Analyzer is an immutable normalisation pipeline. It is safe for
// concurrent use.
type Analyzer struct {
	stopWords map[string]struct{}
	stem      func(string) string
	minLen    int
}

// New builds an Analyzer from cfg.
func New(cfg Config) (*Analyzer, error) {
	a := &Analyzer{
		stopWords: make(map[string]struct{}, len(cfg.StopWords)),
		minLen:    cfg.MinTokenLength,
	}
	for _, w := range cfg.StopWords {
		a.stopWords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	switch cfg.Stemmer {
	case StemmerSnowball, "":
		a.stem = func(word string) string {
			return snowballeng.Stem(word, false)
		}
	case StemmerSuffix:
		rules := cfg.SuffixRules
		if len(rules) == 0 {
			rules = defaultSuffixRules
		}
		a.stem = func(word string) string {
			return stemSuffix(word, rules)
		}
	case StemmerNone:
		a.stem = func(word string) string { return word }
	default:
		return nil, fmt.Errorf("unknown stemmer %q", cfg.Stemmer)
	}
	return a, nil
}

var defaultAnalyzer, _ = New(DefaultConfig())

// Default returns the shared analyzer built from DefaultConfig.
func Default() *Analyzer {
	return defaultAnalyzer
}

// Tokenize runs text through the default analyzer.
func Tokenize(text string) []Token {
	return defaultAnalyzer.Analyze(text)
}

// Analyze breaks text into stemmed, lower-cased Tokens with stop-words
// removed.
func (a *Analyzer) Analyze(text string) []Token {
	words := Split(text)
	tokens := make([]Token, 0, len(words)/2+1)
	pos := 0
	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < a.minLen {
			continue
		}
		if _, isStop := a.stopWords[word]; isStop {
			continue
		}
		stemmed := a.stem(word)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     stemmed,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms returns only the terms produced by Analyze.
func (a *Analyzer) Terms(text string) []string {
	tokens := a.Analyze(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

// NormalizeTerm lower-cases and stems a single word without stop-word
// removal. Non-alphanumeric runes are dropped.
func (a *Analyzer) NormalizeTerm(word string) string {
	word = strings.ToLower(strings.Join(Split(word), ""))
	if word == "" {
		return ""
	}
	return a.stem(word)
}

// IsStopWord reports whether the lower-cased word is in the stop-word set.
func (a *Analyzer) IsStopWord(word string) bool {
	_, ok := a.stopWords[strings.ToLower(word)]
	return ok
}

// Split breaks text on non-letter, non-digit boundaries without any other
// normalisation.
func Split(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// stemSuffix applies the first matching rule of a suffix-stripping table.
func stemSuffix(word string, rules []SuffixRule) string {
	for _, rule := range rules {
		if strings.HasSuffix(word, rule.Suffix) {
			newWord := word[:len(word)-len(rule.Suffix)] + rule.Replacement
			if len(newWord) >= rule.MinLen {
				return newWord
			}
		}
	}
	return word
}
