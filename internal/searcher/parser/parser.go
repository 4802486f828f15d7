// Package parser turns a raw query string into a typed Query. Parsing only
// needs the analyzer; promoting a keyword to a fuzzy query needs the term
// dictionary and is done separately by Classify.
package parser

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/tokenizer"
)

type Kind int

const (
	KindKeyword Kind = iota
	KindPhrase
	KindTag
	KindWildcard
	KindFuzzy
)

func (k Kind) String() string {
	switch k {
	case KindKeyword:
		return "keyword"
	case KindPhrase:
		return "phrase"
	case KindTag:
		return "tag"
	case KindWildcard:
		return "wildcard"
	case KindFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

const (
	AmbiguityUnterminatedQuote = "unterminated quote, searched as keywords"
	AmbiguityMixedOperators    = "operators cannot be combined, searched as keywords"
)

// Query is a parsed query.
type Query struct {
	Kind Kind
	Raw  string
	// Terms are normalised. Keyword terms are deduplicated and sorted;
	// phrase terms keep query order.
	Terms []string
	// Words are the lowercased surface words, used for highlighting.
	Words []string
	// Prefix is the stemmed wildcard prefix and RawPrefix the lowercased
	// prefix as typed.
	Prefix    string
	RawPrefix string
	Tags      []string
	Ambiguity string
}

// Empty reports whether the query can match nothing.
func (q *Query) Empty() bool {
	switch q.Kind {
	case KindTag:
		return len(q.Tags) == 0
	case KindWildcard:
		return q.Prefix == "" && q.RawPrefix == ""
	default:
		return len(q.Terms) == 0
	}
}

// Key is the canonical form used for caching. Raw queries that normalise to
// the same search share a key.
func (q *Query) Key() string {
	switch q.Kind {
	case KindPhrase:
		return "phrase:" + strings.Join(q.Terms, " ")
	case KindTag:
		return "tag:" + strings.Join(q.Tags, " ")
	case KindWildcard:
		return "wildcard:" + q.Prefix + "|" + q.RawPrefix
	default:
		// fuzzy promotion depends on the index, so fuzzy and keyword share
		// the keyword key
		return "keyword:" + strings.Join(q.Terms, " ")
	}
}

// Parse classifies raw by precedence: a fully quoted phrase, then an
// all-hashtag query, then a single trailing-star wildcard, else keywords.
// Anything that mixes these falls back to keywords.
func Parse(raw string, analyzer *tokenizer.Analyzer) *Query {
	if analyzer == nil {
		analyzer = tokenizer.Default()
	}
	trimmed := strings.TrimSpace(raw)
	q := &Query{Kind: KindKeyword, Raw: raw}

	switch {
	case strings.HasPrefix(trimmed, `"`):
		if len(trimmed) < 2 || !strings.HasSuffix(trimmed, `"`) {
			q.Ambiguity = AmbiguityUnterminatedQuote
			break
		}
		inner := trimmed[1 : len(trimmed)-1]
		if strings.ContainsAny(inner, `"*`) {
			q.Ambiguity = AmbiguityMixedOperators
			break
		}
		q.Kind = KindPhrase
		q.Terms = analyzer.Terms(inner)
		q.Words = surfaceWords(inner)
		return q
	case isTagQuery(trimmed):
		q.Kind = KindTag
		q.Tags = tags(trimmed)
		return q
	case isWildcard(trimmed):
		word := strings.TrimRight(trimmed, "*")
		parts := tokenizer.Split(word)
		if len(parts) == 1 && len(parts[0]) == len(word) {
			q.Kind = KindWildcard
			q.RawPrefix = strings.ToLower(word)
			q.Prefix = analyzer.NormalizeTerm(word)
			q.Words = []string{q.RawPrefix}
			return q
		}
		q.Ambiguity = AmbiguityMixedOperators
	default:
		if hasOperator(trimmed) {
			q.Ambiguity = AmbiguityMixedOperators
		}
	}

	q.Terms = dedupeSorted(analyzer.Terms(trimmed))
	q.Words = surfaceWords(trimmed)
	return q
}

// Dictionary is the part of the index Classify consults.
type Dictionary interface {
	HasTerm(term string) bool
}

// Classify promotes a single-term keyword query whose term is not in dict to
// a fuzzy query. Other queries are returned unchanged.
func Classify(q *Query, dict Dictionary) *Query {
	if q.Kind != KindKeyword || len(q.Terms) != 1 || dict.HasTerm(q.Terms[0]) {
		return q
	}
	fuzzy := *q
	fuzzy.Kind = KindFuzzy
	return &fuzzy
}

func isTagQuery(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if len(f) < 2 || f[0] != '#' {
			return false
		}
	}
	return true
}

func tags(s string) []string {
	var out []string
	for _, f := range strings.Fields(s) {
		if tag := index.NormalizeTag(f); tag != "" {
			out = append(out, tag)
		}
	}
	return dedupeSorted(out)
}

func isWildcard(s string) bool {
	return !strings.ContainsAny(s, " \t\n\r") &&
		len(s) > 1 &&
		strings.HasSuffix(s, "*") &&
		strings.TrimRight(s, "*") != ""
}

func hasOperator(s string) bool {
	for _, f := range strings.Fields(s) {
		if strings.HasPrefix(f, "#") || strings.ContainsAny(f, `"*`) {
			return true
		}
	}
	return false
}

func surfaceWords(s string) []string {
	words := tokenizer.Split(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return words
}

func dedupeSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
