// Package highlight builds result snippets: a window of the raw text around
// the first whole-word match of the query, with every match inside the
// window wrapped in markers.
package highlight

import (
	"sort"
	"strings"
	"unicode"

	aho "github.com/anknown/ahocorasick"
)

const ellipsis = "..."

type Config struct {
	// Width is the number of runes kept on each side of the first match.
	Width int
	// LeadLength is the snippet length when nothing matches.
	LeadLength int
	Pre        string
	Post       string
}

func DefaultConfig() Config {
	return Config{Width: 40, LeadLength: 150, Pre: "**", Post: "**"}
}

type Highlighter struct {
	cfg Config
}

func New(cfg Config) *Highlighter {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.LeadLength <= 0 {
		cfg.LeadLength = def.LeadLength
	}
	return &Highlighter{cfg: cfg}
}

// Patterns are the strings to look for. Words must match whole words;
// Prefixes only need a word boundary before them.
type Patterns struct {
	Words    []string
	Prefixes []string
}

type span struct {
	start, end int
}

// Snippet returns the highlighted window for text. Matching ignores case.
// When no pattern occurs the leading LeadLength runes are returned.
func (h *Highlighter) Snippet(text string, p Patterns) string {
	runes := []rune(text)
	spans := h.find(runes, p)
	if len(spans) == 0 {
		return h.lead(runes)
	}

	first := spans[0]
	from := max(0, first.start-h.cfg.Width)
	to := min(len(runes), first.end+h.cfg.Width)

	var sb strings.Builder
	if from > 0 {
		sb.WriteString(ellipsis)
	}
	cursor := from
	for _, s := range spans {
		if s.start < cursor || s.end > to {
			continue
		}
		sb.WriteString(string(runes[cursor:s.start]))
		sb.WriteString(h.cfg.Pre)
		sb.WriteString(string(runes[s.start:s.end]))
		sb.WriteString(h.cfg.Post)
		cursor = s.end
	}
	sb.WriteString(string(runes[cursor:to]))
	if to < len(runes) {
		sb.WriteString(ellipsis)
	}
	return sb.String()
}

func (h *Highlighter) lead(runes []rune) string {
	if len(runes) <= h.cfg.LeadLength {
		return string(runes)
	}
	return string(runes[:h.cfg.LeadLength]) + ellipsis
}

// find returns non-overlapping matches ordered by position, preferring the
// longest match at each start.
func (h *Highlighter) find(runes []rune, p Patterns) []span {
	prefixes := make(map[string]bool)
	keys := make(map[string]struct{})
	for _, w := range p.Words {
		if w = strings.ToLower(w); w != "" {
			keys[w] = struct{}{}
		}
	}
	for _, w := range p.Prefixes {
		if w = strings.ToLower(w); w != "" {
			keys[w] = struct{}{}
			prefixes[w] = true
		}
	}
	if len(keys) == 0 || len(runes) == 0 {
		return nil
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	dict := make([][]rune, len(sorted))
	for i, k := range sorted {
		dict[i] = []rune(k)
	}

	m := new(aho.Machine)
	if err := m.Build(dict); err != nil {
		return nil
	}

	// ToLower per rune keeps indexes aligned with the original text
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}

	var spans []span
	for _, term := range m.MultiPatternSearch(lower, false) {
		s := span{start: term.Pos, end: term.Pos + len(term.Word)}
		if s.start > 0 && isWordRune(runes[s.start-1]) {
			continue
		}
		if !prefixes[string(term.Word)] && s.end < len(runes) && isWordRune(runes[s.end]) {
			continue
		}
		spans = append(spans, s)
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	out := spans[:0]
	lastEnd := -1
	for _, s := range spans {
		if s.start < lastEnd {
			continue
		}
		out = append(out, s)
		lastEnd = s.end
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
