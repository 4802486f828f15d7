package highlight

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnippetWindowAndMarkers(t *testing.T) {
	h := New(Config{Width: 10, LeadLength: 20, Pre: "[", Post: "]"})
	text := "Lorem ipsum dolor sit amet, Rust is fast and rust is safe, consectetur adipiscing elit"

	got := h.Snippet(text, Patterns{Words: []string{"rust"}})
	assert.Equal(t, "...sit amet, [Rust] is fast a...", got)
}

func TestSnippetHighlightsEveryMatchInWindow(t *testing.T) {
	h := New(Config{Width: 40, LeadLength: 150, Pre: "<b>", Post: "</b>"})
	got := h.Snippet("Go is fun. go go GO!", Patterns{Words: []string{"go"}})
	assert.Equal(t, "<b>Go</b> is fun. <b>go</b> <b>go</b> <b>GO</b>!", got)
}

func TestSnippetWholeWordsOnly(t *testing.T) {
	h := New(DefaultConfig())
	got := h.Snippet("gopher goes going", Patterns{Words: []string{"go"}})
	assert.Equal(t, "gopher goes going", got, "no whole-word match falls back to the lead")

	got = h.Snippet("gopher goes going", Patterns{Prefixes: []string{"go"}})
	assert.Equal(t, "**go**pher **go**es **go**ing", got)
}

func TestSnippetPrefersLongestMatch(t *testing.T) {
	h := New(DefaultConfig())
	got := h.Snippet("systems programming", Patterns{Words: []string{"systems programming", "systems"}})
	assert.Equal(t, "**systems programming**", got)
}

func TestSnippetFallsBackToLead(t *testing.T) {
	h := New(Config{LeadLength: 5})
	assert.Equal(t, "abcde...", h.Snippet("abcdefgh", Patterns{Words: []string{"zzz"}}))
	assert.Equal(t, "abc", h.Snippet("abc", Patterns{}))
	assert.Equal(t, "", h.Snippet("", Patterns{Words: []string{"x"}}))
}

func TestSnippetCountsRunesNotBytes(t *testing.T) {
	h := New(Config{Width: 3, LeadLength: 10, Pre: "*", Post: "*"})
	got := h.Snippet("ééééé café ééééé", Patterns{Words: []string{"CAFÉ"}})
	assert.Equal(t, "...éé *café* éé...", got)
}

func TestSnippetMatchAtEdges(t *testing.T) {
	h := New(Config{Width: 4, LeadLength: 10, Pre: "*", Post: "*"})
	assert.Equal(t, "*rust* is ...", h.Snippet("rust is great", Patterns{Words: []string{"rust"}}))
	assert.Equal(t, "...eat *rust*", h.Snippet("great rust", Patterns{Words: []string{"rust"}}))
	assert.False(t, strings.HasPrefix(h.Snippet("rust", Patterns{Words: []string{"rust"}}), ellipsis))
}
