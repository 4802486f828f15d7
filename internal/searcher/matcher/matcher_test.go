package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/tokenizer"
)

func buildIndex(t *testing.T, texts ...string) *index.Index {
	t.Helper()
	p := index.NewPartial()
	for i, text := range texts {
		doc := &index.Document{ID: uint32(i), RawText: text, Tags: tagsFor(i)}
		require.NoError(t, p.Add(doc, tokenizer.Tokenize(text)))
	}
	ix, err := index.Merge(p)
	require.NoError(t, err)
	return ix
}

func tagsFor(i int) []string {
	switch i {
	case 0:
		return []string{"animals"}
	case 1:
		return []string{"animals", "bears"}
	default:
		return nil
	}
}

func terms(text string) []string {
	return tokenizer.Default().Terms(text)
}

func TestPhrase(t *testing.T) {
	ix := buildIndex(t,
		"the quick brown fox jumps",
		"brown quick fox",
		"a quick and brown fox",
		"quick quick brown fox fox",
	)

	// stop words do not take positions, so doc 2 matches too
	assert.Equal(t, []uint32{0, 2, 3}, Phrase(ix, terms("quick brown fox")))
	assert.Equal(t, []uint32{1}, Phrase(ix, terms("brown quick")))
	assert.Equal(t, []uint32{0, 1, 2, 3}, Phrase(ix, terms("fox")))
	assert.Empty(t, Phrase(ix, terms("fox quick")))
	assert.Empty(t, Phrase(ix, terms("quick missing")))
	assert.Empty(t, Phrase(ix, nil))
}

func TestPhraseResultsContainThePhrase(t *testing.T) {
	texts := []string{
		"rust is a systems programming language",
		"programming language design in go",
		"language programming is fun",
		"systems programming with rust and systems languages",
	}
	ix := buildIndex(t, texts...)
	phrase := terms("programming language")
	for _, id := range Phrase(ix, phrase) {
		toks := tokenizer.Default().Terms(texts[id])
		found := false
		for i := 0; i+len(phrase) <= len(toks); i++ {
			if assert.ObjectsAreEqual(phrase, toks[i:i+len(phrase)]) {
				found = true
			}
		}
		assert.True(t, found, "doc %d does not contain the phrase", id)
	}
	assert.Equal(t, []uint32{0, 1}, Phrase(ix, phrase))
}

func TestIntersect(t *testing.T) {
	assert.Equal(t, []uint32{3, 7}, Intersect([]uint32{1, 3, 5, 7}, []uint32{3, 4, 7, 9}, []uint32{0, 3, 7}))
	assert.Empty(t, Intersect([]uint32{1, 2}, []uint32{3}))
	assert.Nil(t, Intersect())
}

func TestPrefix(t *testing.T) {
	ix := buildIndex(t, "program progress proton", "profile programs")
	assert.Equal(t, []string{"program", "progress"}, Prefix(ix, "prog"))
	assert.Equal(t, []string{"profil", "program", "progress", "proton"}, Prefix(ix, "pro", "prog"))
	assert.Empty(t, Prefix(ix, "xyz"))
}

func TestFuzzy(t *testing.T) {
	ix := buildIndex(t, "rust lang", "rust crab", "rest easy", "trust fall")

	cands := Fuzzy(ix, "rst", 2)
	require.NotEmpty(t, cands)
	assert.Equal(t, Candidate{Term: "rust", Distance: 1, DocFreq: 2}, cands[0])
	assert.Equal(t, "rest", cands[1].Term)
	assert.Equal(t, "trust", cands[2].Term)

	assert.Empty(t, Fuzzy(ix, "xxxxxxxx", 2), "distance 5+ must not match")
	assert.Empty(t, Fuzzy(ix, "", 2))
}

func TestBoundedLevenshtein(t *testing.T) {
	tests := []struct {
		a, b  string
		limit int
		dist  int
		ok    bool
	}{
		{"kitten", "sitting", 3, 3, true},
		{"kitten", "sitting", 2, 0, false},
		{"", "abc", 3, 3, true},
		{"abc", "", 2, 0, false},
		{"same", "same", 0, 0, true},
		{"café", "cafe", 1, 1, true},
		{"rust", "rst", 2, 1, true},
		{"abcdef", "ghijkl", 2, 0, false},
	}
	for _, tt := range tests {
		d, ok := BoundedLevenshtein([]rune(tt.a), []rune(tt.b), tt.limit)
		assert.Equal(t, tt.ok, ok, "%s/%s", tt.a, tt.b)
		if tt.ok {
			assert.Equal(t, tt.dist, d, "%s/%s", tt.a, tt.b)
		}
	}
}

func TestTags(t *testing.T) {
	ix := buildIndex(t, "a", "b", "c")
	assert.Equal(t, map[uint32]int{0: 1, 1: 2}, Tags(ix, []string{"animals", "bears"}))
	assert.Empty(t, Tags(ix, []string{"plants"}))
}
