package matcher

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
)

// Candidate is a dictionary term close to a misspelt query term.
type Candidate struct {
	Term     string `json:"term"`
	Distance int    `json:"distance"`
	DocFreq  int    `json:"doc_freq"`
}

// Fuzzy scans the dictionary for terms within maxDistance edits of term and
// orders them by distance, then document frequency descending, then term.
func Fuzzy(ix *index.Index, term string, maxDistance int) []Candidate {
	if term == "" || maxDistance < 0 {
		return nil
	}
	target := []rune(term)
	var out []Candidate
	for _, candidate := range ix.Terms() {
		d, ok := BoundedLevenshtein(target, []rune(candidate), maxDistance)
		if !ok {
			continue
		}
		out = append(out, Candidate{Term: candidate, Distance: d, DocFreq: ix.DocFreq(candidate)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.DocFreq != b.DocFreq {
			return a.DocFreq > b.DocFreq
		}
		return a.Term < b.Term
	})
	return out
}

// BoundedLevenshtein returns the edit distance between a and b if it is at
// most limit. It gives up as soon as every cell of a row exceeds limit.
func BoundedLevenshtein(a, b []rune, limit int) (int, bool) {
	if diff := len(a) - len(b); diff > limit || -diff > limit {
		return 0, false
	}
	if len(a) == 0 || len(b) == 0 {
		d := len(a) + len(b)
		return d, d <= limit
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, curr[j])
		}
		if rowMin > limit {
			return 0, false
		}
		prev, curr = curr, prev
	}
	d := prev[len(b)]
	return d, d <= limit
}
