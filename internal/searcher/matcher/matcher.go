// Package matcher finds candidate documents for phrase, prefix, fuzzy and
// tag queries. Matchers only read the index and return document IDs or
// dictionary terms; scoring happens in the ranker.
package matcher

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
)

// Phrase returns, in ascending order, the documents in which terms occur at
// consecutive positions. A single term matches every document containing it.
func Phrase(ix *index.Index, terms []string) []uint32 {
	if len(terms) == 0 {
		return nil
	}
	lists := make([]index.PostingList, len(terms))
	docLists := make([][]uint32, len(terms))
	for i, term := range terms {
		lists[i] = ix.Postings(term)
		if len(lists[i]) == 0 {
			return nil
		}
		docLists[i] = lists[i].DocIDs()
	}

	candidates := Intersect(docLists...)
	out := make([]uint32, 0, len(candidates))
	positions := make([][]int, len(terms))
	for _, docID := range candidates {
		for i, pl := range lists {
			p, _ := pl.Find(docID)
			positions[i] = p.Positions
		}
		if consecutive(positions) {
			out = append(out, docID)
		}
	}
	return out
}

// consecutive reports whether some start p has positions[i] containing p+i
// for every i. Each cursor only moves forward, so the walk is linear in the
// total number of positions.
func consecutive(positions [][]int) bool {
	cursors := make([]int, len(positions))
	for _, start := range positions[0] {
		matched := true
		for i := 1; i < len(positions); i++ {
			want := start + i
			list := positions[i]
			c := cursors[i]
			for c < len(list) && list[c] < want {
				c++
			}
			cursors[i] = c
			if c == len(list) {
				return false
			}
			if list[c] != want {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// Intersect merges ascending ID lists, keeping IDs present in all of them.
func Intersect(lists ...[]uint32) []uint32 {
	if len(lists) == 0 {
		return nil
	}
	sorted := append([][]uint32(nil), lists...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) < len(sorted[j]) })

	result := append([]uint32(nil), sorted[0]...)
	for _, list := range sorted[1:] {
		n, j := 0, 0
		for _, id := range result {
			for j < len(list) && list[j] < id {
				j++
			}
			if j == len(list) {
				break
			}
			if list[j] == id {
				result[n] = id
				n++
			}
		}
		result = result[:n]
		if n == 0 {
			break
		}
	}
	return result
}

// Prefix returns the dictionary terms starting with any of prefixes,
// deduplicated and sorted.
func Prefix(ix *index.Index, prefixes ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, prefix := range prefixes {
		for _, term := range ix.TermsWithPrefix(prefix) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			out = append(out, term)
		}
	}
	sort.Strings(out)
	return out
}

// Tags counts, per document, how many of tags it carries. Documents with
// none of the tags are absent.
func Tags(ix *index.Index, tags []string) map[uint32]int {
	counts := make(map[uint32]int)
	for _, tag := range tags {
		for _, id := range ix.TagDocs(tag) {
			counts[id]++
		}
	}
	return counts
}
