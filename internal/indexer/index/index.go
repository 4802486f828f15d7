// Package index holds the positional inverted index: the term dictionary,
// the document store and the statistics derived from them. An Index is
// immutable once built and safe for any number of concurrent readers.
package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// Index is the read-only inverted index.
type Index struct {
	terms        map[string]PostingList
	sortedTerms  []string
	docs         map[uint32]*Document
	docIDs       []uint32
	tags         map[string]*roaring.Bitmap
	totalTokens  int64
	avgDocLength float64
}

// Stats summarises an index.
type Stats struct {
	Documents    int     `json:"documents"`
	Terms        int     `json:"terms"`
	Tags         int     `json:"tags"`
	TotalTokens  int64   `json:"total_tokens"`
	AvgDocLength float64 `json:"avg_doc_length"`
}

// Empty returns an index with no documents and no terms.
func Empty() *Index {
	ix, _ := build(nil, map[string]PostingList{})
	return ix
}

// Merge combines worker partials into a final Index. Postings for a term are
// unioned and sorted by document ID, so the result does not depend on the
// order of the partials.
func Merge(partials ...*Partial) (*Index, error) {
	docs := make([]*Document, 0)
	terms := make(map[string]PostingList)
	seen := make(map[uint32]struct{})
	for _, p := range partials {
		if p == nil {
			continue
		}
		for id, doc := range p.docs {
			if _, dup := seen[id]; dup {
				return nil, fmt.Errorf("document %d present in more than one partial", id)
			}
			seen[id] = struct{}{}
			docs = append(docs, doc)
		}
		for term, postings := range p.terms {
			terms[term] = append(terms[term], postings...)
		}
	}
	for term, postings := range terms {
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].DocID < postings[j].DocID
		})
		terms[term] = postings
	}
	return build(docs, terms)
}

// New assembles an Index from a document store and term entries, checking
// every structural invariant. It is used when loading persisted data.
func New(docs []*Document, entries []TermEntry) (*Index, error) {
	terms := make(map[string]PostingList, len(entries))
	for _, e := range entries {
		if _, dup := terms[e.Term]; dup {
			return nil, fmt.Errorf("duplicate term %q", e.Term)
		}
		terms[e.Term] = e.Postings
	}
	return build(docs, terms)
}

func build(docs []*Document, terms map[string]PostingList) (*Index, error) {
	ix := &Index{
		terms: terms,
		docs:  make(map[uint32]*Document, len(docs)),
		tags:  make(map[string]*roaring.Bitmap),
	}
	for _, doc := range docs {
		if _, dup := ix.docs[doc.ID]; dup {
			return nil, fmt.Errorf("duplicate document id %d", doc.ID)
		}
		ix.docs[doc.ID] = doc
		ix.docIDs = append(ix.docIDs, doc.ID)
		ix.totalTokens += int64(doc.TokenCount)
		for _, tag := range doc.Tags {
			tag = NormalizeTag(tag)
			if tag == "" {
				continue
			}
			bm, ok := ix.tags[tag]
			if !ok {
				bm = roaring.New()
				ix.tags[tag] = bm
			}
			bm.Add(doc.ID)
		}
	}
	sort.Slice(ix.docIDs, func(i, j int) bool { return ix.docIDs[i] < ix.docIDs[j] })
	if len(ix.docIDs) > 0 {
		ix.avgDocLength = float64(ix.totalTokens) / float64(len(ix.docIDs))
	}

	occurrences := make(map[uint32]int, len(ix.docs))
	ix.sortedTerms = make([]string, 0, len(terms))
	for term, postings := range terms {
		if term == "" {
			return nil, fmt.Errorf("empty term in dictionary")
		}
		if len(postings) == 0 {
			return nil, fmt.Errorf("term %q has no postings", term)
		}
		for i, p := range postings {
			if i > 0 && postings[i-1].DocID >= p.DocID {
				return nil, fmt.Errorf("postings for %q not strictly ordered at %d", term, i)
			}
			doc, ok := ix.docs[p.DocID]
			if !ok {
				return nil, fmt.Errorf("postings for %q reference unknown document %d", term, p.DocID)
			}
			if p.Frequency < 1 || p.Frequency != len(p.Positions) {
				return nil, fmt.Errorf("posting %q/%d: frequency %d does not match %d positions",
					term, p.DocID, p.Frequency, len(p.Positions))
			}
			for j, pos := range p.Positions {
				if pos < 0 || pos >= doc.TokenCount || (j > 0 && p.Positions[j-1] >= pos) {
					return nil, fmt.Errorf("posting %q/%d: invalid position %d", term, p.DocID, pos)
				}
			}
			occurrences[p.DocID] += p.Frequency
		}
		ix.sortedTerms = append(ix.sortedTerms, term)
	}
	for id, doc := range ix.docs {
		if occurrences[id] != doc.TokenCount {
			return nil, fmt.Errorf("document %d: token count %d does not match %d indexed occurrences",
				id, doc.TokenCount, occurrences[id])
		}
	}
	sort.Strings(ix.sortedTerms)
	return ix, nil
}

// Postings returns the postings list for term, or nil.
func (ix *Index) Postings(term string) PostingList {
	return ix.terms[term]
}

// HasTerm reports whether term is in the dictionary.
func (ix *Index) HasTerm(term string) bool {
	_, ok := ix.terms[term]
	return ok
}

// DocFreq returns the number of distinct documents containing term.
func (ix *Index) DocFreq(term string) int {
	return len(ix.terms[term])
}

// Document looks up a document by ID.
func (ix *Index) Document(id uint32) (*Document, bool) {
	doc, ok := ix.docs[id]
	return doc, ok
}

// DocLength returns the token count of a document, or 0 if unknown.
func (ix *Index) DocLength(id uint32) int {
	if doc, ok := ix.docs[id]; ok {
		return doc.TokenCount
	}
	return 0
}

// Documents returns every document ordered by ID.
func (ix *Index) Documents() []*Document {
	out := make([]*Document, len(ix.docIDs))
	for i, id := range ix.docIDs {
		out[i] = ix.docs[id]
	}
	return out
}

// DocumentCount returns N, the number of indexed documents.
func (ix *Index) DocumentCount() int {
	return len(ix.docIDs)
}

// AvgDocLength returns the mean token count per document.
func (ix *Index) AvgDocLength() float64 {
	return ix.avgDocLength
}

// TermCount returns the size of the term dictionary.
func (ix *Index) TermCount() int {
	return len(ix.sortedTerms)
}

// Terms returns the dictionary in lexicographic order. The slice must not be
// modified.
func (ix *Index) Terms() []string {
	return ix.sortedTerms
}

// TermsWithPrefix returns every term starting with prefix, in order.
func (ix *Index) TermsWithPrefix(prefix string) []string {
	if prefix == "" {
		return nil
	}
	start := sort.SearchStrings(ix.sortedTerms, prefix)
	end := start
	for end < len(ix.sortedTerms) && strings.HasPrefix(ix.sortedTerms[end], prefix) {
		end++
	}
	return ix.sortedTerms[start:end:end]
}

// TagDocs returns the IDs of documents carrying tag, in ascending order.
func (ix *Index) TagDocs(tag string) []uint32 {
	bm, ok := ix.tags[NormalizeTag(tag)]
	if !ok {
		return nil
	}
	return bm.ToArray()
}

// Snapshot returns every term with its postings, ordered by term.
func (ix *Index) Snapshot() []TermEntry {
	entries := make([]TermEntry, len(ix.sortedTerms))
	for i, term := range ix.sortedTerms {
		entries[i] = TermEntry{Term: term, Postings: ix.terms[term]}
	}
	return entries
}

// Stats returns summary statistics.
func (ix *Index) Stats() Stats {
	return Stats{
		Documents:    len(ix.docIDs),
		Terms:        len(ix.sortedTerms),
		Tags:         len(ix.tags),
		TotalTokens:  ix.totalTokens,
		AvgDocLength: ix.avgDocLength,
	}
}

// NormalizeTag lower-cases a tag and strips a leading '#'.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}
