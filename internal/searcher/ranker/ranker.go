// Package ranker scores documents with Okapi BM25.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
)

const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

type ScoredDoc struct {
	DocID uint32  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Ranker holds the BM25 parameters.
type Ranker struct {
	k1 float64
	b  float64
}

func New(k1, b float64) *Ranker {
	return &Ranker{k1: k1, b: b}
}

// Rank scores every document containing at least one of terms, or only the
// documents in candidates when it is non-nil. Duplicate terms count once.
// The result is sorted by score descending, then document ID ascending.
func (r *Ranker) Rank(ix *index.Index, terms []string, candidates []uint32) []ScoredDoc {
	var allowed map[uint32]struct{}
	if candidates != nil {
		allowed = make(map[uint32]struct{}, len(candidates))
		for _, id := range candidates {
			allowed[id] = struct{}{}
		}
	}

	n := ix.DocumentCount()
	avgdl := ix.AvgDocLength()
	scores := make(map[uint32]float64)
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		postings := ix.Postings(term)
		if len(postings) == 0 {
			continue
		}
		idf := IDF(n, len(postings))
		for _, posting := range postings {
			if allowed != nil {
				if _, ok := allowed[posting.DocID]; !ok {
					continue
				}
			}
			scores[posting.DocID] += idf * r.TFNorm(posting.Frequency, ix.DocLength(posting.DocID), avgdl)
		}
	}

	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{DocID: docID, Score: score})
	}
	Sort(result)
	return result
}

// Sort orders by score descending, then document ID ascending.
func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})
}

// IDF is ln((N - df + 0.5) / (df + 0.5) + 1), which stays positive even for
// terms present in every document.
func IDF(totalDocs, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

// TFNorm is the saturated term-frequency component of BM25.
func (r *Ranker) TFNorm(termFreq, docLength int, avgDocLength float64) float64 {
	if avgDocLength == 0 || termFreq == 0 {
		return 0
	}
	tf := float64(termFreq)
	lengthRatio := float64(docLength) / avgDocLength
	denominator := tf + r.k1*(1-r.b+r.b*lengthRatio)
	return (tf * (r.k1 + 1)) / denominator
}
