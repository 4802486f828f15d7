package index

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/tokenizer"
)

// Partial is the index fragment built by a single worker. It is not safe
// for concurrent use; each worker owns its own Partial until Merge.
type Partial struct {
	terms map[string]PostingList
	docs  map[uint32]*Document
	size  int64
}

// NewPartial returns an empty Partial.
func NewPartial() *Partial {
	return &Partial{
		terms: make(map[string]PostingList),
		docs:  make(map[uint32]*Document),
	}
}

// Add indexes doc using its already-normalised tokens. doc.TokenCount is set
// from len(tokens).
func (p *Partial) Add(doc *Document, tokens []tokenizer.Token) error {
	if _, exists := p.docs[doc.ID]; exists {
		return fmt.Errorf("document %d already present in partial index", doc.ID)
	}
	termData := make(map[string]*Posting)
	order := make([]string, 0)
	for _, token := range tokens {
		posting, exists := termData[token.Term]
		if !exists {
			posting = &Posting{
				DocID:     doc.ID,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = posting
			order = append(order, token.Term)
		}
		posting.Frequency++
		posting.Positions = append(posting.Positions, token.Position)
	}
	for _, term := range order {
		posting := termData[term]
		p.terms[term] = append(p.terms[term], *posting)
		p.size += int64(len(term) + len(posting.Positions)*8 + 32)
	}
	doc.TokenCount = len(tokens)
	p.docs[doc.ID] = doc
	return nil
}

// DocCount returns the number of documents added to the partial.
func (p *Partial) DocCount() int {
	return len(p.docs)
}

// TermCount returns the number of distinct terms in the partial.
func (p *Partial) TermCount() int {
	return len(p.terms)
}

// Size is a rough estimate of the partial's posting memory in bytes.
func (p *Partial) Size() int64 {
	return p.size
}
