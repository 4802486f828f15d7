// Package benchmark measures build, persistence and query throughput on a
// synthetic corpus.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/builder"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/source"
)

var vocabulary = []string{
	"distributed", "search", "analytics", "platform", "indexing", "query",
	"engine", "ranking", "programming", "rust", "golang", "progress",
	"systems", "caching", "phrase", "wildcard",
}

func syntheticCorpus(n int) []source.RawDocument {
	docs := make([]source.RawDocument, n)
	for i := range docs {
		v := func(k int) string { return vocabulary[(i*7+k)%len(vocabulary)] }
		docs[i] = source.RawDocument{
			Path:  fmt.Sprintf("corpus/doc-%05d.txt", i),
			Title: fmt.Sprintf("doc-%05d", i),
			Text: fmt.Sprintf("The %s %s covers %s and %s in production %s. Quick brown fox number %d.",
				v(0), v(1), v(2), v(3), v(4), i),
			Tags: []string{v(5)},
		}
	}
	return docs
}

func buildIndex(b *testing.B, n int) *index.Index {
	b.Helper()
	bld, err := builder.New(nil)
	if err != nil {
		b.Fatal(err)
	}
	defer bld.Release()
	res, err := bld.Build(b.Context(), syntheticCorpus(n))
	if err != nil {
		b.Fatal(err)
	}
	return res.Index
}
