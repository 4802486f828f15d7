package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/matcher"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/ranker"
)

type staticIndex struct{ ix *index.Index }

func (s staticIndex) Current() *index.Index { return s.ix }

var benchQueries = []struct {
	name  string
	query string
}{
	{"keyword", "distributed systems"},
	{"long_keyword", "distributed search analytics platform indexing query ranking caching"},
	{"phrase", `"quick brown fox"`},
	{"tag", "#rust #golang"},
	{"wildcard", "prog*"},
	{"fuzzy", "serch"},
	{"mixed", `"quick fox*`},
}

// BenchmarkQueryParse measures parsing latency for every query kind.
func BenchmarkQueryParse(b *testing.B) {
	for _, q := range benchQueries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = parser.Parse(q.query, nil)
			}
		})
	}
}

// BenchmarkBM25Ranking measures scoring every document containing a common
// term at several corpus sizes.
func BenchmarkBM25Ranking(b *testing.B) {
	r := ranker.New(ranker.DefaultK1, ranker.DefaultB)
	for _, n := range []int{100, 1000, 10000} {
		ix := buildIndex(b, n)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = r.Rank(ix, []string{"fox", "search"}, nil)
			}
		})
	}
}

// BenchmarkExecute runs every query kind against 10 000 documents without a
// cache.
func BenchmarkExecute(b *testing.B) {
	exec := executor.New(staticIndex{buildIndex(b, 10000)}, nil, nil, executor.DefaultConfig())
	for _, q := range benchQueries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := exec.Search(b.Context(), q.query, 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkExecuteCached measures the hit path of the result cache.
func BenchmarkExecuteCached(b *testing.B) {
	lru := cache.New[*executor.Result](128, nil)
	exec := executor.New(staticIndex{buildIndex(b, 10000)}, nil, nil, executor.DefaultConfig(), executor.WithCache(lru))
	if _, err := exec.Search(b.Context(), "distributed systems", 10); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exec.Search(b.Context(), "distributed systems", 10); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkExecuteParallel measures concurrent query throughput over one
// shared index.
func BenchmarkExecuteParallel(b *testing.B) {
	exec := executor.New(staticIndex{buildIndex(b, 10000)}, nil, nil, executor.DefaultConfig())
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q := benchQueries[i%len(benchQueries)].query
			if _, err := exec.Search(b.Context(), q, 10); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}

func BenchmarkFuzzyCandidates(b *testing.B) {
	ix := buildIndex(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = matcher.Fuzzy(ix, "serch", 2)
	}
}

func BenchmarkSnippet(b *testing.B) {
	h := highlight.New(highlight.DefaultConfig())
	text := sampleTexts["long"]
	p := highlight.Patterns{Words: []string{"caching", "ranking"}, Prefixes: []string{"distrib"}}
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = h.Snippet(text, p)
	}
}
