package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/source"
)

const markdownNote = `---
title: Release checklist
tags: [ops, release]
---
# Release checklist

Tag the build, run the snapshot migration and confirm that the caching tier
drains before the distributor switches traffic. Ranking regressions show up
as a drop in click-through within the first hour.
`

const htmlPage = `<html><head><title>Shard layout</title><style>p{margin:0}</style></head>
<body><h1>Shard layout</h1><p>Each <b>distributed</b> shard keeps its own postings.</p>
<script>track()</script><p>Queries fan out and ranking happens after the merge.</p></body></html>`

// sampleTexts covers the shapes documents take after extraction: a short
// title, stop-word heavy prose of the kind phrase queries target, and long
// body text that repeats.
var sampleTexts = map[string]string{
	"title":     "Notes on the caching of ranked results",
	"stopwords": strings.Repeat("it is what it is and that is all there is to it, or so they say to the ones who are in the know ", 8),
	"long": strings.Repeat(`The indexer walks the corpus directory, extracts text from every
        Markdown, HTML and PDF file it finds and feeds it to the analyzer. Terms are
        folded to lower case, stop words are dropped and the survivors are stemmed before
        they land in a posting list with their positions. Ranking blends term frequency
        with inverse document frequency, while the caching layer remembers recent answers
        until a rebuild publishes a new distributed snapshot. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tokenizer.Tokenize(text)
			}
		})
	}
}

// BenchmarkTokenizeExtracted includes the cost of pulling text out of the
// source format, which is what an index build pays per file.
func BenchmarkTokenizeExtracted(b *testing.B) {
	b.Run("markdown", func(b *testing.B) {
		data := []byte(markdownNote)
		b.ReportAllocs()
		b.SetBytes(int64(len(data)))
		for i := 0; i < b.N; i++ {
			_, body, err := source.ParseMarkdown(data)
			if err != nil {
				b.Fatal(err)
			}
			_ = tokenizer.Tokenize(body)
		}
	})
	b.Run("html", func(b *testing.B) {
		data := []byte(htmlPage)
		b.ReportAllocs()
		b.SetBytes(int64(len(data)))
		for i := 0; i < b.N; i++ {
			_, text, err := source.ExtractHTML(data)
			if err != nil {
				b.Fatal(err)
			}
			_ = tokenizer.Tokenize(text)
		}
	})
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["long"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = tokenizer.Tokenize(text)
		}
	})
}

// BenchmarkStemming compares the configurable stemmers on inflected words.
func BenchmarkStemming(b *testing.B) {
	words := []string{
		"ranked", "extracts", "folded", "postings",
		"publishes", "snapshots", "remembers",
		"switches", "regressions", "queries",
	}
	for _, stemmer := range []string{tokenizer.StemmerSnowball, tokenizer.StemmerSuffix, tokenizer.StemmerNone} {
		cfg := tokenizer.DefaultConfig()
		cfg.Stemmer = stemmer
		a, err := tokenizer.New(cfg)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(stemmer, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				for _, w := range words {
					_ = a.NormalizeTerm(w)
				}
			}
		})
	}
}

// BenchmarkStopWordRatio keeps document length fixed and varies how much of
// it the stop list removes.
func BenchmarkStopWordRatio(b *testing.B) {
	const size = 4096
	for _, pct := range []int{0, 50, 90} {
		var sb strings.Builder
		for i := 0; sb.Len() < size; i++ {
			if i%10 < pct/10 {
				sb.WriteString("the ")
			} else {
				sb.WriteString("snapshot ")
			}
		}
		text := sb.String()[:size]
		b.Run(fmt.Sprintf("stop_%d", pct), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tokenizer.Tokenize(text)
			}
		})
	}
}
