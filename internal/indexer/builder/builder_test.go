package builder

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/infospark/internal/source"
	apperrors "github.com/Adithya-Monish-Kumar-K/infospark/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/metrics"
)

func corpus(n int) []source.RawDocument {
	words := []string{"rust", "go", "search", "engine", "index", "query", "program", "systems"}
	docs := make([]source.RawDocument, n)
	for i := range docs {
		text := ""
		for j := 0; j <= i%5; j++ {
			text += words[(i+j)%len(words)] + " "
		}
		docs[i] = source.RawDocument{Path: fmt.Sprintf("doc-%d.txt", i), Title: fmt.Sprintf("doc-%d", i), Text: text}
	}
	return docs
}

func newBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	b, err := New(tokenizer.Default(), opts...)
	require.NoError(t, err)
	t.Cleanup(b.Release)
	return b
}

func TestBuildIsIndependentOfChunking(t *testing.T) {
	docs := corpus(37)

	base, err := newBuilder(t, WithChunkSize(len(docs)), WithWorkers(1)).Build(context.Background(), docs)
	require.NoError(t, err)

	for _, size := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("chunk=%d", size), func(t *testing.T) {
			res, err := newBuilder(t, WithChunkSize(size), WithWorkers(4)).Build(context.Background(), docs)
			require.NoError(t, err)
			assert.Equal(t, base.Index.Snapshot(), res.Index.Snapshot())
			assert.Equal(t, base.Index.Documents(), res.Index.Documents())
			assert.Equal(t, base.Index.Stats(), res.Index.Stats())
			assert.Equal(t, (len(docs)+size-1)/size, res.Chunks)
		})
	}
}

func TestBuildSkipsBadDocuments(t *testing.T) {
	docs := []source.RawDocument{
		{Path: "ok-1.txt", Text: "first document"},
		{Path: "broken.pdf", Err: apperrors.ErrUnsupportedFormat},
		{Path: "latin1.txt", Text: "caf\xe9"},
		{Path: "ok-2.txt", Text: "second document"},
	}
	res, err := newBuilder(t).Build(context.Background(), docs)
	require.NoError(t, err)

	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "broken.pdf", res.Warnings[0].Path)
	assert.ErrorIs(t, res.Warnings[0], apperrors.ErrUnsupportedFormat)
	assert.Equal(t, "latin1.txt", res.Warnings[1].Path)
	assert.ErrorIs(t, res.Warnings[1], apperrors.ErrMalformedDocument)

	require.Equal(t, 2, res.Index.DocumentCount())
	first, ok := res.Index.Document(0)
	require.True(t, ok)
	assert.Equal(t, "ok-1.txt", first.SourcePath)
	second, ok := res.Index.Document(1)
	require.True(t, ok)
	assert.Equal(t, "ok-2.txt", second.SourcePath)
}

func TestBuildEmpty(t *testing.T) {
	res, err := newBuilder(t).Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Index.DocumentCount())
	assert.Equal(t, 0, res.Chunks)
	assert.Empty(t, res.Warnings)
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := newBuilder(t, WithChunkSize(1)).Build(ctx, corpus(10))
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBuildRecordsMetrics(t *testing.T) {
	m := metrics.New(nil)
	docs := append(corpus(3), source.RawDocument{Path: "bad", Err: errors.New("boom")})
	_, err := newBuilder(t, WithMetrics(m)).Build(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestionWarningsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("success")))
}

func TestInvalidChunkSize(t *testing.T) {
	_, err := New(nil, WithChunkSize(0))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
