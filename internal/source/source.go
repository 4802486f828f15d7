// Package source provides the document providers that feed the index
// builder. Providers only extract raw text; normalisation and indexing
// happen in the indexer.
package source

import (
	"context"
	"path/filepath"
	"strings"
)

// RawDocument is one unit of input for an index build. Err is set when the
// provider could not read or extract the document; the builder records it
// as an ingestion warning and skips the document.
type RawDocument struct {
	Path  string
	Title string
	Text  string
	Tags  []string
	Err   error
}

// Provider yields the full ordered document collection for a build.
type Provider interface {
	Documents(ctx context.Context) ([]RawDocument, error)
}

// Static is a Provider over an in-memory slice.
type Static []RawDocument

// Documents returns a copy of the slice.
func (s Static) Documents(ctx context.Context) ([]RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]RawDocument, len(s))
	copy(out, s)
	return out, nil
}

// TitleFromPath returns the file name without directory or extension.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
