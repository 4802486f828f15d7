package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	apperrors "github.com/Adithya-Monish-Kumar-K/infospark/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/resilience"
)

// DefaultDocumentQuery selects id, title, body and a text[] of tags, in a
// stable order so rebuilds assign the same document IDs.
const DefaultDocumentQuery = `SELECT id::text, title, body, COALESCE(tags, '{}') FROM documents ORDER BY id`

// Postgres reads documents from a SQL table. The query must return four
// columns: an identifier, a title, the body text and a text[] of tags.
type Postgres struct {
	db     *sql.DB
	query  string
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// NewPostgres creates a provider over db. An empty query selects
// DefaultDocumentQuery.
func NewPostgres(db *sql.DB, query string) *Postgres {
	if query == "" {
		query = DefaultDocumentQuery
	}
	return &Postgres{
		db:     db,
		query:  query,
		retry:  resilience.RetryConfig{MaxAttempts: 3},
		logger: slog.Default().With("component", "postgres-source"),
	}
}

// Documents runs the query, retrying transient failures. A row whose body
// is NULL is returned with Err set.
func (p *Postgres) Documents(ctx context.Context) ([]RawDocument, error) {
	var docs []RawDocument
	err := resilience.Retry(ctx, "postgres-documents", p.retry, func() error {
		var err error
		docs, err = p.fetch(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading documents from postgres: %w: %v", apperrors.ErrSourceUnavailable, err)
	}
	p.logger.Info("documents loaded", "count", len(docs))
	return docs, nil
}

func (p *Postgres) fetch(ctx context.Context) ([]RawDocument, error) {
	rows, err := p.db.QueryContext(ctx, p.query)
	if err != nil {
		err = fmt.Errorf("querying documents: %w", err)
		if isQueryError(err) {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}
	defer rows.Close()

	var docs []RawDocument
	for rows.Next() {
		var (
			id    string
			title sql.NullString
			body  sql.NullString
			tags  []string
		)
		if err := rows.Scan(&id, &title, &body, pq.Array(&tags)); err != nil {
			// a column mismatch will not fix itself
			return nil, resilience.Permanent(fmt.Errorf("scanning document row: %w", err))
		}
		doc := RawDocument{
			Path:  "postgres://documents/" + id,
			Title: title.String,
			Text:  body.String,
			Tags:  tags,
		}
		if doc.Title == "" {
			doc.Title = id
		}
		if !body.Valid {
			doc.Err = fmt.Errorf("document %s has no body: %w", id, apperrors.ErrMalformedDocument)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

// isQueryError reports errors in the query itself: syntax errors, unknown
// tables or columns, and insufficient privilege.
func isQueryError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code.Class() == "42"
}
