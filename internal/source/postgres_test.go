package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only when INFOSPARK_TEST_POSTGRES_DSN points at a disposable database.
func TestPostgresDocuments(t *testing.T) {
	dsn := os.Getenv("INFOSPARK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INFOSPARK_TEST_POSTGRES_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	// temp tables are per connection
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TEMP TABLE documents (id serial PRIMARY KEY, title text, body text, tags text[])`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO documents (title, body, tags) VALUES
		('first', 'rust systems programming', ARRAY['lang']),
		(NULL, 'untitled body', NULL),
		('empty', NULL, NULL)`)
	require.NoError(t, err)

	docs, err := NewPostgres(db, "").Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "first", docs[0].Title)
	assert.Equal(t, []string{"lang"}, docs[0].Tags)
	assert.Equal(t, "2", docs[1].Title)
	assert.Error(t, docs[2].Err)
}

func TestIsQueryError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"undefined table", fmt.Errorf("querying: %w", &pq.Error{Code: "42P01"}), true},
		{"syntax error", &pq.Error{Code: "42601"}, true},
		{"connection failure", &pq.Error{Code: "08006"}, false},
		{"plain error", errors.New("dial tcp: refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isQueryError(tt.err))
		})
	}
}
