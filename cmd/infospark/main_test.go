package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/infospark/pkg/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// setup writes a small corpus and a config pointing at it.
func setup(t *testing.T) (configPath, indexPath string) {
	t.Helper()
	root := t.TempDir()
	corpus := filepath.Join(root, "corpus")
	writeFile(t, filepath.Join(corpus, "go.txt"), "Go has goroutines and channels.")
	writeFile(t, filepath.Join(corpus, "page.html"),
		"<html><head><title>Fox Page</title></head><body><p>The quick brown fox.</p></body></html>")
	writeFile(t, filepath.Join(corpus, "rust.md"),
		"---\ntitle: Rust Notes\ntags: [lang]\n---\nRust is a systems programming language.\n")
	writeFile(t, filepath.Join(corpus, "manual.pdf"), "%PDF-1.4")

	indexPath = filepath.Join(root, "data", "test.idx")
	configPath = filepath.Join(root, "infospark.yaml")
	writeFile(t, configPath, strings.Join([]string{
		"logging:",
		"  level: error",
		"index:",
		"  path: " + indexPath,
		"corpus:",
		"  dir: " + corpus,
	}, "\n"))
	return configPath, indexPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"infospark"}, args...))
	return out.String(), err
}

func TestIndexCommand(t *testing.T) {
	configPath, indexPath := setup(t)

	out, err := run(t, "--config", configPath, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 3 documents")
	assert.Contains(t, out, "manual.pdf")
	assert.FileExists(t, indexPath)
}

func TestSearchCommand(t *testing.T) {
	configPath, _ := setup(t)

	t.Run("builds on first use and prints hits", func(t *testing.T) {
		out, err := run(t, "--config", configPath, "search", "rust")
		require.NoError(t, err)
		assert.Contains(t, out, "1. [2] Rust Notes")
		assert.Contains(t, out, "**Rust**")
		assert.Contains(t, out, "rust.md")
	})

	t.Run("phrase from saved index", func(t *testing.T) {
		out, err := run(t, "--config", configPath, "search", `"quick brown fox"`)
		require.NoError(t, err)
		assert.Contains(t, out, "Fox Page")
		assert.Contains(t, out, "phrase query")
	})

	t.Run("no results", func(t *testing.T) {
		out, err := run(t, "--config", configPath, "search", "#cooking")
		require.NoError(t, err)
		assert.Contains(t, out, "No results found")
	})

	t.Run("missing query", func(t *testing.T) {
		_, err := run(t, "--config", configPath, "search")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "index:\n  backend: tape\n")
	_, err := run(t, "--config", path, "search", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.backend")
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &executor.Result{
		Kind:        "fuzzy",
		TotalHits:   1,
		Corrected:   "rust",
		Suggestions: []string{"rest"},
		Hits:        []executor.Hit{{DocID: 4, Title: "notes", Score: 1.5, Snippet: "**rust**", Path: "notes.txt"}},
	})
	out := buf.String()
	assert.Contains(t, out, `Showing results for "rust"`)
	assert.Contains(t, out, "1 of 1 results (fuzzy query)")
	assert.Contains(t, out, "1. [4] notes (score 1.5000)")
	assert.Contains(t, out, "Did you mean: rest")
}
