package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/infospark/pkg/errors"
)

// Directory reads documents from a directory tree. Plain text, Markdown,
// HTML and PDF files are extracted and every other extension is ignored.
type Directory struct {
	root      string
	recursive bool
	logger    *slog.Logger
}

// NewDirectory creates a provider rooted at root.
func NewDirectory(root string, recursive bool) *Directory {
	return &Directory{
		root:      root,
		recursive: recursive,
		logger:    slog.Default().With("component", "directory-source"),
	}
}

// Documents walks the directory in lexical order. A file that cannot be read
// or parsed is returned with Err set so the caller can record it; only
// failures of the walk itself abort the scan.
func (d *Directory) Documents(ctx context.Context) ([]RawDocument, error) {
	info, err := os.Stat(d.root)
	if err != nil {
		return nil, fmt.Errorf("opening corpus directory %s: %w: %v", d.root, apperrors.ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path %s is not a directory: %w", d.root, apperrors.ErrSourceUnavailable)
	}

	var docs []RawDocument
	err = filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == d.root {
				return walkErr
			}
			docs = append(docs, RawDocument{Path: path, Err: walkErr})
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if path == d.root {
				return nil
			}
			if !d.recursive || strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		format := FormatOf(path)
		if format == FormatUnknown {
			d.logger.Debug("skipping file with unrecognised extension", "path", path)
			return nil
		}
		docs = append(docs, readFile(path, format))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", d.root, err)
	}

	d.logger.Info("corpus scanned", "root", d.root, "files", len(docs))
	return docs, nil
}

// Format identifies how a file's text is extracted.
type Format int

const (
	FormatUnknown Format = iota
	FormatText
	FormatMarkdown
	FormatHTML
	FormatPDF
)

// FormatOf maps a file extension to a Format.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text":
		return FormatText
	case ".md", ".markdown":
		return FormatMarkdown
	case ".html", ".htm":
		return FormatHTML
	case ".pdf":
		return FormatPDF
	default:
		return FormatUnknown
	}
}

func readFile(path string, format Format) RawDocument {
	doc := RawDocument{Path: path, Title: TitleFromPath(path)}
	if format == FormatPDF {
		doc.Text, doc.Err = ExtractPDF(path)
		return doc
	}

	data, err := os.ReadFile(path)
	if err != nil {
		doc.Err = fmt.Errorf("reading file: %w", err)
		return doc
	}

	switch format {
	case FormatMarkdown:
		fm, body, err := ParseMarkdown(data)
		if err != nil {
			doc.Err = err
			return doc
		}
		if fm.Title != "" {
			doc.Title = fm.Title
		}
		doc.Tags = fm.Tags
		doc.Text = body
	case FormatHTML:
		title, text, err := ExtractHTML(data)
		if err != nil {
			doc.Err = err
			return doc
		}
		if title != "" {
			doc.Title = title
		}
		doc.Text = text
	default:
		doc.Text = string(data)
	}
	return doc
}

// ExtractPDF returns the plain text of every page of the PDF at path.
// Encrypted files are unsupported; anything the reader cannot parse is
// malformed.
func ExtractPDF(path string) (text string, err error) {
	// the pdf reader panics on some damaged object streams
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("reading pdf: %w: %v", apperrors.ErrMalformedDocument, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if f != nil {
		defer f.Close()
	}
	if errors.Is(err, pdf.ErrInvalidPassword) {
		return "", fmt.Errorf("encrypted pdf: %w", apperrors.ErrUnsupportedFormat)
	}
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w: %v", apperrors.ErrMalformedDocument, err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w: %v", apperrors.ErrMalformedDocument, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

// FrontMatter is the optional YAML header of a Markdown document.
type FrontMatter struct {
	Title string  `yaml:"title"`
	Tags  tagList `yaml:"tags"`
}

// tagList accepts either a YAML sequence or a comma-separated scalar.
type tagList []string

func (t *tagList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var out []string
		for _, part := range strings.Split(value.Value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*t = out
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := value.Decode(&out); err != nil {
			return err
		}
		*t = out
		return nil
	default:
		return fmt.Errorf("tags: expected a list or a string at line %d", value.Line)
	}
}

var frontMatterFence = []byte("---")

// ParseMarkdown splits an optional "---" delimited YAML header from the body.
// A header that is opened but never closed, or that is not valid YAML, makes
// the document malformed.
func ParseMarkdown(data []byte) (FrontMatter, string, error) {
	var fm FrontMatter
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	firstLine, rest, found := bytes.Cut(data, []byte("\n"))
	if !found || !bytes.Equal(bytes.TrimSpace(firstLine), frontMatterFence) {
		return fm, string(data), nil
	}

	var header []byte
	body := rest
	closed := false
	for len(body) > 0 {
		line, next, _ := bytes.Cut(body, []byte("\n"))
		if bytes.Equal(bytes.TrimSpace(line), frontMatterFence) {
			closed = true
			body = next
			break
		}
		header = append(header, line...)
		header = append(header, '\n')
		body = next
	}
	if !closed {
		return fm, "", fmt.Errorf("front matter not terminated: %w", apperrors.ErrMalformedDocument)
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, "", fmt.Errorf("front matter: %w: %v", apperrors.ErrMalformedDocument, err)
	}
	return fm, string(body), nil
}

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"title":    true,
}

// ExtractHTML returns the document title and the visible text, one space
// between text nodes.
func ExtractHTML(data []byte) (string, string, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("parsing html: %w: %v", apperrors.ErrMalformedDocument, err)
	}

	var title string
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			if n.Data == "head" {
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
				return
			}
			if skippedElements[n.Data] {
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(strings.Join(strings.Fields(text), " "))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return title, sb.String(), nil
}
