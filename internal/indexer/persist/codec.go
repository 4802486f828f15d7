// Package persist serialises an Index to a single self-describing binary
// blob and stores that blob on disk or in Redis.
//
// Layout (little-endian, variable-length integers are unsigned varints):
//
//	magic u32 | version u32
//	doc count | avg doc length (float64 bits, u64)
//	per document: id, path, title, text, token count, tag count, tags
//	term count
//	per term: term, posting count,
//	          per posting: doc id delta, frequency, position deltas
//	crc32 (IEEE) of everything above, u32
//
// Strings are a varint length followed by UTF-8 bytes.
package persist

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/infospark/pkg/errors"
)

const (
	MagicBytes    uint32 = 0x49535058 // "ISPX"
	FormatVersion uint32 = 1

	headerSize = 8
	footerSize = 4
)

// FormatError reports a blob that cannot be decoded into a valid index.
type FormatError struct {
	Offset int
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("index format error at offset %d: %s", e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{apperrors.ErrIndexFormat, e.Err}
	}
	return []error{apperrors.ErrIndexFormat}
}

// Encode serialises ix. The output depends only on the index contents.
func Encode(ix *index.Index) ([]byte, error) {
	if ix == nil {
		return nil, fmt.Errorf("encoding nil index: %w", apperrors.ErrInvalidInput)
	}
	buf := make([]byte, headerSize, 1024)
	binary.LittleEndian.PutUint32(buf[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(buf[4:8], FormatVersion)

	docs := ix.Documents()
	buf = binary.AppendUvarint(buf, uint64(len(docs)))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(ix.AvgDocLength()))
	for _, doc := range docs {
		buf = binary.AppendUvarint(buf, uint64(doc.ID))
		buf = appendString(buf, doc.SourcePath)
		buf = appendString(buf, doc.Title)
		buf = appendString(buf, doc.RawText)
		buf = binary.AppendUvarint(buf, uint64(doc.TokenCount))
		buf = binary.AppendUvarint(buf, uint64(len(doc.Tags)))
		for _, tag := range doc.Tags {
			buf = appendString(buf, tag)
		}
	}

	entries := ix.Snapshot()
	buf = binary.AppendUvarint(buf, uint64(len(entries)))
	for _, entry := range entries {
		buf = appendString(buf, entry.Term)
		buf = binary.AppendUvarint(buf, uint64(len(entry.Postings)))
		var prevDoc uint32
		for i, p := range entry.Postings {
			if i > 0 && p.DocID <= prevDoc {
				return nil, fmt.Errorf("postings for %q out of order", entry.Term)
			}
			buf = binary.AppendUvarint(buf, uint64(p.DocID-prevDoc))
			prevDoc = p.DocID
			buf = binary.AppendUvarint(buf, uint64(p.Frequency))
			prevPos := 0
			for _, pos := range p.Positions {
				buf = binary.AppendUvarint(buf, uint64(pos-prevPos))
				prevPos = pos
			}
		}
	}

	return binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf)), nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// Decode parses a blob produced by Encode. It either returns a complete,
// validated index or a *FormatError; it never returns a partial index.
func Decode(data []byte) (*index.Index, error) {
	if len(data) < headerSize+footerSize {
		return nil, &FormatError{Reason: fmt.Sprintf("blob too short (%d bytes)", len(data))}
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != MagicBytes {
		return nil, &FormatError{Reason: fmt.Sprintf("bad magic bytes %#x", magic)}
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != FormatVersion {
		return nil, &FormatError{Offset: 4, Reason: fmt.Sprintf("unsupported format version %d", version)}
	}
	bodyEnd := len(data) - footerSize
	want := binary.LittleEndian.Uint32(data[bodyEnd:])
	if got := crc32.ChecksumIEEE(data[:bodyEnd]); got != want {
		return nil, &FormatError{Offset: bodyEnd, Reason: fmt.Sprintf("checksum mismatch: stored %#x, computed %#x", want, got)}
	}

	r := &reader{data: data[:bodyEnd], pos: headerSize}
	docCount := r.count("document count")
	avgBits := r.fixed64()
	docs := make([]*index.Document, 0, docCount)
	for i := 0; i < docCount && r.err == nil; i++ {
		doc := &index.Document{
			ID:         r.id("document id"),
			SourcePath: r.string(),
			Title:      r.string(),
			RawText:    r.string(),
			TokenCount: r.length("token count"),
		}
		tagCount := r.count("tag count")
		if tagCount > 0 {
			doc.Tags = make([]string, 0, tagCount)
			for j := 0; j < tagCount && r.err == nil; j++ {
				doc.Tags = append(doc.Tags, r.string())
			}
		}
		docs = append(docs, doc)
	}

	termCount := r.count("term count")
	entries := make([]index.TermEntry, 0, termCount)
	for i := 0; i < termCount && r.err == nil; i++ {
		entry := index.TermEntry{Term: r.string()}
		postingCount := r.count("posting count")
		entry.Postings = make(index.PostingList, 0, postingCount)
		var docID uint64
		for j := 0; j < postingCount && r.err == nil; j++ {
			delta := r.uvarint()
			if j > 0 && delta == 0 {
				r.fail("postings for %q not strictly ordered", entry.Term)
				break
			}
			docID += delta
			if docID > math.MaxUint32 {
				r.fail("document id %d overflows", docID)
				break
			}
			p := index.Posting{DocID: uint32(docID), Frequency: r.count("term frequency")}
			p.Positions = make([]int, 0, p.Frequency)
			pos := 0
			for k := 0; k < p.Frequency && r.err == nil; k++ {
				pos += int(r.uvarint())
				p.Positions = append(p.Positions, pos)
			}
			entry.Postings = append(entry.Postings, p)
		}
		entries = append(entries, entry)
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.pos != len(r.data) {
		return nil, &FormatError{Offset: r.pos, Reason: fmt.Sprintf("%d unexpected trailing bytes", len(r.data)-r.pos)}
	}

	ix, err := index.New(docs, entries)
	if err != nil {
		return nil, &FormatError{Offset: r.pos, Reason: "structural check failed", Err: err}
	}
	if stored := math.Float64frombits(avgBits); math.Abs(stored-ix.AvgDocLength()) > 1e-9 {
		return nil, &FormatError{Reason: fmt.Sprintf("average document length %v does not match documents (%v)", stored, ix.AvgDocLength())}
	}
	return ix, nil
}

// reader is a cursor over the body. The first failure sticks and every
// later read returns a zero value.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = &FormatError{Offset: r.pos, Reason: fmt.Sprintf(format, args...)}
	}
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		r.fail("truncated or malformed varint")
		return 0
	}
	r.pos += n
	return v
}

func (r *reader) fixed64() uint64 {
	if r.err != nil {
		return 0
	}
	if len(r.data)-r.pos < 8 {
		r.fail("truncated fixed-width field")
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

func (r *reader) id(what string) uint32 {
	v := r.uvarint()
	if v > math.MaxUint32 {
		r.fail("%s %d overflows", what, v)
		return 0
	}
	return uint32(v)
}

// count reads the number of items that follow. Every item takes at least
// one byte, so a count larger than the remaining input is corrupt.
func (r *reader) count(what string) int {
	v := r.uvarint()
	if v > uint64(len(r.data)-r.pos) {
		r.fail("%s %d exceeds remaining input", what, v)
		return 0
	}
	return int(v)
}

func (r *reader) length(what string) int {
	v := r.uvarint()
	if v > math.MaxInt32 {
		r.fail("%s %d overflows", what, v)
		return 0
	}
	return int(v)
}

func (r *reader) string() string {
	n := r.uvarint()
	if r.err != nil {
		return ""
	}
	if n > uint64(len(r.data)-r.pos) {
		r.fail("string of length %d exceeds remaining input", n)
		return ""
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	if !utf8.ValidString(s) {
		r.fail("string is not valid UTF-8")
		return ""
	}
	r.pos += int(n)
	return s
}
