package index

// Document is an indexed unit of text. It is owned by the Index and never
// mutated after indexing.
type Document struct {
	ID         uint32
	SourcePath string
	Title      string
	RawText    string
	Tags       []string
	TokenCount int
}
