package index

// Posting records every occurrence of one term in one document.
type Posting struct {
	DocID     uint32
	Frequency int
	Positions []int
}

// PostingList is ordered ascending by DocID with no duplicate documents.
type PostingList []Posting

// TermEntry pairs a term with its postings. Snapshots are ordered by Term.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// DocIDs returns the document IDs of the list in order.
func (pl PostingList) DocIDs() []uint32 {
	ids := make([]uint32, len(pl))
	for i, p := range pl {
		ids[i] = p.DocID
	}
	return ids
}

// Find returns the posting for docID using binary search.
func (pl PostingList) Find(docID uint32) (Posting, bool) {
	lo, hi := 0, len(pl)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if pl[mid].DocID < docID {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(pl) && pl[lo].DocID == docID {
		return pl[lo], true
	}
	return Posting{}, false
}
