package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dadope/scopus-search/internal/reference"
)

type paperJSON struct {
	ScopusID        int64   `json:"scopus_id"`
	Title           string  `json:"title"`
	Authors         []int64 `json:"authors"`
	Date            string  `json:"date"`
	Origin          string  `json:"origin,omitempty"`
	PublicationName *string `json:"publication_name,omitempty"`
	EID             *string `json:"eid,omitempty"`
}

func toPaperJSON(papers []reference.Paper) []paperJSON {
	out := make([]paperJSON, 0, len(papers))
	for _, p := range papers {
		authors := p.Authors
		if authors == nil {
			authors = []int64{}
		}
		out = append(out, paperJSON{
			ScopusID:        p.ScopusID,
			Title:           p.Title,
			Authors:         authors,
			Date:            p.Date,
			Origin:          string(p.Origin),
			PublicationName: p.PublicationName,
			EID:             p.EID,
		})
	}
	return out
}

// orderedObject is a JSON object that keeps its keys in insertion order.
type orderedObject struct {
	keys   []string
	values []any
}

func (o *orderedObject) set(key string, v any) {
	o.keys = append(o.keys, key)
	o.values = append(o.values, v)
}

// MarshalJSON implements json.Marshaler.
func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.values[i])
		if err != nil {
			return nil, fmt.Errorf("marshaling %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeJSON renders one object keyed by report key. A report with a single
// identity maps to its paper list; otherwise to an object of paper lists
// keyed by Scopus id.
func writeJSON(w io.Writer, reports []AuthorReport) error {
	var root orderedObject
	for _, r := range reports {
		if len(r.Buckets) == 1 {
			root.set(r.Key, toPaperJSON(r.Buckets[0].Papers))
			continue
		}
		var byID orderedObject
		for _, b := range r.Buckets {
			byID.set(strconv.FormatInt(b.Author.ScopusID, 10), toPaperJSON(b.Papers))
		}
		root.set(r.Key, byID)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(root)
}
