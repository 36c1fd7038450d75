// Package normalize converts raw Scopus records into canonical papers.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dadope/scopus-search/internal/reference"
	"github.com/dadope/scopus-search/internal/scopus"
)

// Store is the part of the local cache the normalizer consults.
type Store interface {
	PaperExists(id int64) (bool, error)
	PaperAuthors(paperID int64) ([]int64, error)
}

// DetailReader fetches a document's abstract record.
type DetailReader interface {
	ReadDocumentDetail(ctx context.Context, paperID int64) (*scopus.DocumentDetail, error)
}

// FromDocumentList converts an author's full document listing. Records
// with an unparsable identifier are dropped.
func FromDocumentList(records []scopus.DocRecord) []reference.Paper {
	papers := make([]reference.Paper, 0, len(records))
	for _, rec := range records {
		p, ok := basePaper(rec.SearchRecord, reference.OriginAuthorsAPI)
		if !ok {
			continue
		}
		for _, ref := range rec.AuthorRefs() {
			id, err := strconv.ParseInt(strings.TrimSpace(ref.ID()), 10, 64)
			if err != nil {
				continue
			}
			p.Authors = append(p.Authors, id)
		}
		papers = append(papers, p)
	}
	return papers
}

// Normalizer converts general search results, resolving author lists
// through the local cache and the remote detail endpoint.
type Normalizer struct {
	store  Store
	remote DetailReader
	logger *zap.Logger
}

// New creates a Normalizer. A nil logger disables logging.
func New(store Store, remote DetailReader, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{store: store, remote: remote, logger: logger}
}

// FromSearchResults converts general search results fetched for the author
// trigger. Each paper's authors come from the cached relation, then the
// remote document detail, then fall back to [trigger]; the result never
// carries an empty author list. FromDB marks papers already cached.
func (n *Normalizer) FromSearchResults(ctx context.Context, records []scopus.SearchRecord, trigger int64) ([]reference.Paper, error) {
	papers := make([]reference.Paper, 0, len(records))
	for _, rec := range records {
		p, ok := basePaper(rec, reference.OriginSearchAPI)
		if !ok {
			n.logger.Debug("dropping search record without id", zap.String("identifier", rec.Identifier))
			continue
		}

		cached, err := n.store.PaperExists(p.ScopusID)
		if err != nil {
			return nil, fmt.Errorf("checking paper %d: %w", p.ScopusID, err)
		}
		p.FromDB = cached

		p.Authors, err = n.paperAuthors(ctx, p.ScopusID, trigger)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, nil
}

func (n *Normalizer) paperAuthors(ctx context.Context, paperID, trigger int64) ([]int64, error) {
	stored, err := n.store.PaperAuthors(paperID)
	if err != nil {
		return nil, fmt.Errorf("reading authors of paper %d: %w", paperID, err)
	}
	if len(stored) > 0 {
		return stored, nil
	}

	if n.remote != nil {
		detail, err := n.remote.ReadDocumentDetail(ctx, paperID)
		switch {
		case err == nil && len(detail.Authors) > 0:
			return detail.Authors, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case err != nil:
			n.logger.Debug("document detail unavailable, using triggering author",
				zap.Int64("paper", paperID), zap.Error(err))
		}
	}

	return []int64{trigger}, nil
}

// basePaper fills the fields shared by both record shapes.
func basePaper(rec scopus.SearchRecord, origin reference.Origin) (reference.Paper, bool) {
	id, err := rec.ScopusID()
	if err != nil {
		return reference.Paper{}, false
	}
	return reference.Paper{
		ScopusID:        id,
		Title:           rec.Title.String(),
		Date:            rec.CoverDate.String(),
		Origin:          origin,
		Affiliation:     affiliations(rec.Affiliations),
		PageRange:       reference.StringPtr(rec.PageRange.String()),
		IssueID:         reference.StringPtr(rec.IssueIdentifier.String()),
		ISSN:            reference.StringPtr(rec.ISSN.String()),
		ISBN:            reference.StringPtr(rec.ISBN.String()),
		EID:             reference.StringPtr(rec.EID.String()),
		PublicationName: reference.StringPtr(rec.PublicationName.String()),
	}, true
}

// affiliations maps afid to name, dropping entries whose afid is missing or
// not numeric. It returns nil when nothing valid remains.
func affiliations(refs []scopus.AffiliationRef) map[int64]string {
	var out map[int64]string
	for _, ref := range refs {
		afid, err := strconv.ParseInt(strings.TrimSpace(ref.AfID.String()), 10, 64)
		if err != nil {
			continue
		}
		if out == nil {
			out = make(map[int64]string)
		}
		out[afid] = ref.AffilName.String()
	}
	return out
}

// Creators returns the dc:creator value of every record, in order.
func Creators(records []scopus.SearchRecord) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Creator.String())
	}
	return out
}
