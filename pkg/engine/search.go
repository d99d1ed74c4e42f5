package engine

import (
	"context"
	"fmt"
	"strings"
)

// SearchResult is the outcome of a search. Page is 1-based and only set
// when Found. Scanned counts the pages whose text was examined.
type SearchResult struct {
	Found   bool `json:"found"`
	Page    int  `json:"page,omitempty"`
	Scanned int  `json:"-"`
}

// Search returns the first page, in ascending order, whose text
// fragments joined by single spaces contain query, ignoring case. It
// stops at the first match. Pages whose text cannot be extracted do not
// match. Text is extracted afresh on every call.
func Search(ctx context.Context, doc *Document, query string) (SearchResult, error) {
	if query == "" {
		return SearchResult{}, ErrEmptyQuery
	}
	backend, done, err := doc.acquire()
	if err != nil {
		return SearchResult{}, err
	}
	defer done()

	needle := strings.ToLower(query)
	var res SearchResult
	for p := 1; p <= doc.pages; p++ {
		if err := ctx.Err(); err != nil {
			return res, canceled(err)
		}
		texts, err := backend.Text(ctx, p-1)
		res.Scanned = p
		if err != nil {
			if ctx.Err() != nil {
				return res, canceled(ctx.Err())
			}
			continue
		}
		if strings.Contains(strings.ToLower(strings.Join(texts, " ")), needle) {
			res.Found, res.Page = true, p
			return res, nil
		}
	}
	return res, nil
}

// PageText returns the text fragments of the 1-based page in reading
// order.
func PageText(ctx context.Context, doc *Document, page int) ([]string, error) {
	backend, done, err := doc.acquire()
	if err != nil {
		return nil, err
	}
	defer done()
	if page < 1 || page > doc.pages {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, page, doc.pages)
	}
	texts, err := backend.Text(ctx, page-1)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, canceled(cerr)
		}
		return nil, fmt.Errorf("text of page %d: %w", page, err)
	}
	return texts, nil
}
