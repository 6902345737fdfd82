// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/paperwatch/internal/httputil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const arxivMaxResults = 200

// ArxivBackend queries the arXiv Atom API.
type ArxivBackend struct {
	Client    *http.Client
	UserAgent string
}

// Name returns the backend identifier.
func (b *ArxivBackend) Name() string { return "arxiv" }

// Search pages through submissions matching the keyword, newest first.
// Because results are date-sorted, paging stops at the first entry
// submitted before query.From.
func (b *ArxivBackend) Search(ctx context.Context, query Query) ([]types.CandidatePaper, error) {
	q := buildArxivQuery(query.Keyword)
	if q == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}

	pageSize := query.pageSize(arxivMaxResults)
	parser := gofeed.NewParser()
	var results []types.CandidatePaper

	for page := 0; page < query.maxPages(); page++ {
		feed, err := b.fetchPage(ctx, parser, q, page*pageSize, pageSize)
		if err != nil {
			if page > 0 {
				return results, nil
			}
			return nil, err
		}

		reachedCutoff := false
		for _, item := range feed.Items {
			c, ok := arxivCandidate(item)
			if !ok {
				continue
			}
			if !query.From.IsZero() && c.PublicationDate.Before(query.From) {
				reachedCutoff = true
				break
			}
			results = append(results, c)
		}
		if reachedCutoff || len(feed.Items) < pageSize {
			break
		}
	}
	return results, nil
}

func (b *ArxivBackend) fetchPage(ctx context.Context, parser *gofeed.Parser, q string, start, max int) (*gofeed.Feed, error) {
	reqURL := fmt.Sprintf("%s?search_query=%s&start=%d&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		arxivAPIBase, q, start, max)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	feed, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	return feed, nil
}

// arxivCandidate converts one Atom entry. Entries without a recognizable
// arXiv ID or publication date are dropped.
func arxivCandidate(item *gofeed.Item) (types.CandidatePaper, bool) {
	arxivID := extractArxivID(item.GUID)
	if arxivID == "" {
		arxivID = extractArxivID(item.Link)
	}
	if arxivID == "" || item.PublishedParsed == nil {
		return types.CandidatePaper{}, false
	}

	c := types.CandidatePaper{
		ID:              "arxiv:" + arxivID,
		Title:           strings.TrimSpace(item.Title),
		Abstract:        strings.TrimSpace(item.Description),
		PublicationDate: item.PublishedParsed.UTC(),
		URL:             "https://arxiv.org/abs/" + arxivID,
		Venue:           "arXiv",
		Source:          "arxiv",
	}
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			c.Authors = append(c.Authors, strings.TrimSpace(a.Name))
		}
	}
	return c, true
}

// buildArxivQuery turns a keyword into an all-fields phrase query,
// e.g. "perovskite solar cells" -> all:%22perovskite+solar+cells%22.
func buildArxivQuery(keyword string) string {
	terms := strings.Fields(keyword)
	if len(terms) == 0 {
		return ""
	}
	phrase := strings.Join(terms, " ")
	if len(terms) == 1 {
		return "all:" + url.QueryEscape(phrase)
	}
	return "all:" + url.QueryEscape(`"`+phrase+`"`)
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
