// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/paperwatch/internal/httputil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

const openAlexMaxPerPage = 200

// OpenAlexBackend queries the OpenAlex API.
type OpenAlexBackend struct {
	Client *http.Client
	// Email is sent as mailto parameter for polite pool access.
	Email     string
	UserAgent string
}

// Name returns the backend identifier.
func (b *OpenAlexBackend) Name() string { return "openalex" }

// Search pages through works matching the keyword with cursor pagination,
// filtered server-side to the query's publication date range.
func (b *OpenAlexBackend) Search(ctx context.Context, query Query) ([]types.CandidatePaper, error) {
	if query.Keyword == "" {
		return nil, fmt.Errorf("empty OpenAlex query")
	}

	perPage := query.pageSize(openAlexMaxPerPage)
	var results []types.CandidatePaper
	cursor := "*"

	for page := 0; page < query.maxPages() && cursor != ""; page++ {
		oar, err := b.fetchPage(ctx, query, perPage, cursor)
		if err != nil {
			if page > 0 {
				return results, nil
			}
			return nil, err
		}
		for _, work := range oar.Results {
			results = append(results, work.toCandidate())
		}
		if len(oar.Results) == 0 {
			break
		}
		cursor = oar.Meta.NextCursor
	}
	return results, nil
}

func (b *OpenAlexBackend) fetchPage(ctx context.Context, query Query, perPage int, cursor string) (*openAlexResponse, error) {
	params := url.Values{
		"search":   {query.Keyword},
		"per_page": {strconv.Itoa(perPage)},
		"cursor":   {cursor},
	}

	var filters []string
	if !query.From.IsZero() {
		filters = append(filters, "from_publication_date:"+query.From.Format("2006-01-02"))
	}
	if !query.To.IsZero() {
		filters = append(filters, "to_publication_date:"+query.To.Format("2006-01-02"))
	}
	if len(filters) > 0 {
		params.Set("filter", strings.Join(filters, ","))
	}
	if b.Email != "" {
		params.Set("mailto", b.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	return &oar, nil
}

func (w openAlexWork) toCandidate() types.CandidatePaper {
	title := w.Title
	if title == "" {
		title = w.DisplayName
	}
	c := types.CandidatePaper{
		Title:    title,
		Abstract: reconstructAbstract(w.AbstractInvertedIndex),
		Venue:    w.PrimaryLocation.Source.DisplayName,
		URL:      w.PrimaryLocation.LandingPageURL,
		Source:   "openalex",
	}
	for _, authorship := range w.Authorships {
		if authorship.Author.DisplayName != "" {
			c.Authors = append(c.Authors, authorship.Author.DisplayName)
		}
	}
	if t, yearOnly, ok := parseDate(w.PublicationDate, w.PublicationYear); ok {
		c.PublicationDate = t
		c.DateIsYear = yearOnly
	}

	// Prefer DOI as identifier since OpenAlex is DOI-centric.
	if w.DOI != "" {
		c.ID = normalizeDOI(w.DOI)
		if c.URL == "" {
			c.URL = w.DOI
		}
	} else if w.ID != "" {
		c.ID = "openalex:" + strings.TrimPrefix(w.ID, "https://openalex.org/")
		if c.URL == "" {
			c.URL = w.ID
		}
	}
	return c
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count      int    `json:"count"`
	PerPage    int    `json:"per_page"`
	NextCursor string `json:"next_cursor"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DisplayName           string               `json:"display_name"`
	DOI                   string               `json:"doi"`
	PublicationDate       string               `json:"publication_date"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       openAlexLocation     `json:"primary_location"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	LandingPageURL string         `json:"landing_page_url"`
	Source         openAlexSource `json:"source"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
}
