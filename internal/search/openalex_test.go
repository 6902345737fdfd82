// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstructAbstract(t *testing.T) {
	tests := []struct {
		name  string
		index map[string][]int
		want  string
	}{
		{"empty map", map[string][]int{}, ""},
		{"nil map", nil, ""},
		{"single word", map[string][]int{"hello": {0}}, "hello"},
		{
			"multi-word ordered",
			map[string][]int{"We": {0}, "propose": {1}, "a": {2}, "new": {3}, "method": {4}},
			"We propose a new method",
		},
		{
			"repeated word",
			map[string][]int{"the": {0, 4}, "cat": {1}, "sat": {2}, "on": {3}, "mat": {5}},
			"the cat sat on the mat",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reconstructAbstract(tt.index))
		})
	}
}

const sampleOpenAlexJSON = `{
  "meta": {"count": 2, "per_page": 2, "next_cursor": null},
  "results": [
    {
      "id": "https://openalex.org/W4400000001",
      "title": "Phase-stable formamidinium perovskites",
      "doi": "https://doi.org/10.1038/S41560-026-0001",
      "publication_date": "2026-08-12",
      "publication_year": 2026,
      "authorships": [
        {"author": {"id": "A1", "display_name": "Ada Chen"}},
        {"author": {"id": "A2", "display_name": "Ben Okafor"}}
      ],
      "abstract_inverted_index": {"We": [0], "stabilize": [1], "the": [2], "alpha": [3], "phase": [4]},
      "primary_location": {"landing_page_url": "https://www.nature.com/articles/s41560-026-0001", "source": {"display_name": "Nature Energy"}}
    },
    {
      "id": "https://openalex.org/W4400000002",
      "display_name": "Tandem cells without a DOI",
      "publication_year": 2026,
      "authorships": [],
      "abstract_inverted_index": {"Silicon": [0], "tandems": [1]}
    }
  ]
}`

func useOpenAlexServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	old := openAlexSearchBase
	openAlexSearchBase = ts.URL
	t.Cleanup(func() { openAlexSearchBase = old })
	return ts
}

func TestOpenAlexBackendSearch(t *testing.T) {
	var captured *http.Request
	ts := useOpenAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleOpenAlexJSON)
	})

	b := &OpenAlexBackend{Client: ts.Client(), Email: "me@example.org"}
	got, err := b.Search(context.Background(), Query{
		Keyword: "perovskite",
		From:    time.Date(2026, 4, 22, 0, 0, 0, 0, time.UTC),
		To:      time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	q := captured.URL.Query()
	assert.Equal(t, "perovskite", q.Get("search"))
	assert.Equal(t, "*", q.Get("cursor"))
	assert.Equal(t, "100", q.Get("per_page"))
	assert.Equal(t, "from_publication_date:2026-04-22,to_publication_date:2026-10-19", q.Get("filter"))
	assert.Equal(t, "me@example.org", q.Get("mailto"))

	first := got[0]
	assert.Equal(t, "10.1038/s41560-026-0001", first.ID)
	assert.Equal(t, "Phase-stable formamidinium perovskites", first.Title)
	assert.Equal(t, "We stabilize the alpha phase", first.Abstract)
	assert.Equal(t, "Nature Energy", first.Venue)
	assert.Equal(t, "https://www.nature.com/articles/s41560-026-0001", first.URL)
	assert.Equal(t, []string{"Ada Chen", "Ben Okafor"}, first.Authors)
	assert.Equal(t, time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC), first.PublicationDate)
	assert.False(t, first.DateIsYear)

	second := got[1]
	assert.Equal(t, "openalex:W4400000002", second.ID)
	assert.Equal(t, "Tandem cells without a DOI", second.Title)
	assert.Equal(t, "https://openalex.org/W4400000002", second.URL)
	assert.True(t, second.DateIsYear)
}

func TestOpenAlexBackendFollowsCursor(t *testing.T) {
	var calls int32
	ts := useOpenAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Query().Get("cursor") {
		case "*":
			fmt.Fprint(w, `{"meta":{"next_cursor":"c2"},"results":[{"id":"https://openalex.org/W1","title":"One"}]}`)
		case "c2":
			fmt.Fprint(w, `{"meta":{"next_cursor":null},"results":[{"id":"https://openalex.org/W2","title":"Two"}]}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	})

	b := &OpenAlexBackend{Client: ts.Client()}
	got, err := b.Search(context.Background(), Query{Keyword: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"openalex:W1", "openalex:W2"}, ids(got))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAlexBackendNoEmailOmitsMailto(t *testing.T) {
	var captured *http.Request
	ts := useOpenAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r
		fmt.Fprint(w, `{"meta":{},"results":[]}`)
	})

	b := &OpenAlexBackend{Client: ts.Client()}
	got, err := b.Search(context.Background(), Query{Keyword: "x"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, captured.URL.Query().Has("mailto"))
	assert.False(t, captured.URL.Query().Has("filter"))
}

func TestOpenAlexBackendErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"bad request", http.StatusBadRequest, `{}`, "HTTP 400"},
		{"malformed json", http.StatusOK, `{"results": [`, "parsing OpenAlex response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := useOpenAlexServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			b := &OpenAlexBackend{Client: ts.Client()}
			_, err := b.Search(context.Background(), Query{Keyword: "x"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOpenAlexBackendEmptyKeyword(t *testing.T) {
	b := &OpenAlexBackend{Client: http.DefaultClient}
	_, err := b.Search(context.Background(), Query{})
	assert.Error(t, err)
}
