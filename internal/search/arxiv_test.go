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

const arxivFeedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/query</id>
  <updated>2026-10-19T00:00:00-04:00</updated>
  %s
</feed>`

const arxivEntryTemplate = `<entry>
    <id>http://arxiv.org/abs/%s</id>
    <published>%s</published>
    <updated>%s</updated>
    <title>%s</title>
    <summary>  An abstract about %s.  </summary>
    <author><name>Ada Chen</name></author>
    <author><name>Ben Okafor</name></author>
    <link href="http://arxiv.org/abs/%s" rel="alternate" type="text/html"/>
  </entry>`

func arxivEntry(id, published, title string) string {
	return fmt.Sprintf(arxivEntryTemplate, id, published, published, title, title, id)
}

func useArxivServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	old := arxivAPIBase
	arxivAPIBase = ts.URL
	t.Cleanup(func() { arxivAPIBase = old })
	return ts
}

func TestArxivBackendSearch(t *testing.T) {
	var captured *http.Request
	ts := useArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprintf(w, arxivFeedTemplate,
			arxivEntry("2610.01234v2", "2026-10-01T17:00:00Z", "Perovskite tandems")+
				arxivEntry("2609.00042v1", "2026-09-15T12:00:00Z", "Defect passivation"))
	})

	b := &ArxivBackend{Client: ts.Client()}
	got, err := b.Search(context.Background(), Query{
		Keyword: "perovskite solar",
		From:    time.Date(2026, 4, 22, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	q := captured.URL.Query()
	assert.Equal(t, `all:"perovskite solar"`, q.Get("search_query"))
	assert.Equal(t, "submittedDate", q.Get("sortBy"))
	assert.Equal(t, "descending", q.Get("sortOrder"))
	assert.Equal(t, "0", q.Get("start"))

	first := got[0]
	assert.Equal(t, "arxiv:2610.01234", first.ID)
	assert.Equal(t, "Perovskite tandems", first.Title)
	assert.Equal(t, "An abstract about Perovskite tandems.", first.Abstract)
	assert.Equal(t, "https://arxiv.org/abs/2610.01234", first.URL)
	assert.Equal(t, "arXiv", first.Venue)
	assert.Equal(t, []string{"Ada Chen", "Ben Okafor"}, first.Authors)
	assert.Equal(t, time.Date(2026, 10, 1, 17, 0, 0, 0, time.UTC), first.PublicationDate)
}

func TestArxivBackendStopsAtCutoff(t *testing.T) {
	var calls int32
	ts := useArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprintf(w, arxivFeedTemplate,
			arxivEntry("2610.00001v1", "2026-10-01T00:00:00Z", "New")+
				arxivEntry("2501.00001v1", "2025-01-01T00:00:00Z", "Old")+
				arxivEntry("2610.00002v1", "2026-10-02T00:00:00Z", "Out of order"))
	})

	b := &ArxivBackend{Client: ts.Client()}
	got, err := b.Search(context.Background(), Query{
		Keyword:  "x",
		From:     time.Date(2026, 4, 22, 0, 0, 0, 0, time.UTC),
		PageSize: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"arxiv:2610.00001"}, ids(got))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestArxivBackendPages(t *testing.T) {
	var calls int32
	ts := useArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Query().Get("start") {
		case "0":
			fmt.Fprintf(w, arxivFeedTemplate, arxivEntry("2610.00001v1", "2026-10-01T00:00:00Z", "A"))
		default:
			fmt.Fprintf(w, arxivFeedTemplate, "")
		}
	})

	b := &ArxivBackend{Client: ts.Client()}
	got, err := b.Search(context.Background(), Query{Keyword: "x", PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestArxivBackendHTTPError(t *testing.T) {
	useArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	b := &ArxivBackend{Client: http.DefaultClient}
	_, err := b.Search(context.Background(), Query{Keyword: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
}

func TestBuildArxivQuery(t *testing.T) {
	assert.Equal(t, "all:perovskite", buildArxivQuery("perovskite"))
	assert.Equal(t, "all:%22perovskite+solar+cells%22", buildArxivQuery("  perovskite   solar cells "))
	assert.Equal(t, "", buildArxivQuery("   "))
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041v12", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041", "2301.07041"},
		{"http://arxiv.org/abs/cond-mat/0102536v1", "cond-mat/0102536"},
		{"https://example.org/paper", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractArxivID(tt.in), tt.in)
	}
}
