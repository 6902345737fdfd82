// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperwatch/pkg/types"
)

func renderDoc(t *testing.T, d Digest) *goquery.Document {
	t.Helper()
	html, err := Render(d)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func samplePapers() []types.ScoredPaper {
	return []types.ScoredPaper{
		{
			CandidatePaper: types.CandidatePaper{
				ID:              "10.1/a",
				Title:           "Phase-stable perovskites",
				Abstract:        strings.Repeat("word ", 100),
				PublicationDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
				URL:             "https://doi.org/10.1/a",
				Venue:           "Nature Energy",
				Authors:         []string{"Ada Chen", "Ben Okafor", "Chi Li", "Dana Ruiz"},
				HitKeywords:     []string{"perovskite", "stability"},
			},
			Score:     9,
			Rationale: "Same passivation chemistry.",
		},
		{
			CandidatePaper: types.CandidatePaper{
				ID:              "arxiv:2609.1",
				Title:           "Tandems <script>alert(1)</script>",
				PublicationDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				DateIsYear:      true,
				Authors:         []string{"Eve Park"},
				HitKeywords:     []string{"tandem"},
			},
			Score: 7,
		},
		{CandidatePaper: types.CandidatePaper{ID: "c", Title: "Third"}, Score: 6},
		{CandidatePaper: types.CandidatePaper{ID: "d", Title: "Fourth"}, Score: 6},
	}
}

func TestRenderStructure(t *testing.T) {
	doc := renderDoc(t, Digest{
		Date:       time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		WindowDays: 180,
		Papers:     samplePapers(),
	})

	assert.Contains(t, doc.Find("h2").Text(), "Weekly Literature Digest (2026-10-19)")
	assert.Contains(t, doc.Find("body > div > p").First().Text(), "Top 4 Selections (Window: Last 180 Days)")

	papers := doc.Find("div.paper")
	require.Equal(t, 4, papers.Length())

	first := papers.Eq(0)
	assert.Equal(t, "\U0001F947 Recommended", first.Find(".rank").Text())
	assert.Equal(t, "9 / 10", first.Find(".score").Text())
	assert.Contains(t, first.Find(".hits").Text(), "2 hits")
	title := first.Find("a.title")
	assert.Equal(t, "Phase-stable perovskites", title.Text())
	href, _ := title.Attr("href")
	assert.Equal(t, "https://doi.org/10.1/a", href)
	assert.Contains(t, first.Find(".venue").Text(), "Nature Energy")
	assert.Contains(t, first.Find(".venue").Text(), "(2026-10-01)")
	assert.Contains(t, first.Find(".authors").Text(), "Ada Chen, Ben Okafor, Chi Li et al.")
	assert.Contains(t, first.Find(".keywords").Text(), "perovskite, stability")
	assert.Contains(t, first.Find(".comment").Text(), "Same passivation chemistry.")
	assert.True(t, strings.HasSuffix(first.Find(".abstract").Text(), "..."))
	border, _ := first.Attr("style")
	assert.Contains(t, border, "2px solid #f1c40f")

	second := papers.Eq(1)
	assert.Equal(t, "\U0001F948 Recommended", second.Find(".rank").Text())
	assert.Equal(t, 0, second.Find(".hits").Length(), "single-keyword papers get no hit badge")
	assert.Equal(t, 0, second.Find("a.title").Length(), "no link without a URL")
	assert.Equal(t, "Tandems <script>alert(1)</script>", second.Find(".title").Text())
	assert.Equal(t, 0, doc.Find("script").Length(), "titles are escaped")
	assert.Contains(t, second.Find(".venue").Text(), "Unknown Journal")
	assert.Contains(t, second.Find(".venue").Text(), "(2026)")
	assert.Contains(t, second.Find(".comment").Text(), "No reason provided")

	assert.Equal(t, "\U0001F949 Recommended", papers.Eq(2).Find(".rank").Text())
	assert.Equal(t, "#4 Recommended", papers.Eq(3).Find(".rank").Text())
	assert.Contains(t, papers.Eq(3).Find(".venue").Text(), "(Recent)")
	assert.Contains(t, papers.Eq(3).Find(".authors").Text(), "Unknown Authors")
}

func TestAuthorLine(t *testing.T) {
	assert.Equal(t, "Unknown Authors", authorLine(nil))
	assert.Equal(t, "A", authorLine([]string{"A"}))
	assert.Equal(t, "A, B, C", authorLine([]string{"A", "B", "C"}))
	assert.Equal(t, "A, B, C et al.", authorLine([]string{"A", "B", "C", "D"}))
}
