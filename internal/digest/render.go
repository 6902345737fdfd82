// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/pdiddy/paperwatch/internal/textutil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

const (
	maxAuthors      = 3
	maxSnippetChars = 300
)

var digestTmpl = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body>
<div style="font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; max-width: 600px; margin: auto; color: #333;">
  <h2 style="color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 10px;">&#128197; Weekly Literature Digest ({{.Date}})</h2>
  <p style="font-size: 12px; color: #888;">Top {{len .Papers}} Selections (Window: Last {{.WindowDays}} Days)</p>
{{- range .Papers}}
  <div class="paper" style="border: {{.Border}}; margin-bottom: 20px; border-radius: 8px; overflow: hidden; background: #fff;">
    <div style="background: #f8f9fa; padding: 10px 15px; border-bottom: 1px solid #eee;">
      <b class="rank" style="font-size: 14px;">{{.Badge}} Recommended</b>
      {{- if gt .Hits 1}}
      <span class="hits" style="background: #6c757d; color: white; padding: 2px 6px; border-radius: 4px; font-size: 10px; margin-left: 5px;">&#127919; {{.Hits}} hits</span>
      {{- end}}
      <span class="score" style="float: right; background: #e74c3c; color: white; padding: 2px 8px; border-radius: 10px; font-weight: bold; font-size: 12px;">{{.Score}} / 10</span>
    </div>
    <div style="padding: 15px;">
      <h3 style="margin: 0 0 10px 0; font-size: 16px; line-height: 1.4;">
        {{- if .URL}}<a class="title" href="{{.URL}}" style="text-decoration: none; color: #0366d6;">{{.Title}}</a>{{else}}<span class="title">{{.Title}}</span>{{end -}}
      </h3>
      <div style="font-size: 13px; color: #444; margin-bottom: 12px; line-height: 1.6;">
        <div class="venue" style="margin-bottom: 4px;">&#127963; <b>{{.Venue}}</b> <span style="color: #888; margin-left: 5px;">({{.Date}})</span></div>
        <div class="authors" style="color: #666;">&#9997; {{.Authors}}</div>
      </div>
      {{- if .Keywords}}
      <p class="keywords" style="font-size: 11px; color: #999; margin: 0 0 8px 0;">&#127991; Keywords: {{.Keywords}}</p>
      {{- end}}
      {{- if .Snippet}}
      <p class="abstract" style="font-size: 12px; color: #555; margin: 0 0 8px 0;">{{.Snippet}}</p>
      {{- end}}
      <div class="comment" style="background: #f1f8ff; padding: 10px; border-radius: 6px; font-size: 13px; color: #24292e; border-left: 3px solid #0366d6;">&#128161; <b>AI Comment:</b> {{.Comment}}</div>
    </div>
  </div>
{{- end}}
  <p style="text-align: center; color: #aaa; font-size: 12px; margin-top: 20px;">Generated by paperwatch</p>
</div>
</body>
</html>
`))

type rankStyle struct {
	badge  string
	border template.CSS
}

var podium = []rankStyle{
	{"\U0001F947", "2px solid #f1c40f"},
	{"\U0001F948", "2px solid #bdc3c7"},
	{"\U0001F949", "2px solid #e67e22"},
}

type paperView struct {
	Badge    string
	Border   template.CSS
	Score    int
	Hits     int
	Title    string
	URL      string
	Venue    string
	Date     string
	Authors  string
	Keywords string
	Snippet  string
	Comment  string
}

// Render returns the digest as an HTML document. Every paper field is
// escaped by html/template.
func Render(d Digest) (string, error) {
	views := make([]paperView, len(d.Papers))
	for i, p := range d.Papers {
		views[i] = viewOf(i, p)
	}

	var buf bytes.Buffer
	err := digestTmpl.Execute(&buf, struct {
		Subject    string
		Date       string
		WindowDays int
		Papers     []paperView
	}{
		Subject:    Subject(d),
		Date:       d.Date.Format("2006-01-02"),
		WindowDays: d.WindowDays,
		Papers:     views,
	})
	if err != nil {
		return "", fmt.Errorf("rendering digest: %w", err)
	}
	return buf.String(), nil
}

func viewOf(i int, p types.ScoredPaper) paperView {
	v := paperView{
		Badge:    fmt.Sprintf("#%d", i+1),
		Border:   "1px solid #ddd",
		Score:    p.Score,
		Hits:     p.HitCount(),
		Title:    p.Title,
		URL:      p.URL,
		Venue:    p.Venue,
		Date:     displayDate(p.CandidatePaper),
		Authors:  authorLine(p.Authors),
		Keywords: strings.Join(p.HitKeywords, ", "),
		Snippet:  textutil.Truncate(p.Abstract, maxSnippetChars),
		Comment:  p.Rationale,
	}
	if i < len(podium) {
		v.Badge = podium[i].badge
		v.Border = podium[i].border
	}
	if v.Venue == "" {
		v.Venue = "Unknown Journal"
	}
	if v.Comment == "" {
		v.Comment = "No reason provided"
	}
	return v
}

func displayDate(p types.CandidatePaper) string {
	switch {
	case p.PublicationDate.IsZero():
		return "Recent"
	case p.DateIsYear:
		return p.PublicationDate.Format("2006")
	default:
		return p.PublicationDate.Format("2006-01-02")
	}
}

// authorLine lists the first three authors, adding "et al." when there
// are more.
func authorLine(authors []string) string {
	if len(authors) == 0 {
		return "Unknown Authors"
	}
	if len(authors) <= maxAuthors {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:maxAuthors], ", ") + " et al."
}
