// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// CSLItem is a bibliographic entry in CSL-YAML, the format Pandoc and
// reference managers such as Zotero import.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	Note           string    `yaml:"note,omitempty"`
}

// CSLName is a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a CSL date using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// WriteCSL writes papers as a CSL-YAML list to w.
func WriteCSL(w io.Writer, papers []types.ScoredPaper) error {
	items := make([]CSLItem, len(papers))
	for i, p := range papers {
		items[i] = toCSLItem(p)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encoding CSL: %w", err)
	}
	return enc.Close()
}

func toCSLItem(p types.ScoredPaper) CSLItem {
	item := CSLItem{
		ID:             p.ID,
		Type:           "article-journal",
		Title:          p.Title,
		Abstract:       p.Abstract,
		ContainerTitle: p.Venue,
		URL:            p.URL,
		Note:           fmt.Sprintf("paperwatch score %d/10: %s", p.Score, p.Rationale),
	}
	if strings.HasPrefix(p.ID, "arxiv:") {
		item.Type = "article"
	}
	for _, a := range p.Authors {
		if n := parseAuthorName(a); n != (CSLName{}) {
			item.Author = append(item.Author, n)
		}
	}

	switch {
	case p.PublicationDate.IsZero():
	case p.DateIsYear:
		item.Issued = &CSLDate{DateParts: [][]int{{p.PublicationDate.Year()}}}
	default:
		d := p.PublicationDate
		item.Issued = &CSLDate{DateParts: [][]int{{d.Year(), int(d.Month()), d.Day()}}}
	}

	if strings.HasPrefix(p.ID, "10.") {
		item.DOI = p.ID
	}
	return item
}

// parseAuthorName splits a full name on its last space into given and
// family parts. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
