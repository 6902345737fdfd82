// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textutil cleans and shortens text coming from bibliographic APIs.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// StripMarkup returns the visible text of s with HTML or JATS tags removed
// and whitespace collapsed. Zotero and OpenAlex abstracts often carry
// <jats:p> or <p> wrappers.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return CollapseSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return CollapseSpace(s)
	}
	return CollapseSpace(doc.Text())
}

// CollapseSpace trims s and replaces every run of whitespace with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most max runes, appending "..." when cut.
// A max of 0 or less returns s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:max]), unicode.IsSpace) + "..."
}

// NormalizeTitle returns a lowercased, punctuation-stripped version of the
// title for duplicate detection.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(StripMarkup(title)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
