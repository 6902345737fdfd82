// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/pdiddy/paperwatch/internal/textutil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

const (
	maxAnchorContext  = 10000
	maxPromptAbstract = 3000
)

var relevancePromptTmpl = template.Must(template.New("relevance").Parse(`[Core Research Context (Anchor Papers)]:
{{.Anchors}}

[Target Paper to Evaluate]:
Title: {{.Title}}
Abstract: {{.Abstract}}

[Task]:
Evaluate the relevance of the Target Paper to the Core Research Context.
- 10: Essential/Critical match.
- 6-9: Relevant.
- 0-5: Irrelevant.

[Output Format]:
SCORE: <number>
REASON: <short explanation in English>
`))

// BuildPrompt renders the scoring prompt for one candidate. anchors is the
// formatted anchor context from library.FormatContext.
func BuildPrompt(anchors string, c types.CandidatePaper) (string, error) {
	var buf bytes.Buffer
	err := relevancePromptTmpl.Execute(&buf, struct {
		Anchors  string
		Title    string
		Abstract string
	}{
		Anchors:  textutil.Truncate(strings.TrimSpace(anchors), maxAnchorContext),
		Title:    c.Title,
		Abstract: textutil.Truncate(c.Abstract, maxPromptAbstract),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// scoreNum captures a possibly signed, possibly decimal number so that
// "-3" and "8.5" are read whole rather than as "3" and "5".
const scoreNum = `(-?\d+(?:\.\d+)?)`

var (
	strictScoreRe = regexp.MustCompile(`SCORE:\s*` + scoreNum)
	outOfTenRe    = regexp.MustCompile(`(?:^|[^\w.-])` + scoreNum + `\s*/\s*10\b`)
	scoreWordRe   = regexp.MustCompile(`(?i)\b(?:score|relevance|rating|rated)\b[\s*_:=]{0,5}(?:of|is|at)?[\s*_:]*` + scoreNum)
	loneNumRe     = regexp.MustCompile(`^[^\w.-]*` + scoreNum + `[^\w]*$`)
	reasonRe      = regexp.MustCompile(`(?i)\bREASON\b[*_\s]*:`)
)

// ParseScore extracts the score and rationale from a model reply. It first
// looks for the requested "SCORE: N" line and otherwise accepts "N/10",
// "score of N", "Relevance: N", or a reply (or first line) that is only a
// number. Decimals are rounded half away from zero; negative values and
// values outside [0, 10] after rounding leave ok false with score 0.
func ParseScore(text string) (score int, rationale string, ok bool) {
	rationale = parseRationale(text)

	for _, re := range []*regexp.Regexp{strictScoreRe, outOfTenRe, scoreWordRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			score, ok = inRange(m[1])
			return score, rationale, ok
		}
	}

	trimmed := strings.TrimSpace(text)
	firstLine, _, _ := strings.Cut(trimmed, "\n")
	for _, candidate := range []string{trimmed, strings.TrimSpace(firstLine)} {
		if m := loneNumRe.FindStringSubmatch(candidate); m != nil {
			score, ok = inRange(m[1])
			return score, rationale, ok
		}
	}
	return 0, rationale, false
}

func inRange(num string) (int, bool) {
	if strings.HasPrefix(num, "-") {
		return 0, false
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	n := math.Round(f)
	if n < types.MinRelevance || n > types.MaxRelevance {
		return 0, false
	}
	return int(n), true
}

// parseRationale returns the text after the last REASON: marker, or the
// whole reply when there is none.
func parseRationale(text string) string {
	locs := reasonRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return textutil.CollapseSpace(text)
	}
	return textutil.CollapseSpace(text[locs[len(locs)-1][1]:])
}
