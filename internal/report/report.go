// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report synthesizes the accumulated findings into a cited Markdown
// report. The model may only cite supplied findings; the reference list is
// cross-checked after the call and fabricated entries are dropped along with
// their in-text markers. On completion failure the writer falls back to a
// bullet-point enumeration so every job ends with some artifact.
package report

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/meshintel/deepresearch/internal/llm"
	"github.com/meshintel/deepresearch/pkg/types"
)

const systemPrompt = `You are a pharmacology research writer. You synthesize collected evidence into a concise, well-structured Markdown report with numbered citations. You cite ONLY the findings supplied to you, using [n] markers that match the citation list you return.`

const formatHint = `Respond with a JSON object of the form:
{"body": "markdown text with [1] style citation markers", "citations": [{"index": 1, "url": "...", "title": "..."}]}
Every citation index must appear exactly once in the citations array and every cited URL must come from the supplied findings. Do not include any text outside the JSON object.`

// writeResponse is the structured completion output.
type writeResponse struct {
	Body      string `json:"body"`
	Citations []struct {
		Index int    `json:"index"`
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"citations"`
}

// Writer produces the terminal report artifact.
type Writer struct {
	Client llm.Client
	Log    *zap.Logger
}

// New returns a writer.
func New(client llm.Client, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{Client: client, Log: log}
}

// Write synthesizes the report from the finding snapshot. The returned error
// is non-nil only when the completion service failed after its retry budget;
// the report alongside it is the bullet-list fallback.
func (w *Writer) Write(ctx context.Context, question types.ResearchQuestion, snap types.Snapshot) (types.ResearchReport, error) {
	user := fmt.Sprintf("Research question:\n%s\n\nFindings:\n%s", question.Text, numberedFindings(snap))

	resp, err := llm.Structured[writeResponse](ctx, w.Client, llm.Request{
		System:     systemPrompt,
		User:       user,
		FormatHint: formatHint,
	})
	if err != nil {
		w.Log.Warn("writer falling back to bullet-list report", zap.Error(err))
		return fallbackReport(question, snap), err
	}

	return crossCheck(resp, snap), nil
}

// numberedFindings renders the snapshot as the evidence block for the prompt.
func numberedFindings(snap types.Snapshot) string {
	findings := snap.All()
	if len(findings) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, f := range findings {
		fmt.Fprintf(&b, "%d. %s: %s (%s)\n", i+1, f.Title, f.Snippet, f.URL)
	}
	return b.String()
}

// crossCheck enforces the citation contract on model output: duplicate
// indices and citations whose URL is absent from the snapshot are dropped,
// and the markers of dropped citations are removed from the body.
func crossCheck(resp writeResponse, snap types.Snapshot) types.ResearchReport {
	var kept []types.Citation
	var dropped []int
	seenIdx := make(map[int]bool)

	for _, c := range resp.Citations {
		if seenIdx[c.Index] {
			dropped = append(dropped, c.Index)
			continue
		}
		seenIdx[c.Index] = true
		if !snap.Has(c.URL) {
			dropped = append(dropped, c.Index)
			continue
		}
		kept = append(kept, types.Citation{Index: c.Index, URL: c.URL, Title: c.Title})
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Index < kept[j].Index })

	body := resp.Body
	for _, idx := range dropped {
		body = stripMarker(body, idx)
	}

	return types.ResearchReport{
		MarkdownBody: strings.TrimSpace(body),
		Citations:    kept,
	}
}

// stripMarker removes [n] citation markers for a dropped index, including
// the index's slot inside multi-citation markers like [2, 5].
func stripMarker(body string, idx int) string {
	single := regexp.MustCompile(fmt.Sprintf(`\[%d\]`, idx))
	body = single.ReplaceAllString(body, "")

	leading := regexp.MustCompile(fmt.Sprintf(`\[%d,\s*`, idx))
	body = leading.ReplaceAllString(body, "[")

	inner := regexp.MustCompile(fmt.Sprintf(`,\s*%d(\s*[\],])`, idx))
	return inner.ReplaceAllString(body, "$1")
}

// fallbackReport enumerates the findings without narrative synthesis.
func fallbackReport(question types.ResearchQuestion, snap types.Snapshot) types.ResearchReport {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", question.Text)
	b.WriteString("Report synthesis was unavailable. The evidence collected so far:\n\n")

	var citations []types.Citation
	for i, f := range snap.All() {
		fmt.Fprintf(&b, "- %s [%d]\n  %s\n", f.Title, i+1, f.Snippet)
		citations = append(citations, types.Citation{Index: i + 1, URL: f.URL, Title: f.Title})
	}
	if len(citations) == 0 {
		b.WriteString("- (no findings were collected)\n")
	}

	return types.ResearchReport{
		MarkdownBody: strings.TrimSpace(b.String()),
		Citations:    citations,
		Fallback:     true,
	}
}
