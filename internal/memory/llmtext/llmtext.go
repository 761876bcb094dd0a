// Package llmtext holds the prompt templates and tolerant-parsing helpers
// shared by the episode attacher's seed path (§4.7), the consolidator
// (§4.8), and the thought generator (§4.9) — every place the pipeline asks
// the LLM for a titled summary of some cluster of text.
package llmtext

import (
	"regexp"
	"strconv"
	"strings"
)

const TitleNarrativeSystemPrompt = `Given the text below, produce a short title and a narrative summary.
Respond in exactly this format:
Title: <at most 50 characters>

Summary: <150-300 words>`

// TitleNarrative holds the parsed output of the title+narrative prompt.
type TitleNarrative struct {
	Title     string
	Narrative string
}

var (
	titleLine   = regexp.MustCompile(`(?im)^Title:\s*(.+)$`)
	summaryLine = regexp.MustCompile(`(?ims)^Summary:\s*(.+)$`)
)

// ParseTitleNarrative tolerantly extracts Title/Summary lines from the
// model's response. A missing Title falls back to the raw response cut to
// 50 characters, a missing Summary to the whole raw response, so the
// caller always has something usable.
func ParseTitleNarrative(raw string) TitleNarrative {
	out := TitleNarrative{}
	if m := titleLine.FindStringSubmatch(raw); m != nil {
		out.Title = truncate(strings.TrimSpace(m[1]), 50)
	}
	if m := summaryLine.FindStringSubmatch(raw); m != nil {
		out.Narrative = strings.TrimSpace(m[1])
	}
	if out.Title == "" {
		out.Title = truncate(strings.TrimSpace(raw), 50)
	}
	if out.Narrative == "" {
		out.Narrative = strings.TrimSpace(raw)
	}
	return out
}

const ThoughtSystemPrompt = `The episodes below share a common thread. Name the underlying insight about
the person they describe. Respond in exactly this format, three lines:
NAME: <short name>
DESCRIPTION: <1-3 sentences>
IMPORTANCE: <float between 0.0 and 1.0>`

// ThoughtFields holds the tolerantly-parsed NAME/DESCRIPTION/IMPORTANCE
// triple from the thought-generation prompt.
type ThoughtFields struct {
	Name        string
	Description string
	Importance  float64
}

var (
	nameLine       = regexp.MustCompile(`(?im)^NAME:\s*(.+)$`)
	descriptionLine = regexp.MustCompile(`(?im)^DESCRIPTION:\s*(.+)$`)
	importanceLine = regexp.MustCompile(`(?im)^IMPORTANCE:\s*([01](?:\.\d+)?|\.\d+)`)
)

// DefaultThoughtImportance is used whenever the model's IMPORTANCE line is
// missing or unparsable (§4.9 step 3).
const DefaultThoughtImportance = 0.5

func ParseThoughtFields(raw string) ThoughtFields {
	out := ThoughtFields{Importance: DefaultThoughtImportance}
	if m := nameLine.FindStringSubmatch(raw); m != nil {
		out.Name = strings.TrimSpace(m[1])
	}
	if m := descriptionLine.FindStringSubmatch(raw); m != nil {
		out.Description = strings.TrimSpace(m[1])
	}
	if m := importanceLine.FindStringSubmatch(raw); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			out.Importance = clamp01(f)
		}
	}
	if out.Name == "" {
		out.Name = truncate(strings.TrimSpace(raw), 50)
	}
	return out
}

// TruncateForPrompt caps concatenated member text to a character budget
// before it is sent to the LLM (§4.8 step 4).
func TruncateForPrompt(s string, budget int) string {
	return truncate(s, budget)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
