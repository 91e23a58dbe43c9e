package engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/HendryAvila/speclock/internal/brain"
)

var (
	commitmentPattern  = regexp.MustCompile(`(?i)\b(always|must|only|exclusively|never|required)\b`)
	prohibitionPattern = regexp.MustCompile(`(?i)\b(never|must not|do not|don't|avoid|prohibit|prohibited|forbidden)\b`)
)

// commonConstraint is proposed when its keyword shows up in project text
// and no active lock mentions it.
type commonConstraint struct {
	keyword string
	text    string
	reason  string
}

var commonConstraints = []commonConstraint{
	{"api", "Never break existing public API contracts without a versioned migration path", "Project mentions an API; breaking changes are a common regression."},
	{"migration", "Never run destructive database migrations without a backup and rollback plan", "Project mentions migrations; destructive schema changes lose data."},
	{"deploy", "Never deploy to production without passing CI", "Project mentions deployment; skipping CI ships broken builds."},
	{"secret", "Never commit secrets, keys or credentials to source control", "Project mentions secrets; leaked credentials are hard to revoke."},
	{"test", "Never merge changes without passing tests", "Project mentions tests; untested merges erode coverage."},
}

// Suggestion is a lock candidate.
type Suggestion struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	SourceID string `json:"sourceId,omitempty"`
	Reason   string `json:"reason"`
}

// SuggestionReport is the outcome of SuggestLocks.
type SuggestionReport struct {
	Suggestions []Suggestion `json:"suggestions"`
	TotalLocks  int          `json:"totalLocks"`
}

// SuggestLocks proposes locks from decisions, notes and common constraints.
func (e *Engine) SuggestLocks(ctx context.Context) (SuggestionReport, error) {
	b, err := e.EnsureInit(ctx)
	if err != nil {
		return SuggestionReport{}, err
	}
	locks := b.ActiveLocks()
	report := SuggestionReport{Suggestions: []Suggestion{}, TotalLocks: len(locks)}

	locked := map[string]bool{}
	for _, l := range locks {
		locked[strings.ToLower(l.Text)] = true
	}

	for _, d := range b.Decisions {
		if locked[strings.ToLower(d.Text)] || !commitmentPattern.MatchString(d.Text) {
			continue
		}
		report.Suggestions = append(report.Suggestions, Suggestion{
			Text:     d.Text,
			Source:   "decision",
			SourceID: d.ID,
			Reason:   "Decision uses commitment language (\"" + strings.ToLower(commitmentPattern.FindString(d.Text)) + "\")",
		})
	}

	for _, n := range b.Notes {
		if locked[strings.ToLower(n.Text)] || !prohibitionPattern.MatchString(n.Text) {
			continue
		}
		report.Suggestions = append(report.Suggestions, Suggestion{
			Text:     n.Text,
			Source:   "note",
			SourceID: n.ID,
			Reason:   "Note uses prohibitive language (\"" + strings.ToLower(prohibitionPattern.FindString(n.Text)) + "\")",
		})
	}

	corpus := projectTokens(b)
	for _, c := range commonConstraints {
		if !mentions(corpus, c.keyword) || locksMention(locks, c.keyword) {
			continue
		}
		report.Suggestions = append(report.Suggestions, Suggestion{
			Text:   c.text,
			Source: "common",
			Reason: c.reason,
		})
	}
	return report, nil
}

// projectTokens tokenizes goal, decisions and notes together.
func projectTokens(b *brain.Brain) tokenSet {
	parts := []string{b.Goal.Text}
	for _, d := range b.Decisions {
		parts = append(parts, d.Text)
	}
	for _, n := range b.Notes {
		parts = append(parts, n.Text)
	}
	return tokenize(strings.Join(parts, " "))
}

// mentions matches keyword as a token prefix so plurals and derived forms
// ("apis", "deployment", "testing") count.
func mentions(tokens tokenSet, keyword string) bool {
	for w := range tokens {
		if strings.HasPrefix(w, keyword) {
			return true
		}
	}
	return false
}

func locksMention(locks []brain.Lock, keyword string) bool {
	for _, l := range locks {
		if mentions(tokenize(l.Text), keyword) {
			return true
		}
	}
	return false
}
