package engine

import (
	"sort"
	"strings"
)

// synonymGroups are expanded as a unit: a token in any group pulls in
// every member of that group.
var synonymGroups = [][]string{
	{"remove", "delete", "drop", "eliminate", "destroy", "kill", "purge", "wipe"},
	{"add", "create", "introduce", "insert", "new"},
	{"change", "modify", "alter", "update", "edit", "mutate", "rewrite"},
	{"break", "breaking", "broke", "regress", "regression", "incompatible"},
	{"public", "exposed", "external", "open"},
	{"private", "internal", "hidden", "secret"},
	{"database", "db", "schema", "table", "migration", "sql"},
	{"api", "endpoint", "route", "interface", "contract"},
	{"test", "tests", "testing", "coverage", "spec"},
	{"deploy", "deployment", "release", "ship", "publish", "production"},
	{"security", "auth", "authentication", "authorization", "credentials", "permission"},
	{"dependency", "dependencies", "package", "library", "module"},
	{"refactor", "restructure", "reorganize", "rework", "cleanup"},
	{"enable", "activate", "allow", "turn-on"},
	{"disable", "deactivate", "block", "turn-off", "suspend"},
}

// negationWords are matched by substring containment.
var negationWords = []string{
	"no", "not", "never", "without", "don't", "dont", "cannot", "can't",
	"shouldn't", "mustn't", "won't", "avoid", "prevent", "prohibit",
	"forbid", "disallow",
}

// destructiveWords are matched by substring containment on an action.
var destructiveWords = []string{
	"remove", "delete", "drop", "destroy", "kill", "purge", "wipe",
	"break", "disable", "revert", "rollback", "undo",
}

// synonymIndex maps a token to the indexes of the groups containing it.
var synonymIndex = buildSynonymIndex()

func buildSynonymIndex() map[string][]int {
	idx := map[string][]int{}
	for i, group := range synonymGroups {
		for _, w := range group {
			idx[w] = append(idx[w], i)
		}
	}
	return idx
}

// tokenSet is an unordered set of words.
type tokenSet map[string]struct{}

// tokenize lower-cases text, splits on whitespace and drops tokens of
// length 2 or less. Punctuation stays attached to its word.
func tokenize(text string) tokenSet {
	set := tokenSet{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) <= 2 {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// expand adds every member of every synonym group a token belongs to.
func expand(tokens tokenSet) tokenSet {
	out := tokenSet{}
	for w := range tokens {
		out[w] = struct{}{}
		for _, g := range synonymIndex[w] {
			for _, syn := range synonymGroups[g] {
				out[syn] = struct{}{}
			}
		}
	}
	return out
}

// intersect returns the members present in both sets.
func intersect(a, b tokenSet) tokenSet {
	out := tokenSet{}
	for w := range a {
		if _, ok := b[w]; ok {
			out[w] = struct{}{}
		}
	}
	return out
}

// minus returns members of a that are not in b.
func minus(a, b tokenSet) tokenSet {
	out := tokenSet{}
	for w := range a {
		if _, ok := b[w]; !ok {
			out[w] = struct{}{}
		}
	}
	return out
}

// sorted returns the set members in lexical order.
func (s tokenSet) sorted() []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func containsAny(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// hasNegation reports whether text carries prohibitive language.
func hasNegation(text string) bool {
	return containsAny(text, negationWords)
}

// isDestructive reports whether an action text describes a destructive act.
func isDestructive(text string) bool {
	return containsAny(text, destructiveWords)
}
