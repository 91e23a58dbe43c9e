package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Scoring weights and thresholds for the conflict heuristic.
const (
	directMatchPoints  = 30
	synonymMatchPoints = 15
	prohibitionPoints  = 40
	destructivePoints  = 20

	conflictThreshold = 15
	highConfidence    = 70
	mediumConfidence  = 40
)

// Confidence bands.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// ReasonProhibits is attached when a negated lock overlaps a plain action.
const ReasonProhibits = "lock prohibits this action"

// NoLocksMessage is the analysis returned when nothing is locked.
const NoLocksMessage = "No active locks (0 checked). No constraints to check against."

// LockConflict is one lock a proposed action may violate.
type LockConflict struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	MatchedKeywords []string `json:"matchedKeywords"`
	Confidence      int      `json:"confidence"`
	Level           string   `json:"level"`
	Reasons         []string `json:"reasons"`
}

// ConflictResult is the outcome of CheckConflict.
type ConflictResult struct {
	HasConflict      bool           `json:"hasConflict"`
	ConflictingLocks []LockConflict `json:"conflictingLocks"`
	Analysis         string         `json:"analysis"`
}

// CheckConflict scores a proposed action against every active lock.
func (e *Engine) CheckConflict(ctx context.Context, action string) (ConflictResult, error) {
	b, err := e.EnsureInit(ctx)
	if err != nil {
		return ConflictResult{}, err
	}
	locks := b.ActiveLocks()
	if len(locks) == 0 {
		return ConflictResult{ConflictingLocks: []LockConflict{}, Analysis: NoLocksMessage}, nil
	}

	actionTokens := tokenize(action)
	actionExpanded := expand(actionTokens)
	actionNegated := hasNegation(action)
	destructive := isDestructive(action)

	conflicts := []LockConflict{}
	for _, lock := range locks {
		lockTokens := tokenize(lock.Text)
		direct := intersect(actionTokens, lockTokens)
		synonyms := intersect(actionExpanded, expand(lockTokens))
		uniqueSynonyms := minus(synonyms, direct)

		score := 0
		var reasons []string
		if len(direct) > 0 {
			score += directMatchPoints * len(direct)
			reasons = append(reasons, "direct keyword match: "+strings.Join(direct.sorted(), ", "))
		}
		if len(uniqueSynonyms) > 0 {
			score += synonymMatchPoints * len(uniqueSynonyms)
			reasons = append(reasons, "synonym match: "+strings.Join(uniqueSynonyms.sorted(), ", "))
		}
		if len(synonyms) > 0 && hasNegation(lock.Text) && !actionNegated {
			score += prohibitionPoints
			reasons = append(reasons, ReasonProhibits)
		}
		if len(synonyms) > 0 && destructive {
			score += destructivePoints
			reasons = append(reasons, "destructive action against locked area")
		}
		score = clamp(score, 0, 100)
		if score < conflictThreshold {
			continue
		}

		matched := direct
		if len(matched) == 0 {
			matched = synonyms
		}
		conflicts = append(conflicts, LockConflict{
			ID:              lock.ID,
			Text:            lock.Text,
			MatchedKeywords: matched.sorted(),
			Confidence:      score,
			Level:           confidenceLevel(score),
			Reasons:         reasons,
		})
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Confidence > conflicts[j].Confidence
	})

	res := ConflictResult{HasConflict: len(conflicts) > 0, ConflictingLocks: conflicts}
	res.Analysis = conflictAnalysis(len(locks), conflicts)
	return res, nil
}

func conflictAnalysis(checked int, conflicts []LockConflict) string {
	if len(conflicts) == 0 {
		return fmt.Sprintf("Checked against %d active lock(s). No conflicts detected. Proceed with caution.", checked)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Potential conflict with %d of %d active lock(s):\n", len(conflicts), checked)
	for _, c := range conflicts {
		fmt.Fprintf(&sb, "- [%s %d%%] %q\n", c.Level, c.Confidence, c.Text)
		fmt.Fprintf(&sb, "  Reasons: %s\n", strings.Join(c.Reasons, "; "))
	}
	sb.WriteString("Review these constraints before proceeding. If the change is intended, ask the user to remove the lock first.")
	return sb.String()
}

func confidenceLevel(score int) string {
	switch {
	case score >= highConfidence:
		return ConfidenceHigh
	case score >= mediumConfidence:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
