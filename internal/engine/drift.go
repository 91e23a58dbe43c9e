package engine

import (
	"context"
	"fmt"
)

// Drift statuses.
const (
	DriftNoLocks  = "no_locks"
	DriftClean    = "clean"
	DriftDetected = "drift_detected"
)

// Drift severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Drift kinds.
const (
	DriftKindLock   = "lock"
	DriftKindRevert = "revert"
)

// Drift links recent activity to a lock it may violate, or flags a revert.
type Drift struct {
	Kind          string   `json:"kind"`
	ChangeSummary string   `json:"changeSummary"`
	ChangeAt      string   `json:"changeAt"`
	LockID        string   `json:"lockId,omitempty"`
	LockText      string   `json:"lockText,omitempty"`
	MatchedTerms  []string `json:"matchedTerms"`
	Severity      string   `json:"severity"`
}

// DriftReport is the outcome of DetectDrift.
type DriftReport struct {
	Drifts  []Drift `json:"drifts"`
	Status  string  `json:"status"`
	Message string  `json:"message"`
}

// DetectDrift scans recent changes against negated locks and surfaces
// every recorded revert.
func (e *Engine) DetectDrift(ctx context.Context) (DriftReport, error) {
	b, err := e.EnsureInit(ctx)
	if err != nil {
		return DriftReport{}, err
	}
	locks := b.ActiveLocks()
	report := DriftReport{Drifts: []Drift{}}

	if len(locks) == 0 && (e.opts.RevertsRequireLocks || len(b.State.Reverts) == 0) {
		report.Status = DriftNoLocks
		report.Message = "No active locks. Add locks to enable drift detection."
		return report, nil
	}

	for _, change := range b.State.RecentChanges {
		changeExpanded := expand(tokenize(change.Summary))
		for _, lock := range locks {
			if !hasNegation(lock.Text) {
				continue
			}
			overlap := intersect(changeExpanded, expand(tokenize(lock.Text)))
			if len(overlap) < 2 {
				continue
			}
			severity := SeverityMedium
			if len(overlap) >= 3 {
				severity = SeverityHigh
			}
			report.Drifts = append(report.Drifts, Drift{
				Kind:          DriftKindLock,
				ChangeSummary: change.Summary,
				ChangeAt:      change.At,
				LockID:        lock.ID,
				LockText:      lock.Text,
				MatchedTerms:  overlap.sorted(),
				Severity:      severity,
			})
		}
	}

	for _, rv := range b.State.Reverts {
		report.Drifts = append(report.Drifts, Drift{
			Kind:          DriftKindRevert,
			ChangeSummary: fmt.Sprintf("Revert detected (%s) to %.12s", rv.Kind, rv.Target),
			ChangeAt:      rv.At,
			MatchedTerms:  []string{},
			Severity:      SeverityHigh,
		})
	}

	switch {
	case len(report.Drifts) > 0:
		report.Status = DriftDetected
		report.Message = fmt.Sprintf("%d potential drift(s) detected across %d active lock(s). Review before continuing.", len(report.Drifts), len(locks))
	default:
		report.Status = DriftClean
		report.Message = fmt.Sprintf("No drift detected. %d recent change(s) are consistent with %d active lock(s).", len(b.State.RecentChanges), len(locks))
	}
	return report, nil
}
