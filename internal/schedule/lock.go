package schedule

import "fmt"

// applyLocks walks phases in gating order. A phase is locked iff the
// preceding phase's progress is under 100; preparation is never locked.
// Lock state is recomputed fresh every pass, there is no lock history.
func applyLocks(groups []*PhaseGroup) {
	for i, g := range groups {
		if i == 0 {
			g.Locked = false
			g.LockReason = ""
			continue
		}
		prev := groups[i-1]
		if prev.Progress < 100 {
			g.Locked = true
			g.LockReason = fmt.Sprintf("%s phase is %d%% complete", prev.Phase, prev.Progress)
		} else {
			g.Locked = false
			g.LockReason = ""
		}
	}
}

// FindPhase returns the group for a phase, or nil.
func FindPhase(groups []*PhaseGroup, phase Phase) *PhaseGroup {
	for _, g := range groups {
		if g.Phase == phase {
			return g
		}
	}
	return nil
}
