package switcher

import "github.com/openlab-infra/ha-healthchecker/pkg/types"

// statusSet is the distinct switch_status values present across a set
// of switch_status values — the only thing the agreement rules below
// look at. Callers re-derive the status list after each write, so a
// proposal made earlier in the same tick is visible to predicates
// evaluated later in that tick.
func statusSet(statuses []types.SwitchStatus) map[types.SwitchStatus]bool {
	set := make(map[types.SwitchStatus]bool, 3)
	for _, s := range statuses {
		set[normalizeSwitchStatus(s)] = true
	}
	return set
}

// normalizeSwitchStatus treats anything other than start/end as null,
// per the "malformed value is treated as null" rule.
func normalizeSwitchStatus(s types.SwitchStatus) types.SwitchStatus {
	if s == types.SwitchStatusStart || s == types.SwitchStatusEnd {
		return s
	}
	return types.SwitchStatusNull
}

// notSwitching holds when no node has reached switch_status=end —
// the cluster is either fully idle or mid-proposal.
func notSwitching(statuses []types.SwitchStatus) bool {
	set := statusSet(statuses)
	for s := range set {
		if s != types.SwitchStatusNull && s != types.SwitchStatusStart {
			return false
		}
	}
	return true
}

// canStart holds when every node has either proposed (start) or
// already finished (end) — unanimous agreement to switch, with no
// straggler still at null.
func canStart(statuses []types.SwitchStatus) bool {
	set := statusSet(statuses)
	if !set[types.SwitchStatusStart] {
		return false
	}
	for s := range set {
		if s != types.SwitchStatusStart && s != types.SwitchStatusEnd {
			return false
		}
	}
	return true
}

// isEnd holds once no node remains at switch_status=start — the
// switch has fully executed everywhere.
func isEnd(statuses []types.SwitchStatus) bool {
	for _, s := range statuses {
		if normalizeSwitchStatus(s) == types.SwitchStatusStart {
			return false
		}
	}
	return true
}
