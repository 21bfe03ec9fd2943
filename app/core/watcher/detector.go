package watcher

import "steamwatch/app/core/steam"

type DecisionKind int

const (
	// NoChange: nothing to send, nothing to persist.
	NoChange DecisionKind = iota
	// Skip: presence lookup produced no data this cycle; the stored
	// activity is left untouched so a transient failure is never read
	// as "stopped playing".
	Skip
	// ActivityStarted: the user entered a game (or switched directly
	// to another one). Activity holds the new game.
	ActivityStarted
	// ActivityEnded: the user left the game they were in. Activity
	// holds the game that ended.
	ActivityEnded
)

type Decision struct {
	Kind     DecisionKind
	Activity string
}

// Detect compares the stored activity with a fresh presence snapshot
// and decides what, if anything, changed. It is pure: the same inputs
// always produce the same decision. A nil snapshot means the lookup
// failed or returned no data. Equality of activity labels is exact
// string equality; persona-name changes alone never trigger anything.
func Detect(prev *string, snap *steam.Snapshot) Decision {
	if snap == nil {
		return Decision{Kind: Skip}
	}
	switch {
	case snap.Game == nil && prev != nil:
		return Decision{Kind: ActivityEnded, Activity: *prev}
	case snap.Game != nil && (prev == nil || *prev != *snap.Game):
		return Decision{Kind: ActivityStarted, Activity: *snap.Game}
	default:
		return Decision{Kind: NoChange}
	}
}
