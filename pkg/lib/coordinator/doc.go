// Package coordinator turns document edits into supervised runs of the
// nearest c++live script.
//
// A Coordinator is the single owner of the RunState for one workspace:
//
//	Stopped  --edit, debounce fires, doc dirty-->  Saving  --saved-->  Stopped
//	Stopped  --debounce fires, doc clean------->  Running
//	Running  --edit----------------------------->  Stopping --killed--> Stopped
//	Running  --process exits-------------------->  Stopped
//
// Edits arriving while Stopping or Saving are dropped; the next edit after
// the cycle completes starts a new one. Edits arriving while Stopped are
// coalesced by a debounce slot, so a burst of typing yields one run carrying
// the last edit.
//
// Every guard and the transition it allows happen under one mutex. Blocking
// work (saving, killing, waiting for exit) happens with the mutex released,
// which is exactly when overlapping notifications get rejected by the guards.
package coordinator
