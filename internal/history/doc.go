// Package history implements the linear undo/redo log of a document.
//
// An Engine tracks one attached document at a time. Its state is a pair of
// positions into the action log, 0 <= current <= max, where max is always the
// length of the log. Adding an action discards every entry at or after the
// current position before appending, so the log never branches. The log is
// capped at a retention size; evicting old entries shifts both positions down.
//
// Undo never computes an inverse of an edit. The bitmap for the target
// position is rebuilt from the nearest restoration point recorded in the log
// at or before it, replaying the entries in between through the catalog.
// When the log holds no usable restoration point, the UndoPolicy decides
// whether undo still moves the position (best effort) or fails.
//
// Every mutation of the log and position is persisted in one store
// transaction. The in-memory log slice mirrors the stored rows, indexed by
// position.
//
// Thread-safety: an Engine is single-writer. Re-entrant calls made while an
// operation is running (for example from inside catalog dispatch) are refused
// by an in-progress guard. Use an Actor to share an Engine between goroutines.
package history
