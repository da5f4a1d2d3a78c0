package history

import (
	"context"
	"fmt"
	"image"

	"github.com/roach88/retouch/internal/action"
	"github.com/roach88/retouch/internal/store"
)

// Undo moves back one position.
//
// The bitmap for the new position is rebuilt from the nearest restoration
// point logged at or before it, replaying the entries in between. Without
// one, PolicyBestEffort moves the position and leaves the bitmap alone
// (Step.Restored is false) while PolicyStrict fails with ErrNoSnapshot.
// On any failure the position and bitmap are unchanged.
func (e *Engine) Undo(ctx context.Context) (Step, error) {
	const op = "undo"
	defer e.metrics.timer(op).ObserveDuration()
	step, err := e.undo(ctx)
	e.metrics.observe(op, err)
	return step, err
}

func (e *Engine) undo(ctx context.Context) (Step, error) {
	const op = "undo"
	done, err := e.begin(op)
	if err != nil {
		return Step{}, err
	}
	defer done()

	if e.state.Current == 0 {
		return Step{}, e.fail(op, CodeAtStart, nil)
	}
	target := e.state.Current - 1
	undone := action.Type(e.entries[target].Type)

	img, restored, err := e.reconstruct(ctx, op, target)
	if err != nil {
		return Step{}, err
	}
	if !restored && e.policy == PolicyStrict {
		return Step{}, e.fail(op, CodeNoSnapshot, fmt.Errorf("no restoration point at or before position %d", target))
	}

	next := store.HistoryState{Current: target, Max: e.state.Max}
	if err := e.persistState(ctx, next); err != nil {
		return Step{}, e.fail(op, CodeStorage, err)
	}
	e.state = next
	if restored {
		e.surface.Replace(img)
	} else {
		e.docLogger().Warn("undo without restoration point, bitmap unchanged", "position", target)
	}
	e.docLogger().Info("undo", "type", undone, "current", next.Current, "max", next.Max, "restored", restored)
	return Step{Position: next.Current, MaxPosition: next.Max, Action: undone, Restored: restored}, nil
}

// reconstruct rebuilds the bitmap at position target. restored is false when
// no restoration point anchors it.
//
// A restore_point entry at index i fixes the bitmap after it, i.e. at
// position i+1. An entry that captured a new point also fixes the bitmap
// before it, so it anchors position i as well.
func (e *Engine) reconstruct(ctx context.Context, op string, target int) (image.Image, bool, error) {
	anchor := -1
	var point action.RestorePoint
	for i := target; i >= 0 && i < len(e.entries); i-- {
		rec := e.entries[i]
		if rec.Type != string(action.TypeRestorePoint) {
			continue
		}
		p, err := action.Decode(action.TypeRestorePoint, rec.Data)
		if err != nil {
			return nil, false, e.fail(op, CodeDecode, err)
		}
		rp := p.(action.RestorePoint)
		if i == target && rp.Restored {
			continue
		}
		anchor, point = i, rp
		break
	}
	if anchor < 0 {
		return nil, false, nil
	}

	img, err := e.loadSnapshot(ctx, op, point.PointID)
	if err != nil {
		return nil, false, err
	}
	for j := anchor + 1; j < target; j++ {
		p, err := decodeEntry(e.entries[j])
		if err != nil {
			return nil, false, e.fail(op, CodeDecode, fmt.Errorf("entry %d: %w", j+1, err))
		}
		img, err = e.apply(ctx, img, p)
		if err != nil {
			return nil, false, e.fail(op, CodeApply, fmt.Errorf("replay entry %d: %w", j+1, err))
		}
	}
	return img, true, nil
}

// Redo re-applies the entry at the current position through the catalog and
// moves forward one position. On any failure the position and bitmap are
// unchanged.
func (e *Engine) Redo(ctx context.Context) (Step, error) {
	const op = "redo"
	defer e.metrics.timer(op).ObserveDuration()
	step, err := e.redo(ctx)
	e.metrics.observe(op, err)
	return step, err
}

func (e *Engine) redo(ctx context.Context) (Step, error) {
	const op = "redo"
	done, err := e.begin(op)
	if err != nil {
		return Step{}, err
	}
	defer done()

	if e.state.Current >= e.state.Max {
		return Step{}, e.fail(op, CodeAtEnd, nil)
	}
	rec := e.entries[e.state.Current]
	p, err := decodeEntry(rec)
	if err != nil {
		return Step{}, e.fail(op, CodeDecode, err)
	}
	img, err := e.apply(ctx, e.surface.Bitmap(), p)
	if err != nil {
		return Step{}, e.fail(op, CodeApply, err)
	}

	next := store.HistoryState{Current: e.state.Current + 1, Max: e.state.Max}
	if err := e.persistState(ctx, next); err != nil {
		return Step{}, e.fail(op, CodeStorage, err)
	}
	e.state = next
	e.surface.Replace(img)
	e.docLogger().Info("redo", "type", p.Type(), "current", next.Current, "max", next.Max)
	return Step{Position: next.Current, MaxPosition: next.Max, Action: p.Type(), Restored: true}, nil
}

// NavigateToPosition undoes or redoes until the position equals target.
// It is not atomic: on failure the position stays wherever the last
// successful step left it, and the returned Step describes that step.
func (e *Engine) NavigateToPosition(ctx context.Context, target int) (Step, error) {
	const op = "navigate"
	if e.inProgress {
		return Step{}, e.fail(op, CodeReentrant, nil)
	}
	if e.doc == nil {
		return Step{}, e.fail(op, CodeNoDocument, nil)
	}
	if target < 0 || target > e.state.Max {
		return Step{}, e.fail(op, CodeOutOfRange, fmt.Errorf("position %d outside [0, %d]", target, e.state.Max))
	}

	last := Step{Position: e.state.Current, MaxPosition: e.state.Max}
	for e.state.Current != target {
		var (
			step Step
			err  error
		)
		if e.state.Current > target {
			step, err = e.Undo(ctx)
		} else {
			step, err = e.Redo(ctx)
		}
		if err != nil {
			return last, err
		}
		last = step
	}
	return last, nil
}
