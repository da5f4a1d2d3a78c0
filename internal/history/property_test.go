package history

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/roach88/retouch/internal/store"
)

const (
	opAdd = iota
	opUndo
	opRedo
)

// positionModel is the reference arithmetic for a linear capped log.
type positionModel struct {
	current, max, limit int
}

func (m *positionModel) add() {
	m.current++
	m.max = m.current
	if over := m.max - m.limit; over > 0 {
		m.current = max(m.current-over, 0)
		m.max = max(m.max-over, 0)
	}
}

func (m *positionModel) undo() bool {
	if m.current == 0 {
		return false
	}
	m.current--
	return true
}

func (m *positionModel) redo() bool {
	if m.current == m.max {
		return false
	}
	m.current++
	return true
}

func TestProperty_PositionsFollowModel(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	properties.Property("engine positions match the linear log model", prop.ForAll(
		func(ops []int) bool {
			const limit = 4
			f := newFixture(t, WithMaxSize(limit))
			ctx := context.Background()
			model := &positionModel{limit: limit}

			for _, op := range ops {
				switch op {
				case opAdd:
					if err := f.engine.AddAction(ctx, flipH, ""); err != nil {
						return false
					}
					model.add()
				case opUndo:
					_, err := f.engine.Undo(ctx)
					if model.undo() != (err == nil) {
						return false
					}
				case opRedo:
					_, err := f.engine.Redo(ctx)
					if model.redo() != (err == nil) {
						return false
					}
				}
				if !matches(t, f, model) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(opAdd, opRedo)),
	))

	properties.Property("undo then redo returns to the same position", prop.ForAll(
		func(adds, undos int) bool {
			f := newFixture(t)
			ctx := context.Background()
			for i := 0; i < adds; i++ {
				if err := f.engine.AddAction(ctx, flipH, ""); err != nil {
					return false
				}
			}
			for i := 0; i < undos && i < adds; i++ {
				if _, err := f.engine.Undo(ctx); err != nil {
					return false
				}
			}
			before, _ := f.engine.State()
			if before.Current == 0 {
				return true
			}
			if _, err := f.engine.Undo(ctx); err != nil {
				return false
			}
			if _, err := f.engine.Redo(ctx); err != nil {
				return false
			}
			after, _ := f.engine.State()
			return after == before
		},
		gen.IntRange(1, 8),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

func matches(t *testing.T, f *fixture, m *positionModel) bool {
	st, ok := f.engine.State()
	if !ok || st.Current != m.current || st.Max != m.max {
		return false
	}
	stored, found, err := f.store.ReadState(context.Background(), f.docID(t))
	if err != nil || !found || stored != (store.HistoryState{Current: m.current, Max: m.max}) {
		return false
	}
	entries, err := f.engine.ListActions()
	return err == nil && len(entries) == m.max
}
