package history

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"strings"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retouch/internal/action"
	"github.com/roach88/retouch/internal/session"
	"github.com/roach88/retouch/internal/store"
	"github.com/roach88/retouch/internal/testutil"
)

func TestOnDocumentLoaded_CreatesZeroState(t *testing.T) {
	f := newFixture(t)
	f.requireState(t, 0, 0)

	st, ok := f.engine.State()
	require.True(t, ok)
	assert.Equal(t, testDocument, st.Document)
	assert.NotEmpty(t, st.UID)

	entries, err := f.engine.ListActions()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOnDocumentLoaded_EmptyIdentifier(t *testing.T) {
	f := newFixture(t)
	err := f.engine.OnDocumentLoaded(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAddAction_PositionsTrackCount(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 5; i++ {
		f.edit(t, flipH)
		f.requireState(t, i, i)
	}

	entries, err := f.engine.ListActions()
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Position)
		assert.Equal(t, i == 4, e.IsCurrent)
		assert.Equal(t, "Flip horizontal", e.Description)
	}
}

func TestAddAction_ExplicitDescription(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.AddAction(context.Background(), sepia, "Old-timey look"))

	entries, err := f.engine.ListActions()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Old-timey look", entries[0].Description)
	assert.Equal(t, testutil.Epoch.Add(time.Second), entries[0].CreatedAt)
}

func TestAddAction_NoDocument(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	defer st.Close()

	e := New(st, session.New())
	err = e.AddAction(context.Background(), flipH, "")
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = e.Undo(context.Background())
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = e.ListActions()
	assert.ErrorIs(t, err, ErrNoDocument)

	_, ok := e.State()
	assert.False(t, ok)
}

func TestAddAction_InvalidPayload(t *testing.T) {
	f := newFixture(t)
	f.edit(t, flipH)

	err := f.engine.AddAction(context.Background(), action.Crop{Width: 0, Height: 2}, "")
	assert.ErrorIs(t, err, ErrInvalid)

	err = f.engine.AddAction(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrInvalid)

	f.requireState(t, 1, 1)
}

// Rotate, crop, undo, flip: the crop entry is discarded.
func TestScenario_RotateCropUndoFlip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.edit(t, rotate90)
	f.requireState(t, 1, 1)
	f.edit(t, cropTL)
	f.requireState(t, 2, 2)

	before := f.session.Bitmap()
	step, err := f.engine.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, action.TypeCrop, step.Action)
	assert.False(t, step.Restored, "no restoration point precedes position 1")
	assert.True(t, testutil.SamePixels(before, f.session.Bitmap()))
	f.requireState(t, 1, 2)

	f.edit(t, flipH)
	f.requireState(t, 2, 2)
	assert.Equal(t, []string{"rotate", "flip"}, f.loggedTypes(t))
	assert.Equal(t, []string{"rotate", "flip"}, f.storedTypes(t))

	_, err = f.engine.Redo(ctx)
	assert.ErrorIs(t, err, ErrAtEnd, "crop must be unrecoverable")
}

// Same scenario anchored by a restoration point: undo rebuilds the bitmap.
func TestScenario_UndoRestoresFromNearestPoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := testutil.Gradient(8, 6)

	_, err := f.engine.CreateRestorationPoint(ctx, "start", "")
	require.NoError(t, err)
	f.edit(t, rotate90)
	f.edit(t, cropTL)
	f.requireState(t, 3, 3)

	step, err := f.engine.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, step.Restored)
	assert.Equal(t, action.TypeCrop, step.Action)
	assert.True(t, testutil.SamePixels(applyAll(t, original, rotate90), f.session.Bitmap()))
	f.requireState(t, 2, 3)

	step, err = f.engine.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, step.Restored)
	assert.True(t, testutil.SamePixels(original, f.session.Bitmap()))
	f.requireState(t, 1, 3)

	// Position 0 is anchored by the captured point itself.
	step, err = f.engine.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, step.Restored)
	assert.Equal(t, action.TypeRestorePoint, step.Action)
	assert.True(t, testutil.SamePixels(original, f.session.Bitmap()))
	f.requireState(t, 0, 3)
}

func TestUndoRedo_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := testutil.Gradient(8, 6)

	_, err := f.engine.CreateRestorationPoint(ctx, "start", "")
	require.NoError(t, err)
	f.edit(t, rotate90)
	f.edit(t, flipV)
	final := f.session.Bitmap()

	_, err = f.engine.Undo(ctx)
	require.NoError(t, err)
	f.requireState(t, 2, 3)
	assert.True(t, testutil.SamePixels(applyAll(t, original, rotate90), f.session.Bitmap()))

	step, err := f.engine.Redo(ctx)
	require.NoError(t, err)
	assert.Equal(t, action.TypeFlip, step.Action)
	assert.True(t, step.Restored)
	f.requireState(t, 3, 3)
	assert.True(t, testutil.SamePixels(final, f.session.Bitmap()))
}

func TestUndo_AtStartDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	before := f.session.Bitmap()

	_, err := f.engine.Undo(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAtStart)
	assert.True(t, IsBoundary(err))
	assert.Same(t, before, f.session.Bitmap())
	f.requireState(t, 0, 0)
}

func TestRedo_AtEndDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	f.edit(t, flipH)
	before := f.session.Bitmap()

	_, err := f.engine.Redo(context.Background())
	assert.ErrorIs(t, err, ErrAtEnd)
	assert.Same(t, before, f.session.Bitmap())
	f.requireState(t, 1, 1)
}

func TestUndo_StrictPolicyWithoutSnapshot(t *testing.T) {
	f := newFixture(t, WithUndoPolicy(PolicyStrict))
	f.edit(t, flipH)
	f.edit(t, sepia)
	before := f.session.Bitmap()

	_, err := f.engine.Undo(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.Same(t, before, f.session.Bitmap())
	f.requireState(t, 2, 2)
}

func TestUndo_StrictPolicyWithSnapshot(t *testing.T) {
	f := newFixture(t, WithUndoPolicy(PolicyStrict))
	_, err := f.engine.CreateRestorationPoint(context.Background(), "base", "")
	require.NoError(t, err)
	f.edit(t, sepia)

	step, err := f.engine.Undo(context.Background())
	require.NoError(t, err)
	assert.True(t, step.Restored)
	assert.True(t, testutil.SamePixels(testutil.Gradient(8, 6), f.session.Bitmap()))
}

func TestUndo_ReplayFailureLeavesStateUnchanged(t *testing.T) {
	failing := funcApplier(func(ctx context.Context, img image.Image, p action.Payload) (image.Image, error) {
		return nil, errors.New("codec exploded")
	})
	f := newFixture(t, WithApplier(failing))
	_, err := f.engine.CreateRestorationPoint(context.Background(), "base", "")
	require.NoError(t, err)
	require.NoError(t, f.engine.AddAction(context.Background(), flipH, ""))
	require.NoError(t, f.engine.AddAction(context.Background(), flipV, ""))
	before := f.session.Bitmap()

	// Target position 2 needs entry 2 (flipH) replayed on top of the snapshot.
	_, err = f.engine.Undo(context.Background())
	assert.ErrorIs(t, err, ErrApply)
	assert.Same(t, before, f.session.Bitmap())
	f.requireState(t, 3, 3)
}

func TestRedo_DecodeFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.edit(t, flipH)
	f.edit(t, rotate90)

	_, err := f.store.DB().Exec(
		"UPDATE history_actions SET action_data = ? WHERE document_id = ? AND action_type = 'rotate'",
		[]byte(`{"angle":`), f.docID(t),
	)
	require.NoError(t, err)
	g := attachFixture(t, f.store)

	_, err = g.engine.Undo(ctx)
	require.NoError(t, err)
	g.requireState(t, 1, 2)
	before := g.session.Bitmap()

	_, err = g.engine.Redo(ctx)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Same(t, before, g.session.Bitmap())
	g.requireState(t, 1, 2)
}

func TestRedo_ApplyFailureLeavesStateUnchanged(t *testing.T) {
	calls := 0
	failing := funcApplier(func(ctx context.Context, img image.Image, p action.Payload) (image.Image, error) {
		calls++
		return nil, errors.New("out of memory")
	})
	f := newFixture(t, WithApplier(failing))
	require.NoError(t, f.engine.AddAction(context.Background(), flipH, ""))
	_, err := f.engine.Undo(context.Background())
	require.NoError(t, err)

	_, err = f.engine.Redo(context.Background())
	assert.ErrorIs(t, err, ErrApply)
	assert.Equal(t, 1, calls)
	f.requireState(t, 0, 1)
}

func TestRedo_PanickingApplierLeavesStateUnchanged(t *testing.T) {
	panicking := funcApplier(func(ctx context.Context, img image.Image, p action.Payload) (image.Image, error) {
		panic("kernel radius overflow")
	})
	f := newFixture(t, WithApplier(panicking))
	ctx := context.Background()
	require.NoError(t, f.engine.AddAction(ctx, flipH, ""))
	_, err := f.engine.Undo(ctx)
	require.NoError(t, err)
	before := f.session.Bitmap()

	_, err = f.engine.Redo(ctx)
	assert.ErrorIs(t, err, ErrApply)
	assert.Contains(t, err.Error(), "kernel radius overflow")
	assert.Same(t, before, f.session.Bitmap())
	f.requireState(t, 0, 1)

	// The in-progress guard was released.
	require.NoError(t, f.engine.AddAction(ctx, flipV, ""))
	f.requireState(t, 1, 1)
}

func TestUndo_PanickingReplayLeavesStateUnchanged(t *testing.T) {
	panicking := funcApplier(func(ctx context.Context, img image.Image, p action.Payload) (image.Image, error) {
		panic("kernel radius overflow")
	})
	f := newFixture(t, WithApplier(panicking))
	ctx := context.Background()
	_, err := f.engine.CreateRestorationPoint(ctx, "base", "")
	require.NoError(t, err)
	require.NoError(t, f.engine.AddAction(ctx, flipH, ""))
	require.NoError(t, f.engine.AddAction(ctx, flipV, ""))
	before := f.session.Bitmap()

	_, err = f.engine.Undo(ctx)
	assert.ErrorIs(t, err, ErrApply)
	assert.Same(t, before, f.session.Bitmap())
	f.requireState(t, 3, 3)
}

// Re-entrancy: an AddAction issued from inside redo's dispatch is ignored.
func TestRedo_ReentrantAddActionIsNoop(t *testing.T) {
	var f *fixture
	var addErr, undoErr error
	inner := action.NewCatalog(nil)
	reentrant := funcApplier(func(ctx context.Context, img image.Image, p action.Payload) (image.Image, error) {
		addErr = f.engine.AddAction(ctx, sepia, "feedback loop")
		_, undoErr = f.engine.Undo(ctx)
		return inner.Apply(ctx, img, p)
	})
	f = newFixture(t, WithApplier(reentrant))
	ctx := context.Background()

	require.NoError(t, f.engine.AddAction(ctx, flipH, ""))
	require.NoError(t, f.engine.AddAction(ctx, flipV, ""))
	_, err := f.engine.Undo(ctx)
	require.NoError(t, err)
	f.requireState(t, 1, 2)

	step, err := f.engine.Redo(ctx)
	require.NoError(t, err)
	assert.NoError(t, addErr, "re-entrant add must be silent")
	assert.ErrorIs(t, undoErr, ErrReentrant)
	assert.True(t, IsReentrant(undoErr))
	assert.Equal(t, 2, step.Position)
	f.requireState(t, 2, 2)
	assert.Equal(t, []string{"flip", "flip"}, f.loggedTypes(t))

	assert.Equal(t, 1.0, promtestutil.ToFloat64(f.metrics.operations.WithLabelValues("add_action", "reentrant")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(f.metrics.operations.WithLabelValues("undo", "reentrant")))
}

func TestAddAction_TruncatesFuture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.edit(t, flipH)
	f.edit(t, flipV)
	f.edit(t, rotate90)
	f.edit(t, sepia)

	for i := 0; i < 3; i++ {
		_, err := f.engine.Undo(ctx)
		require.NoError(t, err)
	}
	f.requireState(t, 1, 4)

	f.edit(t, cropTL)
	f.requireState(t, 2, 2)
	assert.Equal(t, []string{"flip", "crop"}, f.storedTypes(t))

	_, err := f.engine.Redo(ctx)
	assert.ErrorIs(t, err, ErrAtEnd)
}

func TestRetentionCap(t *testing.T) {
	f := newFixture(t, WithMaxSize(5))
	for i := 0; i < 8; i++ {
		require.NoError(t, f.engine.AddAction(context.Background(), flipH, "edit "+string(rune('a'+i))))
	}
	f.requireState(t, 5, 5)

	entries, err := f.engine.ListActions()
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, "edit d", entries[0].Description, "the 3 oldest are evicted")
	assert.Equal(t, "edit h", entries[4].Description)

	n, err := f.store.CountActions(context.Background(), f.docID(t))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 3.0, promtestutil.ToFloat64(f.metrics.evicted))
}

func TestRetentionCap_DefaultThirty(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < DefaultMaxSize+4; i++ {
		require.NoError(t, f.engine.AddAction(context.Background(), flipH, ""))
	}
	f.requireState(t, DefaultMaxSize, DefaultMaxSize)
	assert.Equal(t, 4.0, promtestutil.ToFloat64(f.metrics.evicted))
}

func TestRetentionCap_AfterUndoNoEviction(t *testing.T) {
	f := newFixture(t, WithMaxSize(5))
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, f.engine.AddAction(ctx, flipH, ""))
	}
	_, err := f.engine.Undo(ctx)
	require.NoError(t, err)
	_, err = f.engine.Undo(ctx)
	require.NoError(t, err)

	require.NoError(t, f.engine.AddAction(ctx, flipV, ""))
	f.requireState(t, 4, 4)
	assert.Equal(t, 0.0, promtestutil.ToFloat64(f.metrics.evicted))
}

// A restoration point on a fresh document.
func TestCreateRestorationPoint_FreshDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	info, err := f.engine.CreateRestorationPoint(ctx, "before edits", "pristine")
	require.NoError(t, err)
	assert.Positive(t, info.ID)
	assert.Equal(t, "before edits", info.Name)

	points, err := f.engine.ListRestorationPoints(ctx)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, info.ID, points[0].ID)
	assert.Equal(t, "before edits", points[0].Name)
	assert.Equal(t, "pristine", points[0].Description)

	assert.Equal(t, []string{"restore_point"}, f.storedTypes(t))
	f.requireState(t, 1, 1)

	entries, err := f.engine.ListActions()
	require.NoError(t, err)
	assert.Equal(t, "Restoration point: before edits", entries[0].Description)

	rec, err := f.store.ReadRestorationPoint(ctx, f.docID(t), info.ID)
	require.NoError(t, err)
	img, err := f.engine.Snapshots().LoadSnapshot(ctx, info.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ImageData)
	assert.True(t, testutil.SamePixels(testutil.Gradient(8, 6), img))
}

func TestCreateRestorationPoint_DefaultName(t *testing.T) {
	f := newFixture(t)
	info, err := f.engine.CreateRestorationPoint(context.Background(), "", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(info.Name, "Restoration point 2026-03-01 "), info.Name)
}

func TestCreateRestorationPoint_NoBitmap(t *testing.T) {
	f := newFixture(t)
	f.session.Close()

	_, err := f.engine.CreateRestorationPoint(context.Background(), "x", "")
	assert.ErrorIs(t, err, ErrNoDocument)
	f.requireState(t, 0, 0)
}

func TestListRestorationPoints_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"one", "two", "three"} {
		_, err := f.engine.CreateRestorationPoint(ctx, name, "")
		require.NoError(t, err)
	}
	points, err := f.engine.ListRestorationPoints(ctx)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "three", points[0].Name)
	assert.Equal(t, "one", points[2].Name)
}

func TestRestorePoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := testutil.Gradient(8, 6)

	info, err := f.engine.CreateRestorationPoint(ctx, "base", "")
	require.NoError(t, err)
	f.edit(t, rotate90)

	step, err := f.engine.RestorePoint(ctx, info.ID)
	require.NoError(t, err)
	assert.True(t, step.Restored)
	assert.Equal(t, action.TypeRestorePoint, step.Action)
	assert.True(t, testutil.SamePixels(original, f.session.Bitmap()))
	f.requireState(t, 3, 3)

	entries, err := f.engine.ListActions()
	require.NoError(t, err)
	assert.Equal(t, "Restored to: base", entries[2].Description)
	assert.True(t, entries[2].IsCurrent)

	// Undoing the restore rebuilds the rotated bitmap from the first point.
	_, err = f.engine.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, testutil.SamePixels(applyAll(t, original, rotate90), f.session.Bitmap()))

	// Redoing it loads the snapshot through the catalog.
	_, err = f.engine.Redo(ctx)
	require.NoError(t, err)
	assert.True(t, testutil.SamePixels(original, f.session.Bitmap()))
}

func TestRestorePoint_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.RestorePoint(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	f.requireState(t, 0, 0)
}

func TestRestorePoint_OtherDocumentsPointNotVisible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, err := f.engine.CreateRestorationPoint(ctx, "mine", "")
	require.NoError(t, err)

	require.NoError(t, f.engine.OnDocumentLoaded(ctx, "/img/other.png"))
	_, err = f.engine.RestorePoint(ctx, info.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNavigateToPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := testutil.Gradient(8, 6)

	_, err := f.engine.CreateRestorationPoint(ctx, "base", "")
	require.NoError(t, err)
	f.edit(t, rotate90)
	f.edit(t, flipH)
	f.edit(t, sepia)
	final := f.session.Bitmap()

	step, err := f.engine.NavigateToPosition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, step.Position)
	f.requireState(t, 1, 4)
	assert.True(t, testutil.SamePixels(original, f.session.Bitmap()))

	step, err = f.engine.NavigateToPosition(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, step.Position)
	assert.True(t, testutil.SamePixels(final, f.session.Bitmap()))

	step, err = f.engine.NavigateToPosition(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, step.Position)

	_, err = f.engine.NavigateToPosition(ctx, 5)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = f.engine.NavigateToPosition(ctx, -1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestNavigateToPosition_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, WithUndoPolicy(PolicyStrict))
	ctx := context.Background()

	f.edit(t, rotate90)
	f.edit(t, flipH)
	_, err := f.engine.CreateRestorationPoint(ctx, "mid", "")
	require.NoError(t, err)
	f.edit(t, sepia)
	f.requireState(t, 4, 4)

	step, err := f.engine.NavigateToPosition(ctx, 0)
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.Equal(t, 2, step.Position)
	f.requireState(t, 2, 4)
}

func TestPersistence_AcrossRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.edit(t, flipH)
	f.edit(t, flipV)
	f.edit(t, sepia)
	_, err := f.engine.Undo(ctx)
	require.NoError(t, err)

	g := attachFixture(t, f.store)
	g.requireState(t, 2, 3)
	assert.Equal(t, []string{"flip", "flip", "filter"}, g.loggedTypes(t))

	entries, err := g.engine.ListActions()
	require.NoError(t, err)
	assert.True(t, entries[1].IsCurrent)
}

func TestOnDocumentLoaded_RepairsInconsistentState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.edit(t, flipH)
	f.edit(t, flipV)

	require.NoError(t, f.store.WriteState(ctx, f.docID(t), store.HistoryState{Current: 4, Max: 7}))

	g := attachFixture(t, f.store)
	g.requireState(t, 2, 2)
}

func TestOnDocumentLoaded_TrimsToSmallerCap(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 8; i++ {
		require.NoError(t, f.engine.AddAction(context.Background(), flipH, ""))
	}

	g := attachFixture(t, f.store, WithMaxSize(5))
	g.requireState(t, 5, 5)
	assert.Len(t, g.storedTypes(t), 5)
	assert.Equal(t, 3.0, promtestutil.ToFloat64(g.metrics.evicted))
}

func TestClearHistory_KeepsRestorationPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.CreateRestorationPoint(ctx, "keep me", "")
	require.NoError(t, err)
	f.edit(t, flipH)

	require.NoError(t, f.engine.ClearHistory(ctx))
	f.requireState(t, 0, 0)
	assert.Empty(t, f.storedTypes(t))

	points, err := f.engine.ListRestorationPoints(ctx)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestDetach(t *testing.T) {
	f := newFixture(t)
	f.engine.Detach()

	err := f.engine.AddAction(context.Background(), flipH, "")
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = f.engine.ListRestorationPoints(context.Background())
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestMetrics_Outcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.engine.Undo(ctx)
	f.edit(t, flipH)
	_, _ = f.engine.Undo(ctx)

	ops := f.metrics.operations
	assert.Equal(t, 1.0, promtestutil.ToFloat64(ops.WithLabelValues("undo", "at_start")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(ops.WithLabelValues("undo", "ok")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(ops.WithLabelValues("add_action", "ok")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(f.metrics.logSize))
}

func TestError_Format(t *testing.T) {
	err := &Error{Code: CodeAtEnd, Op: "redo", Document: "/a.png"}
	assert.Equal(t, "redo: AT_END (document=/a.png)", err.Error())

	wrapped := &Error{Code: CodeStorage, Op: "undo", Err: errors.New("disk full")}
	assert.Equal(t, "undo: STORAGE: disk full", wrapped.Error())
	assert.True(t, IsStorage(wrapped))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestParseUndoPolicy(t *testing.T) {
	p, err := ParseUndoPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyBestEffort, p)

	p, err = ParseUndoPolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	_, err = ParseUndoPolicy("lenient")
	assert.Error(t, err)
}
