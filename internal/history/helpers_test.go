package history

import (
	"context"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/retouch/internal/action"
	"github.com/roach88/retouch/internal/session"
	"github.com/roach88/retouch/internal/store"
	"github.com/roach88/retouch/internal/testutil"
)

const testDocument = "/img/test.png"

type fixture struct {
	engine  *Engine
	store   *store.Store
	session *session.Session
	metrics *Metrics
	clock   *testutil.DeterministicClock
	catalog *action.Catalog
}

// newFixture opens a temp store, loads an 8x6 gradient into a session and
// attaches testDocument.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return attachFixture(t, st, opts...)
}

// attachFixture builds a fresh engine over an existing store, as a restarted
// process would.
func attachFixture(t *testing.T, st *store.Store, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:   st,
		session: session.New(),
		metrics: NewMetrics(nil),
		clock:   testutil.NewDeterministicClock(),
	}
	f.session.Replace(testutil.Gradient(8, 6))
	base := []Option{
		WithClock(f.clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(f.metrics),
	}
	f.engine = New(st, f.session, append(base, opts...)...)
	f.catalog = action.NewCatalog(f.engine.Snapshots())
	require.NoError(t, f.engine.OnDocumentLoaded(context.Background(), testDocument))
	return f
}

// edit applies p to the session bitmap and records it, as an editor would.
func (f *fixture) edit(t *testing.T, p action.Payload) {
	t.Helper()
	img, err := f.catalog.Apply(context.Background(), f.session.Bitmap(), p)
	require.NoError(t, err)
	f.session.Replace(img)
	require.NoError(t, f.engine.AddAction(context.Background(), p, ""))
}

func (f *fixture) requireState(t *testing.T, current, max int) {
	t.Helper()
	st, ok := f.engine.State()
	require.True(t, ok)
	require.Equal(t, current, st.Current, "current position")
	require.Equal(t, max, st.Max, "max position")

	stored, found, err := f.store.ReadState(context.Background(), f.docID(t))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, store.HistoryState{Current: current, Max: max}, stored, "persisted state")
}

func (f *fixture) docID(t *testing.T) int64 {
	t.Helper()
	doc, err := f.store.ReadDocument(context.Background(), testDocument)
	require.NoError(t, err)
	return doc.ID
}

func (f *fixture) storedTypes(t *testing.T) []string {
	t.Helper()
	recs, err := f.store.ReadActions(context.Background(), f.docID(t))
	require.NoError(t, err)
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Type
	}
	return out
}

func (f *fixture) loggedTypes(t *testing.T) []string {
	t.Helper()
	entries, err := f.engine.ListActions()
	require.NoError(t, err)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = string(e.Type)
	}
	return out
}

// applyAll computes the bitmap produced by applying ps to img in order.
func applyAll(t *testing.T, img image.Image, ps ...action.Payload) image.Image {
	t.Helper()
	c := action.NewCatalog(nil)
	for _, p := range ps {
		var err error
		img, err = c.Apply(context.Background(), img, p)
		require.NoError(t, err)
	}
	return img
}

// funcApplier adapts a function to Applier.
type funcApplier func(ctx context.Context, img image.Image, p action.Payload) (image.Image, error)

func (f funcApplier) Apply(ctx context.Context, img image.Image, p action.Payload) (image.Image, error) {
	return f(ctx, img, p)
}

var (
	rotate90 = action.Rotate{Angle: 90, Expand: true}
	cropTL   = action.Crop{X: 0, Y: 0, Width: 4, Height: 3}
	flipH    = action.Flip{Direction: "horizontal"}
	flipV    = action.Flip{Direction: "vertical"}
	sepia    = action.Filter{Name: "sepia"}
)
