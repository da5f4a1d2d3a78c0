package history

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/retouch/internal/action"
	"github.com/roach88/retouch/internal/imaging"
	"github.com/roach88/retouch/internal/store"
)

// Surface owns the live bitmap of the attached document.
// The engine reads it to capture restoration points and replaces it on
// undo, redo and restore; it never mutates the image itself.
type Surface interface {
	Bitmap() image.Image
	Replace(img image.Image)
}

// Applier applies one action payload to a bitmap. *action.Catalog is the
// production implementation.
type Applier interface {
	Apply(ctx context.Context, img image.Image, p action.Payload) (image.Image, error)
}

// State is the position of the attached document.
type State struct {
	Document string
	UID      string
	Current  int
	Max      int
}

// Step reports the outcome of a navigation.
type Step struct {
	// Position and MaxPosition are the state after the step.
	Position    int
	MaxPosition int

	// Action is the type of the entry that was undone, redone or logged.
	Action action.Type

	// Restored is true when the session bitmap was replaced.
	Restored bool
}

// Engine is the undo/redo log of one attached document.
//
// Thread-safety: single-writer. Calls must come from one goroutine at a time;
// see Actor for concurrent use.
type Engine struct {
	store   *store.Store
	surface Surface
	applier Applier
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
	maxSize int
	policy  UndoPolicy

	doc        *store.Document
	state      store.HistoryState
	entries    []store.ActionRecord // index i holds the entry at position i+1
	inProgress bool
}

// New creates an engine persisting to s and restoring bitmaps into surface.
// No document is attached until OnDocumentLoaded is called.
func New(s *store.Store, surface Surface, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		surface: surface,
		logger:  slog.Default(),
		now:     time.Now,
		maxSize: DefaultMaxSize,
		policy:  PolicyBestEffort,
	}
	e.applier = action.NewCatalog(e.Snapshots())
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e
}

// Snapshots returns a snapshot source reading restoration points of the
// attached document.
func (e *Engine) Snapshots() action.SnapshotSource {
	return snapshotSource{e: e}
}

type snapshotSource struct{ e *Engine }

func (s snapshotSource) LoadSnapshot(ctx context.Context, pointID int64) (image.Image, error) {
	return s.e.loadSnapshot(ctx, "load_snapshot", pointID)
}

// OnDocumentLoaded attaches the document identified by identifier, creating
// its row and a 0/0 state the first time it is seen. A stored state that
// disagrees with the stored log is repaired, and a log longer than the
// retention cap is trimmed.
func (e *Engine) OnDocumentLoaded(ctx context.Context, identifier string) error {
	const op = "load"
	err := e.onDocumentLoaded(ctx, identifier)
	e.metrics.observe(op, err)
	return err
}

func (e *Engine) onDocumentLoaded(ctx context.Context, identifier string) error {
	const op = "load"
	if e.inProgress {
		return e.fail(op, CodeReentrant, nil)
	}
	if strings.TrimSpace(identifier) == "" {
		return e.fail(op, CodeInvalid, errors.New("empty document identifier"))
	}
	e.inProgress = true
	defer func() { e.inProgress = false }()

	var (
		doc      store.Document
		st       store.HistoryState
		entries  []store.ActionRecord
		repaired bool
		evicted  int
	)
	err := e.store.RunTx(ctx, func(q *store.Queries) error {
		var err error
		repaired, evicted = false, 0
		doc, err = q.EnsureDocument(ctx, identifier, e.now())
		if err != nil {
			return err
		}
		entries, err = q.ReadActions(ctx, doc.ID)
		if err != nil {
			return err
		}
		stored, ok, err := q.ReadState(ctx, doc.ID)
		if err != nil {
			return err
		}
		st = stored
		if ok && st.Max != len(entries) {
			repaired = true
		}
		if over := len(entries) - e.maxSize; over > 0 {
			if _, err := q.DeleteOldestActions(ctx, doc.ID, over); err != nil {
				return err
			}
			entries = entries[over:]
			evicted = over
			st.Current = max(st.Current-over, 0)
		}
		st.Max = len(entries)
		st.Current = min(st.Current, st.Max)
		if !ok || st != stored {
			return q.WriteState(ctx, doc.ID, st)
		}
		return nil
	})
	if err != nil {
		return e.fail(op, CodeStorage, err)
	}

	e.doc = &doc
	e.state = st
	e.entries = entries
	e.metrics.logSize.Set(float64(len(entries)))

	logger := e.docLogger()
	if repaired {
		logger.Warn("repaired history state", "current", st.Current, "max", st.Max)
	}
	if evicted > 0 {
		e.metrics.evicted.Add(float64(evicted))
		logger.Info("trimmed history to retention cap", "evicted", evicted, "max_size", e.maxSize)
	}
	logger.Debug("document attached", "identifier", doc.Identifier, "current", st.Current, "max", st.Max)
	return nil
}

// Detach forgets the attached document. Its history stays in the store.
func (e *Engine) Detach() {
	if e.inProgress {
		return
	}
	e.doc = nil
	e.state = store.HistoryState{}
	e.entries = nil
	e.metrics.logSize.Set(0)
}

// State returns the attached document's position. ok is false when no
// document is attached.
func (e *Engine) State() (st State, ok bool) {
	if e.doc == nil {
		return State{}, false
	}
	return State{
		Document: e.doc.Identifier,
		UID:      e.doc.UID,
		Current:  e.state.Current,
		Max:      e.state.Max,
	}, true
}

// ClearHistory drops the attached document's log and resets its position to
// 0/0. Restoration points are kept.
func (e *Engine) ClearHistory(ctx context.Context) error {
	const op = "clear"
	err := e.clearHistory(ctx)
	e.metrics.observe(op, err)
	return err
}

func (e *Engine) clearHistory(ctx context.Context) error {
	const op = "clear"
	done, err := e.begin(op)
	if err != nil {
		return err
	}
	defer done()

	docID := e.doc.ID
	err = e.store.RunTx(ctx, func(q *store.Queries) error {
		if _, err := q.ClearActions(ctx, docID); err != nil {
			return err
		}
		return q.WriteState(ctx, docID, store.HistoryState{})
	})
	if err != nil {
		return e.fail(op, CodeStorage, err)
	}
	cleared := len(e.entries)
	e.entries = nil
	e.state = store.HistoryState{}
	e.metrics.logSize.Set(0)
	e.docLogger().Info("history cleared", "entries", cleared)
	return nil
}

// begin takes the in-progress guard for a mutating operation on the
// attached document. The returned func releases it.
func (e *Engine) begin(op string) (func(), error) {
	if e.inProgress {
		return nil, e.fail(op, CodeReentrant, nil)
	}
	if e.doc == nil {
		return nil, e.fail(op, CodeNoDocument, nil)
	}
	e.inProgress = true
	return func() { e.inProgress = false }, nil
}

// fail builds a typed error for op. Storage failures are logged with their
// cause.
func (e *Engine) fail(op string, code Code, cause error) *Error {
	he := &Error{Code: code, Op: op, Err: cause}
	if e.doc != nil {
		he.Document = e.doc.Identifier
	}
	if code == CodeStorage {
		e.docLogger().Error("history storage failure", "op", op, "error", cause)
	}
	return he
}

func (e *Engine) docLogger() *slog.Logger {
	if e.doc == nil {
		return e.logger
	}
	return e.logger.With("document", e.doc.UID)
}

// persistState writes next as the attached document's position.
func (e *Engine) persistState(ctx context.Context, next store.HistoryState) error {
	docID := e.doc.ID
	return e.store.RunTx(ctx, func(q *store.Queries) error {
		return q.WriteState(ctx, docID, next)
	})
}

// loadSnapshot decodes the bitmap of restoration point id of the attached
// document.
func (e *Engine) loadSnapshot(ctx context.Context, op string, id int64) (image.Image, error) {
	if e.doc == nil {
		return nil, e.fail(op, CodeNoDocument, nil)
	}
	rec, err := e.store.ReadRestorationPoint(ctx, e.doc.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, e.fail(op, CodeNotFound, fmt.Errorf("restoration point %d", id))
	}
	if err != nil {
		return nil, e.fail(op, CodeStorage, err)
	}
	img, err := imaging.DecodeSnapshot(rec.ImageData)
	if err != nil {
		return nil, e.fail(op, CodeDecode, err)
	}
	return img, nil
}

// apply dispatches p through the applier. A panicking applier is reported
// as an error so the caller can leave the position untouched.
func (e *Engine) apply(ctx context.Context, img image.Image, p action.Payload) (out image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.docLogger().Error("action dispatch panicked", "type", p.Type(), "panic", r)
			out, err = nil, fmt.Errorf("apply %s: panic: %v", p.Type(), r)
		}
	}()
	return e.applier.Apply(ctx, img, p)
}

// decodeEntry rebuilds the payload stored in rec.
func decodeEntry(rec store.ActionRecord) (action.Payload, error) {
	t, err := action.ParseType(rec.Type)
	if err != nil {
		return nil, err
	}
	return action.Decode(t, rec.Data)
}
