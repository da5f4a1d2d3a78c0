package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/retouch/internal/action"
	"github.com/roach88/retouch/internal/imaging"
	"github.com/roach88/retouch/internal/store"
)

// LogEntry is one action as shown to the user.
type LogEntry struct {
	// Position is the position reached after applying this entry (1-based).
	Position    int
	Type        action.Type
	Description string
	CreatedAt   time.Time

	// IsCurrent marks the entry at current_position-1.
	IsCurrent bool
}

// PointInfo describes a restoration point without its bitmap.
type PointInfo struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// appendResult is the log and state after an append, not yet committed to
// the engine.
type appendResult struct {
	entries []store.ActionRecord
	state   store.HistoryState
	evicted int
}

// AddAction records an edit. Entries after the current position are
// discarded first, so the log never branches; the oldest entries beyond the
// retention cap are evicted afterwards.
//
// A call made while another operation is running is ignored and returns nil.
// An empty description is derived from the payload.
func (e *Engine) AddAction(ctx context.Context, p action.Payload, description string) error {
	const op = "add_action"
	if e.inProgress {
		e.metrics.reentrant(op)
		e.docLogger().Debug("ignoring re-entrant add", "type", payloadType(p))
		return nil
	}
	defer e.metrics.timer(op).ObserveDuration()
	err := e.addAction(ctx, p, description)
	e.metrics.observe(op, err)
	return err
}

func (e *Engine) addAction(ctx context.Context, p action.Payload, description string) error {
	const op = "add_action"
	done, err := e.begin(op)
	if err != nil {
		return err
	}
	defer done()

	if p == nil {
		return e.fail(op, CodeInvalid, action.ErrUnknownAction)
	}
	if err := p.Validate(); err != nil {
		return e.fail(op, CodeInvalid, err)
	}
	var res appendResult
	err = e.store.RunTx(ctx, func(q *store.Queries) error {
		var err error
		res, err = e.appendTx(ctx, q, p, description)
		return err
	})
	if err != nil {
		if errors.Is(err, action.ErrUnknownAction) || errors.Is(err, action.ErrInvalidPayload) {
			return e.fail(op, CodeInvalid, err)
		}
		return e.fail(op, CodeStorage, err)
	}
	e.commit(res)
	return nil
}

// appendTx truncates the future, appends p and applies the retention cap
// inside q's transaction. It reads but never modifies engine state, so the
// transaction may be retried.
func (e *Engine) appendTx(ctx context.Context, q *store.Queries, p action.Payload, description string) (appendResult, error) {
	data, err := action.Encode(p)
	if err != nil {
		return appendResult{}, err
	}
	if strings.TrimSpace(description) == "" {
		description = p.Describe()
	}

	docID := e.doc.ID
	cur := e.state.Current
	if cur < len(e.entries) {
		if _, err := q.DeleteActionsFrom(ctx, docID, e.entries[cur].Seq); err != nil {
			return appendResult{}, err
		}
	}
	rec, err := q.AppendAction(ctx, store.ActionRecord{
		DocumentID:  docID,
		Type:        string(p.Type()),
		Data:        data,
		Description: description,
		CreatedAt:   e.now(),
	})
	if err != nil {
		return appendResult{}, err
	}

	entries := make([]store.ActionRecord, 0, cur+1)
	entries = append(entries, e.entries[:cur]...)
	entries = append(entries, rec)

	evicted := 0
	if over := len(entries) - e.maxSize; over > 0 {
		if _, err := q.DeleteOldestActions(ctx, docID, over); err != nil {
			return appendResult{}, err
		}
		entries = entries[over:]
		evicted = over
	}

	next := cur + 1
	next = max(next-evicted, 0)
	st := store.HistoryState{Current: next, Max: next}
	if err := q.WriteState(ctx, docID, st); err != nil {
		return appendResult{}, err
	}
	return appendResult{entries: entries, state: st, evicted: evicted}, nil
}

// commit installs a successful append.
func (e *Engine) commit(res appendResult) {
	discarded := len(e.entries) - e.state.Current
	e.entries = res.entries
	e.state = res.state
	e.metrics.logSize.Set(float64(len(res.entries)))

	last := res.entries[len(res.entries)-1]
	logger := e.docLogger()
	if discarded > 0 {
		logger.Debug("discarded redo entries", "count", discarded)
	}
	if res.evicted > 0 {
		e.metrics.evicted.Add(float64(res.evicted))
		logger.Debug("evicted oldest entries", "count", res.evicted, "max_size", e.maxSize)
	}
	logger.Info("action recorded",
		"type", last.Type,
		"description", last.Description,
		"current", res.state.Current,
		"max", res.state.Max,
	)
}

// ListActions returns the log in order, marking the entry at the current
// position.
func (e *Engine) ListActions() ([]LogEntry, error) {
	if e.doc == nil {
		return nil, e.fail("list_actions", CodeNoDocument, nil)
	}
	out := make([]LogEntry, len(e.entries))
	for i, rec := range e.entries {
		out[i] = LogEntry{
			Position:    i + 1,
			Type:        action.Type(rec.Type),
			Description: rec.Description,
			CreatedAt:   rec.CreatedAt,
			IsCurrent:   i == e.state.Current-1,
		}
	}
	return out, nil
}

// ListRestorationPoints returns the attached document's restoration points,
// newest first.
func (e *Engine) ListRestorationPoints(ctx context.Context) ([]PointInfo, error) {
	const op = "list_points"
	if e.doc == nil {
		return nil, e.fail(op, CodeNoDocument, nil)
	}
	rows, err := e.store.ListRestorationPoints(ctx, e.doc.ID)
	if err != nil {
		return nil, e.fail(op, CodeStorage, err)
	}
	out := make([]PointInfo, len(rows))
	for i, r := range rows {
		out[i] = PointInfo{ID: r.ID, Name: r.Name, Description: r.Description, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

// DefaultPointName names a restoration point created without a name.
func DefaultPointName(t time.Time) string {
	return "Restoration point " + t.Format("2006-01-02 15:04:05")
}

// CreateRestorationPoint stores a lossless snapshot of the live bitmap and
// logs a restore_point action referencing it, in one transaction.
func (e *Engine) CreateRestorationPoint(ctx context.Context, name, description string) (PointInfo, error) {
	const op = "create_point"
	defer e.metrics.timer(op).ObserveDuration()
	info, err := e.createRestorationPoint(ctx, name, description)
	e.metrics.observe(op, err)
	return info, err
}

func (e *Engine) createRestorationPoint(ctx context.Context, name, description string) (PointInfo, error) {
	const op = "create_point"
	done, err := e.begin(op)
	if err != nil {
		return PointInfo{}, err
	}
	defer done()

	img := e.surface.Bitmap()
	if img == nil {
		return PointInfo{}, e.fail(op, CodeNoDocument, errors.New("no live bitmap"))
	}
	data, err := imaging.EncodeSnapshot(img)
	if err != nil {
		return PointInfo{}, e.fail(op, CodeInvalid, err)
	}

	now := e.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPointName(now)
	}
	info := PointInfo{Name: name, Description: description, CreatedAt: now.UTC()}

	var res appendResult
	docID := e.doc.ID
	err = e.store.RunTx(ctx, func(q *store.Queries) error {
		id, err := q.WriteRestorationPoint(ctx, store.PointRecord{
			DocumentID:  docID,
			Name:        name,
			ImageData:   data,
			Description: description,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		info.ID = id
		res, err = e.appendTx(ctx, q, action.RestorePoint{Name: name, PointID: id}, "")
		return err
	})
	if err != nil {
		return PointInfo{}, e.fail(op, CodeStorage, err)
	}
	e.commit(res)
	return info, nil
}

// RestorePoint loads restoration point id into the session and logs a
// restore_point action referencing it.
func (e *Engine) RestorePoint(ctx context.Context, id int64) (Step, error) {
	const op = "restore_point"
	defer e.metrics.timer(op).ObserveDuration()
	step, err := e.restorePoint(ctx, id)
	e.metrics.observe(op, err)
	return step, err
}

func (e *Engine) restorePoint(ctx context.Context, id int64) (Step, error) {
	const op = "restore_point"
	done, err := e.begin(op)
	if err != nil {
		return Step{}, err
	}
	defer done()

	rec, err := e.store.ReadRestorationPoint(ctx, e.doc.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		return Step{}, e.fail(op, CodeNotFound, fmt.Errorf("restoration point %d", id))
	}
	if err != nil {
		return Step{}, e.fail(op, CodeStorage, err)
	}
	img, err := imaging.DecodeSnapshot(rec.ImageData)
	if err != nil {
		return Step{}, e.fail(op, CodeDecode, err)
	}

	var res appendResult
	err = e.store.RunTx(ctx, func(q *store.Queries) error {
		var err error
		res, err = e.appendTx(ctx, q, action.RestorePoint{Name: rec.Name, PointID: rec.ID, Restored: true}, "")
		return err
	})
	if err != nil {
		return Step{}, e.fail(op, CodeStorage, err)
	}
	e.commit(res)
	e.surface.Replace(img)
	return Step{
		Position:    e.state.Current,
		MaxPosition: e.state.Max,
		Action:      action.TypeRestorePoint,
		Restored:    true,
	}, nil
}

func payloadType(p action.Payload) string {
	if p == nil {
		return ""
	}
	return string(p.Type())
}
