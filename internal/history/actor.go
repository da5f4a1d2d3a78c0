package history

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/roach88/retouch/internal/action"
)

// ErrActorStopped is returned for calls submitted to a stopped Actor.
var ErrActorStopped = errors.New("history actor stopped")

type actorKey struct{}

// Actor serializes calls to an Engine through a single goroutine.
//
// Every method enqueues a command and waits for its result, so an Actor may
// be shared between goroutines. Calls made from inside a running command
// (for example by an Applier during redo) run inline on the loop goroutine,
// where the engine's in-progress guard refuses them instead of deadlocking.
//
// Thread-safety model:
//   - methods: safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Actor struct {
	engine *Engine
	queue  *commandQueue
}

// NewActor wraps e. Run must be started before calls can complete.
func NewActor(e *Engine) *Actor {
	return &Actor{engine: e, queue: newCommandQueue()}
}

// Run processes commands until ctx is cancelled or Stop is called.
// Commands still queued when it returns fail with ErrActorStopped.
func (a *Actor) Run(ctx context.Context) error {
	a.engine.logger.Debug("history actor starting")
	defer a.drain()

	for {
		if c, ok := a.queue.TryDequeue(); ok {
			a.execute(c)
			continue
		}

		select {
		case <-ctx.Done():
			a.engine.logger.Debug("history actor stopping: context cancelled")
			a.queue.Close()
			return ctx.Err()
		case <-a.queue.Wait():
			// The signal channel is closed with the queue; an empty queue then means stop.
			if a.queue.Len() == 0 && a.closed() {
				a.engine.logger.Debug("history actor stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once queued commands are processed.
func (a *Actor) Stop() {
	a.queue.Close()
}

func (a *Actor) closed() bool {
	a.queue.mu.Lock()
	defer a.queue.mu.Unlock()
	return a.queue.closed
}

func (a *Actor) execute(c command) {
	if !c.state.CompareAndSwap(cmdPending, cmdRunning) {
		return
	}
	if err := c.ctx.Err(); err != nil {
		c.abort(err)
		return
	}
	c.run(context.WithValue(c.ctx, actorKey{}, a))
}

func (a *Actor) drain() {
	for {
		c, ok := a.queue.TryDequeue()
		if !ok {
			return
		}
		c.abort(ErrActorStopped)
	}
}

func (a *Actor) onLoop(ctx context.Context) bool {
	owner, _ := ctx.Value(actorKey{}).(*Actor)
	return owner == a
}

// call runs fn on the loop goroutine and waits for its result.
// Cancelling ctx abandons a command still in the queue; a command that has
// started runs to completion and its own result is returned.
func call[T any](ctx context.Context, a *Actor, fn func(ctx context.Context, e *Engine) (T, error)) (T, error) {
	if a.onLoop(ctx) {
		return fn(ctx, a.engine)
	}

	type result struct {
		v   T
		err error
	}
	var zero T
	resCh := make(chan result, 1)
	state := new(atomic.Int32)
	ok := a.queue.Enqueue(command{
		ctx:   ctx,
		state: state,
		run: func(ctx context.Context) {
			v, err := fn(ctx, a.engine)
			resCh <- result{v: v, err: err}
		},
		abort: func(err error) {
			resCh <- result{err: err}
		},
	})
	if !ok {
		return zero, ErrActorStopped
	}

	select {
	case <-ctx.Done():
		if state.CompareAndSwap(cmdPending, cmdAbandoned) {
			return zero, ctx.Err()
		}
		// Already running: report what it did, not the cancellation.
		r := <-resCh
		return r.v, r.err
	case r := <-resCh:
		return r.v, r.err
	}
}

// OnDocumentLoaded calls Engine.OnDocumentLoaded on the loop.
func (a *Actor) OnDocumentLoaded(ctx context.Context, identifier string) error {
	_, err := call(ctx, a, func(ctx context.Context, e *Engine) (struct{}, error) {
		return struct{}{}, e.OnDocumentLoaded(ctx, identifier)
	})
	return err
}

// AddAction calls Engine.AddAction on the loop.
func (a *Actor) AddAction(ctx context.Context, p action.Payload, description string) error {
	_, err := call(ctx, a, func(ctx context.Context, e *Engine) (struct{}, error) {
		return struct{}{}, e.AddAction(ctx, p, description)
	})
	return err
}

// Undo calls Engine.Undo on the loop.
func (a *Actor) Undo(ctx context.Context) (Step, error) {
	return call(ctx, a, func(ctx context.Context, e *Engine) (Step, error) {
		return e.Undo(ctx)
	})
}

// Redo calls Engine.Redo on the loop.
func (a *Actor) Redo(ctx context.Context) (Step, error) {
	return call(ctx, a, func(ctx context.Context, e *Engine) (Step, error) {
		return e.Redo(ctx)
	})
}

// NavigateToPosition calls Engine.NavigateToPosition on the loop.
func (a *Actor) NavigateToPosition(ctx context.Context, target int) (Step, error) {
	return call(ctx, a, func(ctx context.Context, e *Engine) (Step, error) {
		return e.NavigateToPosition(ctx, target)
	})
}

// CreateRestorationPoint calls Engine.CreateRestorationPoint on the loop.
func (a *Actor) CreateRestorationPoint(ctx context.Context, name, description string) (PointInfo, error) {
	return call(ctx, a, func(ctx context.Context, e *Engine) (PointInfo, error) {
		return e.CreateRestorationPoint(ctx, name, description)
	})
}

// RestorePoint calls Engine.RestorePoint on the loop.
func (a *Actor) RestorePoint(ctx context.Context, id int64) (Step, error) {
	return call(ctx, a, func(ctx context.Context, e *Engine) (Step, error) {
		return e.RestorePoint(ctx, id)
	})
}

// ListActions calls Engine.ListActions on the loop.
func (a *Actor) ListActions(ctx context.Context) ([]LogEntry, error) {
	return call(ctx, a, func(_ context.Context, e *Engine) ([]LogEntry, error) {
		return e.ListActions()
	})
}

// ListRestorationPoints calls Engine.ListRestorationPoints on the loop.
func (a *Actor) ListRestorationPoints(ctx context.Context) ([]PointInfo, error) {
	return call(ctx, a, func(ctx context.Context, e *Engine) ([]PointInfo, error) {
		return e.ListRestorationPoints(ctx)
	})
}

// ClearHistory calls Engine.ClearHistory on the loop.
func (a *Actor) ClearHistory(ctx context.Context) error {
	_, err := call(ctx, a, func(ctx context.Context, e *Engine) (struct{}, error) {
		return struct{}{}, e.ClearHistory(ctx)
	})
	return err
}

// State returns the engine state as seen from the loop.
func (a *Actor) State(ctx context.Context) (State, bool, error) {
	type snapshot struct {
		st State
		ok bool
	}
	s, err := call(ctx, a, func(_ context.Context, e *Engine) (snapshot, error) {
		st, ok := e.State()
		return snapshot{st: st, ok: ok}, nil
	})
	return s.st, s.ok, err
}

// Detach calls Engine.Detach on the loop.
func (a *Actor) Detach(ctx context.Context) error {
	_, err := call(ctx, a, func(_ context.Context, e *Engine) (struct{}, error) {
		e.Detach()
		return struct{}{}, nil
	})
	return err
}
