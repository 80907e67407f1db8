// Package pipeline sequences the two asynchronous transformation calls for a
// captured drawing and owns the session's state machine.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"DrawingTransformer/internal/logging"
	"DrawingTransformer/internal/state"
)

// Transformer is the external AI service: describe an image, then generate
// artwork from the description.
type Transformer interface {
	Analyze(ctx context.Context, image state.Snapshot) (string, error)
	Generate(ctx context.Context, description string) (string, error)
}

// Controller runs at most one describe/generate sequence at a time and is
// the only writer of DrawingData and State.
//
// Results are tagged with the epoch of the run that produced them; a
// result whose epoch has been superseded by Reset or a later capture is
// dropped without touching state.
type Controller struct {
	svc Transformer

	mu       sync.Mutex
	notifyMu sync.Mutex
	state    State
	data     DrawingData
	failedAt Step
	lastErr  error
	closed   bool
	epochs   epochClock

	observers state.Observers[View]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a controller in the Draw state.
func NewController(svc Transformer) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		svc:    svc,
		state:  Draw,
		ctx:    ctx,
		cancel: cancel,
	}
}

// CaptureInput starts a run for snap. It returns once the run is accepted;
// progress is reported through Subscribe and View.
func (c *Controller) CaptureInput(snap state.Snapshot) error {
	if snap.IsZero() {
		return ErrNoInput
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state.Busy():
		c.mu.Unlock()
		return ErrPipelineBusy
	case c.state != Draw:
		c.mu.Unlock()
		return ErrResetRequired
	}

	epoch := c.epochs.Tick()
	c.data = DrawingData{ImageData: snap}
	c.lastErr = nil
	c.failedAt = ""
	c.transition(Describing)
	c.wg.Add(1)
	logging.Logger().Info("[pipeline] input captured", "epoch", epoch, "type", snap.MediaType(), "bytes", snap.Len())
	v := c.viewLocked()
	c.mu.Unlock()

	go c.run(epoch, snap)
	c.observers.Notify(v)
	return nil
}

func (c *Controller) run(epoch Epoch, snap state.Snapshot) {
	defer c.wg.Done()

	desc, err := c.svc.Analyze(c.ctx, snap)
	if !c.applyDescription(epoch, desc, err) {
		return
	}
	url, err := c.svc.Generate(c.ctx, desc)
	c.applyArtwork(epoch, url, err)
}

// applyDescription reports whether the run should continue to Generate.
func (c *Controller) applyDescription(epoch Epoch, desc string, err error) bool {
	cont := false
	c.update(func() bool {
		if !c.epochs.IsCurrent(epoch) || c.state != Describing {
			logging.Logger().Debug("[pipeline] stale analyze result discarded", "epoch", epoch)
			return false
		}
		if err != nil {
			c.fail(StepDescribe, err)
			return true
		}
		c.data.Description = &desc
		c.transition(Transforming)
		logging.Logger().Info("[pipeline] description stored", "epoch", epoch, "chars", len(desc))
		cont = true
		return true
	})
	return cont
}

func (c *Controller) applyArtwork(epoch Epoch, url string, err error) {
	c.update(func() bool {
		if !c.epochs.IsCurrent(epoch) || c.state != Transforming {
			logging.Logger().Debug("[pipeline] stale generate result discarded", "epoch", epoch)
			return false
		}
		if err != nil {
			c.fail(StepTransform, err)
			return true
		}
		c.data.ArtworkURL = &url
		c.transition(Done)
		logging.Logger().Info("[pipeline] artwork stored", "epoch", epoch, "url", url)
		return true
	})
}

// fail must be called with c.mu held.
func (c *Controller) fail(at Step, err error) {
	c.lastErr = err
	c.failedAt = at
	c.transition(Failed)
	logging.Logger().Warn("[pipeline] run failed", "epoch", c.epochs.Current(), "step", at, "err", err)
}

// transition must be called with c.mu held.
func (c *Controller) transition(to State) {
	if !isAllowedTransition(c.state, to) {
		panic(fmt.Sprintf("pipeline: disallowed transition %s -> %s", c.state, to))
	}
	c.state = to
}

// Reset discards all progress and returns to Draw. Any run still in flight
// is superseded and its results will be ignored.
func (c *Controller) Reset() {
	c.update(func() bool {
		epoch := c.epochs.Tick()
		c.state = Draw
		c.data = DrawingData{}
		c.lastErr = nil
		c.failedAt = ""
		logging.Logger().Info("[pipeline] reset", "epoch", epoch)
		return true
	})
}

// update applies fn under c.mu and, when fn reports a change, hands the new
// view to observers. Locks are taken notifyMu then mu, and observers run
// with only notifyMu held: they may call View but must not call
// CaptureInput or Reset.
func (c *Controller) update(fn func() bool) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	changed := fn()
	v := c.viewLocked()
	c.mu.Unlock()
	if changed {
		c.observers.Notify(v)
	}
}

// Subscribe registers fn for every state change.
func (c *Controller) Subscribe(fn func(View)) (cancel func()) {
	return c.observers.Subscribe(fn)
}

// View returns the current session surface.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Data returns the current drawing data.
func (c *Controller) Data() DrawingData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// Err returns the error that moved the controller to Failed, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) viewLocked() View {
	v := View{
		State:     c.state,
		IsLoading: c.state.Busy(),
		Epoch:     c.epochs.Current(),
		Data:      c.data,
	}
	switch c.state {
	case Draw:
		v.Step = StepDraw
	case Describing:
		v.Step = StepDescribe
	case Transforming, Done:
		v.Step = StepTransform
	case Failed:
		v.Step = c.failedAt
	}
	if c.lastErr != nil {
		v.Error = c.lastErr.Error()
	}
	return v
}

// Wait blocks until every run started so far has returned, including
// superseded ones.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close supersedes the current run, cancels in-flight service calls and
// waits for them. Later captures fail with ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.epochs.Tick()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}
