// extensions/hmi/popupbridge.go
//
// PopupBridge: native popup requests, observed by the view layer.
//
// Context
// -------
// Native code anywhere in the process calls Request(prompt).  The view
// layer finds the bridge through its evaluation context (the harness
// exposes it as "popupBridge") and Connects observers that render popups.
//
// Life-cycle
// ----------
//
//	Constructed/unbound ──SetContextProperty──► bound ──Close──► closed
//
//   - Unbound: Request validates and returns nil; nobody is notified and
//     nothing is queued.
//   - Bound: Request posts the notification to the context's UI loop, so
//     observers always run on the UI goroutine, in request order.
//   - Closed: Request returns ErrBridgeClosed.
//
// Native-side hooks registered with OnAccepted see every accepted request
// in every state, on the requesting goroutine.  The journal uses them.
//
// Notes
// -----
//   - Exposing the bridge in two contexts is a harness bug.  The bridge
//     keeps the first context and logs the second.
//   - The bridge renders nothing itself.
//   - Oxford commas, two spaces after periods.
package hmi

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/yanizio/hmi/internal/metrics"
	"github.com/yanizio/hmi/internal/view"
)

// ContextName is the identifier view code uses to reach the bridge.
const ContextName = "popupBridge"

var (
	// ErrInvalidPrompt wraps validation failures from Request.
	ErrInvalidPrompt = errors.New("hmi: invalid prompt")
	// ErrPromptReused is returned when a Prompt is requested twice.
	ErrPromptReused = errors.New("hmi: prompt already requested")
	// ErrBridgeClosed is returned by Request after Close.
	ErrBridgeClosed = errors.New("hmi: popup bridge closed")
)

// compile-time assertion
var _ view.Binder = (*PopupBridge)(nil)

// Observer receives popup requests.  Observers registered with Connect
// run on the UI loop; OnAccepted hooks run on the requesting goroutine.
type Observer func(p *Prompt)

type observer struct {
	id uint64
	fn Observer
}

// PopupBridge decouples popup requests from popup rendering.
type PopupBridge struct {
	seq atomic.Uint64

	mu        sync.Mutex
	ctx       *view.Context
	name      string
	closed    bool
	observers []observer
	accepted  []observer
	nextObs   uint64
}

// NewPopupBridge returns an unbound bridge.
func NewPopupBridge() *PopupBridge {
	return &PopupBridge{}
}

// BindContext implements view.Binder; the view context calls it from
// SetContextProperty.
func (b *PopupBridge) BindContext(c *view.Context, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil {
		zap.S().Warnw("popup bridge bound twice; keeping first context",
			"first", b.name, "second", name)
		return
	}
	b.ctx, b.name = c, name
	zap.S().Infow("popup bridge bound", "name", name)
}

// Bound reports whether a view context has exposed the bridge.
func (b *PopupBridge) Bound() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx != nil
}

// Connect registers fn for every later popup notification and returns a
// function that removes it.
func (b *PopupBridge) Connect(fn Observer) (disconnect func()) {
	b.mu.Lock()
	b.nextObs++
	id := b.nextObs
	b.observers = append(b.observers, observer{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, o := range b.observers {
			if o.id == id {
				b.observers = append(b.observers[:i], b.observers[i+1:]...)
				return
			}
		}
	}
}

// OnAccepted registers fn for every accepted request, bound or not.  fn
// runs synchronously on the requesting goroutine, after the ID is
// assigned and before the view is notified, so it must not block.
func (b *PopupBridge) OnAccepted(fn Observer) (remove func()) {
	b.mu.Lock()
	b.nextObs++
	id := b.nextObs
	b.accepted = append(b.accepted, observer{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.accepted = slices.DeleteFunc(b.accepted, func(o observer) bool { return o.id == id })
	}
}

// Request asks the view layer to show p.  It never waits for the view
// layer; use p.Wait for an answer.
func (b *PopupBridge) Request(p *Prompt) error {
	if p == nil {
		return fmt.Errorf("%w: nil prompt", ErrInvalidPrompt)
	}
	// Only the goroutine that claims p may touch it.  A rejected request
	// releases the claim so the caller can fix p and try again.
	if !p.claimed.CompareAndSwap(false, true) {
		return ErrPromptReused
	}
	if p.ID != 0 {
		return ErrPromptReused
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		p.claimed.Store(false)
		return fmt.Errorf("%w: %v", ErrInvalidPrompt, err)
	}

	b.mu.Lock()
	ctx, closed := b.ctx, b.closed
	accepted := make([]observer, len(b.accepted))
	copy(accepted, b.accepted)
	b.mu.Unlock()
	if closed {
		p.claimed.Store(false)
		return ErrBridgeClosed
	}

	p.ID = b.seq.Add(1)
	p.init()
	metrics.PopupRequestsTotal.WithLabelValues(string(p.Kind)).Inc()
	for _, o := range accepted {
		o.fn(p)
	}

	if ctx == nil || !ctx.Loop().Post(func() { b.emit(p) }) {
		metrics.PopupDroppedTotal.Inc()
		zap.S().Debugw("popup request unobserved", "id", p.ID, "kind", p.Kind)
		return nil
	}
	zap.S().Debugw("popup requested", "id", p.ID, "kind", p.Kind)
	return nil
}

// emit runs on the UI loop.
func (b *PopupBridge) emit(p *Prompt) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	obs := make([]observer, len(b.observers))
	copy(obs, b.observers)
	b.mu.Unlock()

	for _, o := range obs {
		o.fn(p)
	}
	metrics.PopupDeliveredTotal.Inc()
}

// Close drops every observer and rejects later requests.  Notifications
// already queued on the UI loop are discarded when they run.
func (b *PopupBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.observers = nil
	b.accepted = nil
}
