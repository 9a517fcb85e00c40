// internal/extension/initializer.go
//
// Exactly-once extension initialization.
//
// Context
// -------
// Every extension owns a one-time setup procedure, typically announcing its
// value types to the meta-type registry.  Extensions may be constructed
// lazily, redundantly, or from several entry points (cmd/hmi, test
// harnesses), so the "run setup once" guarantee lives here instead of in
// each extension.
//
// The extension identity is the Go type parameter T.  A Tracker keeps one
// tri-state record per identity:
//
//	NotStarted ──► Running ──► Done
//	     ▲            │
//	     └── error ───┘
//
// Concurrent first constructions collapse through singleflight, so exactly
// one goroutine runs the procedure and the others block until it returns
// and share its outcome.  A failed run leaves the identity NotStarted, so a
// later construction retries.
//
// Usage
// -----
//
//	type Initializer struct{ *extension.Initializer[Initializer] }
//
//	func NewInitializer() (*Initializer, error) {
//		base, err := extension.NewInitializer[Initializer](func() error {
//			return metatype.Announce[Gauge](metatype.Default())
//		})
//		if err != nil {
//			return nil, err
//		}
//		return &Initializer{base}, nil
//	}
//
// Notes
// -----
//   - A procedure must not construct its own extension's initializer; the
//     nested call would wait on itself.
//   - Partially applied side effects of a failed procedure are not rolled
//     back.
//   - Oxford commas, two spaces after periods.
package extension

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/hmi/internal/metrics"
)

// State is the one-time-run bookkeeping for a single extension identity.
type State int32

const (
	NotStarted State = iota
	Running
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Done:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Procedure is the side-effecting setup an extension supplies.
type Procedure func() error

// PanicError wraps a value recovered from a panicking Procedure.
type PanicError struct {
	Extension string
	Value     any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("extension %s: init panicked: %v", e.Extension, e.Value)
}

//
// Tracker
//

// Tracker holds per-identity state.  The zero value is not usable; call
// NewTracker.
type Tracker struct {
	sfg    singleflight.Group
	mu     sync.Mutex
	states map[reflect.Type]State
}

// NewTracker returns an empty Tracker.  Tests use one per case so runs do
// not leak between them.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[reflect.Type]State)}
}

var std = NewTracker()

// Default returns the process-wide Tracker used by NewInitializer.
func Default() *Tracker { return std }

// State reports the bookkeeping for identity t.
func (tr *Tracker) State(t reflect.Type) State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.states[t]
}

// StateOf is the typed form of Tracker.State.
func StateOf[T any](tr *Tracker) State {
	return tr.State(reflect.TypeFor[T]())
}

func (tr *Tracker) set(t reflect.Type, s State) {
	tr.mu.Lock()
	tr.states[t] = s
	tr.mu.Unlock()
}

// run executes proc once for identity t.
func (tr *Tracker) run(t reflect.Type, proc Procedure) error {
	if tr.State(t) == Done {
		return nil
	}

	name := identityName(t)
	_, err, _ := tr.sfg.Do(t.PkgPath()+"#"+t.String(), func() (any, error) {
		// Double-check after the singleflight barrier.
		tr.mu.Lock()
		if tr.states[t] == Done {
			tr.mu.Unlock()
			return nil, nil
		}
		tr.states[t] = Running
		tr.mu.Unlock()

		start := time.Now()
		if err := invoke(name, proc); err != nil {
			tr.set(t, NotStarted)
			metrics.ExtensionInitErrorsTotal.WithLabelValues(name).Inc()
			zap.S().Errorw("extension init failed", "extension", name, "err", err)
			return nil, err
		}
		tr.set(t, Done)
		metrics.ExtensionInitTotal.WithLabelValues(name).Inc()
		zap.S().Infow("extension initialized",
			"extension", name,
			"took", time.Since(start),
		)
		return nil, nil
	})
	return err
}

func invoke(name string, proc Procedure) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Extension: name, Value: v}
		}
	}()
	if proc == nil {
		return nil
	}
	return proc()
}

// identityName is the short, log-friendly form of an identity.
func identityName(t reflect.Type) string { return t.String() }

//
// Initializer
//

// Initializer is the inert sentinel left behind once extension T has been
// set up.  Concrete extensions embed it.
type Initializer[T any] struct {
	tracker *Tracker
}

// NewInitializer runs proc if extension T has not been initialized in the
// process-wide Tracker, and returns an error if proc fails.
func NewInitializer[T any](proc Procedure) (*Initializer[T], error) {
	return NewInitializerWith[T](std, proc)
}

// NewInitializerWith is NewInitializer against an explicit Tracker.
func NewInitializerWith[T any](tr *Tracker, proc Procedure) (*Initializer[T], error) {
	if err := tr.run(reflect.TypeFor[T](), proc); err != nil {
		return nil, err
	}
	return &Initializer[T]{tracker: tr}, nil
}

// Extension returns the identity name, e.g. "hmi.Initializer".
func (i *Initializer[T]) Extension() string {
	return identityName(reflect.TypeFor[T]())
}

// State reports the bookkeeping for T.  It is Done for any Initializer
// returned without error.
func (i *Initializer[T]) State() State {
	return StateOf[T](i.tracker)
}
