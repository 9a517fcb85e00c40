// internal/harness/setup.go
//
// View-runtime harness.
//
// Context
// -------
// The harness owns the single PopupBridge of an application (or test run)
// and wires it into the view engine.  It reacts to two readiness signals,
// in this order:
//
//  1. ApplicationAvailable – extensions are initialized, then the bridge is
//     created.  Nothing view-related exists yet.
//  2. EngineAvailable(e) – the bridge is exposed in e's root context under
//     the configured name ("popupBridge" by default).
//
// Cleanup closes the bridge.  The harness is the only owner allowed to do
// so, and only after the engine has stopped using it.
//
// Signals out of order, or repeated, return ErrSequence and change nothing.
// Each Setup is independent, so tests build one per case.
package harness

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/yanizio/hmi/extensions/hmi"
	"github.com/yanizio/hmi/internal/view"
)

// ErrSequence reports a readiness signal fired out of order or twice.
var ErrSequence = errors.New("harness: readiness signal out of sequence")

// Option configures a Setup.
type Option func(*Setup)

// WithContextName overrides the context property name of the bridge.
func WithContextName(name string) Option {
	return func(s *Setup) { s.name = name }
}

// WithInit supplies the extension initialization run on
// ApplicationAvailable.  The default is hmi.NewInitializer.
func WithInit(fn func() error) Option {
	return func(s *Setup) { s.init = fn }
}

// WithLogger sets the logger; the default is zap.S().
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Setup) { s.log = log }
}

// Setup drives bridge creation and binding.
type Setup struct {
	name string
	init func() error
	log  *zap.SugaredLogger

	mu     sync.Mutex
	bridge *hmi.PopupBridge
	engine *view.Engine
	closed bool
}

// New returns a Setup waiting for ApplicationAvailable.
func New(opts ...Option) *Setup {
	s := &Setup{
		name: hmi.ContextName,
		init: func() error { _, err := hmi.NewInitializer(); return err },
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.S()
	}
	return s
}

// ApplicationAvailable initializes extensions and creates the bridge.  An
// initialization error is returned as-is; the application should not
// continue.
func (s *Setup) ApplicationAvailable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bridge != nil || s.closed {
		return fmt.Errorf("%w: application already available", ErrSequence)
	}
	if s.init != nil {
		if err := s.init(); err != nil {
			s.log.Errorw("extension initialization failed", "err", err)
			return err
		}
	}
	s.bridge = hmi.NewPopupBridge()
	s.log.Infow("application available; popup bridge created")
	return nil
}

// EngineAvailable exposes the bridge in e's root context.
func (s *Setup) EngineAvailable(e *view.Engine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return fmt.Errorf("%w: harness cleaned up", ErrSequence)
	case s.bridge == nil:
		return fmt.Errorf("%w: engine before application", ErrSequence)
	case s.engine != nil:
		return fmt.Errorf("%w: engine already available", ErrSequence)
	case e == nil:
		return errors.New("harness: nil engine")
	}
	s.engine = e
	e.RootContext().SetContextProperty(s.name, s.bridge)
	s.log.Infow("engine available; popup bridge exposed", "name", s.name)
	return nil
}

// Bridge returns the bridge, or nil before ApplicationAvailable.
func (s *Setup) Bridge() *hmi.PopupBridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge
}

// Engine returns the bound engine, or nil before EngineAvailable.
func (s *Setup) Engine() *view.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Cleanup closes the bridge.  Safe to call more than once.
func (s *Setup) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.bridge != nil {
		s.bridge.Close()
	}
	s.log.Infow("harness cleaned up")
}
