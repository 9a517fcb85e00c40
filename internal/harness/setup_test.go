// internal/harness/setup_test.go
//
// Scenario tests for the readiness sequence.
//
// Each case injects an isolated Tracker and registry through WithInit so
// the process-wide bookkeeping is untouched.

package harness

import (
	"errors"
	"testing"

	"github.com/yanizio/hmi/extensions/hmi"
	"github.com/yanizio/hmi/internal/extension"
	"github.com/yanizio/hmi/internal/metatype"
	"github.com/yanizio/hmi/internal/view"
)

func isolated(reg *metatype.Registry) Option {
	tr := extension.NewTracker()
	return WithInit(func() error {
		_, err := hmi.NewInitializerWith(tr, reg)
		return err
	})
}

func TestSetup_HelloScenario(t *testing.T) {
	reg := metatype.New()
	s := New(isolated(reg))
	defer s.Cleanup()

	if err := s.ApplicationAvailable(); err != nil {
		t.Fatalf("application available: %v", err)
	}
	if s.Engine() != nil {
		t.Fatal("engine reported before EngineAvailable")
	}
	e := view.NewEngine(reg)
	if err := s.EngineAvailable(e); err != nil {
		t.Fatalf("engine available: %v", err)
	}
	if s.Engine() != e {
		t.Fatal("Engine() does not return the bound engine")
	}

	// View side: resolve the bridge by name and observe it.
	v, ok := e.RootContext().Property("popupBridge")
	if !ok {
		t.Fatal("popupBridge not in context")
	}
	bridge, ok := v.(*hmi.PopupBridge)
	if !ok || bridge != s.Bridge() {
		t.Fatal("context holds a different bridge instance")
	}
	var got []string
	bridge.Connect(func(p *hmi.Prompt) { got = append(got, p.Text) })

	if err := s.Bridge().Request(&hmi.Prompt{Text: "hello"}); err != nil {
		t.Fatal(err)
	}
	e.Loop().ProcessEvents()

	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("observed %v, want [hello]", got)
	}

	// Extension types were announced before the view existed.
	if _, err := e.New("hmi.ErrorInfo"); err != nil {
		t.Fatalf("hmi.ErrorInfo not constructible: %v", err)
	}
}

func TestSetup_BeforeEngineIsUnobserved(t *testing.T) {
	s := New(isolated(metatype.New()))
	if err := s.ApplicationAvailable(); err != nil {
		t.Fatal(err)
	}
	if err := s.Bridge().Request(hmi.Note("early")); err != nil {
		t.Fatalf("early request: %v", err)
	}
	if s.Bridge().Bound() {
		t.Fatal("bridge bound without engine")
	}
}

func TestSetup_OutOfSequence(t *testing.T) {
	reg := metatype.New()
	s := New(isolated(reg))

	if err := s.EngineAvailable(view.NewEngine(reg)); !errors.Is(err, ErrSequence) {
		t.Fatalf("engine first = %v", err)
	}
	if err := s.ApplicationAvailable(); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplicationAvailable(); !errors.Is(err, ErrSequence) {
		t.Fatalf("application twice = %v", err)
	}
	if err := s.EngineAvailable(view.NewEngine(reg)); err != nil {
		t.Fatal(err)
	}
	if err := s.EngineAvailable(view.NewEngine(reg)); !errors.Is(err, ErrSequence) {
		t.Fatalf("engine twice = %v", err)
	}
}

func TestSetup_InitFailureIsFatal(t *testing.T) {
	boom := errors.New("types unavailable")
	s := New(WithInit(func() error { return boom }))

	if err := s.ApplicationAvailable(); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if s.Bridge() != nil {
		t.Fatal("bridge created despite failed initialization")
	}
}

func TestSetup_CleanupClosesBridge(t *testing.T) {
	s := New(isolated(metatype.New()), WithContextName("popups"))
	if err := s.ApplicationAvailable(); err != nil {
		t.Fatal(err)
	}
	e := view.NewEngine(metatype.New())
	if err := s.EngineAvailable(e); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.RootContext().Property("popups"); !ok {
		t.Fatal("custom context name not used")
	}

	s.Cleanup()
	s.Cleanup()
	if err := s.Bridge().Request(hmi.Note("late")); !errors.Is(err, hmi.ErrBridgeClosed) {
		t.Fatalf("request after cleanup = %v", err)
	}
}
