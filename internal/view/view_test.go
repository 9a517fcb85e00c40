// internal/view/view_test.go
//
// Unit-tests for the UI loop and evaluation context.
//
// Run: go test ./internal/view -v

package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yanizio/hmi/internal/metatype"
)

func TestLoop_ProcessEventsFIFO(t *testing.T) {
	l := NewLoop()
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	if n := l.ProcessEvents(); n != 3 {
		t.Fatalf("ProcessEvents = %d, want 3", n)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("order = %v", got)
	}
}

func TestLoop_RunDeliversCrossGoroutine(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Post(func() { close(done) })
	}()
	wg.Wait()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("posted work never ran")
	}

	l.Stop()
	if err := <-errc; err != nil {
		t.Fatalf("Run = %v, want nil after Stop", err)
	}
	if l.Post(func() {}) {
		t.Fatal("Post after Stop reported true")
	}
}

func TestLoop_RunTwice(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	defer cancel()

	// Wait until the first Run has claimed the loop.
	deadline := time.Now().Add(2 * time.Second)
	for {
		l.mu.Lock()
		running := l.running
		l.mu.Unlock()
		if running || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := l.Run(ctx); !errors.Is(err, ErrLoopRunning) {
		t.Fatalf("second Run = %v, want ErrLoopRunning", err)
	}
}

type lamp struct{}

type bindRecorder struct {
	ctx  *Context
	name string
}

func (p *bindRecorder) BindContext(c *Context, name string) { p.ctx, p.name = c, name }

func TestContext_SetContextPropertyBinds(t *testing.T) {
	e := NewEngine(metatype.New())
	p := &bindRecorder{}
	e.RootContext().SetContextProperty("recorder", p)

	if p.ctx != e.RootContext() || p.name != "recorder" {
		t.Fatalf("binder not notified: %#v", p)
	}
	got, ok := e.RootContext().Property("recorder")
	if !ok || got != p {
		t.Fatalf("Property = %v, %v", got, ok)
	}
	if e.RootContext().Loop() != e.Loop() {
		t.Fatal("context loop differs from engine loop")
	}
}

func TestEngine_NewRequiresAnnouncedType(t *testing.T) {
	reg := metatype.New()
	e := NewEngine(reg)

	if _, err := e.New("view.lamp"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("New before announce = %v", err)
	}
	if err := metatype.Announce[lamp](reg); err != nil {
		t.Fatal(err)
	}
	v, err := e.New("view.lamp")
	if err != nil {
		t.Fatalf("New after announce: %v", err)
	}
	if _, ok := v.(*lamp); !ok {
		t.Fatalf("New returned %T, want *lamp", v)
	}
	if name, ok := e.TypeName(v); !ok || name != "view.lamp" {
		t.Fatalf("TypeName = %q, %v", name, ok)
	}
}
