// internal/metatype/registry_test.go
//
// Unit-tests for the meta-type registry.
//
// Run: go test ./internal/metatype -v

package metatype

import (
	"errors"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

type gauge struct{}
type valve struct{}

func TestAnnounce_NameAndLookup(t *testing.T) {
	reg := New()
	if err := Announce[gauge](reg); err != nil {
		t.Fatalf("announce: %v", err)
	}

	name, ok := reg.Lookup(reflect.TypeFor[gauge]())
	if !ok || name != "metatype.gauge" {
		t.Fatalf("lookup = %q, %v; want metatype.gauge, true", name, ok)
	}

	// Pointer types resolve to the same entry.
	if name, ok := reg.Lookup(reflect.TypeFor[*gauge]()); !ok || name != "metatype.gauge" {
		t.Fatalf("pointer lookup = %q, %v", name, ok)
	}

	got, ok := reg.TypeByName("metatype.gauge")
	if !ok || got != reflect.TypeFor[gauge]() {
		t.Fatalf("TypeByName = %v, %v", got, ok)
	}
}

func TestAnnounce_DuplicateIsMisuse(t *testing.T) {
	reg := New()
	if err := Announce[valve](reg); err != nil {
		t.Fatalf("first announce: %v", err)
	}
	err := Announce[valve](reg)
	if !errors.Is(err, ErrDuplicateType) {
		t.Fatalf("second announce err = %v, want ErrDuplicateType", err)
	}
	if reg.Count() != 1 {
		t.Fatalf("count = %d, want 1", reg.Count())
	}
}

func TestAnnounce_RejectsUnnamed(t *testing.T) {
	reg := New()
	if err := reg.Announce(nil); !errors.Is(err, ErrNilType) {
		t.Fatalf("nil type err = %v", err)
	}
	if err := reg.Announce(reflect.TypeOf(struct{}{})); !errors.Is(err, ErrNotNamed) {
		t.Fatalf("anonymous struct err = %v", err)
	}
}

func TestEntries_SortedSnapshot(t *testing.T) {
	reg := New()
	_ = Announce[valve](reg)
	_ = Announce[gauge](reg)

	got := reg.Entries()
	if len(got) != 2 || got[0].Name != "metatype.gauge" || got[1].Name != "metatype.valve" {
		t.Fatalf("entries = %#v", got)
	}
}

// TestAnnounce_ConcurrentSingleWinner hammers one type from many goroutines;
// exactly one Announce must succeed.
func TestAnnounce_ConcurrentSingleWinner(t *testing.T) {
	reg := New()
	workers := runtime.GOMAXPROCS(0) * 4

	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			switch err := Announce[gauge](reg); {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrDuplicateType):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || int(dup.Load()) != workers-1 {
		t.Fatalf("ok=%d dup=%d, want 1 and %d", ok.Load(), dup.Load(), workers-1)
	}
}
