// internal/metatype/registry.go
//
// Meta-type registry.
//
// Context
// -------
// The view layer can only name, construct, or bind a native value once its
// Go type has been announced here.  Extensions announce their value types
// exactly once, from their initializer (see internal/extension).  The key is
// the nearest named type (pointers are unwrapped), and the stored name is
// the canonical `pkg.Type` form, e.g. "hmi.ErrorInfo".
//
// The registry is append-only for the process lifetime.  A second Announce
// of the same type is reported as ErrDuplicateType rather than silently
// accepted, so a bypassed exactly-once guarantee shows up in tests and logs.
//
// Notes
// -----
//   - Reads go through sync.Map; writes take mu so Count stays exact.
//   - Default() is the process-wide registry.  Tests build their own with
//     New() or inject a counting Announcer.
//   - Oxford commas, two spaces after periods.
package metatype

import (
	"errors"
	"path"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/yanizio/hmi/internal/metrics"
)

var (
	// ErrNilType is returned when Announce receives a nil reflect.Type.
	ErrNilType = errors.New("metatype: nil reflect.Type")
	// ErrNotNamed is returned for types with no name after unwrapping.
	ErrNotNamed = errors.New("metatype: type is not named")
	// ErrDuplicateType is returned when a type is announced twice.
	ErrDuplicateType = errors.New("metatype: type already announced")
	// ErrConflictingName is returned when two types claim the same name.
	ErrConflictingName = errors.New("metatype: name already taken by another type")
)

// Announcer is the capability extensions consume.  It is satisfied by
// *Registry and by test doubles that count calls.
type Announcer interface {
	Announce(t reflect.Type) error
}

// Entry is one registered (type, name) pair.
type Entry struct {
	Type reflect.Type
	Name string
}

// Registry maps native value types to view-visible names.
type Registry struct {
	mu    sync.Mutex
	types sync.Map // reflect.Type → string
	names map[string]reflect.Type
	count int
}

var std = New()

// Default returns the process-wide registry.
func Default() *Registry { return std }

// New returns an empty Registry.
func New() *Registry {
	return &Registry{names: make(map[string]reflect.Type)}
}

// Announce registers t under its canonical name.
func (r *Registry) Announce(t reflect.Type) error {
	nt, err := normalize(t)
	if err != nil {
		return err
	}
	name := CanonicalName(nt)

	if _, ok := r.types.Load(nt); ok {
		zap.S().Warnw("metatype announced twice", "type", name)
		return ErrDuplicateType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under lock; another goroutine may have stored meanwhile.
	if _, ok := r.types.Load(nt); ok {
		zap.S().Warnw("metatype announced twice", "type", name)
		return ErrDuplicateType
	}
	if other, taken := r.names[name]; taken && other != nt {
		return ErrConflictingName
	}

	r.types.Store(nt, name)
	r.names[name] = nt
	r.count++
	if r == std {
		metrics.RegisteredTypes.Set(float64(r.count))
	}
	zap.S().Debugw("metatype announced", "type", name)
	return nil
}

// Lookup returns the registered name for t, if any.
func (r *Registry) Lookup(t reflect.Type) (string, bool) {
	nt, err := normalize(t)
	if err != nil {
		return "", false
	}
	v, ok := r.types.Load(nt)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// TypeByName resolves a view-side name back to its native type.
func (r *Registry) TypeByName(name string) (reflect.Type, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.names[name]
	return t, ok
}

// Entries returns a snapshot sorted by name.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, r.Count())
	r.types.Range(func(k, v any) bool {
		out = append(out, Entry{Type: k.(reflect.Type), Name: v.(string)})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered types.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Announce is a typed shorthand: metatype.Announce[ErrorInfo](reg).
func Announce[T any](a Announcer) error {
	return a.Announce(reflect.TypeFor[T]())
}

// CanonicalName returns "pkg.Type" for a named type.  The package part is
// the last element of the import path.
func CanonicalName(t reflect.Type) string {
	if p := t.PkgPath(); p != "" {
		return path.Base(p) + "." + t.Name()
	}
	return t.Name()
}

// normalize unwraps pointers down to the nearest named type.
func normalize(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, ErrNilType
	}
	for t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}
	if t.Name() == "" {
		return nil, ErrNotNamed
	}
	return t, nil
}
