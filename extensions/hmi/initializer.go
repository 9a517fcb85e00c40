// extensions/hmi/initializer.go
//
// Initializer for the hmi extension.
//
// Constructing an Initializer announces ErrorInfo, InplaceError, and Prompt
// to the meta-type registry, once per process (or once per Tracker in
// tests).  Every later construction is a no-op.
package hmi

import (
	"errors"

	"github.com/yanizio/hmi/internal/extension"
	"github.com/yanizio/hmi/internal/metatype"
)

// Initializer is the hmi extension's one-time setup sentinel.
type Initializer struct {
	*extension.Initializer[Initializer]
}

// NewInitializer initializes the extension against the process-wide
// tracker and registry.
func NewInitializer() (*Initializer, error) {
	return NewInitializerWith(extension.Default(), metatype.Default())
}

// NewInitializerWith initializes the extension against tr and reg.
func NewInitializerWith(tr *extension.Tracker, reg metatype.Announcer) (*Initializer, error) {
	base, err := extension.NewInitializerWith[Initializer](tr, func() error {
		var errs []error
		for _, t := range ValueTypes() {
			if err := reg.Announce(t); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	if err != nil {
		return nil, err
	}
	return &Initializer{base}, nil
}
