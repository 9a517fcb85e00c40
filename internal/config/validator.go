// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// `Load` calls `validateStruct` right after unmarshalling.  Any failure
// aborts startup, so the binary never runs with malformed configuration.

package config

import "github.com/go-playground/validator/v10"

var v = validator.New()

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
