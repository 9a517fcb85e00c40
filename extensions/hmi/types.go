// extensions/hmi/types.go
//
// Value types owned by the hmi extension.
//
// Context
// -------
// These are plain payloads that cross the native/view boundary.  They carry
// no behaviour the runtime depends on; what matters is that the view engine
// knows them, which the Initializer guarantees.
package hmi

import (
	"fmt"
	"reflect"
)

// ErrorInfo describes an error in a form the view layer can display.
type ErrorInfo struct {
	Class string `json:"class"`
	Code  int    `json:"code"`
	Str   string `json:"str"`
}

func (e ErrorInfo) String() string {
	if e.Class == "" {
		return e.Str
	}
	return fmt.Sprintf("%s (%s %d)", e.Str, e.Class, e.Code)
}

// InplaceError is an error annotated with the source location that raised
// it.
type InplaceError struct {
	Message  string `json:"message"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (e *InplaceError) Error() string {
	return fmt.Sprintf("%s:%d %s: %s", e.File, e.Line, e.Function, e.Message)
}

// ValueTypes lists the types the hmi extension announces.
func ValueTypes() []reflect.Type {
	return []reflect.Type{
		reflect.TypeFor[ErrorInfo](),
		reflect.TypeFor[InplaceError](),
		reflect.TypeFor[Prompt](),
	}
}
