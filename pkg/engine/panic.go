package engine

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a panic recovered from a work function.
type PanicError struct {
	Value      any
	Stacktrace string
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", p.Value)
}

// recoverPanic must be called directly by a deferred function.
func recoverPanic(err *error) {
	if r := recover(); r != nil {
		*err = &PanicError{Value: r, Stacktrace: string(debug.Stack())}
	}
}
