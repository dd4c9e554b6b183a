package errors

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// RecoverPanic turns a value returned by recover() into a fatal internal
// error. The stack detail starts at the frame that panicked.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("panic: %v", r)
	}

	return ErrInternal.
		WithCause(cause).
		WithDetail("panic", true).
		WithDetail("panic_type", fmt.Sprintf("%T", r)).
		WithDetail("stack_trace", panicStack(debug.Stack())).
		AsFatal()
}

// panicStack drops the goroutine header and every frame up to and including
// runtime panic. Stacks without a panic frame are returned unchanged.
func panicStack(stack []byte) string {
	s := string(stack)
	i := strings.Index(s, "\npanic(")
	if i < 0 {
		return s
	}
	rest := s[i+1:]
	for line := 0; line < 2; line++ {
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return s
		}
		rest = rest[nl+1:]
	}
	return rest
}
