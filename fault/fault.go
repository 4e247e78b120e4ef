// Package fault defines the error taxonomy shared by the virtualization core.
//
// Guest faults (data aborts, prefetch aborts) are not errors: they are
// injected into the guest. The errors in this package describe situations
// the core cannot model, and every one of them ends the VM.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal condition.
type Kind uint8

// Fault kinds.
const (
	KindUnknown Kind = iota
	// KindUndefinedRegister is an access to a coprocessor register slot that
	// was never validated.
	KindUndefinedRegister
	// KindUnmodeled is guest behavior the core does not emulate.
	KindUnmodeled
	// KindConfiguration is a programming or configuration error in the
	// hypervisor itself, such as an out-of-range interrupt line.
	KindConfiguration
	// KindHalted is reported by every entry point after the VM has halted.
	KindHalted
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindUndefinedRegister:
		return "undefined register"
	case KindUnmodeled:
		return "unmodeled"
	case KindConfiguration:
		return "configuration"
	case KindHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// Error is a fatal condition raised by one component.
type Error struct {
	Kind      Kind
	Component string
	Msg       string

	cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (%s)", e.Component, e.Msg, e.Kind)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the error that caused a halt, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Component != "" || t.Msg != "" {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrUndefinedRegister = &Error{Kind: KindUndefinedRegister}
	ErrUnmodeled         = &Error{Kind: KindUnmodeled}
	ErrConfiguration     = &Error{Kind: KindConfiguration}
	ErrHalted            = &Error{Kind: KindHalted}
)

// Undefined reports an access to an invalid register slot.
func Undefined(component, format string, args ...any) error {
	return &Error{Kind: KindUndefinedRegister, Component: component, Msg: fmt.Sprintf(format, args...)}
}

// Unmodeled reports guest behavior the core does not emulate.
func Unmodeled(component, format string, args ...any) error {
	return &Error{Kind: KindUnmodeled, Component: component, Msg: fmt.Sprintf(format, args...)}
}

// Config reports a hypervisor programming or configuration error.
func Config(component, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Component: component, Msg: fmt.Sprintf(format, args...)}
}

// Halted wraps the error that stopped a VM.
func Halted(component string, cause error) error {
	return &Error{Kind: KindHalted, Component: component, Msg: "vm halted", cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
