package phys

import (
	"errors"
	"fmt"
)

// Recoverable allocation outcomes. These are expected, frequent results the
// generation driver retries around; they never leave partial state behind.
var (
	// ErrNoFreeRegion indicates no free, aligned, boundary-respecting region
	// could be carved for a fresh allocation.
	ErrNoFreeRegion = errors.New("phys: no free region satisfies the request")

	// ErrNoAliasTarget indicates no legal physical target could be resolved
	// for an alias allocation, or the resolved target overlaps no live page.
	ErrNoAliasTarget = errors.New("phys: no legal alias target")

	// ErrIncompatibleAttrs indicates the candidate's memory attributes
	// conflict with those of an overlapped page.
	ErrIncompatibleAttrs = errors.New("phys: incompatible memory attributes")

	// ErrNotAliasable indicates an overlapped page is marked non-aliasable.
	ErrNotAliasable = errors.New("phys: target page is not aliasable")
)

// FatalError reports an upstream programming or configuration defect. It is
// raised by panic and must not be recovered for retry; the coded message
// identifies the defect class.
type FatalError struct {
	Code string
	Msg  string
}

func (e *FatalError) Error() string {
	return "phys: " + e.Code + ": " + e.Msg
}

// fail raises a coded fatal error.
func fail(code, format string, args ...any) {
	panic(&FatalError{Code: code, Msg: fmt.Sprintf(format, args...)})
}
