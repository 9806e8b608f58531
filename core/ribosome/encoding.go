// Package ribosome is the sandboxed-execution boundary: application bytecode
// runs inside a WASM instance and talks to the host exclusively through
// word-sized scalars. Complex values cross as allocations in the shared
// linear memory, described by a single encoded 64-bit handle.
package ribosome

import (
	"fmt"

	"github.com/samrose/conductor/core/types"
)

// FailureCode identifies a failure reported across the execution boundary.
// Codes are part of the sandbox contract and must stay stable.
type FailureCode uint32

const (
	FailureUnspecified FailureCode = iota + 1
	FailureArgumentDeserialization
	FailureOutOfMemory
	FailureResponseSerialization
	FailureNotAnAllocation
	FailureZeroSizedAllocation
	FailureCallbackFailed
)

func (c FailureCode) String() string {
	switch c {
	case FailureUnspecified:
		return "unspecified"
	case FailureArgumentDeserialization:
		return "argument deserialization failed"
	case FailureOutOfMemory:
		return "out of memory"
	case FailureResponseSerialization:
		return "response serialization failed"
	case FailureNotAnAllocation:
		return "not an allocation"
	case FailureZeroSizedAllocation:
		return "zero-sized allocation"
	case FailureCallbackFailed:
		return "callback failed"
	default:
		return fmt.Sprintf("failure code %d", uint32(c))
	}
}

// Allocation is an (offset, length) byte range inside the shared linear
// memory. Length is never zero.
type Allocation struct {
	Offset uint32
	Length uint32
}

// EncodedValue packs one of three disjoint interpretations into a uint64:
//
//	0                          success, no data
//	high32 = code, low32 = 0   failure code (code != 0)
//	high32 = off, low32 = len  allocation (len != 0)
//
// No (offset, length, code) combination is ambiguous: failures have a zero
// low word, allocations never do, and success is all zeros.
type EncodedValue uint64

// EncodedSuccess is the explicit success sentinel.
const EncodedSuccess EncodedValue = 0

// EncodeAllocation encodes an allocation handle.
func EncodeAllocation(alloc Allocation) (EncodedValue, error) {
	if alloc.Length == 0 {
		return EncodedSuccess, types.NewError(types.ErrCodeAllocation, "zero-sized allocation cannot be encoded")
	}
	return EncodedValue(uint64(alloc.Offset)<<32 | uint64(alloc.Length)), nil
}

// EncodeFailure encodes a failure code.
func EncodeFailure(code FailureCode) EncodedValue {
	if code == 0 {
		code = FailureUnspecified
	}
	return EncodedValue(uint64(code) << 32)
}

// IsSuccess reports whether the value is the success sentinel.
func (v EncodedValue) IsSuccess() bool {
	return v == EncodedSuccess
}

// Failure returns the failure code if the value encodes one.
func (v EncodedValue) Failure() (FailureCode, bool) {
	if v != 0 && uint32(v) == 0 {
		return FailureCode(v >> 32), true
	}
	return 0, false
}

// Allocation returns the allocation if the value encodes one.
func (v EncodedValue) Allocation() (Allocation, bool) {
	length := uint32(v)
	if length == 0 {
		return Allocation{}, false
	}
	return Allocation{Offset: uint32(v >> 32), Length: length}, true
}
