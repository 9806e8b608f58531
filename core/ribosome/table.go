package ribosome

import (
	"fmt"

	"github.com/samrose/conductor/core/types"
)

// FnIndex is the stable numeric index of a host function. Indices are the
// external contract sandboxed modules compile against and must not be
// reordered across releases.
type FnIndex uint32

const (
	FnDebug FnIndex = iota
	FnCommitEntry
	FnGetEntry
	FnRemoveEntry
	FnLinkEntries
	FnGetLinks
	FnRemoveLink
	FnSign
	FnVerifySignature

	fnCount
)

// fnNames are the import names the WASM sandbox links against, positionally
// matching the indices above.
var fnNames = [fnCount]string{
	"hc_debug",
	"hc_commit_entry",
	"hc_get_entry",
	"hc_remove_entry",
	"hc_link_entries",
	"hc_get_links",
	"hc_remove_link",
	"hc_sign",
	"hc_verify_signature",
}

// Name returns the import name of an index.
func (i FnIndex) Name() string {
	if i >= fnCount {
		return fmt.Sprintf("invalid(%d)", uint32(i))
	}
	return fnNames[i]
}

// HostFunc is one host function: it receives the per-invocation runtime and
// the caller's encoded argument, and returns an encoded result.
type HostFunc func(r *Runtime, arg EncodedValue) (EncodedValue, error)

// Table is the closed dispatch table of host functions, fixed at
// construction. An unknown or unbound index is a fatal sandbox violation for
// the calling execution context, never undefined behavior.
type Table struct {
	funcs [fnCount]HostFunc
}

// NewTable builds a dispatch table from the given bindings.
func NewTable(funcs map[FnIndex]HostFunc) *Table {
	t := &Table{}
	for idx, fn := range funcs {
		if idx < fnCount {
			t.funcs[idx] = fn
		}
	}
	return t
}

// Invoke dispatches a call by index. The returned error is fatal to the
// execution context and must not be surfaced as an encoded failure.
func (t *Table) Invoke(r *Runtime, index uint32, arg EncodedValue) (EncodedValue, error) {
	if index >= uint32(fnCount) || t.funcs[index] == nil {
		return EncodedSuccess, types.NewError(types.ErrCodeSandboxViolation,
			fmt.Sprintf("unknown host function index %d", index))
	}
	return t.funcs[index](r, arg)
}

// Bound reports whether the index has a binding.
func (t *Table) Bound(index FnIndex) bool {
	return index < fnCount && t.funcs[index] != nil
}
