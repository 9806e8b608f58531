package ribosome

import (
	"encoding/json"
	"fmt"

	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
)

// CallData identifies the invocation a runtime serves, so host functions can
// reach the right outer state without process-wide globals.
type CallData struct {
	DnaName  string
	Zome     string
	Function string
}

// Runtime is the per-invocation execution context handed to host functions:
// the allocator over the sandbox's memory plus the call identity.
type Runtime struct {
	Allocator *Allocator
	Data      CallData
	Logger    *utils.Logger
}

// NewRuntime creates a runtime over the given memory.
func NewRuntime(mem Memory, base uint32, data CallData, logger *utils.Logger) *Runtime {
	if logger == nil {
		logger = utils.DefaultLogger("ribosome")
	}
	return &Runtime{
		Allocator: NewAllocator(mem, base),
		Data:      data,
		Logger:    logger,
	}
}

// ReadArg decodes an argument handle and copies the payload out of sandbox
// memory. A success sentinel yields a nil payload. A failure code in argument
// position is a protocol violation by the sandboxed module.
func (r *Runtime) ReadArg(arg EncodedValue) ([]byte, error) {
	if arg.IsSuccess() {
		return nil, nil
	}
	if code, ok := arg.Failure(); ok {
		return nil, types.NewError(types.ErrCodeSandboxViolation,
			fmt.Sprintf("received failure code %d instead of an allocation", uint32(code)))
	}
	alloc, _ := arg.Allocation()
	return r.Allocator.Read(alloc)
}

// LoadArg deserializes a JSON argument crossing the boundary into out.
func (r *Runtime) LoadArg(arg EncodedValue, out interface{}) error {
	payload, err := r.ReadArg(arg)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return types.WrapError(types.ErrCodeSerialization, "deserializing boundary argument", err)
	}
	return nil
}

// Store serializes a value, writes it through a fresh allocation with the
// terminating sentinel, and returns the encoded handle. Allocation or
// serialization problems come back as encoded failures, never as traps.
func (r *Runtime) Store(value interface{}) EncodedValue {
	payload, err := json.Marshal(value)
	if err != nil {
		return EncodeFailure(FailureResponseSerialization)
	}
	alloc, err := r.Allocator.WriteTerminated(payload)
	if err != nil {
		return EncodeFailure(FailureOutOfMemory)
	}
	encoded, err := EncodeAllocation(alloc)
	if err != nil {
		return EncodeFailure(FailureZeroSizedAllocation)
	}
	return encoded
}

// APIResult is the uniform result envelope host functions return to the
// sandbox for fallible operations.
type APIResult struct {
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// StoreResult wraps a (value, error) pair in an APIResult envelope and stores
// it for the sandbox.
func (r *Runtime) StoreResult(value interface{}, callErr error) EncodedValue {
	if callErr != nil {
		return r.Store(APIResult{OK: false, Error: callErr.Error()})
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return EncodeFailure(FailureResponseSerialization)
	}
	return r.Store(APIResult{OK: true, Value: raw})
}
