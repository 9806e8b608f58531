package ribosome

import (
	"sync"

	"github.com/samrose/conductor/core/types"
)

// Allocator hands out byte ranges of the shared linear memory in stack
// discipline: allocations are released newest-first, matching the
// call/return shape of boundary crossings. One allocator serves one
// execution context; it is not shared across sandboxes.
type Allocator struct {
	mu   sync.Mutex
	mem  Memory
	base uint32
	top  uint32
}

// NewAllocator creates an allocator over mem, handing out ranges from base
// upward. Base is typically the module's heap base; zero for buffer memories.
func NewAllocator(mem Memory, base uint32) *Allocator {
	return &Allocator{mem: mem, base: base, top: base}
}

// Allocate reserves length bytes, growing memory if needed.
func (a *Allocator) Allocate(length uint32) (Allocation, error) {
	if length == 0 {
		return Allocation{}, types.NewError(types.ErrCodeAllocation, "zero-sized allocation")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	end := uint64(a.top) + uint64(length)
	if end > uint64(a.mem.Size()) {
		needed := end - uint64(a.mem.Size())
		pages := uint32((needed + WasmPageSize - 1) / WasmPageSize)
		if !a.mem.Grow(pages) {
			return Allocation{}, types.NewError(types.ErrCodeAllocation, "memory growth refused")
		}
	}

	alloc := Allocation{Offset: a.top, Length: length}
	a.top = uint32(end)
	return alloc, nil
}

// Deallocate releases an allocation. Only the most recent allocation can be
// released; anything else is a protocol violation by the caller.
func (a *Allocator) Deallocate(alloc Allocation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if alloc.Offset+alloc.Length != a.top {
		return types.NewError(types.ErrCodeAllocation, "deallocation out of stack order")
	}
	a.top = alloc.Offset
	return nil
}

// Reset releases every allocation.
func (a *Allocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.top = a.base
}

// Write allocates space for data and copies it in.
func (a *Allocator) Write(data []byte) (Allocation, error) {
	alloc, err := a.Allocate(uint32(len(data)))
	if err != nil {
		return Allocation{}, err
	}
	if err := a.mem.Write(alloc.Offset, data); err != nil {
		return Allocation{}, err
	}
	return alloc, nil
}

// WriteTerminated writes data followed by the terminating sentinel byte; the
// returned allocation covers both.
func (a *Allocator) WriteTerminated(data []byte) (Allocation, error) {
	terminated := make([]byte, len(data)+1)
	copy(terminated, data)
	return a.Write(terminated)
}

// Read copies an allocation's bytes out of memory.
func (a *Allocator) Read(alloc Allocation) ([]byte, error) {
	return a.mem.Read(alloc.Offset, alloc.Length)
}

// ReadTerminated reads an allocation written by WriteTerminated and strips
// the sentinel.
func (a *Allocator) ReadTerminated(alloc Allocation) ([]byte, error) {
	data, err := a.Read(alloc)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || data[len(data)-1] != 0 {
		return nil, types.NewError(types.ErrCodeSandboxViolation, "result allocation missing terminator")
	}
	return data[:len(data)-1], nil
}
