package ribosome

import (
	"github.com/samrose/conductor/core/types"
)

// WasmPageSize is the WebAssembly linear memory page size.
const WasmPageSize = 64 * 1024

// Memory abstracts the linear memory shared with the sandboxed module, so the
// allocator and marshaling code work identically against a live WASM instance
// and an in-process buffer.
type Memory interface {
	// Read copies length bytes starting at offset.
	Read(offset, length uint32) ([]byte, error)
	// Write copies data into memory starting at offset.
	Write(offset uint32, data []byte) error
	// Size is the current memory size in bytes.
	Size() uint32
	// Grow extends memory by whole pages, reporting success.
	Grow(pages uint32) bool
}

// BufferMemory is a plain in-process Memory, used for direct host-side
// invocation and tests.
type BufferMemory struct {
	data []byte
}

// NewBufferMemory creates a buffer memory of the given page count.
func NewBufferMemory(pages uint32) *BufferMemory {
	return &BufferMemory{data: make([]byte, pages*WasmPageSize)}
}

// Read implements Memory.
func (m *BufferMemory) Read(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.data)) {
		return nil, types.NewError(types.ErrCodeSandboxViolation, "memory read out of bounds")
	}
	out := make([]byte, length)
	copy(out, m.data[offset:end])
	return out, nil
}

// Write implements Memory.
func (m *BufferMemory) Write(offset uint32, data []byte) error {
	end := uint64(offset) + uint64(len(data))
	if end > uint64(len(m.data)) {
		return types.NewError(types.ErrCodeSandboxViolation, "memory write out of bounds")
	}
	copy(m.data[offset:end], data)
	return nil
}

// Size implements Memory.
func (m *BufferMemory) Size() uint32 {
	return uint32(len(m.data))
}

// Grow implements Memory.
func (m *BufferMemory) Grow(pages uint32) bool {
	m.data = append(m.data, make([]byte, pages*WasmPageSize)...)
	return true
}
