package ribosome

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
)

// defaultHeapBase is used when a module does not export __heap_base.
const defaultHeapBase = 2 * WasmPageSize

// Module is a compiled sandbox module. Each Call instantiates a fresh
// instance, so a trap can never corrupt state outside its own execution
// context.
type Module struct {
	engine *wasmer.Engine
	store  *wasmer.Store
	module *wasmer.Module
}

// Compile compiles WASM bytecode into a reusable module.
func Compile(code []byte) (*Module, error) {
	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	module, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSandboxViolation, "compiling module", err)
	}
	return &Module{engine: engine, store: store, module: module}, nil
}

// wasmerMemory adapts a live instance memory to the Memory interface.
type wasmerMemory struct {
	mem *wasmer.Memory
}

func (m *wasmerMemory) Read(offset, length uint32) ([]byte, error) {
	data := m.mem.Data()
	end := uint64(offset) + uint64(length)
	if end > uint64(len(data)) {
		return nil, types.NewError(types.ErrCodeSandboxViolation, "memory read out of bounds")
	}
	out := make([]byte, length)
	copy(out, data[offset:end])
	return out, nil
}

func (m *wasmerMemory) Write(offset uint32, data []byte) error {
	mem := m.mem.Data()
	end := uint64(offset) + uint64(len(data))
	if end > uint64(len(mem)) {
		return types.NewError(types.ErrCodeSandboxViolation, "memory write out of bounds")
	}
	copy(mem[offset:end], data)
	return nil
}

func (m *wasmerMemory) Size() uint32 {
	return uint32(m.mem.DataSize())
}

func (m *wasmerMemory) Grow(pages uint32) bool {
	return m.mem.Grow(wasmer.Pages(pages))
}

// runtimeHolder late-binds the runtime: host import closures are built before
// instantiation, the runtime only after the instance memory exists.
type runtimeHolder struct {
	rt *Runtime
}

// Call instantiates the module and invokes the named export with the given
// payload, marshaled through the allocation-handle convention. The table
// provides the host functions the sandbox may call.
func (m *Module) Call(fnName string, payload []byte, table *Table, data CallData, logger *utils.Logger) ([]byte, error) {
	if logger == nil {
		logger = utils.DefaultLogger("ribosome")
	}

	holder := &runtimeHolder{}
	importObject := wasmer.NewImportObject()
	imports := make(map[string]wasmer.IntoExtern, int(fnCount))
	for i := FnIndex(0); i < fnCount; i++ {
		index := uint32(i)
		imports[fnNames[i]] = wasmer.NewFunction(
			m.store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I64), wasmer.NewValueTypes(wasmer.I64)),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				if holder.rt == nil {
					return nil, types.NewError(types.ErrCodeSandboxViolation, "host call before instantiation")
				}
				result, err := table.Invoke(holder.rt, index, EncodedValue(uint64(args[0].I64())))
				if err != nil {
					// Returning an error traps the instance: fatal to this
					// execution context only.
					return nil, err
				}
				return []wasmer.Value{wasmer.NewI64(int64(uint64(result)))}, nil
			},
		)
	}
	importObject.Register("env", imports)

	instance, err := wasmer.NewInstance(m.module, importObject)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSandboxViolation, "instantiating module", err)
	}

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSandboxViolation, "module exports no memory", err)
	}

	base := uint32(defaultHeapBase)
	if global, err := instance.Exports.GetGlobal("__heap_base"); err == nil {
		if raw, err := global.Get(); err == nil {
			switch v := raw.(type) {
			case int32:
				base = uint32(v)
			case int64:
				base = uint32(v)
			}
		}
	}

	holder.rt = NewRuntime(&wasmerMemory{mem: mem}, base, data, logger)

	arg := EncodedSuccess
	if len(payload) > 0 {
		alloc, err := holder.rt.Allocator.Write(payload)
		if err != nil {
			return nil, err
		}
		arg, err = EncodeAllocation(alloc)
		if err != nil {
			return nil, err
		}
	}

	fn, err := instance.Exports.GetFunction(fnName)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSandboxViolation,
			fmt.Sprintf("module exports no function %q", fnName), err)
	}

	raw, err := fn(int64(uint64(arg)))
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSandboxViolation, "sandbox trapped", err)
	}

	ret, ok := raw.(int64)
	if !ok {
		return nil, types.NewError(types.ErrCodeSandboxViolation, "sandbox returned a non-scalar result")
	}

	encoded := EncodedValue(uint64(ret))
	if encoded.IsSuccess() {
		return nil, nil
	}
	if code, failed := encoded.Failure(); failed {
		return nil, types.NewError(types.ErrCodeRibosomeFailure, code.String())
	}
	alloc, _ := encoded.Allocation()
	return holder.rt.Allocator.ReadTerminated(alloc)
}
