package nucleus

import (
	"encoding/json"
	"fmt"

	"github.com/samrose/conductor/core/ribosome"
	"github.com/samrose/conductor/core/types"
	"github.com/samrose/conductor/core/utils"
)

// Validator is the pluggable validation predicate. A nil return accepts the
// entry; rejection is a VALIDATION_FAILED error carrying the reason.
type Validator interface {
	Validate(entry types.Entry, data types.ValidationData) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(entry types.Entry, data types.ValidationData) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(entry types.Entry, data types.ValidationData) error {
	return f(entry, data)
}

// AcceptAll accepts every entry. Used for apps without validation rules and
// in tests.
func AcceptAll() Validator {
	return ValidatorFunc(func(types.Entry, types.ValidationData) error {
		return nil
	})
}

// RejectAll rejects every application entry with the given reason.
func RejectAll(reason string) Validator {
	return ValidatorFunc(func(entry types.Entry, _ types.ValidationData) error {
		if entry.Type.IsSystem() {
			return nil
		}
		return types.ValidationFailed(reason)
	})
}

// validateEntryFn is the export every zome module must provide.
const validateEntryFn = "validate_entry"

// validationArgs is the JSON payload handed to the sandboxed validation rule.
type validationArgs struct {
	Entry          types.Entry          `json:"entry"`
	ValidationData types.ValidationData `json:"validation_data"`
}

// validationVerdict is the sandboxed rule's answer. A success sentinel with
// no payload is also treated as acceptance.
type validationVerdict struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// WasmValidator runs validation rules inside the zome bytecode declared by
// the DNA manifest. Validation runs in a restricted execution context: only
// the debug host function is bound.
type WasmValidator struct {
	dna     *DNA
	modules map[string]*ribosome.Module
	table   *ribosome.Table
	logger  *utils.Logger
}

// NewWasmValidator compiles every zome module of the manifest.
func NewWasmValidator(dna *DNA, logger *utils.Logger) (*WasmValidator, error) {
	if logger == nil {
		logger = utils.DefaultLogger("nucleus")
	}
	modules := make(map[string]*ribosome.Module, len(dna.Zomes))
	for name, zome := range dna.Zomes {
		if len(zome.Code) == 0 {
			continue
		}
		module, err := ribosome.Compile(zome.Code)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeSandboxViolation,
				fmt.Sprintf("compiling zome %q", name), err)
		}
		modules[name] = module
	}

	table := ribosome.NewTable(map[ribosome.FnIndex]ribosome.HostFunc{
		ribosome.FnDebug: func(r *ribosome.Runtime, arg ribosome.EncodedValue) (ribosome.EncodedValue, error) {
			payload, err := r.ReadArg(arg)
			if err != nil {
				return ribosome.EncodeFailure(ribosome.FailureArgumentDeserialization), nil
			}
			logger.Debug("zome", utils.String("msg", string(payload)))
			return ribosome.EncodedSuccess, nil
		},
	})

	return &WasmValidator{dna: dna, modules: modules, table: table, logger: logger}, nil
}

// Validate implements Validator. System entries carry no app rule and are
// accepted; application entries are judged by their declaring zome.
func (v *WasmValidator) Validate(entry types.Entry, data types.ValidationData) error {
	if entry.Type.IsSystem() {
		return nil
	}

	zomeName, _, ok := v.dna.ZomeForEntryType(entry.Type)
	if !ok {
		return types.ValidationFailed(fmt.Sprintf("unknown entry type %q", entry.Type))
	}
	module, ok := v.modules[zomeName]
	if !ok {
		// Zome declares the type but ships no code: nothing to check.
		return nil
	}

	payload, err := json.Marshal(validationArgs{Entry: entry, ValidationData: data})
	if err != nil {
		return types.WrapError(types.ErrCodeSerialization, "marshaling validation args", err)
	}

	result, err := module.Call(validateEntryFn, payload, v.table, ribosome.CallData{
		DnaName:  v.dna.Name,
		Zome:     zomeName,
		Function: validateEntryFn,
	}, v.logger)
	if err != nil {
		if types.IsCode(err, types.ErrCodeRibosomeFailure) {
			return types.ValidationFailed(err.Error())
		}
		return err
	}
	if len(result) == 0 {
		return nil
	}

	var verdict validationVerdict
	if err := json.Unmarshal(result, &verdict); err != nil {
		return types.WrapError(types.ErrCodeSerialization, "parsing validation verdict", err)
	}
	if !verdict.Valid {
		return types.ValidationFailed(verdict.Reason)
	}
	return nil
}
