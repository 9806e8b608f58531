package state

import (
	"github.com/samrose/conductor/core/nucleus"
	"github.com/samrose/conductor/core/utils"
)

// NucleusState is the application slice: the DNA manifest this instance runs.
type NucleusState struct {
	dna *nucleus.DNA
}

// NewNucleusState creates the empty slice.
func NewNucleusState() *NucleusState {
	return &NucleusState{}
}

// Dna is nil until the application is initialized.
func (s *NucleusState) Dna() *nucleus.DNA {
	return s.dna
}

func reduceNucleus(s *NucleusState, aw ActionWrapper, _ *utils.Logger) *NucleusState {
	if aw.Action.Kind != ActionInitApplication {
		return s
	}
	return &NucleusState{dna: aw.Action.Dna}
}
