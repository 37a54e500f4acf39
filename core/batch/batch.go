package batch

import "solation/core/types"

// Instruction is one operation in an atomic batch. ProgramID names the
// primitive that interprets Data.
type Instruction struct {
	ProgramID types.Address `json:"programId"`
	Data      []byte        `json:"data"`
}

// Batch is the ordered list of instructions submitted together. Primitives
// bundled in the same batch may be introspected by the operation that
// executes alongside them.
type Batch []Instruction

// At returns the instruction at index i.
func (b Batch) At(i int) (Instruction, bool) {
	if i < 0 || i >= len(b) {
		return Instruction{}, false
	}
	return b[i], true
}
