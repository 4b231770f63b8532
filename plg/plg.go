// Package plg contains the instruction model and emitter for the PL/0
// compiler.
//
// Instructions are records of four integers "op r l m" for an abstract
// stack machine; the emitter appends them to a bounded code store and
// rewrites jump operands in place once forward targets are known.
package plg

import (
	"errors"
	"fmt"
	"io"
)

type Opcode int32

// opcode values are fixed by the stack machine's contract
const (
	LIT Opcode = 1 + iota // push immediate
	LOD                   // load variable from frame
	STO                   // store to variable in frame
	CAL                   // call procedure
	JPC                   // jump if top of stack is zero
	INC                   // extend frame
	JMP                   // unconditional jump
	RTN                   // return from procedure
	SioWrite
	SioRead
	SioHalt
	NEG
	ADD
	SUB
	MUL
	DIV
	ODD
	EQL
	NEQ
	LSS
	LEQ
	GTR
	GEQ
)

var opNames = [...]string{
	LIT:      "LIT",
	LOD:      "LOD",
	STO:      "STO",
	CAL:      "CAL",
	JPC:      "JPC",
	INC:      "INC",
	JMP:      "JMP",
	RTN:      "RTN",
	SioWrite: "SIO_WRITE",
	SioRead:  "SIO_READ",
	SioHalt:  "SIO_HALT",
	NEG:      "NEG",
	ADD:      "ADD",
	SUB:      "SUB",
	MUL:      "MUL",
	DIV:      "DIV",
	ODD:      "ODD",
	EQL:      "EQL",
	NEQ:      "NEQ",
	LSS:      "LSS",
	LEQ:      "LEQ",
	GTR:      "GTR",
	GEQ:      "GEQ",
}

func (op Opcode) String() string {
	if op > 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("opcode %d", int32(op))
}

// Instruction is one stack machine instruction. R is a register id, always
// 0 here; L is a lexical level difference; M is an operand: literal,
// address, or jump target.
type Instruction struct {
	Op      Opcode
	R, L, M int32
}

// MaxCode is the capacity of the code store.
const MaxCode = 500

// ErrCodeTooLong is the panic value raised when the code store overflows.
// The overflow is fatal to the whole generation run.
var ErrCodeTooLong = errors.New("plg: maximum code length exceeded")

// Emitter assembles the instruction vector. Indices are dense and assigned
// monotonically in emission order starting at 0. Emitted instructions stay
// addressable so that jump targets can be patched in place; slots are never
// removed.
type Emitter struct {
	code  []Instruction
	limit int
}

func NewEmitter(limit int) *Emitter {
	return &Emitter{limit: limit}
}

// Put appends one instruction and returns its index. If the code store is
// full it panics with ErrCodeTooLong.
func (e *Emitter) Put(op Opcode, r, l, m int32) int32 {
	if len(e.code) >= e.limit {
		panic(ErrCodeTooLong)
	}
	e.code = append(e.code, Instruction{Op: op, R: r, L: l, M: m})
	return int32(len(e.code)) - 1
}

// Fix rewrites the operand of the already emitted instruction at index at.
func (e *Emitter) Fix(at, m int32) {
	e.code[at].M = m
}

// FixHere patches the jump at index at to the next emission index.
func (e *Emitter) FixHere(at int32) {
	e.Fix(at, e.Here())
}

// Here returns the index that the next emitted instruction will get.
func (e *Emitter) Here() int32 {
	return int32(len(e.code))
}

// Code returns the emitted instructions.
func (e *Emitter) Code() []Instruction {
	return e.code
}

// WriteListing writes code to w, one instruction per line, as four space
// separated decimal integers "op r l m".
func WriteListing(w io.Writer, code []Instruction) error {
	for _, ins := range code {
		_, err := fmt.Fprintf(w, "%d %d %d %d\n", int32(ins.Op), ins.R, ins.L, ins.M)
		if err != nil {
			return err
		}
	}
	return nil
}
