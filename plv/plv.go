// Package plv contains the stack machine that executes code emitted by the
// PL/0 compiler.
//
// The machine interprets the instruction vector against a fixed evaluation
// stack. Each procedure call pushes an activation record whose four slot
// header holds the functional value, the static link, the dynamic link, and
// the return address; the static link chain is walked to resolve the
// lexical level difference carried by LOD, STO, and CAL.
package plv

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/fzipp/pl0-compiler/plg"
)

const (
	maxStack = 2000
	maxSteps = 1 << 22
)

var (
	ErrStackOverflow = errors.New("plv: stack overflow")
	ErrDivByZero     = errors.New("plv: division by zero")
	ErrBadJump       = errors.New("plv: jump target outside code")
	ErrBadOpcode     = errors.New("plv: illegal opcode")
	ErrStepLimit     = errors.New("plv: step limit exceeded")
	ErrInput         = errors.New("plv: integer input expected")
)

// Machine executes one instruction vector. Input for SIO_READ is scanned
// as whitespace separated decimal integers from in; SIO_WRITE prints one
// integer per line to out.
type Machine struct {
	code []plg.Instruction
	in   *bufio.Reader
	out  io.Writer

	stack      [maxStack]int32
	pc, bp, sp int32
}

func New(code []plg.Instruction, in io.Reader, out io.Writer) *Machine {
	return &Machine{
		code: code,
		in:   bufio.NewReader(in),
		out:  out,
		bp:   1,
	}
}

// base follows the static link chain l levels down from the current frame.
func (m *Machine) base(l int32) int32 {
	b := m.bp
	for l > 0 {
		b = m.stack[b+1]
		l--
	}
	return b
}

func (m *Machine) push(v int32) error {
	if m.sp >= maxStack-1 {
		return ErrStackOverflow
	}
	m.sp++
	m.stack[m.sp] = v
	return nil
}

// Run interprets the code until SIO_HALT or until a return unwinds the
// outermost frame.
func (m *Machine) Run() error {
	steps := 0
	for {
		if steps++; steps > maxSteps {
			return ErrStepLimit
		}
		if m.pc < 0 || int(m.pc) >= len(m.code) {
			return fmt.Errorf("%w: %d", ErrBadJump, m.pc)
		}
		ins := m.code[m.pc]
		m.pc++
		switch ins.Op {
		case plg.LIT:
			if err := m.push(ins.M); err != nil {
				return err
			}
		case plg.LOD:
			if err := m.push(m.stack[m.base(ins.L)+ins.M]); err != nil {
				return err
			}
		case plg.STO:
			m.stack[m.base(ins.L)+ins.M] = m.stack[m.sp]
			m.sp--
		case plg.CAL:
			if m.sp+4 >= maxStack-1 {
				return ErrStackOverflow
			}
			m.stack[m.sp+1] = 0 // functional value
			m.stack[m.sp+2] = m.base(ins.L)
			m.stack[m.sp+3] = m.bp
			m.stack[m.sp+4] = m.pc
			m.bp = m.sp + 1
			m.pc = ins.M
		case plg.INC:
			if m.sp+ins.M >= maxStack-1 {
				return ErrStackOverflow
			}
			m.sp += ins.M
		case plg.JMP:
			m.pc = ins.M
		case plg.JPC:
			if m.stack[m.sp] == 0 {
				m.pc = ins.M
			}
			m.sp--
		case plg.RTN:
			m.sp = m.bp - 1
			m.pc = m.stack[m.sp+4]
			m.bp = m.stack[m.sp+3]
			if m.bp == 0 {
				// the outermost frame returned
				log.Debugf("machine halted after %d steps", steps)
				return nil
			}
		case plg.SioWrite:
			_, err := fmt.Fprintln(m.out, m.stack[m.sp])
			if err != nil {
				return err
			}
			m.sp--
		case plg.SioRead:
			var v int32
			if _, err := fmt.Fscan(m.in, &v); err != nil {
				return fmt.Errorf("%w: %v", ErrInput, err)
			}
			if err := m.push(v); err != nil {
				return err
			}
		case plg.SioHalt:
			log.Debugf("machine halted after %d steps", steps)
			return nil
		case plg.NEG:
			m.stack[m.sp] = -m.stack[m.sp]
		case plg.ADD:
			m.sp--
			m.stack[m.sp] += m.stack[m.sp+1]
		case plg.SUB:
			m.sp--
			m.stack[m.sp] -= m.stack[m.sp+1]
		case plg.MUL:
			m.sp--
			m.stack[m.sp] *= m.stack[m.sp+1]
		case plg.DIV:
			if m.stack[m.sp] == 0 {
				return ErrDivByZero
			}
			m.sp--
			m.stack[m.sp] /= m.stack[m.sp+1]
		case plg.ODD:
			m.stack[m.sp] &= 1
		case plg.EQL:
			m.sp--
			m.stack[m.sp] = boolVal(m.stack[m.sp] == m.stack[m.sp+1])
		case plg.NEQ:
			m.sp--
			m.stack[m.sp] = boolVal(m.stack[m.sp] != m.stack[m.sp+1])
		case plg.LSS:
			m.sp--
			m.stack[m.sp] = boolVal(m.stack[m.sp] < m.stack[m.sp+1])
		case plg.LEQ:
			m.sp--
			m.stack[m.sp] = boolVal(m.stack[m.sp] <= m.stack[m.sp+1])
		case plg.GTR:
			m.sp--
			m.stack[m.sp] = boolVal(m.stack[m.sp] > m.stack[m.sp+1])
		case plg.GEQ:
			m.sp--
			m.stack[m.sp] = boolVal(m.stack[m.sp] >= m.stack[m.sp+1])
		default:
			return fmt.Errorf("%w: %d at %d", ErrBadOpcode, int32(ins.Op), m.pc-1)
		}
	}
}

func boolVal(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
