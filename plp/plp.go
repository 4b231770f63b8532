// Package plp contains the parser and code generator for the PL/0
// compiler.
//
// The parser obtains symbols (tokens) through a pls.Cursor, uses plb for
// the symbol table, and emits stack machine code through a plg.Emitter.
// Parsing, name resolution, and emission happen in a single pass over the
// token sequence; forward jump targets are patched in place as soon as the
// destination index is known. Each non-terminal of the grammar is one
// method returning 0 on success or a numeric error code; the first non-zero
// code unwinds the whole parse.
package plp

import (
	"io"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/fzipp/pl0-compiler/plb"
	"github.com/fzipp/pl0-compiler/plg"
	"github.com/fzipp/pl0-compiler/pls"
)

// Parser holds the shared mutable state of one generation run: the token
// cursor, the symbol table, the emitter, the current lexical level, and the
// current scope. A Parser serves a single run and is discarded afterwards;
// no state persists across runs.
type Parser struct {
	cur   *pls.Cursor
	tbl   *plb.Table
	gen   *plg.Emitter
	level int32
	scope *plb.Symbol // nil is the global scope
}

func newParser(tokens []pls.Token) *Parser {
	return &Parser{
		cur: pls.NewCursor(tokens),
		tbl: plb.NewTable(),
		gen: plg.NewEmitter(plg.MaxCode),
	}
}

// Compile parses the token sequence and returns the generated instruction
// vector. The first error aborts the whole parse and no code is returned.
func Compile(tokens []pls.Token) (code []plg.Instruction, err error) {
	defer func() {
		if r := recover(); r != nil {
			if r != plg.ErrCodeTooLong {
				panic(r)
			}
			code, err = nil, plg.ErrCodeTooLong
		}
	}()
	p := newParser(tokens)
	if n := p.program(); n != 0 {
		return nil, &Error{Code: n}
	}
	log.Debugf("generated %d instructions for %d symbols", len(p.gen.Code()), p.tbl.Len())
	return p.gen.Code(), nil
}

// Generate compiles the token sequence and writes the instruction listing
// to w. Nothing is written to w when generation fails.
func Generate(tokens []pls.Token, w io.Writer) error {
	code, err := Compile(tokens)
	if err != nil {
		return err
	}
	return plg.WriteListing(w, code)
}

func (p *Parser) next() {
	p.cur.Next()
}

func (p *Parser) lookup() *plb.Symbol {
	return p.tbl.Lookup(p.cur.Peek().Lexeme, p.scope)
}

// Program = Block "."
func (p *Parser) program() int {
	if n := p.block(); n != 0 {
		return n
	}
	if p.cur.Sym() != pls.SymPeriod {
		return errNoPeriod
	}
	p.next()
	p.gen.Put(plg.SioHalt, 0, 0, 3)
	return 0
}

// Block = [ ConstDecl ] [ VarDecl ] { ProcDecl } Statement
//
// The leading jump skips the bodies of nested procedures so that entering
// the block falls through to its own statement. Its target is unknown until
// the declarations have been parsed, so it is emitted as a placeholder and
// patched afterwards.
func (p *Parser) block() int {
	jmp := p.gen.Put(plg.JMP, 0, 0, 0)
	slot := int32(4) // first free frame slot past the activation record header
	if p.cur.Sym() == pls.SymConst {
		if n := p.constDeclaration(); n != 0 {
			return n
		}
	}
	if p.cur.Sym() == pls.SymVar {
		if n := p.varDeclaration(&slot); n != 0 {
			return n
		}
	}
	if p.cur.Sym() == pls.SymProcedure {
		if n := p.procDeclaration(); n != 0 {
			return n
		}
	}
	p.gen.FixHere(jmp)
	p.gen.Put(plg.INC, 0, 0, 4)
	if n := p.statement(); n != 0 {
		return n
	}
	p.gen.Put(plg.RTN, 0, 0, 0)
	return 0
}

// ConstDecl = "const" ident "=" number { "," ident "=" number } ";"
func (p *Parser) constDeclaration() int {
	for {
		p.next() // const or comma
		if p.cur.Sym() != pls.SymIdent {
			return errNoIdent
		}
		sym := &plb.Symbol{
			Name:  p.cur.Peek().Lexeme,
			Class: plb.ClassConst,
			Lev:   p.level,
			Scope: p.scope,
		}
		p.next()
		if p.cur.Sym() != pls.SymEql {
			return errNoEql
		}
		p.next()
		if p.cur.Sym() != pls.SymNumber {
			return errNoNumber
		}
		val, err := strconv.ParseInt(p.cur.Peek().Lexeme, 10, 32)
		if err != nil {
			return errNoNumber
		}
		sym.Val = int32(val)
		p.tbl.Insert(sym)
		p.next()
		if p.cur.Sym() != pls.SymComma {
			break
		}
	}
	if p.cur.Sym() != pls.SymSemicolon {
		return errNoSemicolon
	}
	p.next()
	return 0
}

// VarDecl = "var" ident { "," ident } ";"
//
// Each variable is assigned the next free slot of the enclosing block's
// frame, and the frame is extended by one with INC.
func (p *Parser) varDeclaration(slot *int32) int {
	for {
		p.next() // var or comma
		if p.cur.Sym() != pls.SymIdent {
			return errNoIdent
		}
		p.tbl.Insert(&plb.Symbol{
			Name:  p.cur.Peek().Lexeme,
			Class: plb.ClassVar,
			Lev:   p.level,
			Scope: p.scope,
			Adr:   *slot,
		})
		*slot++
		p.gen.Put(plg.INC, 0, 0, 1)
		p.next()
		if p.cur.Sym() != pls.SymComma {
			break
		}
	}
	if p.cur.Sym() != pls.SymSemicolon {
		return errNoSemicolon
	}
	p.next()
	return 0
}

// ProcDecl = "procedure" ident ";" Block ";"
//
// The procedure's symbol records the next emission index as its entry
// point. Its body is parsed one level deeper with the current scope set to
// the procedure's own symbol, and both are restored on return.
func (p *Parser) procDeclaration() int {
	for p.cur.Sym() == pls.SymProcedure {
		p.next()
		if p.cur.Sym() != pls.SymIdent {
			return errNoIdent
		}
		sym := &plb.Symbol{
			Name:  p.cur.Peek().Lexeme,
			Class: plb.ClassProc,
			Lev:   p.level,
			Scope: p.scope,
			Adr:   p.gen.Here(),
		}
		p.tbl.Insert(sym)
		p.next()
		if p.cur.Sym() != pls.SymSemicolon {
			return errNoProcSemicolon
		}
		p.next()
		outer := p.scope
		p.scope = sym
		p.level++
		n := p.block()
		p.level--
		p.scope = outer
		if n != 0 {
			return n
		}
		if p.cur.Sym() != pls.SymSemicolon {
			return errNoProcSemicolon
		}
		p.next()
	}
	return 0
}

// Statement = [ ident ":=" Expression | "call" ident
//             | "begin" Statement { ";" Statement } "end"
//             | "if" Condition "then" Statement [ "else" Statement ]
//             | "while" Condition "do" Statement
//             | "read" ident | "write" ident ]
func (p *Parser) statement() int {
	switch p.cur.Sym() {
	case pls.SymIdent:
		sym := p.lookup()
		if sym == nil {
			return errUndeclared
		}
		if sym.Class != plb.ClassVar {
			return errAssignToNonVar
		}
		p.next()
		if p.cur.Sym() != pls.SymBecomes {
			return errNoBecomes
		}
		p.next()
		if n := p.expression(); n != 0 {
			return n
		}
		p.gen.Put(plg.STO, 0, p.level-sym.Lev, sym.Adr)
	case pls.SymCall:
		p.next()
		if p.cur.Sym() != pls.SymIdent {
			return errNoCallIdent
		}
		sym := p.lookup()
		if sym == nil {
			return errUndeclared
		}
		if sym.Class != plb.ClassProc {
			return errCallOfNonProc
		}
		p.gen.Put(plg.CAL, 0, p.level-sym.Lev, sym.Adr)
		p.next()
	case pls.SymBegin:
		p.next()
		if n := p.statement(); n != 0 {
			return n
		}
		for p.cur.Sym() == pls.SymSemicolon {
			p.next()
			if n := p.statement(); n != 0 {
				return n
			}
		}
		if p.cur.Sym() != pls.SymEnd {
			return errNoEnd
		}
		p.next()
	case pls.SymIf:
		p.next()
		if n := p.condition(); n != 0 {
			return n
		}
		if p.cur.Sym() != pls.SymThen {
			return errNoThen
		}
		p.next()
		jpc := p.gen.Put(plg.JPC, 0, 0, 0)
		if n := p.statement(); n != 0 {
			return n
		}
		if p.cur.Sym() == pls.SymElse {
			jmp := p.gen.Put(plg.JMP, 0, 0, 0)
			p.gen.FixHere(jpc) // false branch enters the else part
			p.next()
			if n := p.statement(); n != 0 {
				return n
			}
			p.gen.FixHere(jmp)
		} else {
			p.gen.FixHere(jpc)
		}
	case pls.SymWhile:
		top := p.gen.Here()
		p.next()
		if n := p.condition(); n != 0 {
			return n
		}
		jpc := p.gen.Put(plg.JPC, 0, 0, 0)
		if p.cur.Sym() != pls.SymDo {
			return errNoDo
		}
		p.next()
		if n := p.statement(); n != 0 {
			return n
		}
		p.gen.Put(plg.JMP, 0, 0, top)
		p.gen.FixHere(jpc)
	case pls.SymRead:
		p.gen.Put(plg.SioRead, 0, 0, 0)
		p.next()
		if p.cur.Sym() != pls.SymIdent {
			return errNoIdent
		}
		sym := p.lookup()
		if sym == nil {
			return errUndeclared
		}
		if sym.Class != plb.ClassVar {
			return errReadIntoNonVar
		}
		p.next()
		p.gen.Put(plg.STO, 0, p.level-sym.Lev, sym.Adr)
	case pls.SymWrite:
		p.next()
		if p.cur.Sym() != pls.SymIdent {
			return errNoIdent
		}
		sym := p.lookup()
		if sym == nil {
			return errUndeclared
		}
		switch sym.Class {
		case plb.ClassProc:
			return errWriteOfProc
		case plb.ClassConst:
			p.gen.Put(plg.LIT, 0, 0, sym.Val)
		default:
			p.gen.Put(plg.LOD, 0, p.level-sym.Lev, sym.Adr)
		}
		p.gen.Put(plg.SioWrite, 0, 0, 0)
		p.next()
	}
	// empty statement: no opening token matched
	return 0
}

// Condition = "odd" Expression | Expression RelOp Expression
//
// Both operands are emitted before the relational opcode, so conditions
// evaluate in the same postfix order as expressions.
func (p *Parser) condition() int {
	if p.cur.Sym() == pls.SymOdd {
		p.next()
		if n := p.expression(); n != 0 {
			return n
		}
		p.gen.Put(plg.ODD, 0, 0, 0)
		return 0
	}
	if n := p.expression(); n != 0 {
		return n
	}
	var op plg.Opcode
	switch p.cur.Sym() {
	case pls.SymEql:
		op = plg.EQL
	case pls.SymNeq:
		op = plg.NEQ
	case pls.SymLss:
		op = plg.LSS
	case pls.SymLeq:
		op = plg.LEQ
	case pls.SymGtr:
		op = plg.GTR
	case pls.SymGeq:
		op = plg.GEQ
	default:
		return errNoRelOp
	}
	p.next()
	if n := p.expression(); n != 0 {
		return n
	}
	p.gen.Put(op, 0, 0, 0)
	return 0
}

// Expression = [ "+" | "-" ] Term { ("+"|"-") Term }
func (p *Parser) expression() int {
	sign := p.cur.Sym()
	if sign == pls.SymPlus || sign == pls.SymMinus {
		p.next()
	}
	if n := p.term(); n != 0 {
		return n
	}
	if sign == pls.SymMinus {
		p.gen.Put(plg.NEG, 0, 0, 0)
	}
	for p.cur.Sym() == pls.SymPlus || p.cur.Sym() == pls.SymMinus {
		op := p.cur.Sym()
		p.next()
		if n := p.term(); n != 0 {
			return n
		}
		if op == pls.SymPlus {
			p.gen.Put(plg.ADD, 0, 0, 0)
		} else {
			p.gen.Put(plg.SUB, 0, 0, 0)
		}
	}
	return 0
}

// Term = Factor { ("*"|"/") Factor }
func (p *Parser) term() int {
	if n := p.factor(); n != 0 {
		return n
	}
	for p.cur.Sym() == pls.SymTimes || p.cur.Sym() == pls.SymSlash {
		op := p.cur.Sym()
		p.next()
		if n := p.factor(); n != 0 {
			return n
		}
		if op == pls.SymTimes {
			p.gen.Put(plg.MUL, 0, 0, 0)
		} else {
			p.gen.Put(plg.DIV, 0, 0, 0)
		}
	}
	return 0
}

// Factor = ident | number | "(" Expression ")"
//
// Constants fold to a LIT at the use site; variables load with their level
// difference and frame slot.
func (p *Parser) factor() int {
	switch p.cur.Sym() {
	case pls.SymIdent:
		sym := p.lookup()
		if sym == nil {
			return errUndeclared
		}
		switch sym.Class {
		case plb.ClassProc:
			return errBadFactor
		case plb.ClassConst:
			p.gen.Put(plg.LIT, 0, 0, sym.Val)
		default:
			p.gen.Put(plg.LOD, 0, p.level-sym.Lev, sym.Adr)
		}
		p.next()
	case pls.SymNumber:
		val, err := strconv.ParseInt(p.cur.Peek().Lexeme, 10, 32)
		if err != nil {
			return errBadFactor
		}
		p.gen.Put(plg.LIT, 0, 0, int32(val))
		p.next()
	case pls.SymLparen:
		p.next()
		if n := p.expression(); n != 0 {
			return n
		}
		if p.cur.Sym() != pls.SymRparen {
			return errNoRparen
		}
		p.next()
	default:
		return errBadFactor
	}
	return 0
}
