// Package pls contains the lexical scanner for the PL/0 compiler.
package pls

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const IdLen = 32

// Scanner does lexical analysis. Input is PL/0 source text, output is a
// sequence of symbols, i.e. identifiers, numbers, and special symbols.
// Recognises all PL/0 keywords. The keywords are recorded in a table (map).
// Get delivers the next symbol from input text with Reader r, or SymNull at
// the end of the text.
// Mark records an error and delivers an error message with Writer w.
// If Get delivers SymIdent or SymNumber, then the lexeme is in field Id.
type Scanner struct {
	// results of Get
	Id     string
	ErrCnt int

	ch     byte // last character read
	eot    bool
	errPos int
	pos    int
	r      io.ByteReader
	w      io.Writer
}

func NewScanner(r io.Reader, w io.Writer) *Scanner {
	return &Scanner{
		r: bufio.NewReader(r),
		w: w,
	}
}

func (s *Scanner) Pos() int {
	return s.pos - 1
}

func (s *Scanner) Mark(msg string) {
	p := s.Pos()
	if p > s.errPos && s.ErrCnt < 25 {
		_, err := fmt.Fprintf(s.w, "\n  pos %d %s", p, msg)
		if err != nil {
			panic(err)
		}
	}
	s.ErrCnt++
	s.errPos = p + 4
}

func (s *Scanner) nextCh() {
	var err error
	s.ch, err = s.r.ReadByte()
	s.pos++
	if err != nil {
		if err == io.EOF {
			s.eot = true
			return
		}
		panic(err)
	}
}

func isLetter(ch byte) bool {
	return ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func (s *Scanner) identifier() (sym Sym) {
	var buf strings.Builder
	for {
		if buf.Len() < IdLen-1 {
			buf.WriteByte(s.ch)
		}
		s.nextCh()
		if s.eot || !isLetter(s.ch) && !isDigit(s.ch) {
			break
		}
	}
	s.Id = buf.String()
	// lookup keyword
	if kwSym, ok := keyTab[s.Id]; ok {
		sym = kwSym
	} else {
		sym = SymIdent
	}
	return sym
}

func (s *Scanner) number() Sym {
	var buf strings.Builder
	for {
		buf.WriteByte(s.ch)
		s.nextCh()
		if s.eot || !isDigit(s.ch) {
			break
		}
	}
	s.Id = buf.String()
	return SymNumber
}

// Get delivers the next symbol from the input text. At the end of the text
// it delivers SymNull.
func (s *Scanner) Get() (sym Sym) {
	for {
		for !s.eot && s.ch <= ' ' {
			s.nextCh()
		}
		if s.eot {
			return SymNull
		}
		if isLetter(s.ch) {
			return s.identifier()
		}
		if isDigit(s.ch) {
			return s.number()
		}
		switch s.ch {
		case '+':
			s.nextCh()
			return SymPlus
		case '-':
			s.nextCh()
			return SymMinus
		case '*':
			s.nextCh()
			return SymTimes
		case '/':
			s.nextCh()
			return SymSlash
		case '(':
			s.nextCh()
			return SymLparen
		case ')':
			s.nextCh()
			return SymRparen
		case '=':
			s.nextCh()
			return SymEql
		case ',':
			s.nextCh()
			return SymComma
		case ';':
			s.nextCh()
			return SymSemicolon
		case '.':
			s.nextCh()
			return SymPeriod
		case '<':
			s.nextCh()
			if s.ch == '=' {
				s.nextCh()
				return SymLeq
			}
			if s.ch == '>' {
				s.nextCh()
				return SymNeq
			}
			return SymLss
		case '>':
			s.nextCh()
			if s.ch == '=' {
				s.nextCh()
				return SymGeq
			}
			return SymGtr
		case ':':
			s.nextCh()
			if s.ch == '=' {
				s.nextCh()
				return SymBecomes
			}
			s.Mark("'=' expected after ':'")
		default:
			s.Mark("illegal character")
			s.nextCh()
		}
	}
}

// Tokenize scans the whole source text read from r and returns its token
// sequence. Lexical error messages go to w; a non-nil error reports their
// count.
func Tokenize(r io.Reader, w io.Writer) ([]Token, error) {
	s := NewScanner(r, w)
	var toks []Token
	for {
		sym := s.Get()
		if sym == SymNull {
			break
		}
		t := Token{Sym: sym}
		if sym == SymIdent || sym == SymNumber {
			t.Lexeme = s.Id
		}
		toks = append(toks, t)
	}
	if s.ErrCnt != 0 {
		return toks, fmt.Errorf("%d lexical errors", s.ErrCnt)
	}
	return toks, nil
}
