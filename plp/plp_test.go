package plp

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fzipp/pl0-compiler/plg"
	"github.com/fzipp/pl0-compiler/pls"
)

func tokenize(t *testing.T, src string) []pls.Token {
	t.Helper()
	tokens, err := pls.Tokenize(strings.NewReader(src), io.Discard)
	require.NoError(t, err)
	return tokens
}

func compile(t *testing.T, src string) []plg.Instruction {
	t.Helper()
	code, err := Compile(tokenize(t, src))
	require.NoError(t, err)
	return code
}

func ins(op plg.Opcode, l, m int32) plg.Instruction {
	return plg.Instruction{Op: op, L: l, M: m}
}

func TestMinimalProgram(t *testing.T) {
	code := compile(t, "var x ; x := 0 .")
	want := []plg.Instruction{
		ins(plg.JMP, 0, 2),     // skip the declaration section
		ins(plg.INC, 0, 1),     // var x
		ins(plg.INC, 0, 4),     // activation record header
		ins(plg.LIT, 0, 0),     // right-hand side
		ins(plg.STO, 0, 4),     // x lives in the first slot past the header
		ins(plg.RTN, 0, 0),
		ins(plg.SioHalt, 0, 3),
	}
	assert.Equal(t, want, code)
}

func TestEmptyProgram(t *testing.T) {
	code := compile(t, ".")
	want := []plg.Instruction{
		ins(plg.JMP, 0, 1),
		ins(plg.INC, 0, 4),
		ins(plg.RTN, 0, 0),
		ins(plg.SioHalt, 0, 3),
	}
	assert.Equal(t, want, code)
}

func TestConstFoldsAtUseSite(t *testing.T) {
	code := compile(t, "const c = 42 ; write c .")
	assert.Equal(t, ins(plg.LIT, 0, 42), code[2], "a constant write loads the value, not a frame slot")
	assert.Equal(t, plg.SioWrite, code[3].Op)
	for _, c := range code {
		assert.NotEqual(t, plg.LOD, c.Op)
	}
}

func TestIfElseJumpTargets(t *testing.T) {
	code := compile(t, "var a , b ; if a = b then write a else write b .")
	want := []plg.Instruction{
		ins(plg.JMP, 0, 3),
		ins(plg.INC, 0, 1), // a
		ins(plg.INC, 0, 1), // b
		ins(plg.INC, 0, 4),
		ins(plg.LOD, 0, 4),
		ins(plg.LOD, 0, 5),
		ins(plg.EQL, 0, 0),
		ins(plg.JPC, 0, 11), // false: enter the else branch
		ins(plg.LOD, 0, 4),
		ins(plg.SioWrite, 0, 0),
		ins(plg.JMP, 0, 13), // end of then branch: skip the else branch
		ins(plg.LOD, 0, 5),
		ins(plg.SioWrite, 0, 0),
		ins(plg.RTN, 0, 0),
		ins(plg.SioHalt, 0, 3),
	}
	assert.Equal(t, want, code)
}

func TestIfWithoutElse(t *testing.T) {
	code := compile(t, "var x ; if odd x then x := 1 .")
	// LOD x, ODD, JPC to the join point
	assert.Equal(t, ins(plg.LOD, 0, 4), code[3])
	assert.Equal(t, plg.ODD, code[4].Op)
	assert.Equal(t, ins(plg.JPC, 0, 8), code[5])
	assert.Equal(t, plg.RTN, code[8].Op)
}

func TestWhileJumpTargets(t *testing.T) {
	code := compile(t, "var a , b ; while a < b do a := a + 1 .")
	// the condition starts right after the frame setup
	top := int32(4)
	assert.Equal(t, ins(plg.LOD, 0, 4), code[top])
	assert.Equal(t, ins(plg.JPC, 0, 13), code[7], "exit jump targets one past the back jump")
	assert.Equal(t, ins(plg.JMP, 0, top), code[12], "back jump targets the condition")
}

func TestNestedProcedure(t *testing.T) {
	code := compile(t, `
		var x ;
		procedure p ;
			begin x := x + 1 end ;
		begin x := 3 ; call p ; write x end .`)
	want := []plg.Instruction{
		ins(plg.JMP, 0, 9),
		ins(plg.INC, 0, 1), // x
		ins(plg.JMP, 0, 3), // p's preamble jump lands on its frame setup
		ins(plg.INC, 0, 4),
		ins(plg.LOD, 1, 4), // x referenced one level out
		ins(plg.LIT, 0, 1),
		ins(plg.ADD, 0, 0),
		ins(plg.STO, 1, 4),
		ins(plg.RTN, 0, 0),
		ins(plg.INC, 0, 4), // main frame
		ins(plg.LIT, 0, 3),
		ins(plg.STO, 0, 4),
		ins(plg.CAL, 0, 2), // caller and callee declared in the same block
		ins(plg.LOD, 0, 4),
		ins(plg.SioWrite, 0, 0),
		ins(plg.RTN, 0, 0),
		ins(plg.SioHalt, 0, 3),
	}
	assert.Equal(t, want, code)
}

func TestDeeplyNestedLevelDifference(t *testing.T) {
	code := compile(t, `
		var x ;
		procedure p ;
			procedure q ;
				x := x + 1 ;
			call q ;
		call p .`)
	var lods []plg.Instruction
	for _, c := range code {
		if c.Op == plg.LOD || c.Op == plg.STO {
			lods = append(lods, c)
		}
	}
	require.Len(t, lods, 2)
	assert.Equal(t, int32(2), lods[0].L, "q references x two levels out")
	assert.Equal(t, int32(2), lods[1].L)
	// p calls its local q with level difference 0, main calls p with 0
	for _, c := range code {
		if c.Op == plg.CAL {
			assert.Equal(t, int32(0), c.L)
		}
	}
}

func TestPostfixEmissionOrder(t *testing.T) {
	code := compile(t, "var x ; x := 1 + 2 * 3 .")
	var ops []plg.Opcode
	for _, c := range code[3:] {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []plg.Opcode{
		plg.LIT, plg.LIT, plg.LIT, plg.MUL, plg.ADD, plg.STO, plg.RTN, plg.SioHalt,
	}, ops)
}

func TestPostfixConditionOrder(t *testing.T) {
	code := compile(t, "var x ; if x + 1 > 2 then x := 0 .")
	var ops []plg.Opcode
	for _, c := range code[3:8] {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []plg.Opcode{plg.LOD, plg.LIT, plg.ADD, plg.LIT, plg.GTR}, ops,
		"both operands precede the relational operator")
}

func TestUnaryMinus(t *testing.T) {
	code := compile(t, "var x ; x := - 5 + 3 .")
	var ops []plg.Opcode
	for _, c := range code[3:] {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []plg.Opcode{
		plg.LIT, plg.NEG, plg.LIT, plg.ADD, plg.STO, plg.RTN, plg.SioHalt,
	}, ops, "negation applies to the first term only")
}

func TestParenthesizedExpression(t *testing.T) {
	code := compile(t, "var x ; x := ( 1 + 2 ) * 3 .")
	var ops []plg.Opcode
	for _, c := range code[3:] {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []plg.Opcode{
		plg.LIT, plg.LIT, plg.ADD, plg.LIT, plg.MUL, plg.STO, plg.RTN, plg.SioHalt,
	}, ops)
}

func TestReadEmitsStore(t *testing.T) {
	code := compile(t, "var x ; read x .")
	assert.Equal(t, plg.SioRead, code[3].Op)
	assert.Equal(t, ins(plg.STO, 0, 4), code[4])
}

func TestOuterScopeNamesVisibleInProcedures(t *testing.T) {
	// an inner procedure may reference names of any enclosing scope
	_, err := Compile(tokenize(t, `
		const c = 1 ;
		var x ;
		procedure p ;
			x := c ;
		call p .`))
	assert.NoError(t, err)
}

func TestVarSlotsStartPastFrameHeader(t *testing.T) {
	code := compile(t, "var a , b , c ; c := 1 .")
	sto := code[len(code)-3]
	require.Equal(t, plg.STO, sto.Op)
	assert.Equal(t, int32(6), sto.M, "third variable occupies the third slot past the header")
}

func TestBackPatchClosure(t *testing.T) {
	code := compile(t, `
		var a , b ;
		procedure p ;
			if a = b then a := 1 else b := 2 ;
		begin
			while a < b do call p ;
			if odd a then write a
		end .`)
	n := int32(len(code))
	for i, c := range code {
		if c.Op == plg.JMP || c.Op == plg.JPC {
			assert.GreaterOrEqual(t, c.M, int32(0), "instruction %d", i)
			assert.LessOrEqual(t, c.M, n, "instruction %d", i)
			assert.NotZero(t, c.M, "instruction %d: an unpatched placeholder survived", i)
		}
	}
}

func TestDeterminism(t *testing.T) {
	src := `
		const lim = 10 ;
		var i , sq ;
		begin
			i := 1 ;
			while i <= lim do
			begin
				sq := i * i ;
				write sq ;
				i := i + 1
			end
		end .`
	var out1, out2 strings.Builder
	require.NoError(t, Generate(tokenize(t, src), &out1))
	require.NoError(t, Generate(tokenize(t, src), &out2))
	assert.NotEmpty(t, out1.String())
	assert.Equal(t, out1.String(), out2.String())
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code int
	}{
		{"number missing after eql", "const c = x ;", 1},
		{"eql missing", "const x 5 ;", 2},
		{"ident missing after const", "const ;", 3},
		{"ident missing after var", "var 5 ;", 3},
		{"ident missing after read", "read 5 .", 3},
		{"ident missing after write", "write .", 3},
		{"semicolon missing after const decl", "const c = 1 .", 4},
		{"semicolon missing after var decl", "var x .", 4},
		{"semicolon missing after procedure name", "procedure p .", 5},
		{"semicolon missing after procedure body", "procedure p ; .", 5},
		{"period missing", "var x ; x := 1", 6},
		{"becomes missing", "var x ; x 1 .", 7},
		{"ident missing after call", "call 5 .", 8},
		{"then missing", "var x ; if 1 = 1 x := 2 .", 9},
		{"end missing", "var x ; begin x := 1 x := 2 end .", 10},
		{"do missing", "var x ; while 1 = 1 x := 1 .", 11},
		{"relational operator missing", "var x ; if x then x := 1 .", 12},
		{"rparen missing", "var x ; x := ( 1 + 2 .", 13},
		{"factor starts with operator", "var x ; x := * .", 14},
		{"procedure used as factor", "var x ; procedure p ; ; x := p .", 14},
		{"undeclared in assignment", "x := 1 .", 15},
		{"undeclared in expression", "var x ; x := y .", 15},
		{"undeclared in call", "call p .", 15},
		{"assignment to constant", "const c = 1 ; c := 2 .", 16},
		{"call of a variable", "var x ; call x .", 17},
		{"write of a procedure", "procedure p ; ; write p .", 18},
		{"read into a procedure", "procedure p ; ; read p .", 19},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tokenize(t, tt.src))
			require.Error(t, err)
			var genErr *Error
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, tt.code, genErr.Code)
		})
	}
}

func TestFailFastIdempotence(t *testing.T) {
	tokens := tokenize(t, "const x 5 ;")
	_, err1 := Compile(tokens)
	_, err2 := Compile(tokens)
	require.Error(t, err1)
	assert.Equal(t, err1, err2)
}

func TestNoOutputOnFailure(t *testing.T) {
	for _, src := range []string{
		"const x 5 ;",
		"var x ; x := y .",
		"var x ; x := 1",
	} {
		var out strings.Builder
		err := Generate(tokenize(t, src), &out)
		assert.Error(t, err)
		assert.Empty(t, out.String(), "source %q", src)
	}
}

func TestErrorMessage(t *testing.T) {
	_, err := Compile(tokenize(t, "const x 5 ;"))
	require.Error(t, err)
	assert.Equal(t, "code generator error 2: '=' expected", err.Error())
}

func TestCodeCapacityOverflowAborts(t *testing.T) {
	var src strings.Builder
	src.WriteString("var x ; begin x := 1")
	for i := 0; i < plg.MaxCode; i++ {
		src.WriteString(" ; x := 1")
	}
	src.WriteString(" end .")
	_, err := Compile(tokenize(t, src.String()))
	assert.ErrorIs(t, err, plg.ErrCodeTooLong)
}

func TestGenerateListing(t *testing.T) {
	var out strings.Builder
	require.NoError(t, Generate(tokenize(t, "var x ; x := 0 ."), &out))
	want := "" +
		"7 0 0 2\n" +
		"6 0 0 1\n" +
		"6 0 0 4\n" +
		"1 0 0 0\n" +
		"3 0 0 4\n" +
		"8 0 0 0\n" +
		"11 0 0 3\n"
	assert.Equal(t, want, out.String())
}

func TestGenerateAcceptsInjectedTokens(t *testing.T) {
	// the entry point takes any token list, not only scanner output
	tokens := []pls.Token{
		{Sym: pls.SymVar},
		{Sym: pls.SymIdent, Lexeme: "x"},
		{Sym: pls.SymSemicolon},
		{Sym: pls.SymIdent, Lexeme: "x"},
		{Sym: pls.SymBecomes},
		{Sym: pls.SymNumber, Lexeme: "0"},
		{Sym: pls.SymPeriod},
	}
	code, err := Compile(tokens)
	require.NoError(t, err)
	assert.Len(t, code, 7)
}

func TestMalformedNumberLexeme(t *testing.T) {
	tokens := []pls.Token{
		{Sym: pls.SymConst},
		{Sym: pls.SymIdent, Lexeme: "c"},
		{Sym: pls.SymEql},
		{Sym: pls.SymNumber, Lexeme: "99999999999999999999"},
		{Sym: pls.SymSemicolon},
		{Sym: pls.SymPeriod},
	}
	_, err := Compile(tokens)
	require.Error(t, err)
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 1, genErr.Code)
}

func TestTruncatedInputYieldsSentinel(t *testing.T) {
	// the cursor's null sentinel past the end surfaces as an ordinary
	// mismatch, never as an out-of-range access
	srcs := []string{"", "var", "var x ;", "var x ; x :=", "begin"}
	for _, src := range srcs {
		_, err := Compile(tokenize(t, src))
		assert.Error(t, err, fmt.Sprintf("source %q", src))
	}
}
