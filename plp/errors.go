package plp

import "fmt"

// Generation error codes. The numeric code is the sole diagnostic surface
// of the generator; the driver renders it through the message table.
const (
	errNoNumber        = 1  // number expected after '='
	errNoEql           = 2  // '=' expected
	errNoIdent         = 3  // identifier expected
	errNoSemicolon     = 4  // semicolon terminating a declaration
	errNoProcSemicolon = 5  // semicolon around a procedure declaration
	errNoPeriod        = 6  // period terminating the program
	errNoBecomes       = 7  // ':=' expected
	errNoCallIdent     = 8  // identifier expected after 'call'
	errNoThen          = 9  // 'then' expected
	errNoEnd           = 10 // semicolon between statements or 'end'
	errNoDo            = 11 // 'do' expected
	errNoRelOp         = 12 // relational operator expected
	errNoRparen        = 13 // right parenthesis missing
	errBadFactor       = 14 // factor begins with a bad symbol, or names a procedure
	errUndeclared      = 15 // identifier not in the active scope chain
	errAssignToNonVar  = 16
	errCallOfNonProc   = 17
	errWriteOfProc     = 18
	errReadIntoNonVar  = 19
)

var errMsgs = [...]string{
	errNoNumber:        "number expected after '='",
	errNoEql:           "'=' expected",
	errNoIdent:         "identifier expected",
	errNoSemicolon:     "semicolon missing after declaration",
	errNoProcSemicolon: "semicolon expected after procedure",
	errNoPeriod:        "period expected at end of program",
	errNoBecomes:       "':=' expected",
	errNoCallIdent:     "identifier expected after 'call'",
	errNoThen:          "'then' expected",
	errNoEnd:           "semicolon between statements missing or 'end' expected",
	errNoDo:            "'do' expected",
	errNoRelOp:         "relational operator expected",
	errNoRparen:        "right parenthesis missing",
	errBadFactor:       "expression factor cannot begin with this symbol",
	errUndeclared:      "undeclared identifier",
	errAssignToNonVar:  "assignment to non-variable",
	errCallOfNonProc:   "call of a non-procedure",
	errWriteOfProc:     "write of a procedure",
	errReadIntoNonVar:  "read into a non-variable",
}

// Error is a failed generation run. Code identifies the syntactic or
// semantic check that failed.
type Error struct {
	Code int
}

func (e *Error) Error() string {
	msg := "unknown error"
	if e.Code > 0 && e.Code < len(errMsgs) && errMsgs[e.Code] != "" {
		msg = errMsgs[e.Code]
	}
	return fmt.Sprintf("code generator error %d: %s", e.Code, msg)
}
