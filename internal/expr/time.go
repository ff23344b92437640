package expr

import (
	"regexp"
	"strings"

	"github.com/nvandessel/stockflow/internal/constants"
)

// StripTime strips time notation with the default separator.
func StripTime(text string) string { return Default.StripTime(text) }

// StripTime removes explicit time-dependence notation: every "(t)" directly
// following an identifier is dropped, so "BIRTHS(t) - PASS20(t)" becomes
// "BIRTHS - PASS20". Other uses of t are kept.
func (l Lexer) StripTime(text string) string {
	tokens := l.Scan(text)
	out := make([]Token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		out = append(out, tokens[i])
		if tokens[i].Kind != TokenIdent {
			continue
		}
		if i+3 < len(tokens) && isTimeCall(tokens[i+1:i+4]) {
			i += 3
		}
	}
	return Join(out)
}

func isTimeCall(toks []Token) bool {
	return len(toks) == 3 &&
		toks[0].Kind == TokenLParen &&
		toks[1].Kind == TokenIdent && toks[1].Text == constants.TimeVariable &&
		toks[2].Kind == TokenRParen
}

var derivativeRe = regexp.MustCompile(`^(?:D|Differential\(t\)|d/dt)\((.+)\)$`)

// DerivativeOf reads lhs with the default separator.
func DerivativeOf(lhs string) (string, bool) { return Default.DerivativeOf(lhs) }

// DerivativeOf reports the variable whose first-order time derivative lhs
// denotes. Recognized forms are D(X), Differential(t)(X) and d/dt(X), each
// optionally with X written as X(t).
func (l Lexer) DerivativeOf(lhs string) (string, bool) {
	compact := strings.Join(strings.Fields(lhs), "")
	m := derivativeRe.FindStringSubmatch(compact)
	if m == nil {
		return "", false
	}
	inner := l.StripTime(m[1])
	tokens := l.Scan(inner)
	if len(tokens) != 1 || tokens[0].Kind != TokenIdent {
		return "", false
	}
	return tokens[0].Text, true
}

// AlgebraicTarget reads lhs with the default separator.
func AlgebraicTarget(lhs string) (string, bool) { return Default.AlgebraicTarget(lhs) }

// AlgebraicTarget reports the variable an algebraic equation defines, i.e.
// an lhs that is a single identifier, optionally written X(t).
func (l Lexer) AlgebraicTarget(lhs string) (string, bool) {
	tokens := l.Scan(strings.TrimSpace(l.StripTime(lhs)))
	if len(tokens) != 1 || tokens[0].Kind != TokenIdent {
		return "", false
	}
	return tokens[0].Text, true
}
