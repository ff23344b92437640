package expr

import "strings"

// Term is one top-level additive term of an expression.
type Term struct {
	Text     string
	Negative bool
}

// Terms splits text at its top-level additive operators. A '+' or '-' splits
// only at parenthesis depth zero and when immediately preceded by whitespace,
// which leaves unary signs and operators inside sub-expressions alone. The
// first term carries an implicit '+' unless it starts with an explicit sign.
//
// The second return value reports whether any split happened.
func Terms(text string) ([]Term, bool) {
	var raw []string
	depth := 0
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '+', '-':
			if depth == 0 && i > 0 && isSpaceByte(text[i-1]) {
				raw = append(raw, text[start:i])
				start = i
			}
		}
	}
	raw = append(raw, text[start:])

	split := len(raw) > 1
	terms := make([]Term, 0, len(raw))
	for _, r := range raw {
		t := strings.TrimSpace(r)
		if t == "" {
			continue
		}
		term := Term{Text: t}
		switch t[0] {
		case '-':
			term = Term{Text: strings.TrimSpace(t[1:]), Negative: true}
		case '+':
			term = Term{Text: strings.TrimSpace(t[1:])}
		}
		// A dangling sign, as in "A + ", carries no term.
		if term.Text == "" {
			continue
		}
		terms = append(terms, term)
	}
	return terms, split
}

// Decompose splits a stock's rate expression into inflow and outflow terms,
// each in textual order.
//
// When the expression has no top-level additive operator the whole trimmed
// text comes back as the only inflow and outflows is empty. Callers treat
// that shape as "undecomposed", not as a single literal inflow.
func Decompose(text string) (inflows, outflows []string) {
	terms, split := Terms(text)
	if !split {
		return []string{strings.TrimSpace(text)}, []string{}
	}

	inflows = []string{}
	outflows = []string{}
	for _, t := range terms {
		if t.Negative {
			outflows = append(outflows, t.Text)
		} else {
			inflows = append(inflows, t.Text)
		}
	}
	return inflows, outflows
}

// Undecomposed reports whether a Decompose result is the whole-expression
// fallback shape.
func Undecomposed(inflows, outflows []string) bool {
	return len(inflows) == 1 && len(outflows) == 0
}

func isSpaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
