package expr

import (
	"fmt"
	"strings"
)

// RewriteFunc maps an identifier to its replacement text.
type RewriteFunc func(ident string) (string, error)

// Rewrite rewrites text with the default separator.
func Rewrite(text string, fn RewriteFunc) (string, error) { return Default.Rewrite(text, fn) }

// Rewrite substitutes every identifier in text through fn and turns integer
// literals into float literals ("2" becomes "2.0") so that the result reads
// as a floating point Go expression.
func (l Lexer) Rewrite(text string, fn RewriteFunc) (string, error) {
	var b strings.Builder
	for _, tok := range l.Scan(text) {
		switch tok.Kind {
		case TokenIdent:
			repl, err := fn(tok.Text)
			if err != nil {
				return "", fmt.Errorf("rewrite %q: %w", tok.Text, err)
			}
			b.WriteString(repl)
		case TokenNumber:
			b.WriteString(tok.Text)
			if !strings.ContainsAny(tok.Text, ".eE") {
				b.WriteString(".0")
			}
		default:
			b.WriteString(tok.Text)
		}
	}
	return b.String(), nil
}
