// Package expr provides the shallow, string-level expression handling used to
// analyze model equations: a lexer, the top-level additive term decomposer,
// time-notation stripping, derivative recognition and identifier rewriting.
//
// None of this is a full arithmetic parser. Equation right-hand sides are
// treated as text with just enough structure to find identifiers and the
// top-level "+"/"-" operators.
package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nvandessel/stockflow/internal/constants"
)

// TokenKind classifies a lexed token.
type TokenKind int

const (
	TokenSpace TokenKind = iota
	TokenIdent
	TokenNumber
	TokenLParen
	TokenRParen
	TokenOperator
)

// Token is a lexeme of an equation text. Concatenating the Text of all tokens
// returned by Scan reproduces the input exactly.
type Token struct {
	Kind TokenKind
	Text string
}

// Lexer scans equation text in which Separator may appear inside
// identifiers, joining a sector prefix and a short name.
type Lexer struct {
	Separator string
}

// Default is the lexer for the default separator.
var Default = Lexer{Separator: constants.DefaultSeparator}

// ValidSeparator reports whether sep can join prefixes and names without
// colliding with equation syntax.
func ValidSeparator(sep string) error {
	if sep == "" {
		return fmt.Errorf("separator must not be empty")
	}
	for _, r := range sep {
		if unicode.IsSpace(r) || unicode.IsDigit(r) || strings.ContainsRune(reservedRunes, r) {
			return fmt.Errorf("separator %q must not contain %q", sep, r)
		}
	}
	return nil
}

// reservedRunes are the characters with a meaning in equation text.
const reservedRunes = "+-*/^()[],.<>=!~&|"

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentRune(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (l Lexer) separatorAt(text string, i int) int {
	if l.Separator != "" && strings.HasPrefix(text[i:], l.Separator) {
		return len(l.Separator)
	}
	return 0
}

// Scan splits text into tokens with the default separator.
func Scan(text string) []Token { return Default.Scan(text) }

// Scan splits text into tokens. Unknown characters become single-rune
// operator tokens, so Scan never fails.
func (l Lexer) Scan(text string) []Token {
	var tokens []Token
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		start := i
		switch {
		case unicode.IsSpace(r):
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if !unicode.IsSpace(r) {
					break
				}
				i += size
			}
			tokens = append(tokens, Token{Kind: TokenSpace, Text: text[start:i]})
		case isIdentStart(r) || l.separatorAt(text, i) > 0:
			for i < len(text) {
				if n := l.separatorAt(text, i); n > 0 {
					i += n
					continue
				}
				r, size = utf8.DecodeRuneInString(text[i:])
				if !isIdentRune(r) {
					break
				}
				i += size
			}
			tokens = append(tokens, Token{Kind: TokenIdent, Text: text[start:i]})
		case isDigit(text[i]) || (text[i] == '.' && i+1 < len(text) && isDigit(text[i+1])):
			i = scanNumber(text, i)
			tokens = append(tokens, Token{Kind: TokenNumber, Text: text[start:i]})
		case r == '(':
			i += size
			tokens = append(tokens, Token{Kind: TokenLParen, Text: "("})
		case r == ')':
			i += size
			tokens = append(tokens, Token{Kind: TokenRParen, Text: ")"})
		default:
			i += size
			tokens = append(tokens, Token{Kind: TokenOperator, Text: text[start:i]})
		}
	}
	return tokens
}

// scanNumber consumes a decimal literal with optional fraction and exponent
// starting at i and returns the index just past it.
func scanNumber(text string, i int) int {
	for i < len(text) && isDigit(text[i]) {
		i++
	}
	if i < len(text) && text[i] == '.' {
		i++
		for i < len(text) && isDigit(text[i]) {
			i++
		}
	}
	if i < len(text) && (text[i] == 'e' || text[i] == 'E') {
		j := i + 1
		if j < len(text) && (text[j] == '+' || text[j] == '-') {
			j++
		}
		if j < len(text) && isDigit(text[j]) {
			i = j
			for i < len(text) && isDigit(text[i]) {
				i++
			}
		}
	}
	return i
}

// Identifiers returns the identifiers of text with the default separator.
func Identifiers(text string) []string { return Default.Identifiers(text) }

// Identifiers returns the identifier tokens of text in textual order,
// duplicates included.
func (l Lexer) Identifiers(text string) []string {
	var out []string
	for _, tok := range l.Scan(text) {
		if tok.Kind == TokenIdent {
			out = append(out, tok.Text)
		}
	}
	return out
}

// Join concatenates token texts.
func Join(tokens []Token) string {
	var b strings.Builder
	for _, tok := range tokens {
		b.WriteString(tok.Text)
	}
	return b.String()
}
