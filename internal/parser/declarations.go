// internal/parser/declarations.go
package parser

import (
	"strings"
)

// Property is a lowercased CSS property name (e.g., "flex-direction").
type Property string

// Value is a raw, trimmed CSS value (e.g., "1 1 auto").
type Value string

// Declaration is a single property/value pair from a style block.
type Declaration struct {
	Property  Property
	Value     Value
	Important bool
}

// Parser tokenizes declaration lists such as the contents of a style attribute.
// Malformed declarations are skipped up to the next ';' rather than aborting the parse.
type Parser struct {
	input string
	pos   int
}

func NewParser(input string) *Parser {
	return &Parser{input: input}
}

// ParseDeclarations is a convenience wrapper for NewParser(input).Declarations().
func ParseDeclarations(input string) []Declaration {
	return NewParser(input).Declarations()
}

// Declarations parses the whole input as a ';'-separated declaration list.
// A surrounding pair of braces is accepted and ignored.
func (p *Parser) Declarations() []Declaration {
	var out []Declaration

	p.consumeWhitespace()
	braced := !p.eof() && p.currentChar() == '{'
	if braced {
		p.pos++
	}

	for {
		p.consumeWhitespace()
		if p.eof() {
			break
		}
		if p.currentChar() == '}' {
			p.pos++
			if braced {
				break
			}
			continue
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		if p.currentChar() == ';' {
			p.pos++
			continue
		}

		prop, val, important := p.parseDeclaration()
		if prop == "" || val == "" {
			continue
		}
		out = append(out, Declaration{
			Property:  Property(strings.ToLower(prop)),
			Value:     Value(val),
			Important: important,
		})
	}
	return out
}

// parseDeclaration reads one 'property: value' pair and its trailing ';'.
func (p *Parser) parseDeclaration() (prop, val string, important bool) {
	if !isIdentStart(p.currentChar()) {
		p.skipDeclaration()
		return "", "", false
	}
	prop = p.parseIdentifier()
	p.consumeWhitespace()

	if p.eof() || p.currentChar() != ':' {
		p.skipDeclaration()
		return "", "", false
	}
	p.pos++
	p.consumeWhitespace()

	val = p.parseValue()
	if lower := strings.ToLower(val); strings.HasSuffix(lower, "!important") {
		important = true
		val = strings.TrimSpace(val[:len(val)-len("!important")])
	}

	p.consumeWhitespace()
	if !p.eof() && p.currentChar() == ';' {
		p.pos++
	}
	return prop, val, important
}

// parseValue reads up to the next top-level ';' or '}', keeping quoted strings and
// parenthesised groups (e.g. rgb(...)) intact.
func (p *Parser) parseValue() string {
	start := p.pos
	for !p.eof() {
		ch := p.currentChar()
		if ch == ';' || ch == '}' {
			break
		}
		switch ch {
		case '"', '\'':
			p.skipQuoted(ch)
			continue
		case '(':
			p.pos++
			p.skipBlock('(', ')')
			continue
		}
		p.pos++
	}
	return strings.TrimSpace(p.input[start:p.pos])
}

// skipDeclaration skips a malformed declaration.
func (p *Parser) skipDeclaration() {
	for !p.eof() && p.currentChar() != ';' && p.currentChar() != '}' {
		p.pos++
	}
	if !p.eof() && p.currentChar() == ';' {
		p.pos++
	}
}

// -- Lexer helpers --

func (p *Parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *Parser) currentChar() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) consumeWhitespace() {
	for !p.eof() && isWhitespace(p.currentChar()) {
		p.pos++
	}
}

func (p *Parser) startsWith(s string) bool {
	return strings.HasPrefix(p.input[p.pos:], s)
}

func (p *Parser) skipComment() {
	p.pos += 2
	end := strings.Index(p.input[p.pos:], "*/")
	if end == -1 {
		p.pos = len(p.input)
		return
	}
	p.pos += end + 2
}

// skipBlock assumes the opening delimiter was already consumed.
func (p *Parser) skipBlock(open, close byte) {
	depth := 1
	for !p.eof() {
		ch := p.input[p.pos]
		p.pos++
		switch ch {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *Parser) skipQuoted(quote byte) {
	p.pos++
	for !p.eof() {
		ch := p.input[p.pos]
		p.pos++
		if ch == '\\' {
			p.pos++
			continue
		}
		if ch == quote {
			return
		}
	}
	if p.pos > len(p.input) {
		p.pos = len(p.input)
	}
}

func (p *Parser) parseIdentifier() string {
	start := p.pos
	for !p.eof() && isIdentChar(p.currentChar()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '-'
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
