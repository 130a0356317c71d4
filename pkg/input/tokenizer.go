// Package input implements the free-form command-line tokenizer and the
// typed argument readers commands use to consume it. The multi-step
// command states are defined in pkg/command.
package input

import (
	"fmt"
	"strconv"
	"strings"

	cn "github.com/harborgrid-justin/cadcore/common/constant"
)

func invalidInput(msg string) error {
	return fmt.Errorf("%s: %w", msg, cn.ErrInvalidInput)
}

// Tokenize splits input on whitespace and commas, honoring double-quoted
// spans as single tokens (quotes themselves are stripped, interior
// whitespace/commas preserved). Empty input yields an empty slice.
func Tokenize(input string) []string {
	var (
		tokens   []string
		current  strings.Builder
		inQuotes bool
	)

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range input {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case (r == ' ' || r == '\t' || r == ',') && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
		}
	}

	flush()

	return tokens
}

// Point is a 2D/3D coordinate parsed from input tokens.
type Point struct {
	X, Y, Z float64
}

// Parser walks a token stream, offering typed readers for command
// arguments. It does not own a CommandContext; commands call it directly
// from ProcessInput/Execute.
type Parser struct {
	tokens []string
	pos    int
}

// NewParser tokenizes input and returns a Parser positioned at the start.
func NewParser(text string) *Parser {
	return &Parser{tokens: Tokenize(text)}
}

// Next returns and consumes the next token, or false if exhausted.
func (p *Parser) Next() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}

	tok := p.tokens[p.pos]
	p.pos++

	return tok, true
}

// Peek returns the next token without consuming it.
func (p *Parser) Peek() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}

	return p.tokens[p.pos], true
}

// HasMore reports whether any tokens remain.
func (p *Parser) HasMore() bool { return p.pos < len(p.tokens) }

// Remaining returns the unconsumed tokens, consuming them.
func (p *Parser) Remaining() []string {
	rest := p.tokens[p.pos:]
	p.pos = len(p.tokens)

	return rest
}

// Reset rewinds the parser to the first token.
func (p *Parser) Reset() { p.pos = 0 }

// Tokens returns the full token slice, unconsumed.
func (p *Parser) Tokens() []string { return p.tokens }

// ParsePoint reads x and y, and optionally a third numeric token for z. If
// the next available token does not parse as a number, z defaults to 0
// and the token is left in the stream for the caller.
func (p *Parser) ParsePoint() (Point, error) {
	xTok, ok := p.Next()
	if !ok {
		return Point{}, invalidInput("expected X coordinate")
	}

	x, err := strconv.ParseFloat(xTok, 64)
	if err != nil {
		return Point{}, invalidInput("invalid X coordinate: " + xTok)
	}

	yTok, ok := p.Next()
	if !ok {
		return Point{}, invalidInput("expected Y coordinate")
	}

	y, err := strconv.ParseFloat(yTok, 64)
	if err != nil {
		return Point{}, invalidInput("invalid Y coordinate: " + yTok)
	}

	var z float64

	if zTok, ok := p.Peek(); ok {
		if zVal, err := strconv.ParseFloat(zTok, 64); err == nil {
			p.pos++
			z = zVal
		}
	}

	return Point{X: x, Y: y, Z: z}, nil
}

// ParseDistance reads one numeric token.
func (p *Parser) ParseDistance() (float64, error) {
	return p.parseFloat("distance")
}

// ParseAngle reads one numeric token (degrees).
func (p *Parser) ParseAngle() (float64, error) {
	return p.parseFloat("angle")
}

func (p *Parser) parseFloat(what string) (float64, error) {
	tok, ok := p.Next()
	if !ok {
		return 0, invalidInput("expected " + what + " value")
	}

	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, invalidInput("invalid " + what + ": " + tok)
	}

	return v, nil
}

// ParseInteger reads one integer token.
func (p *Parser) ParseInteger() (int, error) {
	tok, ok := p.Next()
	if !ok {
		return 0, invalidInput("expected integer value")
	}

	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, invalidInput("invalid integer: " + tok)
	}

	return v, nil
}

// ParseText reads one raw token.
func (p *Parser) ParseText() (string, error) {
	tok, ok := p.Next()
	if !ok {
		return "", invalidInput("expected text value")
	}

	return tok, nil
}

// ParseOption reads a KEY=VALUE token, or a bare KEY token meaning
// KEY=true.
func (p *Parser) ParseOption() (key, value string, err error) {
	tok, ok := p.Next()
	if !ok {
		return "", "", invalidInput("expected option")
	}

	if idx := strings.IndexByte(tok, '='); idx >= 0 {
		return tok[:idx], tok[idx+1:], nil
	}

	return tok, "true", nil
}
