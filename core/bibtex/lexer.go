package bibtex

import (
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/CedarBib/core/errors"
)

// BibTeX tokenization is context-sensitive: text between blocks is
// arbitrary, @comment bodies are captured raw, quoted strings respect
// brace protection, and blocks may be delimited by braces or parens. A
// hand-rolled scanner produces the token stream; the declarative grammar
// in parser.go consumes it.

// Token types emitted by the scanner. lexer.EOF is -1; custom types
// count down from -2.
const (
	tokMeta lexer.TokenType = -(iota + 2)
	tokAtString
	tokAtPreamble
	tokAtComment
	tokAtEntry
	tokOpen
	tokClose
	tokIdent
	tokKey
	tokNumber
	tokQuoted
	tokBraced
	tokRaw
	tokHash
	tokEquals
	tokComma
)

// bibDefinition adapts the scanner to participle's lexer interface.
type bibDefinition struct{}

func (bibDefinition) Symbols() map[string]lexer.TokenType {
	return map[string]lexer.TokenType{
		"EOF":        lexer.EOF,
		"Meta":       tokMeta,
		"AtString":   tokAtString,
		"AtPreamble": tokAtPreamble,
		"AtComment":  tokAtComment,
		"AtEntry":    tokAtEntry,
		"Open":       tokOpen,
		"Close":      tokClose,
		"Ident":      tokIdent,
		"Key":        tokKey,
		"Number":     tokNumber,
		"Quoted":     tokQuoted,
		"Braced":     tokBraced,
		"Raw":        tokRaw,
		"Hash":       tokHash,
		"Equals":     tokEquals,
		"Comma":      tokComma,
	}
}

func (bibDefinition) Lex(filename string, r io.Reader) (lexer.Lexer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("read", filename, err)
	}
	return newBibLexer(filename, string(data)), nil
}

func (bibDefinition) LexString(filename string, s string) (lexer.Lexer, error) {
	return newBibLexer(filename, s), nil
}

// lexState tracks which region of a .bib file the scanner is inside.
type lexState int

const (
	stateMeta lexState = iota
	stateBlockOpen
	stateStringBody
	statePreambleBody
	stateCommentBody
	stateEntryKey
	stateEntryBody
)

type bibLexer struct {
	name  string
	input string
	pos   int
	line  int
	col   int

	state lexState
	// nextBody is the body state entered after the block's open
	// delimiter.
	nextBody lexState
	// closeDelim is the closing delimiter of the current block: '}' or ')'.
	closeDelim byte

	queue []lexer.Token
}

func newBibLexer(name, input string) *bibLexer {
	return &bibLexer{name: name, input: input, line: 1, col: 1}
}

func (l *bibLexer) Next() (lexer.Token, error) {
	for len(l.queue) == 0 {
		if err := l.scan(); err != nil {
			return lexer.Token{}, err
		}
	}
	t := l.queue[0]
	l.queue = l.queue[1:]
	return t, nil
}

func (l *bibLexer) scan() error {
	switch l.state {
	case stateMeta:
		return l.scanMeta()
	case stateBlockOpen:
		return l.scanBlockOpen()
	case stateCommentBody:
		return l.scanCommentBody()
	case stateEntryKey:
		return l.scanEntryKey()
	default:
		return l.scanBody()
	}
}

func (l *bibLexer) position() lexer.Position {
	return lexer.Position{Filename: l.name, Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *bibLexer) push(t lexer.TokenType, value string, pos lexer.Position) {
	l.queue = append(l.queue, lexer.Token{Type: t, Value: value, Pos: pos})
}

func (l *bibLexer) errorf(msg string) error {
	return errors.NewParse(l.name, l.line, l.col, msg)
}

// errorfAt reports an error at a recorded position, used for unterminated
// constructs where the start of the construct is the useful location.
func (l *bibLexer) errorfAt(pos lexer.Position, msg string) error {
	return errors.NewParse(l.name, pos.Line, pos.Column, msg)
}

// step consumes one rune, tracking line and column.
func (l *bibLexer) step() {
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos += size
}

func (l *bibLexer) skipSpace() {
	for l.pos < len(l.input) && isSpaceByte(l.input[l.pos]) {
		l.step()
	}
}

// scanMeta consumes free text until the next @directive, emitting it as a
// Meta token when it is not blank, then emits the directive token.
func (l *bibLexer) scanMeta() error {
	if l.pos >= len(l.input) {
		l.push(lexer.EOF, "", l.position())
		return nil
	}

	start := l.pos
	startPos := l.position()
	for l.pos < len(l.input) {
		if l.input[l.pos] == '@' && l.pos+1 < len(l.input) && isLetterByte(l.input[l.pos+1]) {
			break
		}
		l.step()
	}
	if text := strings.TrimSpace(l.input[start:l.pos]); text != "" {
		l.push(tokMeta, text, startPos)
	}
	if l.pos >= len(l.input) {
		// Trailing blank text; the next scan emits EOF.
		return nil
	}

	dirPos := l.position()
	l.step() // consume '@'
	wordStart := l.pos
	for l.pos < len(l.input) && isLetterByte(l.input[l.pos]) {
		l.step()
	}
	word := strings.ToLower(l.input[wordStart:l.pos])
	switch word {
	case "string":
		l.push(tokAtString, word, dirPos)
		l.nextBody = stateStringBody
	case "preamble":
		l.push(tokAtPreamble, word, dirPos)
		l.nextBody = statePreambleBody
	case "comment":
		l.push(tokAtComment, word, dirPos)
		l.nextBody = stateCommentBody
	default:
		l.push(tokAtEntry, word, dirPos)
		l.nextBody = stateEntryKey
	}
	l.state = stateBlockOpen
	return nil
}

// scanBlockOpen expects the block's opening delimiter.
func (l *bibLexer) scanBlockOpen() error {
	l.skipSpace()
	if l.pos >= len(l.input) {
		return l.errorf("unexpected end of input, expected { or (")
	}
	switch l.input[l.pos] {
	case '{':
		l.closeDelim = '}'
	case '(':
		l.closeDelim = ')'
	default:
		return l.errorf("expected { or ( after directive")
	}
	l.push(tokOpen, string(l.input[l.pos]), l.position())
	l.step()
	l.state = l.nextBody
	return nil
}

// scanCommentBody captures the raw comment text up to the balanced
// closing delimiter.
func (l *bibLexer) scanCommentBody() error {
	open := byte('{')
	if l.closeDelim == ')' {
		open = '('
	}
	start := l.pos
	startPos := l.position()
	depth := 1
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == open {
			depth++
		} else if c == l.closeDelim {
			depth--
			if depth == 0 {
				break
			}
		}
		l.step()
	}
	if depth != 0 {
		return l.errorfAt(startPos, "unterminated comment")
	}
	l.push(tokRaw, strings.TrimSpace(l.input[start:l.pos]), startPos)
	l.push(tokClose, string(l.closeDelim), l.position())
	l.step()
	l.state = stateMeta
	return nil
}

// scanEntryKey captures the citation key following an entry's opening
// delimiter.
func (l *bibLexer) scanEntryKey() error {
	l.skipSpace()
	start := l.pos
	startPos := l.position()
	for l.pos < len(l.input) && isKeyByte(l.input[l.pos]) {
		l.step()
	}
	if l.pos == start {
		return l.errorf("missing citation key")
	}
	l.push(tokKey, l.input[start:l.pos], startPos)
	l.state = stateEntryBody
	return nil
}

// scanBody tokenizes the inside of a @string, @preamble, or entry block.
func (l *bibLexer) scanBody() error {
	l.skipSpace()
	if l.pos >= len(l.input) {
		return l.errorf("unterminated block")
	}
	c := l.input[l.pos]
	switch {
	case c == l.closeDelim:
		l.push(tokClose, string(c), l.position())
		l.step()
		l.state = stateMeta
	case c == '"':
		return l.scanQuoted()
	case c == '{':
		return l.scanBraced()
	case c == '#':
		l.push(tokHash, "#", l.position())
		l.step()
	case c == '=':
		l.push(tokEquals, "=", l.position())
		l.step()
	case c == ',':
		l.push(tokComma, ",", l.position())
		l.step()
	case isDigitByte(c):
		start := l.pos
		pos := l.position()
		for l.pos < len(l.input) && isDigitByte(l.input[l.pos]) {
			l.step()
		}
		l.push(tokNumber, l.input[start:l.pos], pos)
	case isLetterByte(c):
		start := l.pos
		pos := l.position()
		for l.pos < len(l.input) && isIdentByte(l.input[l.pos]) {
			l.step()
		}
		l.push(tokIdent, l.input[start:l.pos], pos)
	default:
		return l.errorf("unexpected character " + strconv.Quote(string(c)))
	}
	return nil
}

// scanQuoted captures a double-quoted value. Braces protect quotes: a
// quote inside braces does not terminate the string. The outer quotes
// are stripped; inner braces are preserved.
func (l *bibLexer) scanQuoted() error {
	pos := l.position()
	l.step() // opening quote
	start := l.pos
	depth := 0
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '{' {
			depth++
		} else if c == '}' && depth > 0 {
			depth--
		} else if c == '"' && depth == 0 {
			break
		}
		l.step()
	}
	if l.pos >= len(l.input) {
		return l.errorfAt(pos, "unterminated quoted value")
	}
	l.push(tokQuoted, l.input[start:l.pos], pos)
	l.step() // closing quote
	return nil
}

// scanBraced captures a brace-delimited value with balanced nesting. The
// outer braces are stripped; inner braces are preserved.
func (l *bibLexer) scanBraced() error {
	pos := l.position()
	l.step() // opening brace
	start := l.pos
	depth := 1
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '{' {
			depth++
		} else if c == '}' {
			depth--
			if depth == 0 {
				break
			}
		}
		l.step()
	}
	if depth != 0 {
		return l.errorfAt(pos, "unterminated braced value")
	}
	l.push(tokBraced, l.input[start:l.pos], pos)
	l.step() // closing brace
	return nil
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isLetterByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigitByte(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentByte(c byte) bool {
	return isLetterByte(c) || isDigitByte(c) || strings.IndexByte("_-:.+/", c) >= 0
}

// isKeyByte reports whether c may appear in a citation key. Keys exclude
// whitespace and the delimiters BibTeX reserves.
func isKeyByte(c byte) bool {
	return !isSpaceByte(c) && strings.IndexByte("\"#%'(),={}", c) < 0
}
