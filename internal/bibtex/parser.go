// Package bibtex reads and writes the BibTeX subset bibsync merges:
// entries, @string constants, @preamble, @comment blocks and jabref-meta comments.
package bibtex

import (
	"fmt"
	"strings"

	"github.com/kilupskalvis/bibsync/internal/models"
)

const metaPrefix = "jabref-meta:"

// refMark delimits @string references inside stored values. Literal text
// never contains it: the parser rejects NUL bytes in values.
const refMark = "\x00"

// Ref returns the stored form of a reference to the @string constant name
func Ref(name string) string {
	return refMark + name + refMark
}

// ParseError reports malformed input with the line it was detected on
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bibtex: line %d: %s", e.Line, e.Msg)
}

// Parse parses BibTeX content into a Database. No partial result is
// returned on failure.
func Parse(content string) (*models.Database, error) {
	p := &parser{src: content, line: 1}
	db := models.NewDatabase()

	for {
		if !p.skipTo('@') {
			break
		}
		if err := p.parseItem(db); err != nil {
			return nil, err
		}
	}

	if err := db.Validate(); err != nil {
		return nil, &ParseError{Line: p.line, Msg: err.Error()}
	}
	return db, nil
}

type parser struct {
	src  string
	pos  int
	line int
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) next() byte {
	c := p.src[p.pos]
	p.pos++
	if c == '\n' {
		p.line++
	}
	return c
}

// skipTo advances past the next occurrence of c. Returns false at end of input.
func (p *parser) skipTo(c byte) bool {
	for !p.eof() {
		if p.next() == c {
			return true
		}
	}
	return false
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\r', '\n':
			p.next()
		default:
			return
		}
	}
}

func isIdentByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("_-:.+/'!?*&;", c) >= 0 || c >= 0x80
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && isIdentByte(p.peek()) {
		p.next()
	}
	return p.src[start:p.pos]
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.eof() {
		return p.errorf("unexpected end of input, expected '%c'", c)
	}
	if got := p.next(); got != c {
		return p.errorf("expected '%c', found '%c'", c, got)
	}
	return nil
}

// parseItem reads the item after an '@'. An '@' not followed by a type and
// an opening delimiter is free text (e.g. an e-mail address) and is skipped.
func (p *parser) parseItem(db *models.Database) error {
	p.skipSpace()
	kind := strings.ToLower(p.ident())

	p.skipSpace()
	var closing byte
	switch p.peek() {
	case '{':
		closing = '}'
	case '(':
		closing = ')'
	default:
		return nil
	}
	if kind == "" {
		return p.errorf("missing entry type after '@'")
	}
	p.next()

	switch kind {
	case "comment":
		body, err := p.balanced(closing)
		if err != nil {
			return err
		}
		if !parseMeta(db, body) {
			db.Comments = append(db.Comments, body)
		}
		return nil
	case "preamble":
		value, err := p.value()
		if err != nil {
			return err
		}
		db.Preamble = value
		return p.expect(closing)
	case "string":
		p.skipSpace()
		name := p.ident()
		if name == "" {
			return p.errorf("missing @string name")
		}
		if err := p.expect('='); err != nil {
			return err
		}
		value, err := p.value()
		if err != nil {
			return err
		}
		db.Strings[name] = value
		return p.expect(closing)
	default:
		entry, err := p.entry(kind, closing)
		if err != nil {
			return err
		}
		db.Add(entry)
		return nil
	}
}

func (p *parser) entry(kind string, closing byte) (*models.Entry, error) {
	p.skipSpace()
	start := p.pos
	for !p.eof() && p.peek() != ',' && p.peek() != closing {
		p.next()
	}
	if p.eof() {
		return nil, p.errorf("unterminated @%s entry", kind)
	}
	entry := models.NewEntry(kind, strings.TrimSpace(p.src[start:p.pos]))

	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated entry '%s'", entry.Key)
		}
		c := p.next()
		if c == closing {
			return entry, nil
		}
		if c != ',' {
			return nil, p.errorf("expected ',' in entry '%s', found '%c'", entry.Key, c)
		}

		p.skipSpace()
		if p.peek() == closing {
			p.next()
			return entry, nil
		}
		name := p.ident()
		if name == "" {
			return nil, p.errorf("expected field name in entry '%s'", entry.Key)
		}
		if err := p.expect('='); err != nil {
			return nil, err
		}
		value, err := p.value()
		if err != nil {
			return nil, err
		}
		entry.Set(name, value)
	}
}

// value parses a field value: braced or quoted literals, numbers and
// string references joined by '#'. References are stored via Ref.
func (p *parser) value() (string, error) {
	var b strings.Builder
	for {
		p.skipSpace()
		if p.eof() {
			return "", p.errorf("unexpected end of input in value")
		}
		switch c := p.peek(); {
		case c == '{':
			p.next()
			s, err := p.balanced('}')
			if err != nil {
				return "", err
			}
			if err := p.literal(&b, s); err != nil {
				return "", err
			}
		case c == '"':
			p.next()
			s, err := p.quoted()
			if err != nil {
				return "", err
			}
			if err := p.literal(&b, s); err != nil {
				return "", err
			}
		case isIdentByte(c):
			word := p.ident()
			if isNumber(word) {
				b.WriteString(word)
			} else {
				b.WriteString(Ref(word))
			}
		default:
			return "", p.errorf("unexpected '%c' in value", c)
		}

		p.skipSpace()
		if p.peek() != '#' {
			return b.String(), nil
		}
		p.next()
	}
}

func (p *parser) literal(b *strings.Builder, s string) error {
	if strings.Contains(s, refMark) {
		return p.errorf("NUL byte in value")
	}
	b.WriteString(s)
	return nil
}

// balanced reads up to the matching closing delimiter, which is consumed
func (p *parser) balanced(closing byte) (string, error) {
	start := p.pos
	depth := 0
	for !p.eof() {
		c := p.next()
		switch {
		case c == '{':
			depth++
		case c == '}' && depth > 0:
			depth--
		case c == closing && depth == 0:
			return p.src[start : p.pos-1], nil
		}
	}
	return "", p.errorf("unbalanced braces")
}

func (p *parser) quoted() (string, error) {
	start := p.pos
	depth := 0
	for !p.eof() {
		c := p.next()
		switch {
		case c == '{':
			depth++
		case c == '}' && depth > 0:
			depth--
		case c == '"' && depth == 0:
			return p.src[start : p.pos-1], nil
		}
	}
	return "", p.errorf("unterminated quoted value")
}

func isNumber(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// parseMeta reads "jabref-meta: name:value;" comment bodies into db.Metadata.
// Returns false for ordinary comments.
func parseMeta(db *models.Database, body string) bool {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, metaPrefix) {
		return false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, metaPrefix))
	name, value, ok := strings.Cut(rest, ":")
	if !ok {
		return false
	}
	db.Metadata[strings.TrimSpace(name)] = strings.TrimSuffix(strings.TrimSpace(value), ";")
	return true
}
