package tomlx

import (
	"bytes"
	"fmt"
	"strconv"
)

type itemKind int

const (
	triviaItem itemKind = iota
	headerItem
	arrayHeaderItem
	entryItem
)

// item is one logical line of a TOML document: a blank or comment line, a
// table header, or a key/value entry that may span several lines.
type item struct {
	kind       itemKind
	start, end int // end includes the line break
	key        []string
	valStart   int
	valEnd     int
	elems      []element // top-level elements when the value is an array
	multiline  bool
	blank      bool
}

// element is the raw text of one array element and the comment that
// follows it on the same line.
type element struct {
	start, end int
	comment    string
	indent     string
}

type scanner struct {
	src []byte
	pos int
}

func scan(src []byte) ([]item, error) {
	s := &scanner{src: src}
	var items []item
	for !s.eof() {
		it, err := s.line()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) hasPrefix(p string) bool {
	return bytes.HasPrefix(s.src[s.pos:], []byte(p))
}

func (s *scanner) errorf(format string, args ...any) error {
	line := bytes.Count(s.src[:min(s.pos, len(s.src))], []byte{'\n'}) + 1
	return fmt.Errorf("line %d: %s", line, fmt.Sprintf(format, args...))
}

func (s *scanner) skipSpace() {
	for !s.eof() && (s.peek() == ' ' || s.peek() == '\t') {
		s.pos++
	}
}

// skipComment stops in front of the line break.
func (s *scanner) skipComment() {
	for !s.eof() && s.peek() != '\n' && s.peek() != '\r' {
		s.pos++
	}
}

func (s *scanner) skipToEOL() {
	for !s.eof() {
		c := s.peek()
		s.pos++
		if c == '\n' {
			return
		}
	}
}

func (s *scanner) skipBlank() {
	for !s.eof() {
		switch s.peek() {
		case ' ', '\t', '\r', '\n':
			s.pos++
		case '#':
			s.skipComment()
		default:
			return
		}
	}
}

// lineEnd consumes an optional comment and the line break.
func (s *scanner) lineEnd() error {
	s.skipSpace()
	if s.peek() == '#' {
		s.skipComment()
	}
	switch {
	case s.eof():
		return nil
	case s.hasPrefix("\r\n"):
		s.pos += 2
	case s.peek() == '\n':
		s.pos++
	default:
		return s.errorf("unexpected %q after value", s.peek())
	}
	return nil
}

func (s *scanner) line() (item, error) {
	start := s.pos
	s.skipSpace()
	switch c := s.peek(); {
	case s.eof() || c == '\n' || c == '\r' || c == '#':
		blank := c != '#'
		s.skipToEOL()
		return item{kind: triviaItem, start: start, end: s.pos, blank: blank}, nil
	case s.hasPrefix("[["):
		return s.header(start, arrayHeaderItem, "]]")
	case c == '[':
		return s.header(start, headerItem, "]")
	}
	key, err := s.key()
	if err != nil {
		return item{}, err
	}
	s.skipSpace()
	if s.peek() != '=' {
		return item{}, s.errorf("expected '=' after key")
	}
	s.pos++
	s.skipSpace()
	it := item{kind: entryItem, start: start, key: key, valStart: s.pos}
	if s.peek() == '[' {
		it.elems, err = s.array()
	} else {
		err = s.value()
	}
	if err != nil {
		return item{}, err
	}
	it.valEnd = s.pos
	it.multiline = bytes.IndexByte(s.src[it.valStart:it.valEnd], '\n') >= 0
	if err := s.lineEnd(); err != nil {
		return item{}, err
	}
	it.end = s.pos
	return it, nil
}

func (s *scanner) header(start int, kind itemKind, closing string) (item, error) {
	s.pos += len(closing)
	key, err := s.key()
	if err != nil {
		return item{}, err
	}
	s.skipSpace()
	if !s.hasPrefix(closing) {
		return item{}, s.errorf("expected %q to close table header", closing)
	}
	s.pos += len(closing)
	if err := s.lineEnd(); err != nil {
		return item{}, err
	}
	return item{kind: kind, start: start, end: s.pos, key: key}, nil
}

func (s *scanner) key() ([]string, error) {
	var parts []string
	for {
		s.skipSpace()
		part, err := s.simpleKey()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
		s.skipSpace()
		if s.peek() != '.' {
			return parts, nil
		}
		s.pos++
	}
}

func (s *scanner) simpleKey() (string, error) {
	start := s.pos
	switch s.peek() {
	case '"':
		if err := s.basicString(); err != nil {
			return "", err
		}
		raw := string(s.src[start:s.pos])
		if k, err := strconv.Unquote(raw); err == nil {
			return k, nil
		}
		return raw[1 : len(raw)-1], nil
	case '\'':
		if err := s.literalString(); err != nil {
			return "", err
		}
		return string(s.src[start+1 : s.pos-1]), nil
	}
	for !s.eof() && isBareKeyChar(s.peek()) {
		s.pos++
	}
	if s.pos == start {
		return "", s.errorf("expected a key")
	}
	return string(s.src[start:s.pos]), nil
}

func isBareKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (s *scanner) value() error {
	switch {
	case s.hasPrefix(`"""`):
		return s.multilineString(`"""`, true)
	case s.hasPrefix(`'''`):
		return s.multilineString(`'''`, false)
	case s.peek() == '"':
		return s.basicString()
	case s.peek() == '\'':
		return s.literalString()
	case s.peek() == '[':
		_, err := s.array()
		return err
	case s.peek() == '{':
		return s.inlineTable()
	}
	start := s.pos
	for !s.eof() {
		c := s.peek()
		if c == ',' || c == ']' || c == '}' || c == '#' || c == '\n' || c == '\r' {
			break
		}
		if c == ' ' || c == '\t' {
			// "1979-05-27 07:32:00" is a single date-time value.
			if c == ' ' && s.pos > start && isDigit(s.src[s.pos-1]) && s.pos+1 < len(s.src) && isDigit(s.src[s.pos+1]) {
				s.pos++
				continue
			}
			break
		}
		s.pos++
	}
	if s.pos == start {
		return s.errorf("expected a value")
	}
	return nil
}

func (s *scanner) basicString() error {
	s.pos++
	for !s.eof() {
		switch s.peek() {
		case '\\':
			s.pos += 2
			continue
		case '"':
			s.pos++
			return nil
		case '\n':
			return s.errorf("unterminated string")
		}
		s.pos++
	}
	return s.errorf("unterminated string")
}

func (s *scanner) literalString() error {
	s.pos++
	for !s.eof() {
		switch s.peek() {
		case '\'':
			s.pos++
			return nil
		case '\n':
			return s.errorf("unterminated string")
		}
		s.pos++
	}
	return s.errorf("unterminated string")
}

func (s *scanner) multilineString(delim string, escapes bool) error {
	s.pos += len(delim)
	for !s.eof() {
		if escapes && s.peek() == '\\' {
			s.pos += 2
			continue
		}
		if s.hasPrefix(delim) {
			s.pos += len(delim)
			// up to two quotes may directly precede the closing delimiter
			for i := 0; i < 2 && s.peek() == delim[0]; i++ {
				s.pos++
			}
			return nil
		}
		s.pos++
	}
	return s.errorf("unterminated multi-line string")
}

func (s *scanner) array() ([]element, error) {
	s.pos++
	var elems []element
	for {
		s.skipBlank()
		if s.eof() {
			return nil, s.errorf("unterminated array")
		}
		if s.peek() == ']' {
			s.pos++
			return elems, nil
		}
		e := element{start: s.pos, indent: s.indentAt(s.pos)}
		if err := s.value(); err != nil {
			return nil, err
		}
		e.end = s.pos
		s.skipSpace()
		comma := s.peek() == ','
		if comma {
			s.pos++
			s.skipSpace()
		}
		if s.peek() == '#' {
			from := s.pos
			s.skipComment()
			e.comment = string(s.src[from:s.pos])
		}
		elems = append(elems, e)
		if !comma {
			s.skipBlank()
			if s.peek() != ']' {
				return nil, s.errorf("expected ',' or ']' in array")
			}
		}
	}
}

// indentAt returns the whitespace in front of pos when pos starts its line.
func (s *scanner) indentAt(pos int) string {
	lineStart := bytes.LastIndexByte(s.src[:pos], '\n') + 1
	prefix := s.src[lineStart:pos]
	if len(bytes.Trim(prefix, " \t")) != 0 {
		return ""
	}
	return string(prefix)
}

func (s *scanner) inlineTable() error {
	s.pos++
	for {
		s.skipBlank()
		if s.eof() {
			return s.errorf("unterminated inline table")
		}
		if s.peek() == '}' {
			s.pos++
			return nil
		}
		if _, err := s.key(); err != nil {
			return err
		}
		s.skipSpace()
		if s.peek() != '=' {
			return s.errorf("expected '=' in inline table")
		}
		s.pos++
		s.skipSpace()
		if err := s.value(); err != nil {
			return err
		}
		s.skipBlank()
		if s.peek() == ',' {
			s.pos++
			continue
		}
		s.skipBlank()
		if s.peek() != '}' {
			return s.errorf("expected ',' or '}' in inline table")
		}
	}
}
