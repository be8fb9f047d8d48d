package rewrite

import (
	"fmt"
	"strings"
)

// tokKind classifies scanner tokens.
type tokKind int

const (
	tokWord  tokKind = iota // identifier or keyword
	tokPunct                // single punctuation rune
	tokOther                // string literal, placeholder, number
)

// token is one lexical unit plus the whitespace/comments preceding it.
// Leading text is carried along so the rewritten statement preserves the
// caller's spacing exactly.
type token struct {
	kind    tokKind
	text    string
	leading string
}

// scanner is a minimal SQL lexer: words, punctuation, quoted strings and
// identifiers, placeholders, and comments. It does not understand grammar;
// the rewriter's state machine supplies that.
type scanner struct {
	src  string
	pos  int
	serr error
	tail string
}

func newScanner(src string) *scanner {
	return &scanner{src: src}
}

// next returns the next token, or ok=false at end of input or on error.
func (s *scanner) next() (token, bool) {
	if s.serr != nil {
		return token{}, false
	}

	start := s.pos
	s.skipSpaceAndComments()
	leading := s.src[start:s.pos]

	if s.pos >= len(s.src) {
		s.tail = leading
		return token{}, false
	}

	c := s.src[s.pos]
	switch {
	case isWordStart(c):
		begin := s.pos
		for s.pos < len(s.src) && isWordChar(s.src[s.pos]) {
			s.pos++
		}
		return token{kind: tokWord, text: s.src[begin:s.pos], leading: leading}, true

	case c == '\'':
		text, err := s.scanQuoted('\'')
		if err != nil {
			s.serr = err
			return token{}, false
		}
		return token{kind: tokOther, text: text, leading: leading}, true

	case c == '"':
		// Quoted identifiers are passed through untouched: the known
		// caller never quotes the entity tables.
		text, err := s.scanQuoted('"')
		if err != nil {
			s.serr = err
			return token{}, false
		}
		return token{kind: tokOther, text: text, leading: leading}, true

	case c >= '0' && c <= '9':
		begin := s.pos
		for s.pos < len(s.src) && (isWordChar(s.src[s.pos]) || s.src[s.pos] == '.') {
			s.pos++
		}
		return token{kind: tokOther, text: s.src[begin:s.pos], leading: leading}, true

	case c == '?':
		s.pos++
		return token{kind: tokOther, text: "?", leading: leading}, true

	case c == ':' || c == '@' || c == '$':
		begin := s.pos
		s.pos++
		for s.pos < len(s.src) && isWordChar(s.src[s.pos]) {
			s.pos++
		}
		return token{kind: tokOther, text: s.src[begin:s.pos], leading: leading}, true

	default:
		s.pos++
		return token{kind: tokPunct, text: string(c), leading: leading}, true
	}
}

// peekDot reports whether the next significant character is a dot, which
// marks the preceding word as a table.column qualifier.
func (s *scanner) peekDot() bool {
	i := s.pos
	for i < len(s.src) {
		c := s.src[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}
		return c == '.'
	}
	return false
}

// err returns the first lexical error encountered, if any.
func (s *scanner) err() error {
	return s.serr
}

// trailing returns whitespace/comments after the final token.
func (s *scanner) trailing() string {
	return s.tail
}

// scanQuoted consumes a quoted region, honoring the SQL doubled-quote
// escape ('' inside a string, "" inside an identifier).
func (s *scanner) scanQuoted(quote byte) (string, error) {
	begin := s.pos
	s.pos++ // opening quote
	for s.pos < len(s.src) {
		if s.src[s.pos] == quote {
			if s.pos+1 < len(s.src) && s.src[s.pos+1] == quote {
				s.pos += 2
				continue
			}
			s.pos++
			return s.src[begin:s.pos], nil
		}
		s.pos++
	}
	return "", fmt.Errorf("unterminated %c-quoted region", quote)
}

// skipSpaceAndComments advances past whitespace, -- line comments, and
// block comments.
func (s *scanner) skipSpaceAndComments() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.pos++
		case c == '-' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '-':
			if idx := strings.IndexByte(s.src[s.pos:], '\n'); idx >= 0 {
				s.pos += idx + 1
			} else {
				s.pos = len(s.src)
			}
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*':
			if idx := strings.Index(s.src[s.pos+2:], "*/"); idx >= 0 {
				s.pos += idx + 4
			} else {
				s.pos = len(s.src)
			}
		default:
			return
		}
	}
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}
