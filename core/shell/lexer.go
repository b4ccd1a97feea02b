package shell

import (
	"strconv"
	"strings"
)

// TokenKind classifies lexical units.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenWord
	TokenPipe     // |
	TokenAndIf    // &&
	TokenOrIf     // ||
	TokenSemi     // ; or newline
	TokenAmp      // &
	TokenRedirect // <, >, >>, <<, <<-, <&, >&
)

// Token is a lexical unit of a statement.
type Token struct {
	Kind TokenKind
	Pos  int
	// Op holds operator text; for redirections it excludes the descriptor.
	Op string
	// Word is set for TokenWord and holds the delimiter of here-documents.
	Word Word

	Redirect RedirectKind
	FD       int
	Body     string
}

type heredoc struct {
	token     int
	delimiter string
	stripTabs bool
}

type lexer struct {
	src    string
	pos    int
	tokens []Token

	// Word being built.
	parts     Word
	buf       strings.Builder
	quoting   Quoting
	inWord    bool
	wordStart int

	// awaitDelim is the here-document whose delimiter is the next word.
	awaitDelim *heredoc
	// heredocs have a delimiter and wait for their body after a newline.
	heredocs []*heredoc
}

func lex(src string) ([]Token, error) {
	l := &lexer{src: src}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\':
			if l.pos+1 >= len(l.src) {
				return ErrIncomplete
			}
			if next := l.src[l.pos+1]; next != '\n' {
				l.addByte(next, SingleQuoted)
			}
			l.pos += 2

		case c == '\'':
			end := strings.IndexByte(l.src[l.pos+1:], '\'')
			if end < 0 {
				return ErrIncomplete
			}
			l.addQuoted(l.src[l.pos+1:l.pos+1+end], SingleQuoted)
			l.pos += end + 2

		case c == '"':
			if err := l.doubleQuoted(); err != nil {
				return err
			}

		case c == ' ' || c == '\t' || c == '\r':
			if err := l.endWord(); err != nil {
				return err
			}
			l.pos++

		case c == '\n':
			if err := l.operator(TokenSemi, "\n", 1); err != nil {
				return err
			}
			if err := l.readHeredocBodies(); err != nil {
				return err
			}

		case c == '#' && !l.inWord:
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}

		case c == '|':
			if l.peekByte(1) == '|' {
				if err := l.operator(TokenOrIf, "||", 2); err != nil {
					return err
				}
			} else if err := l.operator(TokenPipe, "|", 1); err != nil {
				return err
			}

		case c == '&':
			if l.peekByte(1) == '&' {
				if err := l.operator(TokenAndIf, "&&", 2); err != nil {
					return err
				}
			} else if err := l.operator(TokenAmp, "&", 1); err != nil {
				return err
			}

		case c == ';':
			if err := l.operator(TokenSemi, ";", 1); err != nil {
				return err
			}

		case c == '<' || c == '>':
			if err := l.redirect(); err != nil {
				return err
			}

		default:
			l.addByte(c, Unquoted)
			l.pos++
		}
	}

	if err := l.endWord(); err != nil {
		return err
	}
	if l.awaitDelim != nil {
		return &SyntaxError{Op: "newline", Pos: l.pos, Err: ErrDanglingOperator}
	}
	if len(l.heredocs) > 0 {
		return ErrIncomplete
	}

	l.tokens = append(l.tokens, Token{Kind: TokenEOF, Pos: l.pos})
	return nil
}

func (l *lexer) peekByte(offset int) byte {
	if l.pos+offset < len(l.src) {
		return l.src[l.pos+offset]
	}
	return 0
}

// doubleQuoted consumes a "..." section. Backslash only escapes $, `, ", \
// and newline inside double quotes.
func (l *lexer) doubleQuoted() error {
	l.startQuote()
	i := l.pos + 1
	for {
		if i >= len(l.src) {
			return ErrIncomplete
		}
		c := l.src[i]
		switch {
		case c == '"':
			l.endQuote(DoubleQuoted)
			l.pos = i + 1
			return nil
		case c == '\\':
			if i+1 >= len(l.src) {
				return ErrIncomplete
			}
			switch next := l.src[i+1]; next {
			case '\n':
			case '$', '`':
				l.addByte(next, SingleQuoted)
			case '"', '\\':
				l.addByte(next, DoubleQuoted)
			default:
				l.addByte(c, DoubleQuoted)
				l.addByte(next, DoubleQuoted)
			}
			i += 2
		default:
			l.addByte(c, DoubleQuoted)
			i++
		}
	}
}

func (l *lexer) addByte(c byte, q Quoting) {
	if !l.inWord {
		l.inWord = true
		l.wordStart = l.pos
	}
	if q != l.quoting {
		l.flushPart()
		l.quoting = q
	}
	l.buf.WriteByte(c)
}

// startQuote marks the beginning of a quoted section so that empty quotes
// still produce a word.
func (l *lexer) startQuote() {
	if !l.inWord {
		l.inWord = true
		l.wordStart = l.pos
	}
	l.flushPart()
}

func (l *lexer) endQuote(q Quoting) {
	if l.buf.Len() == 0 {
		l.parts = append(l.parts, WordPart{Quoting: q})
		return
	}
	l.flushPart()
}

func (l *lexer) addQuoted(s string, q Quoting) {
	l.startQuote()
	l.quoting = q
	l.buf.WriteString(s)
	l.endQuote(q)
}

func (l *lexer) flushPart() {
	if l.buf.Len() > 0 {
		l.parts = append(l.parts, WordPart{Value: l.buf.String(), Quoting: l.quoting})
		l.buf.Reset()
	}
	l.quoting = Unquoted
}

func (l *lexer) endWord() error {
	if !l.inWord {
		return nil
	}
	l.flushPart()
	word := l.parts
	l.parts = nil
	l.inWord = false

	if h := l.awaitDelim; h != nil {
		h.delimiter = word.Literal()
		l.tokens[h.token].Word = word
		l.heredocs = append(l.heredocs, h)
		l.awaitDelim = nil
		return nil
	}

	l.tokens = append(l.tokens, Token{Kind: TokenWord, Pos: l.wordStart, Word: word})
	return nil
}

func (l *lexer) operator(kind TokenKind, op string, width int) error {
	if err := l.endWord(); err != nil {
		return err
	}
	if l.awaitDelim != nil {
		return &SyntaxError{Op: l.tokens[l.awaitDelim.token].Op, Pos: l.pos, Err: ErrDanglingOperator}
	}
	l.tokens = append(l.tokens, Token{Kind: kind, Pos: l.pos, Op: op})
	l.pos += width
	return nil
}

// currentFD returns the descriptor number if the word being built is an
// unquoted run of digits directly before a redirection operator, e.g. "2>".
func (l *lexer) currentFD() (int, bool) {
	if !l.inWord || len(l.parts) > 0 || l.quoting != Unquoted {
		return 0, false
	}
	digits := l.buf.String()
	if !isDigits(digits) {
		return 0, false
	}
	fd, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return fd, true
}

func (l *lexer) redirect() error {
	fd, explicit := l.currentFD()
	if explicit {
		l.buf.Reset()
		l.inWord = false
	} else if err := l.endWord(); err != nil {
		return err
	}
	if l.awaitDelim != nil {
		return &SyntaxError{Op: l.tokens[l.awaitDelim.token].Op, Pos: l.pos, Err: ErrDanglingOperator}
	}

	tok := Token{Kind: TokenRedirect, Pos: l.pos}
	input := l.src[l.pos] == '<'
	switch {
	case input && l.peekByte(1) == '<' && l.peekByte(2) == '-':
		tok.Op, tok.Redirect = "<<-", RedirectHeredoc
	case input && l.peekByte(1) == '<':
		tok.Op, tok.Redirect = "<<", RedirectHeredoc
	case input && l.peekByte(1) == '&':
		tok.Op, tok.Redirect = "<&", RedirectDup
	case input:
		tok.Op, tok.Redirect = "<", RedirectInput
	case l.peekByte(1) == '>':
		tok.Op, tok.Redirect = ">>", RedirectAppend
	case l.peekByte(1) == '&':
		tok.Op, tok.Redirect = ">&", RedirectDup
	case l.peekByte(1) == '|':
		tok.Op, tok.Redirect = ">|", RedirectOutput
	default:
		tok.Op, tok.Redirect = ">", RedirectOutput
	}

	switch {
	case explicit:
		tok.FD = fd
	case input:
		tok.FD = 0
	default:
		tok.FD = 1
	}

	l.pos += len(tok.Op)
	l.tokens = append(l.tokens, tok)
	if tok.Redirect == RedirectHeredoc {
		l.awaitDelim = &heredoc{token: len(l.tokens) - 1, stripTabs: tok.Op == "<<-"}
	}
	return nil
}

// readHeredocBodies consumes the lines following a newline as the bodies of
// any pending here-documents, in the order they were opened.
func (l *lexer) readHeredocBodies() error {
	for _, h := range l.heredocs {
		var body strings.Builder
		for {
			if l.pos >= len(l.src) {
				return ErrIncomplete
			}
			line := l.src[l.pos:]
			next := len(l.src)
			if nl := strings.IndexByte(line, '\n'); nl >= 0 {
				line = line[:nl]
				next = l.pos + nl + 1
			}
			if h.stripTabs {
				line = strings.TrimLeft(line, "\t")
			}
			l.pos = next
			if line == h.delimiter {
				break
			}
			body.WriteString(line)
			body.WriteByte('\n')
		}
		l.tokens[h.token].Body = body.String()
	}
	l.heredocs = nil
	return nil
}
