// Package shell turns lines of shell text into command lists.
//
// Loosely follows
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html
//
// 1. The shell breaks the input into tokens: words and operators; see
// Token Recognition. Quoting is preserved on each word so expansion can
// happen at execution time.
//
// 2. The shell parses the input into simple commands joined by pipes and
// control operators (;, &, &&, ||).
//
// 3. Redirection operators and their operands are removed from the argument
// list and attached to the command in the order they were written.
//
// Expansion, redirection and execution are the executor's job.
package shell

import (
	"errors"
	"strconv"
	"strings"
)

// Parser accumulates lines until they form a complete statement.
//
// A Parser only holds state while a statement is incomplete (an open quote,
// a trailing backslash or an unfinished here-document).
type Parser struct {
	pending strings.Builder
}

// NewParser creates a parser with no pending input.
func NewParser() *Parser {
	return &Parser{}
}

// Pending reports whether the parser is waiting for more lines.
func (p *Parser) Pending() bool {
	return p.pending.Len() > 0
}

// Reset discards any buffered partial statement.
func (p *Parser) Reset() {
	p.pending.Reset()
}

// ParseLine parses one line of input.
//
// It returns a nil list and a nil error when the line holds no command
// (blank or comment) or when the statement continues on the next line; use
// Pending to tell the two apart. Syntax errors reject the whole statement and
// clear the pending buffer.
func (p *Parser) ParseLine(line string) (*CommandList, error) {
	text := line
	if p.Pending() {
		text = p.pending.String() + line
	}

	list, err := Parse(text)
	if errors.Is(err, ErrIncomplete) {
		p.pending.Reset()
		p.pending.WriteString(text)
		p.pending.WriteString("\n")
		return nil, nil
	}

	p.pending.Reset()
	return list, err
}

// Parse parses a complete piece of shell text. It returns ErrIncomplete if
// the text ends inside a quote, after a line-continuation backslash or
// before a here-document delimiter.
func Parse(src string) (*CommandList, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &listParser{tokens: tokens}
	return p.parse()
}

type listParser struct {
	tokens []Token
	pos    int
}

func (p *listParser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *listParser) peek() Token {
	return p.tokens[p.pos]
}

func dangling(tok Token) error {
	op := tok.Op
	if tok.Kind == TokenEOF {
		op = "newline"
	}
	return &SyntaxError{Op: op, Pos: tok.Pos, Err: ErrDanglingOperator}
}

func (p *listParser) parse() (*CommandList, error) {
	list := &CommandList{}
	pipeline := &Pipeline{}
	cmd := &Command{}

	// needOperand is set after an operator that must be followed by a
	// command: |, && and ||.
	needOperand := false
	var lastOp Token

	finishCommand := func(op Token) error {
		if cmd.empty() {
			return dangling(op)
		}
		pipeline.Commands = append(pipeline.Commands, cmd)
		cmd = &Command{}
		return nil
	}

	finishPipeline := func(op Token, join JoinOp) error {
		if cmd.empty() && len(pipeline.Commands) == 0 {
			return dangling(op)
		}
		if err := finishCommand(op); err != nil {
			return err
		}
		list.Steps = append(list.Steps, Step{Pipeline: pipeline, Op: join})
		pipeline = &Pipeline{}
		return nil
	}

	for {
		tok := p.next()
		switch tok.Kind {
		case TokenWord:
			needOperand = false
			if len(cmd.Args) == 0 {
				if assign, ok := splitAssignment(tok.Word); ok {
					cmd.Assigns = append(cmd.Assigns, assign)
					continue
				}
			}
			cmd.Args = append(cmd.Args, tok.Word)

		case TokenRedirect:
			needOperand = false
			spec, err := p.redirect(tok)
			if err != nil {
				return nil, err
			}
			cmd.Redirects = append(cmd.Redirects, spec)

		case TokenPipe:
			if err := finishCommand(tok); err != nil {
				return nil, err
			}
			needOperand, lastOp = true, tok

		case TokenAndIf, TokenOrIf:
			join := JoinAndThen
			if tok.Kind == TokenOrIf {
				join = JoinOrElse
			}
			if err := finishPipeline(tok, join); err != nil {
				return nil, err
			}
			needOperand, lastOp = true, tok

		case TokenSemi, TokenAmp:
			// A newline with nothing before it is only a separator.
			if tok.Op == "\n" && cmd.empty() && len(pipeline.Commands) == 0 && !needOperand {
				continue
			}
			if needOperand {
				return nil, dangling(lastOp)
			}
			if tok.Kind == TokenAmp {
				pipeline.Background = true
			}
			if err := finishPipeline(tok, JoinSequential); err != nil {
				return nil, err
			}

		case TokenEOF:
			if needOperand {
				return nil, dangling(lastOp)
			}
			if !cmd.empty() || len(pipeline.Commands) > 0 {
				if err := finishPipeline(tok, JoinEnd); err != nil {
					return nil, err
				}
			}
			if len(list.Steps) == 0 {
				return nil, nil
			}
			list.Steps[len(list.Steps)-1].Op = JoinEnd
			return list, nil
		}
	}
}

func (p *listParser) redirect(tok Token) (RedirectSpec, error) {
	spec := RedirectSpec{
		Kind:     tok.Redirect,
		Op:       tok.Op,
		SourceFD: tok.FD,
	}

	if spec.Kind == RedirectHeredoc {
		spec.Target = tok.Word
		spec.Body = tok.Body
		spec.Expand = !tok.Word.IsQuoted()
		return spec, nil
	}

	target := p.peek()
	if target.Kind != TokenWord {
		return spec, dangling(tok)
	}
	p.next()
	spec.Target = target.Word

	if spec.Kind == RedirectDup {
		lit := target.Word.Literal()
		switch {
		case lit == "-":
			spec.Kind = RedirectClose
		case isDigits(lit):
			fd, err := strconv.Atoi(lit)
			if err != nil {
				return spec, &SyntaxError{Op: tok.Op, Pos: target.Pos, Err: ErrBadRedirect}
			}
			spec.TargetFD = fd
		default:
			return spec, &SyntaxError{Op: tok.Op + lit, Pos: target.Pos, Err: ErrBadRedirect}
		}
	}

	return spec, nil
}

// splitAssignment recognizes NAME=value words. The name must be written
// without quotes.
func splitAssignment(w Word) (Assign, bool) {
	if len(w) == 0 || w[0].Quoting != Unquoted {
		return Assign{}, false
	}
	head := w[0].Value
	eq := strings.IndexByte(head, '=')
	if eq <= 0 || !ValidName(head[:eq]) {
		return Assign{}, false
	}

	value := Word{}
	if rest := head[eq+1:]; rest != "" {
		value = append(value, WordPart{Value: rest})
	}
	value = append(value, w[1:]...)
	return Assign{Name: head[:eq], Value: value}, true
}

// ValidName reports whether name can be used as a variable name.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
