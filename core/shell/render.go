package shell

import (
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// QuoteWord quotes s so the shell reads it back as a single literal word.
func QuoteWord(s string) string {
	quoted, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return quoted
}

var doubleQuoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`")

func (w Word) String() string {
	var sb strings.Builder
	for _, part := range w {
		switch part.Quoting {
		case SingleQuoted:
			sb.WriteString(QuoteWord(part.Value))
		case DoubleQuoted:
			sb.WriteByte('"')
			sb.WriteString(doubleQuoteEscaper.Replace(part.Value))
			sb.WriteByte('"')
		default:
			sb.WriteString(part.Value)
		}
	}
	return sb.String()
}

func (r RedirectSpec) String() string {
	var sb strings.Builder

	defaultFD := 1
	if strings.HasPrefix(r.Op, "<") {
		defaultFD = 0
	}
	if r.SourceFD != defaultFD {
		sb.WriteString(strconv.Itoa(r.SourceFD))
	}
	sb.WriteString(r.Op)

	switch r.Kind {
	case RedirectDup:
		sb.WriteString(strconv.Itoa(r.TargetFD))
	case RedirectClose:
		sb.WriteByte('-')
	default:
		sb.WriteString(r.Target.String())
	}
	return sb.String()
}

func (c *Command) String() string {
	var fields []string
	for _, assign := range c.Assigns {
		fields = append(fields, assign.Name+"="+assign.Value.String())
	}
	for _, arg := range c.Args {
		fields = append(fields, arg.String())
	}
	for _, redirect := range c.Redirects {
		fields = append(fields, redirect.String())
	}
	return strings.Join(fields, " ")
}

func (p *Pipeline) String() string {
	cmds := make([]string, 0, len(p.Commands))
	for _, cmd := range p.Commands {
		cmds = append(cmds, cmd.String())
	}
	out := strings.Join(cmds, " | ")
	if p.Background {
		out += " &"
	}
	return out
}

// String renders the list back to shell text on a single line.
// Here-document bodies are not included.
func (l *CommandList) String() string {
	var sb strings.Builder
	for i, step := range l.Steps {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(step.Pipeline.String())
		if step.Op == JoinEnd || (step.Op == JoinSequential && step.Pipeline.Background) {
			continue
		}
		if step.Op != JoinSequential {
			sb.WriteByte(' ')
		}
		sb.WriteString(step.Op.String())
	}
	return sb.String()
}
