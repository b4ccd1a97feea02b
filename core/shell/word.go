package shell

import "strings"

// Quoting records how a part of a word was written.
type Quoting int

const (
	// Unquoted text is subject to parameter expansion.
	Unquoted Quoting = iota
	// SingleQuoted text, including backslash-escaped characters, is literal.
	SingleQuoted
	// DoubleQuoted text is subject to parameter expansion.
	DoubleQuoted
)

// WordPart is a run of characters sharing the same quoting.
type WordPart struct {
	Value   string
	Quoting Quoting
}

// Word is a single shell word made of differently quoted parts, e.g.
// foo"$BAR"'baz' has three parts.
type Word []WordPart

// Lit creates an unquoted word.
func Lit(s string) Word {
	return Word{{Value: s}}
}

// Literal joins the parts without expanding anything.
func (w Word) Literal() string {
	var sb strings.Builder
	for _, part := range w {
		sb.WriteString(part.Value)
	}
	return sb.String()
}

// IsQuoted reports whether any part of the word was quoted or escaped.
func (w Word) IsQuoted() bool {
	for _, part := range w {
		if part.Quoting != Unquoted {
			return true
		}
	}
	return false
}

// Lookup resolves a parameter name such as "HOME", "1", "@" or "?".
type Lookup func(name string) (string, bool)

// Expand substitutes parameters in the unquoted and double-quoted parts of
// the word. The second return value is false when the word disappears: it
// was written entirely unquoted and expanded to nothing.
func (w Word) Expand(lookup Lookup) (string, bool) {
	var sb strings.Builder
	for _, part := range w {
		if part.Quoting == SingleQuoted {
			sb.WriteString(part.Value)
			continue
		}
		sb.WriteString(ExpandText(part.Value, lookup))
	}

	out := sb.String()
	if out == "" && !w.IsQuoted() {
		return "", false
	}
	return out, true
}

// ExpandText substitutes $NAME, ${NAME} and the special parameters
// $0-$9, $@, $*, $#, $? and $$ in s. Unset parameters expand to nothing.
func ExpandText(s string, lookup Lookup) string {
	if !strings.Contains(s, "$") {
		return s
	}

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}

		name, width := paramName(s[i+1:])
		if width == 0 {
			sb.WriteByte('$')
			continue
		}
		if lookup != nil {
			val, _ := lookup(name)
			sb.WriteString(val)
		}
		i += width
	}
	return sb.String()
}

// paramName reads the parameter name following a '$'. It returns the name
// and the number of bytes consumed, or zero if s doesn't start a parameter.
func paramName(s string) (string, int) {
	switch c := s[0]; {
	case c == '{':
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return "", 0
		}
		return s[1:end], end + 1
	case c >= '0' && c <= '9', c == '@', c == '*', c == '#', c == '?', c == '$':
		return s[:1], 1
	case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		end := 1
		for end < len(s) && isNameChar(s[end]) {
			end++
		}
		return s[:end], end
	default:
		return "", 0
	}
}

func isNameChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
