package shell

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

func TestCommandList_String(t *testing.T) {
	cases := map[string]string{
		"pipeline":    "cat  file.txt|grep   -v 'a b' | wc -l",
		"conditional": `make&&echo done||echo "build failed"`,
		"redirects":   "sort <in.txt >out.txt 2>>errors.log 2>&1",
		"background":  "sleep 10 & echo started;",
		"assignments": "LANG=C TZ=UTC date +%s",
		"escapes":     `echo \$HOME "$HOME" '$HOME'`,
		"heredoc":     "cat <<EOF\nbody\nEOF",
	}

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
	)

	for tn, input := range cases {
		t.Run(tn, func(t *testing.T) {
			list := mustParse(t, input)
			g.Assert(t, tn, []byte(list.String()+"\n"))
		})
	}
}

// Rendered lists must parse back to the same structure, minus here-document
// bodies which aren't rendered.
func TestCommandList_StringRoundTrip(t *testing.T) {
	inputs := []string{
		"echo 'a|b' \"c d\" e\\ f",
		"a && b || c; d & e",
		"tr a-z A-Z <in >>out 2>&1 3>&-",
		"X='multi word' Y=\"$HOME/bin\" run 'it''s'",
		`echo "quote \" and \\ and \$ inside"`,
	}

	for _, input := range inputs {
		first := mustParse(t, input)
		second := mustParse(t, first.String())
		assert.Equal(t, argvs(first), argvs(second), input)
		assert.Equal(t, ops(first), ops(second), input)
		assert.Equal(t, first.String(), second.String(), input)
	}
}

func TestQuoteWord(t *testing.T) {
	for _, s := range []string{"plain", "a b", "$HOME", "it's", "", "a|b;c", "*"} {
		list := mustParse(t, "echo "+QuoteWord(s))
		assert.Equal(t, [][]string{{"echo", s}}, argvs(list), s)
	}
}

// The literal value of words without parameters must agree with what a full
// POSIX shell parser produces.
func TestParse_agreesWithPOSIXParser(t *testing.T) {
	inputs := []string{
		`echo 'a|b' "c d" ef`,
		`printf '%s\n' "it's" x`,
		`echo "a\"b" 'c'"d"`,
		`ls -la /tmp`,
		`grep -e "a\nb" 'x\y'`,
		`echo "semi;colon" '&&'`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			f, err := syntax.NewParser().Parse(strings.NewReader(input), "")
			require.NoError(t, err)
			require.Len(t, f.Stmts, 1)
			call, ok := f.Stmts[0].Cmd.(*syntax.CallExpr)
			require.True(t, ok)

			var want []string
			for _, w := range call.Args {
				lit, err := expand.Literal(nil, w)
				require.NoError(t, err)
				want = append(want, lit)
			}

			list := mustParse(t, input)
			assert.Equal(t, [][]string{want}, argvs(list))
		})
	}
}
