package core

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/abiosoft/readline"
	"github.com/anmitsu/go-shlex"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// commandSeparators are words after which a new command starts.
var commandSeparators = map[string]bool{
	"|":  true,
	"||": true,
	"&&": true,
	"&":  true,
	";":  true,
}

// Completer completes command names in command position and file names
// everywhere else.
type Completer struct {
	Exec *Executor
}

var _ readline.AutoCompleter = (*Completer)(nil)

// Do implements readline.AutoCompleter. It returns the suffixes that
// complete the word before pos and the length of that word.
func (c *Completer) Do(line []rune, pos int) (newLine [][]rune, length int) {
	text := string(line[:pos])
	words, err := shlex.Split(text, true)
	if err != nil {
		// Unterminated quote, nothing sensible to offer.
		return nil, 0
	}

	current := ""
	if text != "" && !unicode.IsSpace(rune(text[len(text)-1])) && len(words) > 0 {
		current = words[len(words)-1]
		words = words[:len(words)-1]
	}

	commandPosition := len(words) == 0 || commandSeparators[words[len(words)-1]]

	var prefix string
	var candidates []string
	if commandPosition && !strings.Contains(current, "/") {
		prefix = current
		candidates = c.commands(current)
	} else {
		prefix, candidates = c.files(current)
	}

	for _, candidate := range candidates {
		newLine = append(newLine, []rune(strings.TrimPrefix(candidate, prefix)))
	}
	return newLine, len([]rune(prefix))
}

// commands lists built-ins and executables on PATH starting with prefix,
// each followed by a space.
func (c *Completer) commands(prefix string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] && strings.HasPrefix(name, prefix) {
			seen[name] = true
			out = append(out, name+" ")
		}
	}

	for name := range c.Exec.Builtins {
		add(name)
	}
	for _, name := range PathCommands(c.Exec.State, prefix) {
		add(name)
	}

	sort.Strings(out)
	return out
}

// files lists the entries of the directory named in word whose names start
// with the rest of it. Directories get a trailing slash, files a space.
func (c *Completer) files(word string) (prefix string, out []string) {
	dir, base := filepath.Split(word)

	entries, err := os.ReadDir(c.Exec.State.Abs(dir))
	if err != nil {
		return base, nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, base) {
			continue
		}
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(base, ".") {
			continue
		}

		if isDir(c.Exec.State.Abs(filepath.Join(dir, name)), entry) {
			out = append(out, name+"/")
		} else {
			out = append(out, name+" ")
		}
	}
	return base, out
}

func isDir(path string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// maxSuggestDistance is the largest edit distance offered as a suggestion.
const maxSuggestDistance = 2

// SuggestCommand finds the built-in or executable on PATH with the name
// closest to name, or returns "" if none is close.
func SuggestCommand(e *Executor, name string) string {
	best, bestDistance := "", maxSuggestDistance+1

	consider := func(candidate string) {
		if candidate == name {
			return
		}
		distance := fuzzy.LevenshteinDistance(name, candidate)
		if distance < bestDistance || (distance == bestDistance && candidate < best) {
			best, bestDistance = candidate, distance
		}
	}

	for candidate := range e.Builtins {
		consider(candidate)
	}
	for _, candidate := range PathCommands(e.State, "") {
		consider(candidate)
	}

	return best
}
