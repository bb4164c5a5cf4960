package runner

import (
	"fmt"
	"os"
	"strings"
)

// readDepfile returns the prerequisites listed in a make-style dependency
// file as written by the compiler's -MMD option. Rules for several targets
// are merged; phony header rules (-MP) contribute nothing.
func readDepfile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseDepfile(string(data))
}

func parseDepfile(data string) ([]string, error) {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	data = strings.ReplaceAll(data, "\\\n", " ")

	var deps []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(data, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		words := splitDepWords(line)
		sep := -1
		for i, w := range words {
			if strings.HasSuffix(w, ":") {
				sep = i
				break
			}
		}
		if sep < 0 {
			return nil, fmt.Errorf("malformed dependency line %q", line)
		}
		for _, w := range words[sep+1:] {
			if !seen[w] {
				seen[w] = true
				deps = append(deps, w)
			}
		}
	}
	return deps, nil
}

// splitDepWords splits a depfile line at unescaped whitespace.
func splitDepWords(line string) []string {
	var words []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line) && (line[i+1] == ' ' || line[i+1] == '#'):
			b.WriteByte(line[i+1])
			i++
		case c == '$' && i+1 < len(line) && line[i+1] == '$':
			b.WriteByte('$')
			i++
		case c == ' ' || c == '\t':
			flush()
		default:
			b.WriteByte(c)
		}
	}
	flush()
	return words
}
