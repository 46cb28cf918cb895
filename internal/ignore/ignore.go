// Package ignore matches vault paths against the exclusion rules of a
// .codexkeepignore file. Rules follow gitignore syntax: blank lines and
// # comments are skipped, a leading ! negates, a trailing / restricts
// the rule to directories, and a leading or internal / anchors the rule
// to the vault root.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// FileName is the ignore file read from the vault root.
const FileName = ".codexkeepignore"

// Ruleset holds compiled ignore rules and answers thread-safe queries
// against vault-relative paths.
type Ruleset struct {
	rules []rule
	mu    sync.RWMutex
}

type rule struct {
	source   string
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	anchored bool
}

// NewRuleset returns an empty Ruleset that ignores nothing.
func NewRuleset() *Ruleset {
	return &Ruleset{}
}

// ForVault loads the ignore file at the root of the given vault. A vault
// without an ignore file yields an empty Ruleset.
func ForVault(root string) (*Ruleset, error) {
	rs := NewRuleset()
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return rs, nil
		}
		return nil, fmt.Errorf("stat ignore file: %w", err)
	}
	if err := rs.Load(path); err != nil {
		return nil, err
	}
	return rs, nil
}

// Load reads rules from an ignore file, appending to any already present.
func (rs *Ruleset) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		rs.Add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read ignore file: %w", err)
	}
	return nil
}

// Add compiles a single rule line. Blank lines and comments are dropped.
func (rs *Ruleset) Add(line string) {
	// A backslash-escaped trailing space survives trimming.
	escapedSpace := strings.HasSuffix(line, `\ `)
	line = strings.TrimSpace(line)

	if line == "" || (strings.HasPrefix(line, "#") && !strings.HasPrefix(line, `\#`)) {
		return
	}

	r := rule{source: line}

	if strings.HasPrefix(line, `\#`) || strings.HasPrefix(line, `\!`) {
		line = strings.TrimPrefix(line, `\`)
		r.source = line
	} else if strings.HasPrefix(line, "!") {
		r.negate = true
		line = strings.TrimPrefix(line, "!")
	}

	if escapedSpace && strings.HasSuffix(line, `\`) {
		line = strings.TrimSuffix(line, `\`) + " "
	}

	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	// An internal slash also anchors: "notes/drafts" means
	// "/notes/drafts", not "**/notes/drafts".
	if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") && !strings.HasPrefix(line, "*") {
		r.anchored = true
	}

	r.re = regexp.MustCompile("^" + globToRegex(line) + "$")

	rs.mu.Lock()
	rs.rules = append(rs.rules, r)
	rs.mu.Unlock()
}

// Len reports the number of compiled rules.
func (rs *Ruleset) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rules)
}

// Ignored reports whether a vault-relative path is excluded. The last
// matching rule wins, so a later negation can re-include a path.
func (rs *Ruleset) Ignored(path string, isDir bool) bool {
	path = filepath.ToSlash(path)

	rs.mu.RLock()
	defer rs.mu.RUnlock()

	ignored := false
	for _, r := range rs.rules {
		if matches(path, isDir, r) {
			ignored = !r.negate
		}
	}
	return ignored
}

func matches(path string, isDir bool, r rule) bool {
	parts := strings.Split(path, "/")
	basename := parts[len(parts)-1]

	if r.anchored {
		if r.re.MatchString(path) {
			if r.dirOnly {
				return isDir
			}
			return true
		}
		// A directory rule also covers everything under the directory.
		if r.dirOnly {
			for i := range parts[:len(parts)-1] {
				if r.re.MatchString(strings.Join(parts[:i+1], "/")) {
					return true
				}
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.re.MatchString(part) {
				if i == len(parts)-1 {
					return isDir
				}
				return true
			}
		}
		return false
	}

	if r.re.MatchString(basename) || r.re.MatchString(path) {
		return true
	}
	for _, part := range parts {
		if r.re.MatchString(part) {
			return true
		}
	}
	return false
}

// globToRegex translates one gitignore-style glob into a regex fragment.
func globToRegex(pattern string) string {
	var out strings.Builder

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					// **/ spans any number of directories.
					out.WriteString("(?:.*/)?")
					i += 3
					continue
				}
				if i == 0 || pattern[i-1] == '/' {
					out.WriteString(".*")
					i += 2
					continue
				}
			}
			out.WriteString("[^/]*")
			i++
		case '?':
			out.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				out.WriteString(pattern[i : j+1])
				i = j + 1
			} else {
				out.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '\\':
			if i+1 < len(pattern) {
				out.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				out.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '.', '+', '^', '$', '(', ')', '{', '}', '|':
			out.WriteString(regexp.QuoteMeta(string(c)))
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}
