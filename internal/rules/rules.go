// Package rules rewrites transcript fragments with user-maintained substitutions.
//
// A rules file holds one rule per line. Blank lines and lines starting with
// '#' are ignored. Two syntaxes are built in:
//
//	pull request => PR          literal, case-insensitive
//	s/\bdeep\s*gram\b/Deepgram/g  sed-style regex with i, g, m, s flags
//
// Rules are applied in file order, repeatedly, until the text stops changing
// or the iteration limit is reached.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// DefaultIterationLimit bounds rule passes over one text.
const DefaultIterationLimit = 30

// Rule rewrites text once and reports whether anything changed.
type Rule interface {
	Rewrite(text string) (string, bool)
}

// Syntax recognises and compiles one rule notation.
type Syntax struct {
	Name    string
	Match   func(line string) bool
	Compile func(line string) (Rule, error)
}

// Set is an ordered list of compiled rules.
type Set struct {
	rules []Rule
	limit int
}

// Load reads path and compiles it. A blank path or a missing file yields an
// empty set, which leaves text untouched.
func Load(path string, limit int, extra ...Syntax) (*Set, error) {
	if strings.TrimSpace(path) == "" {
		return &Set{limit: normalizeLimit(limit)}, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Set{limit: normalizeLimit(limit)}, nil
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}
	set, err := Parse(string(contents), limit, extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}
	return set, nil
}

// Parse compiles rules from source. Extra syntaxes are tried before the built-in ones.
func Parse(source string, limit int, extra ...Syntax) (*Set, error) {
	syntaxes := append(append([]Syntax(nil), extra...), Builtin()...)
	set := &Set{limit: normalizeLimit(limit)}

	for index, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, err := compileLine(line, syntaxes)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		set.rules = append(set.rules, rule)
	}
	return set, nil
}

// Builtin returns the regex and literal syntaxes, in match order.
func Builtin() []Syntax {
	return []Syntax{
		{Name: "regex", Match: isRegexLine, Compile: compileRegex},
		{Name: "literal", Match: func(line string) bool { return strings.Contains(line, "=>") }, Compile: compileLiteral},
	}
}

// Len is the number of compiled rules.
func (s *Set) Len() int {
	return len(s.rules)
}

// Apply rewrites text until it is stable or the iteration limit is hit.
func (s *Set) Apply(text string) (string, error) {
	if len(s.rules) == 0 {
		return text, nil
	}
	for pass := 0; pass < s.limit; pass++ {
		changed := false
		for _, rule := range s.rules {
			if next, ok := rule.Rewrite(text); ok {
				text = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return text, nil
}

func compileLine(line string, syntaxes []Syntax) (Rule, error) {
	for _, syntax := range syntaxes {
		if syntax.Match(line) {
			return syntax.Compile(line)
		}
	}
	return nil, errors.New("unsupported rule format")
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultIterationLimit
	}
	return limit
}

type regexRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func (r regexRule) Rewrite(text string) (string, bool) {
	if r.global {
		out := r.re.ReplaceAllString(text, r.replacement)
		return out, out != text
	}
	loc := r.re.FindStringIndex(text)
	if loc == nil {
		return text, false
	}
	segment := r.re.ReplaceAllString(text[loc[0]:loc[1]], r.replacement)
	out := text[:loc[0]] + segment + text[loc[1]:]
	return out, out != text
}

// compileLiteral builds a case-insensitive literal replacement from "from => to".
func compileLiteral(line string) (Rule, error) {
	from, to, ok := strings.Cut(line, "=>")
	if !ok {
		return nil, errors.New("invalid literal rule")
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	// Literal replacements must not expand $1-style references.
	return regexRule{re: re, replacement: strings.ReplaceAll(strings.TrimSpace(to), "$", "$$"), global: true}, nil
}

// compileRegex parses s<d>pattern<d>replacement<d>flags. Matching is
// case-insensitive unless the rule says otherwise; there is no flag to turn
// that off.
func compileRegex(line string) (Rule, error) {
	if len(line) < 2 {
		return nil, errors.New("invalid regex rule")
	}
	delim := line[1]
	if isWordByte(delim) {
		return nil, errors.New("regex delimiter must be non-alphanumeric")
	}

	pattern, pos, err := readDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, pos, err := readDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}

	inline := "i"
	global := false
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i':
		case 'g':
			global = true
		case 'm', 's':
			if !strings.ContainsRune(inline, flag) {
				inline += string(flag)
			}
		case ' ':
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + inline + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return regexRule{re: re, replacement: replacement, global: global}, nil
}

// readDelimited reads up to the next unescaped delim, keeping escapes intact.
func readDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}
	var b strings.Builder
	escaped := false
	for i := start; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == delim:
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
	}
	return "", 0, errors.New("unterminated expression")
}

func isWordByte(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == ' ' || c == '\t'
}

func isRegexLine(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isWordByte(line[1])
}
