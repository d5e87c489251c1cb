// Package rules expands abbreviations in composed text before it is read
// aloud or mailed.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

//go:embed default.rules
var defaultRules string

type rule interface {
	Apply(input string) (output string, changed bool)
}

// Parser turns one line of a rules file into a rule.
type Parser interface {
	CanParse(line string) bool
	Parse(line string) (rule, error)
}

// Expander applies abbreviation and pattern rules until the text is stable.
type Expander struct {
	rules          []rule
	iterationLimit int
}

// NewExpander compiles the built-in abbreviations followed by the rules in
// path. A missing file is not an error.
func NewExpander(path string, iterationLimit int) (*Expander, error) {
	return NewExpanderWithParsers(path, iterationLimit, true, defaultParsers())
}

// NewExpanderWithParsers builds an expander from path only when builtins is
// false.
func NewExpanderWithParsers(path string, iterationLimit int, builtins bool, parsers []Parser) (*Expander, error) {
	if iterationLimit <= 0 {
		iterationLimit = 30
	}
	if len(parsers) == 0 {
		parsers = defaultParsers()
	}

	e := &Expander{iterationLimit: iterationLimit}
	if builtins {
		compiled, err := parseRules(defaultRules, parsers)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built-in rules: %w", err)
		}
		e.rules = append(e.rules, compiled...)
	}

	if strings.TrimSpace(path) == "" {
		return e, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return e, nil
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}
	compiled, err := parseRules(string(contents), parsers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}
	e.rules = append(e.rules, compiled...)
	return e, nil
}

// Len reports how many rules are loaded.
func (e *Expander) Len() int {
	return len(e.rules)
}

// Apply expands text. Passes stop once nothing changes or the iteration
// limit is reached.
func (e *Expander) Apply(text string) (string, error) {
	result := text
	for i := 0; i < e.iterationLimit; i++ {
		changed := false
		for _, r := range e.rules {
			next, ruleChanged := r.Apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result, nil
}

func parseRules(contents string, parsers []Parser) ([]rule, error) {
	lines := strings.Split(contents, "\n")
	out := make([]rule, 0, len(lines))
	for index, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var parsed rule
		for _, parser := range parsers {
			if !parser.CanParse(line) {
				continue
			}
			r, err := parser.Parse(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", index+1, err)
			}
			parsed = r
			break
		}
		if parsed == nil {
			return nil, fmt.Errorf("line %d: unsupported rule format", index+1)
		}
		out = append(out, parsed)
	}
	return out, nil
}

func defaultParsers() []Parser {
	return []Parser{patternParser{}, abbreviationParser{}}
}

// abbreviationParser reads "brb => be right back". The short form matches
// whole words only.
type abbreviationParser struct{}

func (abbreviationParser) CanParse(line string) bool {
	return strings.Contains(line, "=>")
}

func (abbreviationParser) Parse(line string) (rule, error) {
	short, long, _ := strings.Cut(line, "=>")
	short = strings.TrimSpace(short)
	long = strings.TrimSpace(long)
	if short == "" {
		return nil, errors.New("abbreviation cannot be empty")
	}
	if strings.EqualFold(short, long) {
		return nil, fmt.Errorf("abbreviation %q expands to itself", short)
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(short) + `\b`)
	if err != nil {
		return nil, fmt.Errorf("invalid abbreviation: %w", err)
	}
	return abbreviation{re: re, expansion: long}, nil
}

type abbreviation struct {
	re        *regexp.Regexp
	expansion string
}

// Apply keeps a leading capital so sentence starts stay capitalized.
func (a abbreviation) Apply(input string) (string, bool) {
	output := a.re.ReplaceAllStringFunc(input, func(match string) string {
		first, _ := utf8.DecodeRuneInString(match)
		if unicode.IsUpper(first) {
			return capitalize(a.expansion)
		}
		return a.expansion
	})
	return output, output != input
}

// patternParser reads sed-style "s/pattern/replacement/flags" rules.
type patternParser struct{}

func (patternParser) CanParse(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isWordByte(line[1])
}

func (patternParser) Parse(line string) (rule, error) {
	delim := line[1]
	expr, pos, err := readDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	replacement, pos, err := readDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid replacement: %w", err)
	}

	global := false
	prefix := "i"
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'g':
			global = true
		case 'i':
		case 'm', 's':
			prefix += string(flag)
		default:
			return nil, fmt.Errorf("unsupported flag %q", flag)
		}
	}
	re, err := regexp.Compile("(?" + prefix + ")" + expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return pattern{re: re, replacement: replacement, global: global}, nil
}

type pattern struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func (p pattern) Apply(input string) (string, bool) {
	if p.global {
		output := p.re.ReplaceAllString(input, p.replacement)
		return output, output != input
	}
	loc := p.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := p.re.ExpandString(nil, p.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

func readDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of rule")
	}
	var b strings.Builder
	for i := start; i < len(line); i++ {
		c := line[i]
		if c == '\\' && i+1 < len(line) && line[i+1] == delim {
			b.WriteByte(delim)
			i++
			continue
		}
		if c == delim {
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
	}
	return "", 0, errors.New("unterminated rule")
}

func isWordByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == ' ' || c == '\t'
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
