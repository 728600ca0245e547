package sceneexport

import (
	"regexp"
	"strings"
)

// Mask is a shell-style wildcard for object names: * matches any run of characters
// (including /), ? matches one character, [seq] and [!seq] match a character in or
// not in seq. A [ without a closing ] is an ordinary character, as is everything else.
// Matching is case-sensitive.
type Mask struct {
	pattern string
	re      *regexp.Regexp
}

// never matches anything, used for classes whose ranges are all empty
const matchNothing = `\b\B`

func CompileMask(pattern string) (*Mask, error) {
	re, err := regexp.Compile(`\A(?s:` + translate(pattern) + `)\z`)
	if err != nil {
		return nil, err
	}
	return &Mask{pattern: pattern, re: re}, nil
}

func (m *Mask) String() string { return m.pattern }

func (m *Mask) Match(name string) bool { return m.re.MatchString(name) }

// translate turns a wildcard pattern into a regular expression body
func translate(pattern string) string {
	pat := []rune(pattern)
	n := len(pat)
	var b strings.Builder

	for i := 0; i < n; {
		c := pat[i]
		i++
		switch c {
		case '*':
			for i < n && pat[i] == '*' {
				i++
			}
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			j := i
			if j < n && pat[j] == '!' {
				j++
			}
			// a ] right after [ or [! belongs to the set
			if j < n && pat[j] == ']' {
				j++
			}
			for j < n && pat[j] != ']' {
				j++
			}
			if j >= n {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(translateClass(pat[i:j]))
			i = j + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}

// translateClass renders the inside of a [...] set
func translateClass(set []rune) string {
	negate := false
	if len(set) > 0 && set[0] == '!' {
		negate = true
		set = set[1:]
	}

	var body strings.Builder
	for k := 0; k < len(set); k++ {
		lo := set[k]
		if k+2 < len(set) && set[k+1] == '-' {
			hi := set[k+2]
			k += 2
			// reversed ranges are empty
			if lo > hi {
				continue
			}
			body.WriteString(classChar(lo) + "-" + classChar(hi))
			continue
		}
		body.WriteString(classChar(lo))
	}

	if body.Len() == 0 {
		if negate {
			return "."
		}
		return matchNothing
	}
	if negate {
		return "[^" + body.String() + "]"
	}
	return "[" + body.String() + "]"
}

// classChar escapes a character for use inside a regexp character class
func classChar(c rune) string {
	if strings.ContainsRune(`\]-^[`, c) {
		return `\` + string(c)
	}
	return string(c)
}
