package partition

import (
	"strconv"
	"strings"
	"time"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

// DateFormat formats times with the letter patterns used by pipeline
// definitions (yyyy-MM-dd/HH-mm). Runs of one letter form a field, text in
// single quotes is literal and '' is a single quote.
type DateFormat struct {
	pattern string
	tokens  []token
}

type token struct {
	letter  byte
	width   int
	literal string
}

const patternLetters = "GyYMLwDdFEuaHkKhmsSzZX"

// CompileDateFormat parses pattern once for repeated formatting.
func CompileDateFormat(pattern string) (*DateFormat, error) {
	var tokens []token
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, token{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch {
		case c == '\'':
			if i+1 < len(pattern) && pattern[i+1] == '\'' {
				lit.WriteByte('\'')
				i += 2
				continue
			}
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				return nil, errors.Newf(errors.ErrorTypeConfig, "unterminated quote in filePathFormat %q", pattern)
			}
			// '' inside a quoted section is an escaped quote
			quoted := pattern[i+1 : i+1+end]
			i += end + 2
			for i < len(pattern) && pattern[i] == '\'' && i+1 < len(pattern) {
				next := strings.IndexByte(pattern[i+1:], '\'')
				if next < 0 {
					break
				}
				quoted += "'" + pattern[i+1:i+1+next]
				i += next + 2
			}
			lit.WriteString(quoted)
		case isASCIILetter(c):
			if !strings.ContainsRune(patternLetters, rune(c)) {
				return nil, errors.Newf(errors.ErrorTypeConfig,
					"illegal pattern character '%c' in filePathFormat %q", c, pattern)
			}
			j := i
			for j < len(pattern) && pattern[j] == c {
				j++
			}
			flush()
			tokens = append(tokens, token{letter: c, width: j - i})
			i = j
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()

	return &DateFormat{pattern: pattern, tokens: tokens}, nil
}

// Pattern returns the source pattern.
func (f *DateFormat) Pattern() string { return f.pattern }

// Format renders t in its own location.
func (f *DateFormat) Format(t time.Time) string {
	var b strings.Builder
	for _, tok := range f.tokens {
		if tok.letter == 0 {
			b.WriteString(tok.literal)
			continue
		}
		b.WriteString(formatField(tok.letter, tok.width, t))
	}
	return b.String()
}

func formatField(letter byte, width int, t time.Time) string {
	switch letter {
	case 'G':
		if t.Year() <= 0 {
			return "BC"
		}
		return "AD"
	case 'y':
		return formatYear(t.Year(), width)
	case 'Y':
		year, _ := t.ISOWeek()
		return formatYear(year, width)
	case 'M', 'L':
		switch {
		case width >= 4:
			return t.Month().String()
		case width == 3:
			return t.Month().String()[:3]
		}
		return pad(int(t.Month()), width)
	case 'w':
		_, week := t.ISOWeek()
		return pad(week, width)
	case 'D':
		return pad(t.YearDay(), width)
	case 'd':
		return pad(t.Day(), width)
	case 'F':
		return pad((t.Day()-1)/7+1, width)
	case 'E':
		if width >= 4 {
			return t.Weekday().String()
		}
		return t.Weekday().String()[:3]
	case 'u':
		day := int(t.Weekday())
		if day == 0 {
			day = 7
		}
		return pad(day, width)
	case 'a':
		if t.Hour() < 12 {
			return "AM"
		}
		return "PM"
	case 'H':
		return pad(t.Hour(), width)
	case 'k':
		h := t.Hour()
		if h == 0 {
			h = 24
		}
		return pad(h, width)
	case 'K':
		return pad(t.Hour()%12, width)
	case 'h':
		h := t.Hour() % 12
		if h == 0 {
			h = 12
		}
		return pad(h, width)
	case 'm':
		return pad(t.Minute(), width)
	case 's':
		return pad(t.Second(), width)
	case 'S':
		return pad(t.Nanosecond()/int(time.Millisecond), width)
	case 'z':
		return t.Format("MST")
	case 'Z':
		return t.Format("-0700")
	case 'X':
		switch width {
		case 1:
			return t.Format("Z07")
		case 2:
			return t.Format("Z0700")
		default:
			return t.Format("Z07:00")
		}
	}
	return ""
}

func formatYear(year, width int) string {
	if width == 2 {
		return pad(year%100, 2)
	}
	return pad(year, width)
}

func pad(n, width int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		return "-" + pad(-n, width)
	}
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
