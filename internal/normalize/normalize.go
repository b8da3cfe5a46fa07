// Package normalize reshapes raw Gemini output into the display format
// expected by the chat client.
package normalize

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	ruleMarker     = "---"
	thinkingMarker = "Thinking:"
)

var bulletMarkers = []string{"•", "◦", "▪"}

var (
	headingLine  = regexp.MustCompile(`^[A-Z][^:.]+:$`)
	excessBreaks = regexp.MustCompile(`\n{3,}`)
	lineEndings  = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// Text normalizes raw model output. The transform is idempotent and never
// produces more than two consecutive line breaks.
func Text(raw string) string {
	text := dropBlankLines(raw)
	text = isolateRules(text)
	text = breakBefore(text, thinkingMarker)
	for _, marker := range bulletMarkers {
		text = breakBefore(text, marker)
	}
	// Headings are detected last so lines uncovered by the splits above qualify too.
	text = separateHeadings(text)
	text = excessBreaks.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func dropBlankLines(text string) string {
	lines := strings.Split(lineEndings.Replace(text), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// isolateRules puts every run of exactly three hyphens on its own line.
func isolateRules(text string) string {
	out := make([]byte, 0, len(text)+8)
	for i := 0; i < len(text); {
		if text[i] != '-' {
			out = append(out, text[i])
			i++
			continue
		}

		j := i
		for j < len(text) && text[j] == '-' {
			j++
		}
		if j-i != len(ruleMarker) {
			out = append(out, text[i:j]...)
			i = j
			continue
		}

		out = startLine(out)
		out = append(out, ruleMarker...)
		for j < len(text) {
			r, size := utf8.DecodeRuneInString(text[j:])
			if !isHorizontalSpace(r) {
				break
			}
			j += size
		}
		if j < len(text) && text[j] != '\n' {
			out = append(out, '\n')
		}
		i = j
	}
	return string(out)
}

// breakBefore makes every occurrence of token begin a line.
func breakBefore(text, token string) string {
	if !strings.Contains(text, token) {
		return text
	}

	out := make([]byte, 0, len(text)+8)
	rest := text
	for {
		idx := strings.Index(rest, token)
		if idx < 0 {
			out = append(out, rest...)
			break
		}
		out = append(out, rest[:idx]...)
		out = startLine(out)
		out = append(out, token...)
		rest = rest[idx+len(token):]
	}
	return string(out)
}

// startLine drops trailing horizontal whitespace and terminates the
// current line unless out is empty or already at a line start.
func startLine(out []byte) []byte {
	out = bytes.TrimRightFunc(out, isHorizontalSpace)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out
}

func separateHeadings(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 && isHeading(line) && out[len(out)-1] != "" {
			out = append(out, "")
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isHeading(line string) bool {
	return headingLine.MatchString(strings.TrimRightFunc(line, unicode.IsSpace))
}

func isHorizontalSpace(r rune) bool {
	return r != '\n' && unicode.IsSpace(r)
}
