package generator

import (
	"regexp"
	"strings"
)

var (
	headingPrefixRe = regexp.MustCompile(`^(#{1,6}\s+)+`)
	codeFenceRe     = regexp.MustCompile("^```[\\w+-]*$")
	innerSpaceRe    = regexp.MustCompile(`[ \t]+`)
	invisibleChars  = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")
)

// Normalize 清理模型输出，得到可直接展示的帖子正文。
// It is total and idempotent: Normalize(Normalize(s)) == Normalize(s).
// Paragraph breaks survive as a single blank line; hashtags (#AI) are kept.
func Normalize(raw string) string {
	s := normalizeOnce(raw)
	for {
		// Dropping "**" can join the bytes of a zero-width char split around it.
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = invisibleChars.Replace(s)
	// Bold markers render as literal asterisks on LinkedIn.
	s = strings.ReplaceAll(s, "**", "")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = cleanLine(line)
		if codeFenceRe.MatchString(line) {
			continue
		}
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// cleanLine strips edges and heading markers and collapses spaces until the line
// stops changing. TrimSpace removes Unicode spaces that \s does not match, so
// one pass can expose another heading marker.
func cleanLine(line string) string {
	for {
		next := strings.TrimSpace(line)
		next = headingPrefixRe.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		next = innerSpaceRe.ReplaceAllString(next, " ")
		if next == line {
			return next
		}
		line = next
	}
}
