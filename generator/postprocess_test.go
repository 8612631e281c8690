package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only whitespace", " \n\t\r\n ", ""},
		{"crlf and blank runs", "First paragraph.\r\n\r\n\r\n\r\nSecond paragraph.\r\n", "First paragraph.\n\nSecond paragraph."},
		{"line edges trimmed", "  Hello AI  \n   world\t", "Hello AI\nworld"},
		{"inner spaces collapsed", "Hello    AI\t\tworld", "Hello AI world"},
		{"bold markers removed", "**Big news**: AI is here", "Big news: AI is here"},
		{"heading prefix removed", "## Title\n\nBody", "Title\n\nBody"},
		{"hashtags kept", "Body\n\n#AI #Ethics", "Body\n\n#AI #Ethics"},
		{"code fences dropped", "```text\nHello\n```", "Hello"},
		{"zero width chars", "Hel\u200blo\ufeff", "Hello"},
		{"punctuation kept", "Why? Because!  (really) — yes.", "Why? Because! (really) — yes."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"\n\n\n",
		"***bold?***",
		"****",
		"# # nested heading",
		"# ```",
		"####### seven hashes",
		"*\u200b*x*\u200b*",
		"a\n \n\t\n```\n\n\nb",
		"#\t\tTabbed heading",
		"line one\r\rline two\r\n\r\n\r\n\r\nline three",
		"  ** #  mixed ** \n\n\n  ``` go \n",
		strings.Repeat("word   ", 50),
		"\xff\xfe broken utf8 \xff",
		"# \u00a0# x",
		"# \v# x",
		"## \u2003## \u00a0# deep",
		"\xe2**\x80\x8bsplit",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizeUnicodeSpaceHeadings(t *testing.T) {
	assert.Equal(t, "x", Normalize("# \u00a0# x"))
	assert.Equal(t, "x", Normalize("# \v# x"))
	assert.Equal(t, "#\u00a0x", Normalize("#\u00a0x"))
}

func FuzzNormalizeIdempotent(f *testing.F) {
	for _, seed := range []string{
		"", "## Title\n\nBody", "# \u00a0# x", "# \v# x", "**a** ```\n\n\nb", "\r\n#\t#  #AI",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize(%q) = %q, again = %q", in, once, twice)
		}
	})
}
