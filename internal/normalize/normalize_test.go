package normalize

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "drops blank lines",
			in:   "A\n\n\n   \nB",
			want: "A\nB",
		},
		{
			name: "isolates rule marker",
			in:   "Intro text---Final answer",
			want: "Intro text\n---\nFinal answer",
		},
		{
			name: "keeps longer hyphen runs",
			in:   "a ---- b",
			want: "a ---- b",
		},
		{
			name: "thinking steps start lines",
			in:   "Let me reason. Thinking: 1. Zakat is a pillar. Thinking: 2. It is 2.5%.",
			want: "Let me reason.\nThinking: 1. Zakat is a pillar.\nThinking: 2. It is 2.5%.",
		},
		{
			name: "blank line before headings",
			in:   "Intro line\nKey Points:\nDetails here",
			want: "Intro line\n\nKey Points:\nDetails here",
		},
		{
			name: "heading with trailing whitespace",
			in:   "Intro line\nKey Points:   \nDetails",
			want: "Intro line\n\nKey Points:   \nDetails",
		},
		{
			name: "lines with periods are not headings",
			in:   "Intro\nSee Section 2.1:\nBody",
			want: "Intro\nSee Section 2.1:\nBody",
		},
		{
			name: "bullets start lines",
			in:   "Pillars: • Shahada • Salah",
			want: "Pillars:\n• Shahada\n• Salah",
		},
		{
			name: "full reasoning answer",
			in: "THOUGHT PROCESS:\nThinking: 1. Consider context.\nThinking: 2. Weigh views.\n" +
				"FINAL ANSWER:---**Zakat** is obligatory.\n\n\n• Rate: 2.5%",
			want: "THOUGHT PROCESS:\nThinking: 1. Consider context.\nThinking: 2. Weigh views.\n\n" +
				"FINAL ANSWER:\n---\n**Zakat** is obligatory.\n• Rate: 2.5%",
		},
		{
			name: "crlf input",
			in:   "Intro\r\n\r\nSummary:\r\nText\r\n",
			want: "Intro\n\nSummary:\nText",
		},
		{
			name: "trims surrounding whitespace",
			in:   "\n\n   Answer here  \n\n",
			want: "Answer here",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestTextIdempotent(t *testing.T) {
	inputs := []string{
		"  Thinking: indented step",
		"x \u00a0Thinking: after nbsp",
		"Heading:•item",
		"\r\nA:\r\n",
		"-----",
		"--- ---",
		"Note:   ",
		"a\n  \nB C:  ",
		"•",
		"---",
		"   ",
		"Summary: • one\t• two ---three",
		"Thinking:Thinking:Thinking:",
	}
	for _, in := range inputs {
		once := Text(in)
		assert.Equal(t, once, Text(once), "input %q", in)
		assert.NotContains(t, once, "\n\n\n", "input %q", in)
	}
}

func TestTextIdempotentRandom(t *testing.T) {
	fragments := []string{
		"A", "b", "Zakat", " ", "  ", "\t", "\n", "\n\n", "\r\n", "-", "---", ":", ".",
		"Thinking:", "•", "◦", "Head:", "Key Points:", "**", "\u00a0",
	}
	rng := rand.New(rand.NewPCG(7, 42))

	for i := 0; i < 2000; i++ {
		var sb strings.Builder
		n := rng.IntN(24)
		for j := 0; j < n; j++ {
			sb.WriteString(fragments[rng.IntN(len(fragments))])
		}
		in := sb.String()

		once := Text(in)
		if twice := Text(once); twice != once {
			t.Fatalf("not idempotent for %q:\nonce:  %q\ntwice: %q", in, once, twice)
		}
		if strings.Contains(once, "\n\n\n") {
			t.Fatalf("triple break for %q: %q", in, once)
		}
	}
}
