package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain passthrough", in: "hello world", want: "hello world"},
		{
			name: "entities escaped",
			in:   "a < b && b > c",
			want: "a &lt; b &amp;&amp; b &gt; c",
		},
		{
			name: "bold stars",
			in:   "so **loud** here",
			want: "so <b>loud</b> here",
		},
		{
			name: "bold underscores",
			in:   "so __loud__ here",
			want: "so <b>loud</b> here",
		},
		{
			name: "italic",
			in:   "some _emphasis_ here",
			want: "some <i>emphasis</i> here",
		},
		{
			name: "strikethrough",
			in:   "it was ~~wrong~~ fine",
			want: "it was <s>wrong</s> fine",
		},
		{
			name: "link",
			in:   "see [docs](https://example.com/a?b=1)",
			want: `see <a href="https://example.com/a?b=1">docs</a>`,
		},
		{
			name: "heading flattened",
			in:   "## Section title",
			want: "Section title",
		},
		{
			name: "quote flattened",
			in:   "> quoted line",
			want: "quoted line",
		},
		{
			name: "bullets",
			in:   "- one\n- two",
			want: "• one\n• two",
		},
		{
			name: "inline code preserves markdown",
			in:   "run `**not bold**` now",
			want: "run <code>**not bold**</code> now",
		},
		{
			name: "inline code escapes entities",
			in:   "check `a < b`",
			want: "check <code>a &lt; b</code>",
		},
		{
			name: "fenced block",
			in:   "```go\nfmt.Println(1 < 2)\n```",
			want: "<pre><code>fmt.Println(1 &lt; 2)\n</code></pre>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderHTML(tt.in))
		})
	}
}
