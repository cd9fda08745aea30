package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTML(t *testing.T) {
	out, err := HTML("# Title\n\n- one\n- **two**\n\n```go\nfmt.Println(1)\n```\n")
	require.NoError(t, err)
	require.Contains(t, out, `<h1 id="title">Title</h1>`)
	require.Contains(t, out, "<li><strong>two</strong></li>")
	require.Contains(t, out, `<code class="language-go">`)
}

func TestHTMLOmitsRawHTML(t *testing.T) {
	out, err := HTML("hello <script>alert(1)</script>")
	require.NoError(t, err)
	require.NotContains(t, out, "<script>")
	require.Contains(t, out, "<!-- raw HTML omitted -->")
}

func TestHTMLTable(t *testing.T) {
	out, err := HTML("| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	require.Contains(t, out, "<table>")
}
