package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogPage = `<html>
<head><title>ignored</title><script>var tracking = 1;</script></head>
<body>
  <nav>Home | About</nav>
  <header class="post-header"><h1 class="post-title">LLM Powered   Agents</h1></header>
  <div class="post-content">
    <p>Planning breaks a task into subgoals.</p>
    <p>Memory &amp; tools extend the agent.</p>
  </div>
  <footer>Copyright</footer>
</body>
</html>`

func TestExtractText_Selector(t *testing.T) {
	text, err := ExtractText(strings.NewReader(blogPage), DefaultSelector)
	require.NoError(t, err)

	assert.Contains(t, text, "LLM Powered Agents")
	assert.Contains(t, text, "Planning breaks a task into subgoals.")
	assert.Contains(t, text, "Memory & tools extend the agent.")
	assert.NotContains(t, text, "Home | About")
	assert.NotContains(t, text, "Copyright")
	assert.NotContains(t, text, "tracking")

	// The title is nested in the header and must not be repeated
	assert.Equal(t, 1, strings.Count(text, "LLM Powered Agents"))
}

func TestExtractText_NoMatch(t *testing.T) {
	text, err := ExtractText(strings.NewReader(blogPage), ".does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractText_WholePage(t *testing.T) {
	text, err := ExtractText(strings.NewReader(blogPage), "")
	require.NoError(t, err)

	assert.Contains(t, text, "Home | About")
	assert.Contains(t, text, "Memory & tools extend the agent.")
	assert.NotContains(t, text, "<p>")
	assert.NotContains(t, text, "tracking")
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b\nc", normalizeWhitespace("  a \t b \n\n\n   c  "))
	assert.Equal(t, "", normalizeWhitespace(" \n \n"))
}
