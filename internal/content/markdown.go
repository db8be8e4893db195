package content

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// RenderMarkdown renders page source the way the content server does and
// applies the same title removal as ExtractFragment.
func RenderMarkdown(src []byte) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("<html><body><article>")
	if err := md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	buf.WriteString("</article></body></html>")
	return ExtractFragment(&buf)
}
