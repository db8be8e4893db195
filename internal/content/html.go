package content

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ExtractFragment parses a page document and returns the inner markup of the
// first element in <body>, minus that element's own first element child (the
// page title). It returns "" when the body has no element.
func ExtractFragment(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	root := findBody(doc)
	if root == nil {
		root = doc
	}
	elem := firstElementChild(root)
	if elem == nil {
		return "", nil
	}
	if title := firstElementChild(elem); title != nil {
		elem.RemoveChild(title)
	}
	return innerHTML(elem)
}

func firstElementChild(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func innerHTML(n *html.Node) (string, error) {
	var buf strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
