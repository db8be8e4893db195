package content

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DecorateImages adds the fragment of each <img> source as a class, so
// "figure.png#wide" is styled with class "wide". Markup that cannot be parsed
// is returned unchanged.
func DecorateImages(fragment string) string {
	if !strings.Contains(fragment, "<img") {
		return fragment
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return fragment
	}

	changed := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			if addImageClass(n) {
				changed = true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	if !changed {
		return fragment
	}

	var buf strings.Builder
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return fragment
		}
	}
	return buf.String()
}

func addImageClass(img *html.Node) bool {
	var src string
	for _, a := range img.Attr {
		if a.Key == "src" {
			src = a.Val
		}
	}
	u, err := url.Parse(src)
	if err != nil || u.Fragment == "" {
		return false
	}
	class := u.Fragment

	for i, a := range img.Attr {
		if a.Key != "class" {
			continue
		}
		for _, existing := range strings.Fields(a.Val) {
			if existing == class {
				return false
			}
		}
		img.Attr[i].Val = strings.TrimSpace(a.Val + " " + class)
		return true
	}
	img.Attr = append(img.Attr, html.Attribute{Key: "class", Val: class})
	return true
}
