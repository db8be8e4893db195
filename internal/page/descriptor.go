// Package page derives page identities from filenames and builds the
// locale-linked manifest the cache is organised around.
package page

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Descriptor identifies one page in one locale.
type Descriptor struct {
	Name   string `json:"name"`
	Index  int    `json:"index"`
	Locale string `json:"locale"`
	Title  string `json:"title"`
	Sha    string `json:"sha"`
	Search string `json:"search"`

	// Siblings maps a locale to the name of the page with the same index in
	// that locale, the page's own locale included.
	Siblings map[string]string `json:"siblings,omitempty"`

	// Source is the raw Markdown URL reported by the listing, if any.
	Source string `json:"source,omitempty"`
}

var identityRe = regexp.MustCompile(`([0-9]{2})-?([A-Za-z]{2})-?`)

// ParseName decomposes a filename such as "03en-Intro.md" or "03-en-Intro.md".
// Names that do not follow the pattern are not rejected; their index, locale
// and title are left zero.
func ParseName(filename string) Descriptor {
	name := strings.TrimSuffix(filename, path.Ext(filename))
	d := Descriptor{
		Name:   name,
		Search: SearchFor(name),
	}

	loc := identityRe.FindStringSubmatchIndex(filename)
	if loc == nil {
		return d
	}
	d.Index, _ = strconv.Atoi(filename[loc[2]:loc[3]])
	d.Locale = strings.ToLower(filename[loc[4]:loc[5]])
	rest := filename[loc[1]:]
	d.Title = strings.TrimSpace(strings.TrimSuffix(rest, path.Ext(rest)))
	return d
}

// SearchFor returns the query string that selects the named page.
func SearchFor(name string) string {
	return "?" + url.Values{"page": {name}}.Encode()
}

// NameFromQuery extracts the page name from a raw query string.
// An absent parameter yields "".
func NameFromQuery(rawQuery string) string {
	q, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return ""
	}
	return q.Get("page")
}

// SiblingIn returns the name of the page with the same index in locale.
func (d Descriptor) SiblingIn(locale string) (string, bool) {
	name, ok := d.Siblings[locale]
	return name, ok && name != ""
}
