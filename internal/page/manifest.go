package page

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ManifestKey is the store key the manifest is persisted under.
const ManifestKey = "pages"

// Manifest maps a page name to its descriptor. Treat it as immutable once
// built; Build always returns a fresh map.
type Manifest map[string]Descriptor

// Build folds remote descriptors into a manifest, linking every page to the
// pages sharing its index. When two descriptors share a name the later wins.
func Build(pages []Descriptor) Manifest {
	groups := make(map[int]map[string]string)
	for _, p := range pages {
		g, ok := groups[p.Index]
		if !ok {
			g = make(map[string]string)
			groups[p.Index] = g
		}
		g[p.Locale] = p.Name
	}

	m := make(Manifest, len(pages))
	for _, p := range pages {
		g := groups[p.Index]
		siblings := make(map[string]string, len(g))
		for locale, name := range g {
			siblings[locale] = name
		}
		p.Siblings = siblings
		m[p.Name] = p
	}
	return m
}

// Decode parses a persisted manifest.
func Decode(data []byte) (Manifest, error) {
	m := Manifest{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// Encode serialises the manifest for the store.
func (m Manifest) Encode() ([]byte, error) {
	if m == nil {
		m = Manifest{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// Shas returns the set of content hashes the manifest references.
func (m Manifest) Shas() map[string]bool {
	shas := make(map[string]bool, len(m))
	for _, d := range m {
		if d.Sha != "" {
			shas[d.Sha] = true
		}
	}
	return shas
}

// Pages returns the descriptors ordered by name.
func (m Manifest) Pages() []Descriptor {
	out := make([]Descriptor, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// First returns the page with the lowest name, the same page a listing
// ordered by filename would put first.
func (m Manifest) First() (Descriptor, bool) {
	pages := m.Pages()
	if len(pages) == 0 {
		return Descriptor{}, false
	}
	return pages[0], true
}

// InLocale returns the pages of one locale ordered by index, then name.
func InLocale(pages []Descriptor, locale string) []Descriptor {
	var out []Descriptor
	for _, p := range pages {
		if p.Locale == locale {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].Name < out[j].Name
	})
	return out
}
