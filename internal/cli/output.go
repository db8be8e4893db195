package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dgallion1/pagecache/internal/nav"
	"github.com/dgallion1/pagecache/internal/reconcile"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResult(w io.Writer, format string, res reconcile.Result) error {
	if format == "json" {
		return writeJSON(w, res)
	}
	_, err := fmt.Fprintf(w, "pages=%d fetched=%d reused=%d stored=%d deleted=%d failed=%d\n",
		res.Pages, res.Fetched, res.Reused, res.Stored, res.Deleted, res.Failed)
	return err
}

type shownPage struct {
	Page   string         `json:"page"`
	Locale string         `json:"locale"`
	HTML   string         `json:"html"`
	Menu   []nav.MenuItem `json:"menu"`
}

func writeShown(w io.Writer, format string, p shownPage) error {
	if format == "json" {
		return writeJSON(w, p)
	}
	if p.Page == "" {
		for _, item := range p.Menu {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", item.Title, item.Href); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := fmt.Fprintln(w, p.HTML)
	return err
}
