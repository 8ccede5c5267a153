// Package ui scrapes page state from analysis HTML and carries the small
// user-facing helpers: alerts and button loading state.
package ui

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Chip is one scatter chip as rendered by the analysis page.
type Chip struct {
	ID        string
	Name      string
	Visible   bool
	ZeroCurve bool
}

// Page is the subset of an analysis page the console needs.
type Page struct {
	CSRFToken   string
	Chips       []Chip
	CreateURL   string
	HasScatters bool
	Countries   []string
}

// ChipIDs returns the ids of every chip in document order.
func (p Page) ChipIDs() []string {
	ids := make([]string, 0, len(p.Chips))
	for _, c := range p.Chips {
		ids = append(ids, c.ID)
	}
	return ids
}

// ParsePage reads an analysis page document.
func ParsePage(r io.Reader) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("ui: parse page: %w", err)
	}

	page := Page{CSRFToken: CSRFToken(doc)}

	doc.Find(".scatter-chip[data-scatter-id]").Each(func(_ int, sel *goquery.Selection) {
		id := strings.TrimSpace(sel.AttrOr("data-scatter-id", ""))
		if id == "" {
			return
		}
		page.Chips = append(page.Chips, Chip{
			ID:        id,
			Name:      chipName(sel),
			Visible:   sel.AttrOr("data-visible", "") == "true",
			ZeroCurve: sel.AttrOr("data-zero-curve", "") == "true",
		})
	})

	if sel := doc.Find("[data-create-url]").First(); sel.Length() > 0 {
		page.CreateURL = strings.TrimSpace(sel.AttrOr("data-create-url", ""))
	}

	page.HasScatters = len(page.Chips) > 0
	if sel := doc.Find("[data-has-scatters]").First(); sel.Length() > 0 {
		if b, err := strconv.ParseBool(sel.AttrOr("data-has-scatters", "")); err == nil {
			page.HasScatters = b
		}
	}

	doc.Find("#scatter-country option").Each(func(_ int, sel *goquery.Selection) {
		if v := strings.TrimSpace(sel.AttrOr("value", "")); v != "" {
			page.Countries = append(page.Countries, v)
		}
	})

	return page, nil
}

// CSRFToken returns the value of the csrfmiddlewaretoken field, or "" when
// the page carries none.
func CSRFToken(doc *goquery.Document) string {
	sel := doc.Find("[name=csrfmiddlewaretoken]").First()
	token, ok := sel.Attr("value")
	if sel.Length() == 0 || !ok {
		slog.Error("CSRF token not found")
		return ""
	}
	return token
}

func chipName(sel *goquery.Selection) string {
	if name := strings.TrimSpace(sel.AttrOr("data-display-name", "")); name != "" {
		return name
	}
	if name := strings.TrimSpace(sel.Find(".scatter-name").First().Text()); name != "" {
		return name
	}
	clone := sel.Clone()
	clone.Find("button").Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}
