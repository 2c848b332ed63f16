package fetcher

import (
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ErrMissingSections reports an item page without the expected
// Information table.
var ErrMissingSections = errors.New("expected sections not found")

const (
	informationHeader = "Information"
	extrasHeader      = "Vehicle extras, add-ons and accessories"
)

// ParseSections extracts the Information table, the extras list and the
// trailing free-text block from an item page. A page without an
// Information table fails with ErrMissingSections; a missing extras
// section yields an empty list and the free text falls back to
// readability's main-content distillation.
func ParseSections(doc *goquery.Document) (Sections, error) {
	var sections Sections

	infoHeader := findHeader(doc, informationHeader)
	if infoHeader == nil {
		return Sections{}, ErrMissingSections
	}
	table := firstAfter(infoHeader, "table")
	if table == nil {
		return Sections{}, ErrMissingSections
	}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		sections.InfoRows = append(sections.InfoRows, [2]string{
			strings.TrimSpace(cells.Eq(0).Text()),
			strings.TrimSpace(cells.Eq(1).Text()),
		})
	})

	if header := findHeader(doc, extrasHeader); header != nil {
		if list := firstAfter(header, "ul"); list != nil {
			list.Find("li").Each(func(_ int, li *goquery.Selection) {
				sections.ExtraItems = append(sections.ExtraItems, strings.TrimSpace(li.Text()))
			})
			if div := firstAfter(list, "div"); div != nil {
				sections.FreeText = strings.TrimSpace(div.Text())
			}
		}
	}

	if sections.FreeText == "" {
		sections.FreeText = fallbackFreeText(doc)
	}

	return sections, nil
}

// findHeader returns the first header element whose text contains
// needle, or nil.
func findHeader(doc *goquery.Document, needle string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("header").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), needle) {
			found = s
			return false
		}
		return true
	})
	return found
}

// firstAfter finds the first element matching selector that follows sel
// in document order: following siblings first, then descendants of
// following siblings, then anywhere under the parent.
func firstAfter(sel *goquery.Selection, selector string) *goquery.Selection {
	if s := sel.NextAllFiltered(selector).First(); s.Length() > 0 {
		return s
	}
	if s := sel.NextAll().Find(selector).First(); s.Length() > 0 {
		return s
	}
	if s := sel.Parent().Find(selector).First(); s.Length() > 0 {
		return s
	}
	return nil
}

// fallbackFreeText distills the page's main content when the extras
// section has no trailing free-text block.
func fallbackFreeText(doc *goquery.Document) string {
	html, err := doc.Html()
	if err != nil {
		return ""
	}

	pageURL := doc.Url
	if pageURL == nil {
		pageURL = &url.URL{Scheme: "http", Host: "localhost"}
	}

	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(html), pageURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}
