package engine

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// staticPage wraps the parsed document. The DOM is final, so lookups
// never wait and Close has nothing to release.
type staticPage struct {
	doc *goquery.Document
}

func (sp *staticPage) Element(selector string) (Element, error) {
	sel := sp.doc.Find(selector)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("element %q: not found", selector)
	}
	return &staticElement{sel: sel.First()}, nil
}

func (sp *staticPage) FindWithText(selector, substr string) (Element, bool) {
	var found *goquery.Selection
	sp.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), substr) {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return nil, false
	}
	return &staticElement{sel: found}, true
}

func (sp *staticPage) Elements(selector string) ([]Element, error) {
	sel := sp.doc.Find(selector)
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &staticElement{sel: s})
	})
	return out, nil
}

func (sp *staticPage) HTML() (string, error) {
	return sp.doc.Html()
}

func (sp *staticPage) Close() {}

type staticElement struct {
	sel *goquery.Selection
}

func (se *staticElement) Text() (string, error) {
	return se.sel.Text(), nil
}

// Click is a no-op: there is nothing to press in a static snapshot.
// Interstitial dismissal only matters on the browser path; a static
// page stuck behind one fails the completeness probe instead.
func (se *staticElement) Click() error {
	return nil
}

func (se *staticElement) Next() (Element, error) {
	next := se.sel.Next()
	if next.Length() == 0 {
		return nil, fmt.Errorf("next sibling: none")
	}
	return &staticElement{sel: next}, nil
}
