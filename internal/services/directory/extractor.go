package directory

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SelectorChain is an ordered list of CSS selectors tried against a parsed
// document. Page templates drift; the first selector that matches anything
// wins, and a chain that matches nothing yields an empty result rather than
// an error. Callers treat empty as "field absent on this layout".
type SelectorChain []string

// FirstText returns the trimmed text of the first element matched by the
// first selector in the chain that matches anything.
func (c SelectorChain) FirstText(doc *goquery.Document) string {
	for _, selector := range c {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			return strings.TrimSpace(sel.First().Text())
		}
	}
	return ""
}

// AllTexts returns the trimmed texts of every element matched by the first
// selector in the chain that matches anything.
func (c SelectorChain) AllTexts(doc *goquery.Document) []string {
	for _, selector := range c {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		texts := make([]string, 0, sel.Length())
		sel.Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				texts = append(texts, text)
			}
		})
		if len(texts) > 0 {
			return texts
		}
	}
	return nil
}

// EachMatch invokes fn on every element matched by the first selector in the
// chain that matches anything. Used where callers need attributes as well as
// text, e.g. listing anchors.
func (c SelectorChain) EachMatch(doc *goquery.Document, fn func(s *goquery.Selection)) {
	for _, selector := range c {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		sel.Each(func(_ int, s *goquery.Selection) {
			fn(s)
		})
		return
	}
}
