package scraper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
)

// XPathPrefix marks a selector as an XPath expression.
const XPathPrefix = "xpath="

// ErrBadSelector reports a selector that does not compile.
var ErrBadSelector = errors.New("invalid selector")

// Query reads text through a CSS selector, or an XPath expression when the
// selector starts with "xpath=". Without all only the first match is returned.
func Query(htmlStr, selector string, all bool) ([]string, error) {
	if expr, ok := strings.CutPrefix(selector, XPathPrefix); ok {
		return XPathText(htmlStr, expr, all)
	}
	return SelectText(htmlStr, selector, all)
}

// SelectText returns the normalized text of elements matching a CSS selector.
func SelectText(htmlStr, selector string, all bool) ([]string, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSelector, err)
	}
	doc, err := LoadHTML(htmlStr)
	if err != nil {
		return nil, err
	}

	matches := doc.FindMatcher(sel)
	if !all {
		matches = matches.First()
	}
	texts := make([]string, 0, matches.Length())
	matches.Each(func(i int, s *goquery.Selection) {
		if text := NormalizeWhitespace(s.Text()); text != "" {
			texts = append(texts, text)
		}
	})
	return texts, nil
}

// XPathText returns the normalized text of nodes matching an XPath expression.
func XPathText(htmlStr, expr string, all bool) ([]string, error) {
	doc, err := LoadHTMLNode(htmlStr)
	if err != nil {
		return nil, err
	}

	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSelector, err)
	}
	if !all && len(nodes) > 1 {
		nodes = nodes[:1]
	}

	texts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if text := NormalizeWhitespace(NodeText(n)); text != "" {
			texts = append(texts, text)
		}
	}
	return texts, nil
}
