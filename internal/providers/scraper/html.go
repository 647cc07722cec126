package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// MaxHTMLSize limits HTML input to 10MB to prevent memory exhaustion
const MaxHTMLSize = 10 * 1024 * 1024

var (
	ErrEmptyHTML    = errors.New("html content required")
	ErrHTMLTooLarge = fmt.Errorf("html exceeds maximum size of %d bytes", MaxHTMLSize)
)

// ugc is safe for concurrent use once built.
var ugc = bluemonday.UGCPolicy()

// ValidateHTML checks HTML size.
func ValidateHTML(html string) error {
	if len(html) == 0 {
		return ErrEmptyHTML
	}
	if len(html) > MaxHTMLSize {
		return ErrHTMLTooLarge
	}
	return nil
}

// DetectCharset detects and returns charset from HTML bytes
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// utf8Reader returns a reader of htmlStr as UTF-8. Input that is not valid
// UTF-8 is decoded using the charset chardet detects.
func utf8Reader(htmlStr string) io.Reader {
	if utf8.ValidString(htmlStr) {
		return strings.NewReader(htmlStr)
	}
	data := []byte(htmlStr)
	r, err := charset.NewReader(bytes.NewReader(data), "text/html; charset="+DetectCharset(data))
	if err != nil {
		return strings.NewReader(htmlStr)
	}
	return r
}

// LoadHTML parses HTML for CSS selection.
func LoadHTML(htmlStr string) (*goquery.Document, error) {
	if err := ValidateHTML(htmlStr); err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(utf8Reader(htmlStr))
}

// LoadHTMLNode parses HTML into an xpath-compatible node.
func LoadHTMLNode(htmlStr string) (*html.Node, error) {
	if err := ValidateHTML(htmlStr); err != nil {
		return nil, err
	}
	return htmlquery.Parse(utf8Reader(htmlStr))
}

// Sanitize strips scripts, handlers and anything outside the UGC policy.
func Sanitize(htmlStr string) string {
	return ugc.Sanitize(htmlStr)
}

// NodeText concatenates the text nodes below n.
func NodeText(n *html.Node) string {
	var buf bytes.Buffer
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.TrimSpace(buf.String())
}

// NormalizeWhitespace collapses runs of whitespace into one space.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateText cuts s to at most maxLen bytes on a rune boundary, adding an ellipsis.
func TruncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:0]
	}
	cut := maxLen - 3
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// Deduplicate removes duplicate strings while preserving order
func Deduplicate(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))

	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
