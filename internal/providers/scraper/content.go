package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxLinks caps the links kept per page.
const MaxLinks = 200

// Heading is one h1-h3 element.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Content is the readable summary of a page.
type Content struct {
	URL         string            `json:"url,omitempty"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Language    string            `json:"language,omitempty"`
	Text        string            `json:"text"`
	Headings    []Heading         `json:"headings"`
	Links       []string          `json:"links"`
	OpenGraph   map[string]string `json:"open_graph"`
	WordCount   int               `json:"word_count"`
}

// Extract pulls title, description, headings, links and main text from a
// page. Relative links are resolved against baseURL when it parses.
func Extract(htmlStr, baseURL string) (*Content, error) {
	doc, err := LoadHTML(htmlStr)
	if err != nil {
		return nil, err
	}

	c := &Content{
		URL:       baseURL,
		Headings:  []Heading{},
		Links:     []string{},
		OpenGraph: map[string]string{},
	}

	doc.Find("meta").Each(func(i int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		if prop := s.AttrOr("property", ""); strings.HasPrefix(prop, "og:") {
			c.OpenGraph[strings.TrimPrefix(prop, "og:")] = content
		}
		if strings.EqualFold(s.AttrOr("name", ""), "description") && c.Description == "" {
			c.Description = content
		}
	})
	if c.Description == "" {
		c.Description = c.OpenGraph["description"]
	}
	c.Language = strings.TrimSpace(doc.Find("html").AttrOr("lang", ""))

	c.Title = NormalizeWhitespace(doc.Find("title").First().Text())
	if c.Title == "" {
		c.Title = c.OpenGraph["title"]
	}
	if c.Title == "" {
		c.Title = NormalizeWhitespace(doc.Find("h1").First().Text())
	}

	doc.Find("h1, h2, h3").Each(func(i int, s *goquery.Selection) {
		text := NormalizeWhitespace(s.Text())
		if text == "" {
			return
		}
		c.Headings = append(c.Headings, Heading{Level: int(goquery.NodeName(s)[1] - '0'), Text: text})
	})

	c.Links = collectLinks(doc, baseURL)
	c.Text = mainText(doc)
	c.WordCount = len(strings.Fields(c.Text))
	return c, nil
}

func collectLinks(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		base = nil
	}

	links := make([]string, 0)
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return
		}
		ref.Fragment = ""
		links = append(links, ref.String())
	})

	links = Deduplicate(links)
	if len(links) > MaxLinks {
		links = links[:MaxLinks]
	}
	return links
}

// mainText removes page chrome and returns the text of the most likely
// content container.
func mainText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, template, nav, header, footer, aside, iframe, form, .ad, .advertisement, .sidebar").Remove()

	var main *goquery.Selection
	if m := doc.Find("main, article").First(); m.Length() > 0 {
		main = m
	} else if role := doc.Find("[role='main'], [role='article']").First(); role.Length() > 0 {
		main = role
	} else if content := doc.Find("#content, #main, .content, .main, .article").First(); content.Length() > 0 {
		main = content
	} else {
		main = doc.Find("body")
	}
	return NormalizeWhitespace(main.Text())
}
