package extract

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Extraction is the isolated main content and metadata pulled from one page.
type Extraction struct {
	Title              string
	MainContent        string
	Author             string
	Description        string
	Keywords           string
	PublicationDate    *time.Time
	Tags               []string
	Language           string
	WordCount          int
	ReadingTimeMinutes int
	Links              []string
	Images             []string
}

var removedSelectors = []string{
	"script", "style", "nav", "header", "footer", "aside", "iframe",
	"object", "embed", "form", "input", "button", "select", "textarea",
	"noscript", "canvas",
}

var noiseClassSubstrings = []string{
	"comment", "sidebar", "footer", "header", "navigation", "menu",
	"ad", "advertisement", "popup",
}

var survivingAttrs = map[string]bool{
	"href": true, "src": true, "alt": true, "title": true,
}

// Extract parses html and isolates its main content, falling back to a
// stub extraction on any unrecoverable parse failure rather than
// erroring — the caller always gets a renderable result.
func Extract(html string, baseURL *url.URL) Extraction {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Extraction{MainContent: "<!-- extraction failed: " + err.Error() + " -->"}
	}

	// Metadata is read before cleanup: stripAttrs drops the name,
	// content and lang attributes these lookups depend on.
	ex := Extraction{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Author:      metaContent(doc, "author"),
		Description: metaContent(doc, "description"),
		Keywords:    metaContent(doc, "keywords"),
		Language:    htmlLang(doc),
	}

	for _, sel := range removedSelectors {
		doc.Find(sel).Remove()
	}
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		id, _ := sel.Attr("id")
		combined := strings.ToLower(class + " " + id)
		for _, noise := range noiseClassSubstrings {
			if strings.Contains(combined, noise) {
				sel.Remove()
				return
			}
		}
	})

	stripAttrs(doc.Selection)
	resolveLinks(doc, baseURL)

	main := pickMainContent(doc)
	text := collapseWhitespace(main.Text())

	ex.MainContent = text
	ex.Links = collectAttrs(doc, "a[href]", "href", 50)
	ex.Images = collectAttrs(doc, "img[src]", "src", 20)
	for _, kw := range strings.Split(ex.Keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			ex.Tags = append(ex.Tags, kw)
		}
	}
	ex.WordCount = wordCount(text)
	ex.ReadingTimeMinutes = ComputeReadingTime(ex.WordCount)
	return ex
}

// ComputeReadingTime is max(1, round(words/200)).
func ComputeReadingTime(words int) int {
	if words <= 0 {
		return 1
	}
	minutes := (words + 100) / 200 // round to nearest
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// pickMainContent scores block-level elements by text density (text
// length over descendant tag count) and returns the highest scorer,
// falling back to <body> if nothing scores above zero.
func pickMainContent(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	var bestScore float64

	doc.Find("div, article, section, main").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		tagCount := sel.Find("*").Length() + 1
		if len(text) < 100 {
			return
		}
		score := float64(len(text)) / float64(tagCount)
		if score > bestScore {
			bestScore = score
			best = sel
		}
	})

	if best == nil {
		return doc.Find("body")
	}
	return best
}

func stripAttrs(root *goquery.Selection) {
	root.Find("*").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		if node == nil {
			return
		}
		kept := node.Attr[:0]
		for _, a := range node.Attr {
			if survivingAttrs[a.Key] {
				kept = append(kept, a)
			}
		}
		node.Attr = kept
	})
}

func resolveLinks(doc *goquery.Document, base *url.URL) {
	if base == nil {
		return
	}
	resolve := func(_ int, sel *goquery.Selection, attr string) {
		raw, ok := sel.Attr(attr)
		if !ok || raw == "" {
			return
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		sel.SetAttr(attr, base.ResolveReference(ref).String())
	}
	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) { resolve(i, sel, "href") })
	doc.Find("img[src]").Each(func(i int, sel *goquery.Selection) { resolve(i, sel, "src") })
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func wordCount(s string) int {
	if s == "" {
		return 0
	}
	return len(strings.Fields(s))
}

func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`meta[name="` + name + `"]`).Attr("content")
	return content
}

func htmlLang(doc *goquery.Document) string {
	lang, _ := doc.Find("html").Attr("lang")
	return lang
}

func collectAttrs(doc *goquery.Document, selector, attr string, limit int) []string {
	var out []string
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		if v, ok := sel.Attr(attr); ok && v != "" {
			out = append(out, v)
		}
		return true
	})
	return out
}
