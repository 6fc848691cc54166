// Package extract isolates a page's main content, harvests structured
// data, and renders the result in the task's requested output format.
package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// StructuredDataType identifies the source of one structured-data block.
type StructuredDataType string

const (
	JSONLD      StructuredDataType = "json-ld"
	OpenGraph   StructuredDataType = "opengraph"
	TwitterCard StructuredDataType = "twitter_card"
)

// StructuredDataItem is one harvested block.
type StructuredDataItem struct {
	Type StructuredDataType `json:"type"`
	Data map[string]any     `json:"data"`
}

// Structured harvests JSON-LD, Open Graph, and Twitter Card metadata.
// Malformed JSON-LD blocks are skipped silently rather than failing
// the whole extraction — one bad block on a page is common and must
// not sink an otherwise-good scrape.
func Structured(doc *goquery.Document) []StructuredDataItem {
	var results []StructuredDataItem
	results = append(results, extractJSONLD(doc)...)

	if og := extractPrefixedMeta(doc, `meta[property^="og:"]`, "property", "og:"); len(og) > 0 {
		results = append(results, StructuredDataItem{Type: OpenGraph, Data: og})
	}
	if tc := extractTwitterCard(doc); len(tc) > 0 {
		results = append(results, StructuredDataItem{Type: TwitterCard, Data: tc})
	}
	return results
}

func extractJSONLD(doc *goquery.Document) []StructuredDataItem {
	var results []StructuredDataItem

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			results = append(results, StructuredDataItem{Type: JSONLD, Data: obj})
			return
		}

		var arr []map[string]any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			for _, obj := range arr {
				results = append(results, StructuredDataItem{Type: JSONLD, Data: obj})
			}
		}
		// Any other malformed payload is silently skipped.
	})

	return results
}

func extractPrefixedMeta(doc *goquery.Document, selector, attr, prefix string) map[string]any {
	data := make(map[string]any)
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		key, _ := sel.Attr(attr)
		content, _ := sel.Attr("content")
		if key != "" && content != "" {
			data[strings.TrimPrefix(key, prefix)] = content
		}
	})
	return data
}

// Backfill fills empty Extraction fields from harvested structured
// data, preferring Open Graph over JSON-LD over Twitter Card — the
// order pages most reliably populate them in practice.
func Backfill(e *Extraction, items []StructuredDataItem) {
	pick := func(item StructuredDataItem, keys ...string) string {
		for _, k := range keys {
			if v, ok := item.Data[k].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}

	ordered := make([]StructuredDataItem, 0, len(items))
	for _, typ := range []StructuredDataType{OpenGraph, JSONLD, TwitterCard} {
		for _, item := range items {
			if item.Type == typ {
				ordered = append(ordered, item)
			}
		}
	}

	for _, item := range ordered {
		if e.Title == "" {
			e.Title = pick(item, "title", "headline")
		}
		if e.Author == "" {
			if v := pick(item, "author", "article:author", "creator"); v != "" {
				e.Author = v
			} else if nested, ok := item.Data["author"].(map[string]any); ok {
				if name, ok := nested["name"].(string); ok {
					e.Author = name
				}
			}
		}
		if e.Description == "" {
			e.Description = pick(item, "description")
		}
		if e.PublicationDate == nil {
			if raw := pick(item, "article:published_time", "datePublished"); raw != "" {
				if t, err := time.Parse(time.RFC3339, raw); err == nil {
					e.PublicationDate = &t
				}
			}
		}
	}
}

func extractTwitterCard(doc *goquery.Document) map[string]any {
	data := make(map[string]any)
	doc.Find(`meta[name^="twitter:"], meta[property^="twitter:"]`).Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		if name == "" {
			name, _ = sel.Attr("property")
		}
		content, _ := sel.Attr("content")
		if name != "" && content != "" {
			data[strings.TrimPrefix(name, "twitter:")] = content
		}
	})
	return data
}
