package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const structuredPage = `<html><head>
<script type="application/ld+json">
{"@type": "Article", "headline": "Structured Story", "datePublished": "2025-02-01T08:30:00Z", "author": {"name": "Jo Writer"}}
</script>
<script type="application/ld+json">
this is not valid json at all {{{
</script>
<script type="application/ld+json">
[{"@type": "BreadcrumbList"}, {"@type": "WebPage"}]
</script>
<meta property="og:title" content="OG Story Title">
<meta property="og:description" content="og description here">
<meta name="twitter:card" content="summary">
<meta name="twitter:title" content="Twitter Story Title">
</head><body></body></html>`

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestStructuredHarvestsAllSources(t *testing.T) {
	items := Structured(parseDoc(t, structuredPage))

	counts := map[StructuredDataType]int{}
	for _, item := range items {
		counts[item.Type]++
	}

	// One object block + two from the array block; the malformed block
	// is skipped silently.
	if counts[JSONLD] != 3 {
		t.Errorf("json-ld items = %d, want 3", counts[JSONLD])
	}
	if counts[OpenGraph] != 1 {
		t.Errorf("opengraph items = %d, want 1", counts[OpenGraph])
	}
	if counts[TwitterCard] != 1 {
		t.Errorf("twitter items = %d, want 1", counts[TwitterCard])
	}
}

func TestStructuredStripsKeyPrefixes(t *testing.T) {
	items := Structured(parseDoc(t, structuredPage))

	for _, item := range items {
		switch item.Type {
		case OpenGraph:
			if item.Data["title"] != "OG Story Title" {
				t.Errorf("og map = %v", item.Data)
			}
		case TwitterCard:
			if item.Data["card"] != "summary" {
				t.Errorf("twitter map = %v", item.Data)
			}
		}
	}
}

func TestStructuredEmptyPage(t *testing.T) {
	items := Structured(parseDoc(t, "<html><body><p>plain</p></body></html>"))
	if len(items) != 0 {
		t.Errorf("expected no structured data, got %d items", len(items))
	}
}

func TestBackfillPrefersOpenGraph(t *testing.T) {
	items := Structured(parseDoc(t, structuredPage))

	var e Extraction
	Backfill(&e, items)

	if e.Title != "OG Story Title" {
		t.Errorf("title = %q, want the Open Graph title", e.Title)
	}
	if e.Author != "Jo Writer" {
		t.Errorf("author = %q, want the JSON-LD nested author", e.Author)
	}
	if e.PublicationDate == nil || e.PublicationDate.Year() != 2025 {
		t.Error("publication date not backfilled from JSON-LD")
	}
	if e.Description != "og description here" {
		t.Errorf("description = %q", e.Description)
	}
}

func TestBackfillDoesNotOverwrite(t *testing.T) {
	items := Structured(parseDoc(t, structuredPage))

	e := Extraction{Title: "Original Title", Author: "Original Author"}
	Backfill(&e, items)

	if e.Title != "Original Title" || e.Author != "Original Author" {
		t.Error("Backfill must only fill empty fields")
	}
}
