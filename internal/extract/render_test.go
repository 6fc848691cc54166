package extract

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/ishaanrender/scrapegoat-render/internal/format"
)

func sampleExtraction() Extraction {
	published := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	return Extraction{
		Title:              "Understanding Goroutines",
		MainContent:        "Goroutines are lightweight.\n\nChannels carry values between them.",
		Author:             "Pat Doe",
		PublicationDate:    &published,
		Tags:               []string{"go", "concurrency"},
		Language:           "en",
		WordCount:          9,
		ReadingTimeMinutes: 1,
	}
}

func samplePage() PageData {
	return PageData{
		URL:         "https://blog.example.com/posts/goroutines",
		ExtractedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderMarkdownLayout(t *testing.T) {
	out, err := Render(sampleExtraction(), samplePage(), format.Markdown)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(out, "# Understanding Goroutines") {
		t.Errorf("markdown must open with an H1 title, got %q", out[:40])
	}
	for _, want := range []string{"**Author:** Pat Doe", "**Published:** 2025-03-14", "**Language:** en", "**Tags:** go, concurrency", "---"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if !strings.HasSuffix(out, "Channels carry values between them.") {
		t.Error("markdown must end with the content body")
	}
}

func TestRenderJSONRoundTripsFields(t *testing.T) {
	e := sampleExtraction()
	out, err := Render(e, samplePage(), format.JSON)
	if err != nil {
		t.Fatal(err)
	}

	var back map[string]any
	if err := json.Unmarshal([]byte(out), &back); err != nil {
		t.Fatalf("json renderer produced invalid JSON: %v", err)
	}

	if back["title"] != e.Title {
		t.Errorf("title = %v", back["title"])
	}
	if back["author"] != e.Author {
		t.Errorf("author = %v", back["author"])
	}
	if back["language"] != e.Language {
		t.Errorf("language = %v", back["language"])
	}
	if int(back["word_count"].(float64)) != e.WordCount {
		t.Errorf("word_count = %v", back["word_count"])
	}
	if int(back["reading_time_minutes"].(float64)) != e.ReadingTimeMinutes {
		t.Errorf("reading_time_minutes = %v", back["reading_time_minutes"])
	}
	if _, ok := back["extracted_at"]; !ok {
		t.Error("extracted_at missing")
	}
	if tags := back["tags"].([]any); len(tags) != 2 {
		t.Errorf("tags = %v", tags)
	}
}

func TestRenderXMLStructure(t *testing.T) {
	out, err := Render(sampleExtraction(), samplePage(), format.XML)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(out, xml.Header) {
		t.Error("xml output missing declaration header")
	}

	var back xmlArticle
	if err := xml.Unmarshal([]byte(strings.TrimPrefix(out, xml.Header)), &back); err != nil {
		t.Fatalf("xml renderer produced invalid XML: %v", err)
	}
	if back.Title != "Understanding Goroutines" {
		t.Errorf("title = %q", back.Title)
	}
	if len(back.Tags.Tag) != 2 || back.Tags.Tag[0].Value != "go" {
		t.Errorf("tags = %+v", back.Tags)
	}
}

func TestRenderCSVShape(t *testing.T) {
	out, err := Render(sampleExtraction(), samplePage(), format.CSV)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + one data row, got %d lines", len(lines))
	}
	if lines[0] != "title,author,publication_date,language,word_count,reading_time_minutes,tags,content" {
		t.Errorf("header = %q", lines[0])
	}
	if strings.Contains(lines[1], "\n") {
		t.Error("content newlines must be collapsed in CSV")
	}
	if !strings.Contains(lines[1], "go; concurrency") {
		t.Error("tags must be joined by '; '")
	}
}

func TestRenderHTMLDocument(t *testing.T) {
	out, err := Render(sampleExtraction(), samplePage(), format.HTML)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(out, "<!DOCTYPE html>") {
		t.Error("html output must be a full document")
	}
	if got := strings.Count(out, "<p>"); got != 2 {
		t.Errorf("expected 2 paragraphs split on blank lines, got %d", got)
	}
}

func TestRenderTextIsVerbatim(t *testing.T) {
	e := sampleExtraction()
	out, err := Render(e, samplePage(), format.Text)
	if err != nil {
		t.Fatal(err)
	}
	if out != e.MainContent {
		t.Error("text renderer must pass content through verbatim")
	}
}
