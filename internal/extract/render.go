package extract

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/ishaanrender/scrapegoat-render/internal/format"
)

// PageData carries the page-level facts the renderer needs alongside
// the Extraction (source URL, fetch timestamp).
type PageData struct {
	URL         string
	ExtractedAt time.Time
}

// Render produces the task's artifact in the requested format, falling
// back to the plain-text renderer if the specific renderer fails.
func Render(e Extraction, p PageData, f format.OutputFormat) (string, error) {
	var (
		out string
		err error
	)

	switch f {
	case format.Markdown:
		out, err = renderMarkdown(e, p)
	case format.JSON:
		out, err = renderJSON(e, p)
	case format.XML:
		out, err = renderXML(e, p)
	case format.CSV:
		out, err = renderCSV(e, p)
	case format.HTML:
		out, err = renderHTML(e, p)
	default:
		out, err = renderText(e, p)
	}

	if err != nil {
		return renderText(e, p)
	}
	return out, nil
}

func renderMarkdown(e Extraction, p PageData) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", orDash(e.Title))
	if e.Author != "" {
		fmt.Fprintf(&b, "**Author:** %s\n\n", e.Author)
	}
	if e.PublicationDate != nil {
		fmt.Fprintf(&b, "**Published:** %s\n\n", e.PublicationDate.Format("2006-01-02"))
	}
	if e.Language != "" {
		fmt.Fprintf(&b, "**Language:** %s\n\n", e.Language)
	}
	if len(e.Tags) > 0 {
		fmt.Fprintf(&b, "**Tags:** %s\n\n", strings.Join(e.Tags, ", "))
	}
	fmt.Fprintf(&b, "**Source:** %s\n\n", p.URL)
	fmt.Fprintf(&b, "**Word count:** %d | **Reading time:** %d min\n\n", e.WordCount, e.ReadingTimeMinutes)
	b.WriteString("---\n\n")
	b.WriteString(e.MainContent)
	return b.String(), nil
}

type jsonDoc struct {
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	Author          string     `json:"author,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	Language        string     `json:"language,omitempty"`
	WordCount       int        `json:"word_count"`
	ReadingTime     int        `json:"reading_time_minutes"`
	URL             string     `json:"url"`
	ExtractedAt     time.Time  `json:"extracted_at"`
}

func renderJSON(e Extraction, p PageData) (string, error) {
	doc := jsonDoc{
		Title:           e.Title,
		Content:         e.MainContent,
		Author:          e.Author,
		PublicationDate: e.PublicationDate,
		Tags:            e.Tags,
		Language:        e.Language,
		WordCount:       e.WordCount,
		ReadingTime:     e.ReadingTimeMinutes,
		URL:             p.URL,
		ExtractedAt:     p.ExtractedAt,
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type xmlTag struct {
	Value string `xml:",chardata"`
}

type xmlArticle struct {
	XMLName         xml.Name `xml:"article"`
	Title           string   `xml:"title"`
	Author          string   `xml:"author,omitempty"`
	PublicationDate string   `xml:"publication_date,omitempty"`
	Language        string   `xml:"language,omitempty"`
	URL             string   `xml:"url"`
	Content         string   `xml:"content"`
	WordCount       int      `xml:"word_count"`
	ReadingTime     int      `xml:"reading_time_minutes"`
	Tags            struct {
		Tag []xmlTag `xml:"tag"`
	} `xml:"tags"`
}

func renderXML(e Extraction, p PageData) (string, error) {
	doc := xmlArticle{
		Title:       e.Title,
		Author:      e.Author,
		Language:    e.Language,
		URL:         p.URL,
		Content:     e.MainContent,
		WordCount:   e.WordCount,
		ReadingTime: e.ReadingTimeMinutes,
	}
	if e.PublicationDate != nil {
		doc.PublicationDate = e.PublicationDate.Format(time.RFC3339)
	}
	for _, t := range e.Tags {
		doc.Tags.Tag = append(doc.Tags.Tag, xmlTag{Value: t})
	}

	raw, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(raw), nil
}

func renderCSV(e Extraction, p PageData) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"title", "author", "publication_date", "language", "word_count", "reading_time_minutes", "tags", "content"}
	if err := w.Write(header); err != nil {
		return "", err
	}

	published := ""
	if e.PublicationDate != nil {
		published = e.PublicationDate.Format("2006-01-02")
	}
	row := []string{
		singleLine(e.Title),
		singleLine(e.Author),
		published,
		e.Language,
		fmt.Sprintf("%d", e.WordCount),
		fmt.Sprintf("%d", e.ReadingTimeMinutes),
		strings.Join(e.Tags, "; "),
		singleLine(e.MainContent),
	}
	if err := w.Write(row); err != nil {
		return "", err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHTML(e Extraction, p PageData) (string, error) {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&b, "<title>%s</title></head><body>\n", escapeHTML(e.Title))
	fmt.Fprintf(&b, "<h1>%s</h1>\n", escapeHTML(e.Title))

	paragraphs := strings.Split(e.MainContent, "\n\n")
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fmt.Fprintf(&b, "<p>%s</p>\n", escapeHTML(p))
	}
	b.WriteString("</body></html>\n")
	return b.String(), nil
}

func renderText(e Extraction, p PageData) (string, error) {
	return e.MainContent, nil
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func escapeHTML(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}
