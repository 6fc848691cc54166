// Package format defines the OutputFormat enum shared by tasks,
// extraction, and the API gateway.
package format

import "fmt"

// OutputFormat selects which renderer produces the task's artifact.
type OutputFormat string

const (
	Markdown OutputFormat = "markdown"
	JSON     OutputFormat = "json"
	XML      OutputFormat = "xml"
	CSV      OutputFormat = "csv"
	HTML     OutputFormat = "html"
	Text     OutputFormat = "text"
)

// Parse validates a raw string as an OutputFormat.
func Parse(raw string) (OutputFormat, error) {
	switch OutputFormat(raw) {
	case Markdown, JSON, XML, CSV, HTML, Text:
		return OutputFormat(raw), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", raw)
	}
}
