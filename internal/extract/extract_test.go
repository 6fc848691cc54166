package extract

import (
	"net/url"
	"strings"
	"testing"
)

const articlePage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Understanding Goroutines</title>
  <meta name="author" content="Pat Doe">
  <meta name="description" content="A practical goroutine guide">
  <meta name="keywords" content="go, concurrency, channels">
</head>
<body>
  <nav><a href="/home">Home</a><a href="/about">About</a></nav>
  <div class="sidebar-widget">Trending now</div>
  <article>
    <div id="main-text">
      <p>Goroutines are lightweight threads managed by the Go runtime, and they
      make concurrent programming approachable for working engineers who would
      otherwise reach for heavyweight thread pools and locks.</p>
      <p>Channels complement goroutines by giving two concurrent routines a way
      to communicate without sharing memory, which keeps most programs free of
      data races by construction. <a href="/go/channels">Read more</a></p>
      <img src="/diagrams/goroutine.png" alt="diagram">
    </div>
  </article>
  <footer>Copyright 2025</footer>
  <script>trackPageView();</script>
</body>
</html>`

func TestExtractIsolatesMainContent(t *testing.T) {
	base, _ := url.Parse("https://blog.example.com/posts/goroutines")
	ex := Extract(articlePage, base)

	if !strings.Contains(ex.MainContent, "lightweight threads") {
		t.Error("main content lost the article body")
	}
	for _, noise := range []string{"Trending now", "Copyright 2025", "trackPageView", "Home"} {
		if strings.Contains(ex.MainContent, noise) {
			t.Errorf("main content retained noise %q", noise)
		}
	}
}

func TestExtractHarvestsMetadata(t *testing.T) {
	ex := Extract(articlePage, nil)

	if ex.Title != "Understanding Goroutines" {
		t.Errorf("title = %q", ex.Title)
	}
	if ex.Author != "Pat Doe" {
		t.Errorf("author = %q", ex.Author)
	}
	if ex.Language != "en" {
		t.Errorf("language = %q", ex.Language)
	}
	if len(ex.Tags) != 3 || ex.Tags[0] != "go" {
		t.Errorf("tags = %v", ex.Tags)
	}
	if ex.WordCount == 0 {
		t.Error("word count is zero for a text-bearing page")
	}
	if ex.ReadingTimeMinutes < 1 {
		t.Error("reading time must be at least 1 minute")
	}
}

func TestExtractResolvesRelativeLinks(t *testing.T) {
	base, _ := url.Parse("https://blog.example.com/posts/goroutines")
	ex := Extract(articlePage, base)

	found := false
	for _, link := range ex.Links {
		if link == "https://blog.example.com/go/channels" {
			found = true
		}
		if strings.HasPrefix(link, "/") {
			t.Errorf("unresolved relative link %q", link)
		}
	}
	if !found {
		t.Errorf("resolved article link missing from %v", ex.Links)
	}
}

func TestExtractLinkAndImageCaps(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body><div>")
	b.WriteString(strings.Repeat("word ", 50))
	for i := 0; i < 80; i++ {
		b.WriteString(`<a href="https://example.com/p">l</a>`)
	}
	for i := 0; i < 40; i++ {
		b.WriteString(`<img src="https://example.com/i.png">`)
	}
	b.WriteString("</div></body></html>")

	ex := Extract(b.String(), nil)
	if len(ex.Links) > 50 {
		t.Errorf("links not capped at 50: %d", len(ex.Links))
	}
	if len(ex.Images) > 20 {
		t.Errorf("images not capped at 20: %d", len(ex.Images))
	}
}

func TestExtractEmptyPageHasNoWords(t *testing.T) {
	ex := Extract("", nil)
	if ex.WordCount != 0 {
		t.Errorf("empty page should produce no words, got %d", ex.WordCount)
	}
}

func TestComputeReadingTime(t *testing.T) {
	cases := []struct {
		words, want int
	}{
		{0, 1},
		{50, 1},
		{200, 1},
		{400, 2},
		{1000, 5},
		{1100, 6},
	}
	for _, c := range cases {
		if got := ComputeReadingTime(c.words); got != c.want {
			t.Errorf("ComputeReadingTime(%d) = %d, want %d", c.words, got, c.want)
		}
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "  multiple\n\n\t spaces   collapse "
	if got := collapseWhitespace(in); got != "multiple spaces collapse" {
		t.Errorf("collapseWhitespace = %q", got)
	}
}
