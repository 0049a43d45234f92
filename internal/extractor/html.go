package extractor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/local/cardforge/internal/document"
)

func (e *Extractor) fromHTMLFile(path, title string) (*document.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open html: %w", err)
	}
	defer f.Close()

	if title == "" {
		title = strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".html"), ".htm")
	}
	return e.fromHTML(f, title, "Text")
}

// fromHTML parses markup into sections keyed by heading tags. Content before
// the first heading lands in an untitled leading section.
func (e *Extractor) fromHTML(r io.Reader, title, sourceKind string) (*document.Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrUnsupportedFormat, err)
	}

	if t := findTitle(doc); t != "" {
		title = t
	}

	var sections []document.Section
	var cur document.Section
	var curText strings.Builder

	flush := func() {
		text := strings.TrimSpace(curText.String())
		if text != "" {
			cur.Text = text
			sections = append(sections, cur)
		}
		curText.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if headingLevel(n.Data) > 0 {
				flush()
				cur = document.Section{Title: textContent(n)}
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "aside":
				return
			case "p", "li", "td", "blockquote", "pre":
				if t := textContent(n); t != "" {
					if curText.Len() > 0 {
						curText.WriteString("\n\n")
					}
					curText.WriteString(t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	flush()

	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: html contains no extractable text", ErrUnsupportedFormat)
	}
	return e.finish(title, sourceKind, sections, 0), nil
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
