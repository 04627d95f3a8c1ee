package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/markdave123-py/ragcrawl/internal/core/ingestion_engine"
)

const noiseSelector = "script, style, nav, footer, header, aside, noscript, template, iframe"

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "dl": true, "blockquote": true, "pre": true,
	"figure": true, "form": true, "address": true, "fieldset": true, "body": true,
}

var tableSections = map[string]bool{"table": true, "thead": true, "tbody": true, "tfoot": true, "tr": true}

var lineTags = map[string]bool{"li": true, "dt": true, "dd": true, "br": true, "hr": true}

// extractLinks returns absolute http(s) links found in doc, resolved against
// base (or the document's <base href>). Fragments are dropped.
func extractLinks(doc *goquery.Document, base *url.URL) []*url.URL {
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	seen := map[string]bool{}
	var out []*url.URL
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		u, err := base.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment, u.RawFragment = "", ""
		key := canonical(u)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, u)
	})
	return out
}

// extractMain returns the page title and the text of its main content:
// <main>, else <article>, else <body>, with chrome and scripts removed.
// Tables come out as pipe-delimited rows so the chunker can find them.
func extractMain(doc *goquery.Document) (title, text string) {
	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find(noiseSelector).Remove()

	sel := doc.Find("main").First()
	if sel.Length() == 0 || strings.TrimSpace(sel.Text()) == "" {
		sel = doc.Find("article").First()
	}
	if sel.Length() == 0 || strings.TrimSpace(sel.Text()) == "" {
		sel = doc.Find("body")
	}

	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(&b, n)
	}
	return title, ingestion_engine.Normalize(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if n.Parent != nil && tableSections[n.Parent.Data] {
			return
		}
		b.WriteString(collapseSpace(n.Data))
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeText(b, c)
		}
		return
	}

	tag := n.Data
	switch {
	case tag == "tr":
		writeRow(b, n)
		return
	case tag == "table":
		b.WriteString("\n\n")
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeText(b, c)
		}
		b.WriteString("\n\n")
		return
	case lineTags[tag]:
		b.WriteString("\n")
	case blockTags[tag]:
		b.WriteString("\n\n")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}

	if blockTags[tag] {
		b.WriteString("\n\n")
	}
}

func writeRow(b *strings.Builder, tr *html.Node) {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
			continue
		}
		cell := strings.ReplaceAll(strings.Join(strings.Fields(goquery.NewDocumentFromNode(c).Text()), " "), "|", "/")
		cells = append(cells, cell)
	}
	if len(cells) == 0 {
		return
	}
	if out := b.String(); out != "" && !strings.HasSuffix(out, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func collapseSpace(s string) string {
	if strings.TrimSpace(s) == "" {
		if s == "" {
			return ""
		}
		return " "
	}
	lead := s[0] == ' ' || s[0] == '\n' || s[0] == '\t' || s[0] == '\r'
	last := s[len(s)-1]
	trail := last == ' ' || last == '\n' || last == '\t' || last == '\r'
	out := strings.Join(strings.Fields(s), " ")
	if lead {
		out = " " + out
	}
	if trail {
		out += " "
	}
	return out
}
