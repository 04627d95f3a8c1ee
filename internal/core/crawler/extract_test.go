package crawler

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragcrawl/internal/models"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestExtractMainPrefersMainAndDropsChrome(t *testing.T) {
	doc := mustDoc(t, `<html><head><title> Opening Hours </title></head><body>
<header>Site header</header><nav><a href="/">Home</a></nav>
<main><h1>Hours</h1><p>We are open   daily.</p><script>track()</script>
<table><tr><th>Day</th><th>Time</th></tr><tr><td>Mon</td><td>9-5</td></tr></table></main>
<aside>Related</aside><footer>Copyright</footer></body></html>`)

	title, text := extractMain(doc)
	assert.Equal(t, "Opening Hours", title)
	assert.Contains(t, text, "Hours\n\nWe are open daily.")
	assert.Contains(t, text, "| Day | Time |\n| Mon | 9-5 |")
	for _, gone := range []string{"Site header", "Home", "track()", "Related", "Copyright"} {
		assert.NotContains(t, text, gone)
	}
}

func TestExtractMainFallsBackToArticleThenBody(t *testing.T) {
	_, text := extractMain(mustDoc(t, `<body><div>outside</div><article><p>inside article</p></article></body>`))
	assert.Equal(t, "inside article", text)

	_, text = extractMain(mustDoc(t, `<body><div>just body</div></body>`))
	assert.Equal(t, "just body", text)
}

func TestExtractLinksResolvesRelative(t *testing.T) {
	doc := mustDoc(t, `<body>
<a href="/abs">a</a><a href="rel">b</a><a href="../up">c</a><a href="#frag">d</a>
<a href="mailto:x@y.z">e</a><a href="https://other.org/p#s">f</a><a href="/abs#top">dup</a></body>`)
	links := extractLinks(doc, mustURL(t, "https://example.org/dir/page"))

	var got []string
	for _, l := range links {
		got = append(got, l.String())
	}
	assert.Equal(t, []string{
		"https://example.org/abs",
		"https://example.org/dir/rel",
		"https://example.org/up",
		"https://other.org/p",
	}, got)
}

func TestExtractLinksHonoursBaseHref(t *testing.T) {
	doc := mustDoc(t, `<html><head><base href="https://cdn.example.org/docs/"></head><body><a href="intro">i</a></body></html>`)
	links := extractLinks(doc, mustURL(t, "https://example.org/"))
	require.Len(t, links, 1)
	assert.Equal(t, "https://cdn.example.org/docs/intro", links[0].String())
}

func TestPolicy(t *testing.T) {
	p, err := newPolicy(&models.ScraperConfig{
		SeedURLs:         []string{"https://example.org/"},
		IncludePatterns:  []string{`example\.org/(docs|$)`},
		ExcludePatterns:  []string{`\.pdf$`},
		LinkOnlyPatterns: []string{`/docs/$`},
	})
	require.NoError(t, err)

	assert.True(t, p.Allows(mustURL(t, "https://example.org/")))
	assert.True(t, p.Allows(mustURL(t, "https://docs.example.org/docs/a")))
	assert.False(t, p.Allows(mustURL(t, "https://example.org/docs/a.pdf")))
	assert.False(t, p.Allows(mustURL(t, "https://example.org/blog")))
	assert.False(t, p.Allows(mustURL(t, "https://notexample.org/docs/a")))
	assert.False(t, p.Allows(mustURL(t, "ftp://example.org/docs/a")))
	assert.True(t, p.LinkOnly(mustURL(t, "https://example.org/docs/")))

	_, err = newPolicy(&models.ScraperConfig{IncludePatterns: []string{"("}})
	assert.Error(t, err)
}

func TestParseRobotsTxt(t *testing.T) {
	body := `# comment
User-agent: otherbot
Disallow: /

User-agent: ragcrawl
User-agent: somebot
Disallow: /private
Allow: /private/open

User-agent: *
Disallow: /tmp
`
	r := parseRobotsTxt(body, "ragcrawl/1.0")
	assert.False(t, r.allowed("/private/x"))
	assert.True(t, r.allowed("/private/open/page"))
	assert.True(t, r.allowed("/tmp/file"))

	w := parseRobotsTxt(body, "unknown/2.0")
	assert.False(t, w.allowed("/tmp/file"))
	assert.True(t, w.allowed("/private/x"))

	var none *robotsRules
	assert.True(t, none.allowed("/anything"))
}

func TestParseSitemap(t *testing.T) {
	idx := []byte(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><sitemap><loc> https://e.org/a.xml </loc></sitemap></sitemapindex>`)
	nested, pages, err := parseSitemap(idx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://e.org/a.xml"}, nested)
	assert.Empty(t, pages)

	set := []byte(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><url><loc>https://e.org/1</loc></url><url><loc>https://e.org/2</loc></url></urlset>`)
	nested, pages, err = parseSitemap(set)
	require.NoError(t, err)
	assert.Empty(t, nested)
	assert.Equal(t, []string{"https://e.org/1", "https://e.org/2"}, pages)

	_, _, err = parseSitemap([]byte("not xml <"))
	assert.Error(t, err)
}

func TestSlugFor(t *testing.T) {
	a := slugFor(mustURL(t, "https://Example.org/About-Us/Team"))
	b := slugFor(mustURL(t, "https://example.org/about_us/team"))
	assert.True(t, strings.HasPrefix(a, "example-org-about-us-team-"), a)
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, len(slugFor(mustURL(t, "https://e.org/"+strings.Repeat("x", 300)))), maxSlugLen+9)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "https://example.org/", canonical(mustURL(t, "HTTPS://Example.ORG#top")))
	assert.Equal(t, "https://example.org/a?b=1", canonical(mustURL(t, "https://example.org/a?b=1#x")))
}

func TestExtractMainKeepsTableRowsContiguous(t *testing.T) {
	_, text := extractMain(mustDoc(t, `<body><table>
  <tr><th>Name</th><th>Phone</th></tr>
  <tr><td>Front desk</td><td>555 | 0100</td></tr>
</table></body>`))
	assert.Equal(t, "| Name | Phone |\n| Front desk | 555 / 0100 |", text)
}
