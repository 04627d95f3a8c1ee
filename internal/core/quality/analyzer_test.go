package quality

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(body string) string {
	return "<html><head><title>t</title></head><body>" + body + "</body></html>"
}

func TestInformationDensity(t *testing.T) {
	words := strings.Fields("alpha beta gamma delta")
	// richness 1 => 2, capped at 1
	assert.Equal(t, 1.0, informationDensity("alpha beta gamma delta.", words))

	rep := strings.Fields("go go go go go go go go go go")
	// richness 0.1 => 0.2, avg words 10 => 0.5
	assert.InDelta(t, 0.7, informationDensity("go go go go go go go go go go.", rep), 1e-9)

	assert.Equal(t, 0.0, informationDensity("", nil))
}

func TestSemanticRichnessCapsPerFamily(t *testing.T) {
	text := strings.Repeat("mail a@b.com ", 10)
	// one family, capped at 0.3
	assert.InDelta(t, 0.3, semanticRichness(text), 1e-9)

	mixed := "Call 555-123-4567 or write to info@example.com, 50% off, $20 on 2024-01-15 at 9:30 am."
	assert.Greater(t, semanticRichness(mixed), 0.4)
}

func TestSemanticRichnessCountsInternationalPhones(t *testing.T) {
	assert.InDelta(t, 0.1, semanticRichness("Sede centrale +39 0432 123456"), 1e-9)
	assert.InDelta(t, 0.2, semanticRichness("Ufficio 06 1234567, fax 06 7654321"), 1e-9)
}

func TestLanguageQuality(t *testing.T) {
	assert.InDelta(t, 0.2, languageQuality("THIS IS ALL SHOUTING WITHOUT PUNCTUATION"), 1e-9)
	assert.InDelta(t, 0.7, languageQuality("Hello there, this is a Normal Sentence. Another One Follows here, Fine."), 1e-9)
	assert.InDelta(t, 0.0, languageQuality("#### $$$$ %%%% @@@@ aaaa"), 1e-9)
	assert.Equal(t, 0.5, languageQuality(""))
}

func TestBusinessRelevance(t *testing.T) {
	score, cat := businessRelevance("contact us by phone or email at our address. hours: open monday.")
	assert.InDelta(t, 0.5, score, 1e-9)
	assert.Equal(t, "contact", cat)

	score, cat = businessRelevance("nothing relevant")
	assert.Equal(t, 0.0, score)
	assert.Equal(t, "general", cat)
}

func TestClassifyOrder(t *testing.T) {
	a := NewAnalyzer(0.3, 0.7, nil)

	media := page(strings.Repeat(`<img src="x.png">`, 6) + "<p>gallery</p>")
	assert.Equal(t, ContentMediaRich, a.Analyze(media, "https://x/").ContentType)

	var rows strings.Builder
	rows.WriteString("<table><tr><th>a</th><th>b</th><th>c</th><th>d</th></tr>")
	for i := 0; i < 4; i++ {
		rows.WriteString("<tr><td>1</td><td>2</td><td>3</td><td>4</td></tr>")
	}
	rows.WriteString("</table>")
	assert.Equal(t, ContentDataTable, a.Analyze(page(rows.String()), "https://x/").ContentType)

	form := page(`<form><input name="a"><input name="b"><input name="c"><textarea></textarea></form>`)
	assert.Equal(t, ContentInteractiveForm, a.Analyze(form, "https://x/").ContentType)

	var links strings.Builder
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&links, `<a href="/p%d">p%d</a>`, i, i)
	}
	nav := a.Analyze(page(links.String()), "https://x/")
	assert.Equal(t, ContentNavigationDirectory, nav.ContentType)
	assert.Equal(t, StrategyDirectoryAware, strategyFor(nav.ContentType))

	para := "<p>" + strings.Repeat("Readers learn about the service and its many useful features today. ", 3) + "</p>"
	article := a.Analyze(page(strings.Repeat(para, 4)), "https://x/")
	assert.Equal(t, ContentArticle, article.ContentType)

	info := page("<div>Main office. </div><div>Call 555-123-4567 </div><div>100 Main Street</div>")
	assert.Equal(t, ContentStructuredInfo, a.Analyze(info, "https://x/").ContentType)

	assert.Equal(t, ContentGeneric, a.Analyze(page("<p>short</p>"), "https://x/").ContentType)
}

func TestAnalyzeStrategyAndPriority(t *testing.T) {
	a := NewAnalyzer(0.3, 0.7, nil)

	empty := a.Analyze(page(""), "https://x/empty")
	assert.True(t, empty.Skip())
	assert.Equal(t, PriorityLow, empty.ProcessingPriority)

	body := `<main><h1>Contact our services team</h1>
<p>Contact us by phone at 555-123-4567 or email help@example.com for services and pricing.</p>
<p>Our office hours are Monday to Friday, 9:00 am to 5:00 pm, closed on holidays.</p>
<p>To apply, follow these steps: read the requirements, then submit the application process form.</p>
<p>Visit us at 100 Main Street, Suite 4, where our consultation desk is open.</p></main>`
	rich := a.Analyze(page(body), "https://x/contact")
	require.False(t, rich.Skip())
	assert.Equal(t, 1.0, rich.BusinessRelevance)
	assert.Equal(t, PriorityHigh, rich.ProcessingPriority)
	assert.GreaterOrEqual(t, rich.QualityScore, 0.3)
	assert.LessOrEqual(t, rich.QualityScore, 1.0)
}

func TestThresholdsAreConfigurable(t *testing.T) {
	html := page("<p>Contact us by phone for services.</p>")
	loose := NewAnalyzer(0.01, 0.02, nil).Analyze(html, "https://x/")
	strict := NewAnalyzer(0.99, 1.0, nil).Analyze(html, "https://x/")
	assert.False(t, loose.Skip())
	assert.Equal(t, PriorityHigh, loose.ProcessingPriority)
	assert.True(t, strict.Skip())
}

func TestLooksJSGated(t *testing.T) {
	a := NewAnalyzer(0.3, 0.7, nil)
	spa := `<html><body><div id="root"></div><script src="a.js"></script><script src="b.js"></script><script src="c.js"></script></body></html>`
	assert.True(t, a.Analyze(spa, "https://x/").LooksJSGated)

	static := page("<p>" + strings.Repeat("Plain server rendered prose. ", 20) + "</p>")
	assert.False(t, a.Analyze(static, "https://x/").LooksJSGated)
}
