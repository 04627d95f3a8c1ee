package renderer

import (
	"bytes"
	"text/template"
	"time"
)

// scriptParams drives the generated puppeteer script. Durations are in milliseconds.
type scriptParams struct {
	CeilingMs        int64
	NavTimeoutMs     int64
	IdleTimeoutMs    int64
	ReadyTimeoutMs   int64
	SelectorTimeout  int64
	ScrollSteps      int
	ScrollPauseMs    int64
	MinTextLength    int
	MaxJSTokenRatio  float64
	FallbackSelector []string
	UserAgent        string
}

func defaultScriptParams(ceiling time.Duration, userAgent string) scriptParams {
	ms := ceiling.Milliseconds()
	return scriptParams{
		CeilingMs:        ms,
		NavTimeoutMs:     ms / 2,
		IdleTimeoutMs:    ms / 4,
		ReadyTimeoutMs:   ms / 4,
		SelectorTimeout:  ms / 8,
		ScrollSteps:      3,
		ScrollPauseMs:    500,
		MinTextLength:    200,
		MaxJSTokenRatio:  0.1,
		FallbackSelector: []string{"main", "article", "[role=main]", "#content", ".content"},
		UserAgent:        userAgent,
	}
}

var scriptTmpl = template.Must(template.New("render").Parse(`const fs = require('fs');
const puppeteer = require('puppeteer');

const [url, outFile, errFile] = process.argv.slice(2);
const started = Date.now();
const remaining = () => Math.max(0, {{.CeilingMs}} - (Date.now() - started));
const bounded = (ms) => Math.max(1, Math.min(ms, remaining()));
const sleep = (ms) => new Promise((r) => setTimeout(r, ms));

async function ready(page) {
  return page.evaluate((minLen, maxRatio) => {
    const text = (document.body && document.body.innerText) || '';
    const tokens = text.split(/\s+/).filter(Boolean);
    if (text.length < minLen || tokens.length === 0) return false;
    const js = tokens.filter((t) => /[{};]|=>|function\(|var |const /.test(t)).length;
    return js / tokens.length < maxRatio;
  }, {{.MinTextLength}}, {{.MaxJSTokenRatio}});
}

(async () => {
  let browser;
  let html = '';
  try {
    browser = await puppeteer.launch({ headless: 'new', args: ['--no-sandbox', '--disable-setuid-sandbox'] });
    const page = await browser.newPage();
    {{if .UserAgent}}await page.setUserAgent({{printf "%q" .UserAgent}});{{end}}
    await page.goto(url, { waitUntil: 'domcontentloaded', timeout: bounded({{.NavTimeoutMs}}) });

    try { await page.waitForNetworkIdle({ idleTime: 500, timeout: bounded({{.IdleTimeoutMs}}) }); } catch (e) {}

    let ok = false;
    const readyUntil = Date.now() + bounded({{.ReadyTimeoutMs}});
    while (!ok && Date.now() < readyUntil && remaining() > 0) {
      ok = await ready(page);
      if (!ok) await sleep(250);
    }

    if (!ok) {
      for (const sel of [{{range $i, $s := .FallbackSelector}}{{if $i}}, {{end}}{{printf "%q" $s}}{{end}}]) {
        if (remaining() <= 0) break;
        try { await page.waitForSelector(sel, { timeout: bounded({{.SelectorTimeout}}) }); break; } catch (e) {}
      }
    }

    for (let i = 0; i < {{.ScrollSteps}} && remaining() > {{.ScrollPauseMs}}; i++) {
      await page.evaluate(() => window.scrollTo(0, document.body.scrollHeight));
      await sleep({{.ScrollPauseMs}});
    }

    html = await page.content();
    fs.writeFileSync(outFile, html);
    process.exitCode = 0;
  } catch (err) {
    fs.writeFileSync(errFile, String((err && err.stack) || err));
    process.exitCode = 1;
  } finally {
    if (browser) await browser.close().catch(() => {});
  }
})();
`))

func buildScript(p scriptParams) ([]byte, error) {
	var buf bytes.Buffer
	if err := scriptTmpl.Execute(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
