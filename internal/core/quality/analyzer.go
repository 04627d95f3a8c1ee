package quality

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/core"
)

type ContentType string

const (
	ContentMediaRich           ContentType = "media_rich"
	ContentDataTable           ContentType = "data_table"
	ContentInteractiveForm     ContentType = "interactive_form"
	ContentNavigationDirectory ContentType = "navigation_directory"
	ContentArticle             ContentType = "article"
	ContentStructuredInfo      ContentType = "structured_info"
	ContentGeneric             ContentType = "generic"
)

type Strategy string

const (
	StrategySkipLowQuality Strategy = "skip_low_quality"
	StrategyTableAware     Strategy = "table_aware"
	StrategyDirectoryAware Strategy = "directory_aware"
	StrategyArticle        Strategy = "article"
	StrategyFormFields     Strategy = "form_fields"
	StrategyMediaCaptions  Strategy = "media_captions"
	StrategyStandard       Strategy = "standard"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

const (
	DefaultLowThreshold  = 0.3
	DefaultHighThreshold = 0.7
)

// Analysis is the outcome of scoring one fetched page.
type Analysis struct {
	URL                string
	QualityScore       float64
	TextRatio          float64
	InformationDensity float64
	SemanticRichness   float64
	LanguageQuality    float64
	BusinessRelevance  float64
	HasStructuredData  bool
	ContentType        ContentType
	ContentCategory    string
	ExtractionStrategy Strategy
	ProcessingPriority Priority
	TextLength         int
	WordCount          int
	LooksJSGated       bool
}

// Skip reports whether the page should not be stored as content.
func (a Analysis) Skip() bool {
	return a.ExtractionStrategy == StrategySkipLowQuality
}

// Analyzer scores HTML pages. Thresholds come from configuration.
type Analyzer struct {
	low  float64
	high float64
	log  *zap.Logger
}

func NewAnalyzer(low, high float64, log *zap.Logger) *Analyzer {
	if low <= 0 && high <= 0 {
		low, high = DefaultLowThreshold, DefaultHighThreshold
	}
	if high < low {
		high = low
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{low: low, high: high, log: log}
}

var (
	wordRe     = regexp.MustCompile(`[\p{L}\p{N}']+`)
	sentenceRe = regexp.MustCompile(`[.!?]+`)

	entityPatterns = map[string]*regexp.Regexp{
		"date":       regexp.MustCompile(`(?i)\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2}|(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.? \d{1,2}(, \d{4})?)\b`),
		"time":       regexp.MustCompile(`(?i)\b\d{1,2}(:\d{2})?\s?(am|pm)\b|\b\d{1,2}:\d{2}\b`),
		"email":      regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`),
		"address":    addressPattern,
		"currency":   regexp.MustCompile(`[$€£¥]\s?\d[\d,]*(\.\d+)?|\b\d[\d,]*(\.\d+)?\s?(usd|eur|gbp|dollars)\b`),
		"percentage": regexp.MustCompile(`\b\d+(\.\d+)?\s?%`),
		"url":        regexp.MustCompile(`(?i)\bhttps?://[^\s<>"]+|\bwww\.[^\s<>"]+`),
	}

	addressPattern = regexp.MustCompile(`(?i)\b\d{1,5}\s+(\w+\s){1,4}(street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|way|court|ct|suite|floor)\b`)
	hoursPattern   = regexp.MustCompile(`(?i)\b(mon|tue|wed|thu|fri|sat|sun)[a-z]*\b.{0,20}\d{1,2}(:\d{2})?\s?(am|pm)|\b(opening|business|office) hours\b`)

	businessKeywords = map[string][]string{
		"contact":    {"contact", "phone", "email", "call us", "reach us", "address", "get in touch"},
		"services":   {"service", "we offer", "solutions", "products", "pricing", "consultation"},
		"procedures": {"how to", "step", "apply", "application", "requirements", "procedure", "instructions", "process"},
		"hours":      {"hours", "open", "closed", "monday", "friday", "weekend", "holiday"},
	}
	// Stable order so ties on the strongest category resolve the same way each run.
	categoryOrder = []string{"contact", "services", "procedures", "hours"}

	responsiveRe = regexp.MustCompile(`\b(hidden-(xs|sm|md|lg)|visible-(xs|sm|md|lg)|d-none|d-(sm|md|lg|xl)-(none|block|table-cell)|(sm|md|lg):hidden)\b`)

	jsMarkerRe = regexp.MustCompile(`(?i)(enable javascript|javascript is required|id="(root|app|__next)"\s*>\s*</div>)`)
)

// Analyze scores html fetched from pageURL. Unparseable markup scores as empty text.
func (a *Analyzer) Analyze(html, pageURL string) Analysis {
	out := Analysis{URL: pageURL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		a.log.Debug("quality: parse failed", zap.String("url", pageURL), zap.Error(err))
		out.ContentType = ContentGeneric
		out.ContentCategory = "general"
		a.decide(&out)
		return out
	}

	scripts := doc.Find("script").Length()
	hasLD := doc.Find(`script[type="application/ld+json"]`).Length() > 0
	doc.Find("script, style, noscript, template").Remove()

	text := normalizeSpace(doc.Find("body").Text())
	out.TextLength = utf8.RuneCountInString(text)
	if n := utf8.RuneCountInString(html); n > 0 {
		out.TextRatio = clamp(float64(out.TextLength) / float64(n))
	}

	words := wordRe.FindAllString(strings.ToLower(text), -1)
	out.WordCount = len(words)
	out.InformationDensity = informationDensity(text, words)
	out.SemanticRichness = semanticRichness(text)
	out.LanguageQuality = languageQuality(text)

	lower := strings.ToLower(text)
	out.BusinessRelevance, out.ContentCategory = businessRelevance(lower)

	out.HasStructuredData = hasLD || doc.Find("[itemscope], table th").Length() > 0
	out.ContentType = classify(doc, text, out.TextLength)
	out.LooksJSGated = out.TextLength < 200 && (scripts >= 3 || jsMarkerRe.MatchString(html))

	score := 0.2*out.TextRatio +
		0.25*out.InformationDensity +
		0.2*out.SemanticRichness +
		0.15*out.LanguageQuality +
		0.2*out.BusinessRelevance
	if out.HasStructuredData && out.BusinessRelevance > 0.5 {
		score += 0.1
	}
	if out.ContentType == ContentNavigationDirectory {
		score *= 0.7
	}
	out.QualityScore = clamp(score)

	a.decide(&out)
	a.log.Debug("quality analysed",
		zap.String("url", pageURL),
		zap.Float64("score", out.QualityScore),
		zap.String("type", string(out.ContentType)),
		zap.String("strategy", string(out.ExtractionStrategy)),
	)
	return out
}

func (a *Analyzer) decide(out *Analysis) {
	switch {
	case out.QualityScore < a.low:
		out.ExtractionStrategy = StrategySkipLowQuality
	default:
		out.ExtractionStrategy = strategyFor(out.ContentType)
	}

	switch {
	case out.QualityScore >= a.high || out.BusinessRelevance > 0.7:
		out.ProcessingPriority = PriorityHigh
	case out.QualityScore < a.low:
		out.ProcessingPriority = PriorityLow
	default:
		out.ProcessingPriority = PriorityNormal
	}
}

func strategyFor(t ContentType) Strategy {
	switch t {
	case ContentDataTable:
		return StrategyTableAware
	case ContentNavigationDirectory, ContentStructuredInfo:
		return StrategyDirectoryAware
	case ContentArticle:
		return StrategyArticle
	case ContentInteractiveForm:
		return StrategyFormFields
	case ContentMediaRich:
		return StrategyMediaCaptions
	}
	return StrategyStandard
}

// classify applies the content-type rules in order; the first match wins.
func classify(doc *goquery.Document, text string, textLen int) ContentType {
	media := doc.Find("img, video, audio, iframe, picture").Length()
	if media >= 5 && textLen < 500 {
		return ContentMediaRich
	}

	cells := doc.Find("td, th").Length()
	responsive := 0
	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		if responsiveRe.MatchString(s.AttrOr("class", "")) {
			responsive++
		}
	})
	if cells > 15 || responsive >= 5 {
		return ContentDataTable
	}

	if doc.Find("form").Length() >= 1 && doc.Find("input, select, textarea").Length() > 3 {
		return ContentInteractiveForm
	}
	if doc.Find("a[href]").Length() > 20 && textLen < 1000 {
		return ContentNavigationDirectory
	}
	if textLen > 500 && doc.Find("p").Length() > 3 {
		return ContentArticle
	}

	signals := 0
	if core.HasPhoneNumber(text) {
		signals++
	}
	for _, re := range []*regexp.Regexp{addressPattern, hoursPattern} {
		if re.MatchString(text) {
			signals++
		}
	}
	if signals >= 2 {
		return ContentStructuredInfo
	}
	return ContentGeneric
}

func informationDensity(text string, words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	richness := float64(len(unique)) / float64(len(words))

	sentences := 0
	for _, s := range sentenceRe.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}
	avg := float64(len(words)) / float64(sentences)
	return clamp(2*richness + min(avg/20, 0.5))
}

func semanticRichness(text string) float64 {
	total := min(0.1*float64(len(core.PhoneNumbers(text))), 0.3)
	for _, re := range entityPatterns {
		n := len(re.FindAllStringIndex(text, -1))
		total += min(0.1*float64(n), 0.3)
	}
	return clamp(total)
}

func languageQuality(text string) float64 {
	var upper, lower, punct, other, total int
	for _, r := range text {
		total++
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		}
		if unicode.IsPunct(r) {
			punct++
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			other++
		}
	}
	score := 0.5
	if total == 0 {
		return score
	}
	if letters := upper + lower; letters > 0 {
		u := float64(upper) / float64(letters)
		l := float64(lower) / float64(letters)
		if u > 0.8 || l > 0.9 {
			score -= 0.3
		}
	}
	if d := float64(punct) / float64(total); d >= 0.02 && d <= 0.15 {
		score += 0.2
	}
	if float64(other)/float64(total) > 0.1 {
		score -= 0.2
	}
	return clamp(score)
}

// businessRelevance returns 0.25 per matched keyword category and the category with most hits.
func businessRelevance(lower string) (float64, string) {
	score := 0.0
	best, bestHits := "general", 0
	for _, cat := range categoryOrder {
		hits := 0
		for _, kw := range businessKeywords[cat] {
			hits += strings.Count(lower, kw)
		}
		if hits > 0 {
			score += 0.25
		}
		if hits > bestHits {
			best, bestHits = cat, hits
		}
	}
	return clamp(score), best
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
