package ingestion_engine

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/markdave123-py/ragcrawl/internal/models"
)

const (
	DefaultMaxChars     = 1000
	DefaultOverlapChars = 200
)

var paragraphSplitRe = regexp.MustCompile(`\n[ \t]*\n`)

func withChunkDefaults(c models.ChunkingConfig) models.ChunkingConfig {
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultMaxChars
	}
	if c.OverlapChars < 0 {
		c.OverlapChars = 0
	}
	if c.OverlapChars >= c.MaxChars {
		c.OverlapChars = c.MaxChars / 5
	}
	return c
}

// ChunkText splits normalized text with the paragraph, sentence, hard cascade.
// Lengths are counted in runes. Positions are left at zero; PrepareChunks assigns them.
func ChunkText(text string, cfg models.ChunkingConfig) []Chunk {
	cfg = withChunkDefaults(cfg)
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if runeLen(text) <= cfg.MaxChars {
		return []Chunk{newChunk(text, models.ChunkStandard, 0)}
	}

	var paragraphs []string
	for _, p := range paragraphSplitRe.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return accumulate(paragraphs, "\n\n", cfg, models.ChunkStandard, func(p string) []Chunk {
		return sentencePass(p, cfg)
	})
}

// accumulate packs units into chunks of at most cfg.MaxChars. Each new buffer is
// seeded with the word-aligned tail of the previous one. Units longer than
// MaxChars go to oversize, or become a chunk of their own when oversize is nil.
func accumulate(units []string, sep string, cfg models.ChunkingConfig, typ models.ChunkType, oversize func(string) []Chunk) []Chunk {
	var (
		out     []Chunk
		buf     string
		overlap int
	)
	flush := func() {
		if buf != "" {
			out = append(out, newChunk(buf, typ, overlap))
		}
		buf, overlap = "", 0
	}

	for _, u := range units {
		if runeLen(u) > cfg.MaxChars {
			flush()
			if oversize != nil {
				out = append(out, oversize(u)...)
			} else {
				out = append(out, newChunk(u, typ, 0))
			}
			continue
		}
		if buf == "" {
			buf = u
			continue
		}
		if runeLen(buf)+runeLen(sep)+runeLen(u) <= cfg.MaxChars {
			buf += sep + u
			continue
		}

		prev := buf
		flush()
		tail := overlapTail(prev, cfg.OverlapChars)
		if tail != "" && runeLen(tail)+runeLen(sep)+runeLen(u) <= cfg.MaxChars {
			buf = tail + sep + u
			overlap = runeLen(tail)
		} else {
			buf = u
		}
	}
	flush()
	return out
}

// sentencePass handles a paragraph longer than MaxChars. It falls back to hard
// windows when a sentence chunk still exceeds 1.5x MaxChars or nothing came out.
func sentencePass(paragraph string, cfg models.ChunkingConfig) []Chunk {
	chunks := accumulate(splitSentences(paragraph), " ", cfg, models.ChunkSentence, nil)
	limit := cfg.MaxChars * 3 / 2
	if len(chunks) == 0 {
		return hardSplit(paragraph, cfg)
	}
	for _, c := range chunks {
		if c.CharCount > limit {
			return hardSplit(paragraph, cfg)
		}
	}
	return chunks
}

// splitSentences cuts after a run of '.', '!' or '?' that is followed by whitespace.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		j := i
		for j+1 < len(runes) && isSentenceEnd(runes[j+1]) {
			j++
		}
		if j+1 < len(runes) && unicode.IsSpace(runes[j+1]) {
			if s := strings.TrimSpace(string(runes[start : j+1])); s != "" {
				out = append(out, s)
			}
			start = j + 1
		}
		i = j
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// hardSplit emits fixed windows of MaxChars advancing by MaxChars-OverlapChars.
// Whitespace-only windows are dropped.
func hardSplit(text string, cfg models.ChunkingConfig) []Chunk {
	runes := []rune(text)
	step := cfg.MaxChars - cfg.OverlapChars
	if step <= 0 {
		step = cfg.MaxChars
	}

	var (
		out     []Chunk
		lastEnd = -1
	)
	for start := 0; start < len(runes); start += step {
		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}
		piece := string(runes[start:end])
		if strings.TrimSpace(piece) != "" {
			overlap := 0
			if lastEnd > start {
				overlap = lastEnd - start
			}
			out = append(out, newChunk(piece, models.ChunkHard, overlap))
			lastEnd = end
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// overlapTail returns the longest suffix of s no longer than n runes that starts
// on a word boundary.
func overlapTail(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return strings.TrimLeftFunc(s, unicode.IsSpace)
	}
	start := len(runes) - n
	if !unicode.IsSpace(runes[start-1]) {
		for start < len(runes) && !unicode.IsSpace(runes[start]) {
			start++
		}
	}
	for start < len(runes) && unicode.IsSpace(runes[start]) {
		start++
	}
	return string(runes[start:])
}

func newChunk(text string, typ models.ChunkType, overlap int) Chunk {
	n := runeLen(text)
	return Chunk{
		Text:      text,
		Type:      typ,
		CharCount: n,
		TokenCnt:  approxTokens(text),
		Overlap:   overlap,
	}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
func approxTokens(s string) int {
	n := runeLen(s)
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}

// PrepareChunks runs the full text pipeline for one document: scraper header
// removal for crawled pages, normalization, table extraction, noise removal, prose
// chunking, table chunks and directory entries. Positions are assigned 0..n-1.
func PrepareChunks(text string, source models.SourceType, cfg models.ChunkingConfig) []Chunk {
	if source == models.SourceWebScraper {
		text = StripScraperBoilerplate(text)
	}
	text = Normalize(text)

	tables := FindTables(text)
	prose := Normalize(RemoveNoise(RemoveTables(text, tables)))

	chunks := ChunkText(prose, cfg)
	chunks = append(chunks, ChunkTables(tables)...)
	chunks = append(chunks, ExtractDirectoryEntries(prose)...)

	for i := range chunks {
		chunks[i].Position = i
	}
	return chunks
}
