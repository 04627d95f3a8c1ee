package ingestion_engine

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	multiSpaceRe   = regexp.MustCompile(` {2,}`)
	manyNewlinesRe = regexp.MustCompile(`\n{3,}`)

	tableLineRe = regexp.MustCompile(`^\|?[^|]*(\|[^|]*)+\|?$`)

	pageNumberRe   = regexp.MustCompile(`(?i)^(page\s+\d+(\s*(of|/)\s*\d+)?|\d+\s*(of|/)\s*\d+|[-–]\s*\d+\s*[-–])$`)
	separatorRunRe = regexp.MustCompile(`[-_=*~.#]{5,}`)

	boilerplateRe = regexp.MustCompile(`(?i)^(title|url|scraped on):`)
)

// Table is a contiguous run of pipe-delimited lines.
type Table struct {
	StartLine     int // zero-based, inclusive
	EndLine       int // zero-based, inclusive
	Lines         []string
	Header        []string
	Rows          [][]string // data rows, header and separator lines excluded
	RowCount      int
	ColumnCount   int
	ContextBefore []string
	ContextAfter  []string
}

// Normalize unifies line endings, strips control characters, trims every line,
// collapses runs of spaces inside a line and collapses 3+ newlines to 2.
// Structural separators such as ':', '-', '—' and '|' are left alone.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = stripControl(text)

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(multiSpaceRe.ReplaceAllString(l, " "))
	}
	text = strings.Join(lines, "\n")
	text = manyNewlinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == '\ufeff' {
			return -1
		}
		return r
	}, s)
}

// isTableLine requires at least two pipes and a pipe-delimited shape.
func isTableLine(line string) bool {
	line = strings.TrimSpace(line)
	if strings.Count(line, "|") < 2 {
		return false
	}
	return tableLineRe.MatchString(line)
}

func isSeparatorLine(line string) bool {
	if !strings.Contains(line, "-") {
		return false
	}
	rest := strings.Map(func(r rune) rune {
		switch r {
		case '|', '-', ':', ' ', '\t':
			return -1
		}
		return r
	}, line)
	return rest == ""
}

func splitCells(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// FindTables scans the lines of text for runs of two or more table lines.
func FindTables(text string) []Table {
	lines := strings.Split(text, "\n")
	var tables []Table

	for i := 0; i < len(lines); {
		if !isTableLine(lines[i]) {
			i++
			continue
		}
		j := i
		for j+1 < len(lines) && isTableLine(lines[j+1]) {
			j++
		}
		if j > i {
			tables = append(tables, buildTable(lines, i, j))
		}
		i = j + 1
	}
	return tables
}

func buildTable(lines []string, start, end int) Table {
	t := Table{StartLine: start, EndLine: end}
	t.Lines = append(t.Lines, lines[start:end+1]...)

	headerDone := false
	for _, l := range t.Lines {
		if isSeparatorLine(l) {
			continue
		}
		cells := splitCells(l)
		if len(cells) > t.ColumnCount {
			t.ColumnCount = len(cells)
		}
		if !headerDone {
			t.Header = cells
			headerDone = true
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	t.RowCount = len(t.Rows)

	for k := start - 2; k < start; k++ {
		if k >= 0 && strings.TrimSpace(lines[k]) != "" && !isTableLine(lines[k]) {
			t.ContextBefore = append(t.ContextBefore, strings.TrimSpace(lines[k]))
		}
	}
	for k := end + 1; k <= end+2 && k < len(lines); k++ {
		if strings.TrimSpace(lines[k]) != "" && !isTableLine(lines[k]) {
			t.ContextAfter = append(t.ContextAfter, strings.TrimSpace(lines[k]))
		}
	}
	return t
}

// RemoveTables blanks the table line ranges and drops the resulting empty lines.
// Blank lines that were already there are kept so paragraphs survive.
func RemoveTables(text string, tables []Table) string {
	if len(tables) == 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	drop := make([]bool, len(lines))
	for _, t := range tables {
		for k := t.StartLine; k <= t.EndLine && k < len(lines); k++ {
			drop[k] = true
		}
	}
	out := make([]string, 0, len(lines))
	for i, l := range lines {
		if !drop[i] {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// RemoveNoise strips page-number headers and footers, long separator runs,
// control characters and lines made only of punctuation.
func RemoveNoise(text string) string {
	text = stripControl(text)
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(separatorRunRe.ReplaceAllString(l, ""))
		if l == "" {
			out = append(out, "")
			continue
		}
		if pageNumberRe.MatchString(l) || punctuationOnly(l) {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func punctuationOnly(line string) bool {
	for _, r := range line {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// StripScraperBoilerplate removes the Title/URL/Scraped on header the crawler
// writes at the top of stored pages.
func StripScraperBoilerplate(text string) string {
	lines := strings.Split(text, "\n")
	i := 0
	for i < len(lines) {
		l := strings.TrimSpace(lines[i])
		if l == "" || boilerplateRe.MatchString(l) {
			i++
			continue
		}
		break
	}
	return strings.Join(lines[i:], "\n")
}
