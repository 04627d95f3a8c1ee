package ingestion_engine

import (
	"strings"

	"github.com/markdave123-py/ragcrawl/internal/core"
	"github.com/markdave123-py/ragcrawl/internal/models"
)

// MinDirectoryEntries is the smallest number of entries worth keeping; fewer
// matches are treated as false positives.
const MinDirectoryEntries = 2

// directoryWindow is how many lines above and below a phone line are searched.
const directoryWindow = 2

// ExtractDirectoryEntries pairs each phone line with the nearest non-phone line
// above it (name) and below it (address) inside a two-line window.
func ExtractDirectoryEntries(text string) []Chunk {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	isPhone := make([]bool, len(lines))
	for i, l := range lines {
		isPhone[i] = core.HasPhoneNumber(l)
	}

	seen := make(map[string]struct{})
	var out []Chunk
	for i := range lines {
		if !isPhone[i] {
			continue
		}
		name := nearestLine(lines, isPhone, i, -1)
		address := nearestLine(lines, isPhone, i, +1)

		parts := make([]string, 0, 3)
		if name != "" {
			parts = append(parts, name)
		}
		parts = append(parts, lines[i])
		if address != "" {
			parts = append(parts, address)
		}
		entry := strings.Join(parts, "\n")
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, newChunk(entry, models.ChunkDirectoryEntry, 0))
	}

	if len(out) < MinDirectoryEntries {
		return nil
	}
	return out
}

func nearestLine(lines []string, isPhone []bool, from, dir int) string {
	for k := 1; k <= directoryWindow; k++ {
		j := from + dir*k
		if j < 0 || j >= len(lines) {
			return ""
		}
		if isPhone[j] {
			return ""
		}
		if lines[j] != "" {
			return lines[j]
		}
	}
	return ""
}
