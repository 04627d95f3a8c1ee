package ingestion_engine

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/ragcrawl/internal/models"
)

// TableRowExplodeThreshold is the data-row count at which a table is split into one chunk per row.
const TableRowExplodeThreshold = 10

// ChunkTables turns detected tables into chunks. Large tables become one
// table_row chunk per data row rendered as "header: value" pairs under the
// context-before lines; small tables stay whole with their context.
func ChunkTables(tables []Table) []Chunk {
	var out []Chunk
	for _, t := range tables {
		if t.RowCount >= TableRowExplodeThreshold {
			out = append(out, explodeRows(t)...)
			continue
		}
		var parts []string
		parts = append(parts, t.ContextBefore...)
		parts = append(parts, t.Lines...)
		parts = append(parts, t.ContextAfter...)
		out = append(out, newChunk(strings.Join(parts, "\n"), models.ChunkTable, 0))
	}
	return out
}

func explodeRows(t Table) []Chunk {
	prefix := strings.Join(t.ContextBefore, "\n")
	out := make([]Chunk, 0, len(t.Rows))
	for _, row := range t.Rows {
		pairs := make([]string, 0, len(row))
		for i, v := range row {
			if v == "" {
				continue
			}
			pairs = append(pairs, fmt.Sprintf("%s: %s", headerName(t.Header, i), v))
		}
		if len(pairs) == 0 {
			continue
		}
		text := strings.Join(pairs, " | ")
		if prefix != "" {
			text = prefix + "\n" + text
		}
		out = append(out, newChunk(text, models.ChunkTableRow, 0))
	}
	return out
}

func headerName(header []string, i int) string {
	if i < len(header) && header[i] != "" {
		return header[i]
	}
	return fmt.Sprintf("Column %d", i+1)
}
